package babe

import (
	"fmt"
	"math"
	"math/big"

	"github.com/geanlabs/babe/types"
)

// CalculateThreshold computes the primary-claim threshold for an authority:
// floor(2^128 * (1 - (1-c)^(weight/totalWeight))) with c = c1/c2. A claim
// wins the slot iff its VRF output, read as a u128, is strictly below this
// value.
func CalculateThreshold(c1, c2, weight, totalWeight uint64) (*big.Int, error) {
	if c2 == 0 {
		return nil, fmt.Errorf("threshold denominator is zero")
	}
	if c1 > c2 {
		return nil, fmt.Errorf("threshold constant %d/%d exceeds one", c1, c2)
	}
	if totalWeight == 0 || weight > totalWeight {
		return nil, fmt.Errorf("invalid weight %d of %d", weight, totalWeight)
	}

	c := float64(c1) / float64(c2)
	theta := float64(weight) / float64(totalWeight)
	p := 1 - math.Pow(1-c, theta)

	// Scale the probability into the 2^128 output space.
	frac := new(big.Rat).SetFloat64(p)
	if frac == nil {
		return nil, fmt.Errorf("cannot represent threshold probability %v", p)
	}
	space := new(big.Int).Lsh(big.NewInt(1), 128)
	num := new(big.Int).Mul(space, frac.Num())
	return num.Div(num, frac.Denom()), nil
}

// vrfOutputValue reads the first 16 bytes of a VRF output, little-endian,
// as the claim's position in the u128 output space.
func vrfOutputValue(output types.VrfOutput) *big.Int {
	buf := make([]byte, 16)
	for i := 0; i < 16; i++ {
		buf[i] = output[15-i]
	}
	return new(big.Int).SetBytes(buf)
}

// belowThreshold reports whether the output wins a slot under threshold.
func belowThreshold(output types.VrfOutput, threshold *big.Int) bool {
	return vrfOutputValue(output).Cmp(threshold) < 0
}
