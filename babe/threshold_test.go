package babe

import (
	"math/big"
	"testing"

	"github.com/geanlabs/babe/types"
)

// outputAtFraction builds a VRF output whose u128 value is num/den of the
// output space.
func outputAtFraction(num, den int64) types.VrfOutput {
	space := new(big.Int).Lsh(big.NewInt(1), 128)
	v := new(big.Int).Mul(space, big.NewInt(num))
	v.Div(v, big.NewInt(den))

	var out types.VrfOutput
	be := v.Bytes()
	for i, j := 0, len(be)-1; j >= 0; i, j = i+1, j-1 {
		out[i] = be[j]
	}
	return out
}

func TestThresholdWeightedAuthority(t *testing.T) {
	// c = 1/2, weight 2 of 4: win probability 1 - (1/2)^(1/2), about 0.293.
	threshold, err := CalculateThreshold(1, 2, 2, 4)
	if err != nil {
		t.Fatalf("threshold: %v", err)
	}

	if !belowThreshold(outputAtFraction(1, 10), threshold) {
		t.Error("output at 0.10 of the space must win")
	}
	if !belowThreshold(outputAtFraction(1, 4), threshold) {
		t.Error("output at 0.25 of the space must win")
	}
	if belowThreshold(outputAtFraction(3, 10), threshold) {
		t.Error("output at 0.30 of the space must lose")
	}
	if belowThreshold(outputAtFraction(9, 10), threshold) {
		t.Error("output at 0.90 of the space must lose")
	}
}

func TestThresholdLightAuthority(t *testing.T) {
	// c = 1/2, weight 1 of 4: win probability 1 - (1/2)^(1/4), about 0.159.
	threshold, err := CalculateThreshold(1, 2, 1, 4)
	if err != nil {
		t.Fatalf("threshold: %v", err)
	}

	if !belowThreshold(outputAtFraction(3, 20), threshold) {
		t.Error("output at 0.15 of the space must win")
	}
	if belowThreshold(outputAtFraction(17, 100), threshold) {
		t.Error("output at 0.17 of the space must lose")
	}
}

func TestThresholdCertainty(t *testing.T) {
	// c = 1 fills the whole output space; every output wins.
	threshold, err := CalculateThreshold(1, 1, 1, 4)
	if err != nil {
		t.Fatalf("threshold: %v", err)
	}

	var max types.VrfOutput
	for i := 0; i < 16; i++ {
		max[i] = 0xff
	}
	if !belowThreshold(max, threshold) {
		t.Error("maximum output must win under c = 1")
	}
}

func TestThresholdMonotonicInWeight(t *testing.T) {
	light, err := CalculateThreshold(1, 2, 1, 4)
	if err != nil {
		t.Fatalf("threshold: %v", err)
	}
	heavy, err := CalculateThreshold(1, 2, 2, 4)
	if err != nil {
		t.Fatalf("threshold: %v", err)
	}
	if heavy.Cmp(light) <= 0 {
		t.Error("higher weight must yield a higher threshold")
	}
}

func TestThresholdRejectsInvalidInput(t *testing.T) {
	cases := []struct {
		name                        string
		c1, c2, weight, totalWeight uint64
	}{
		{"zero denominator", 1, 0, 1, 4},
		{"c above one", 3, 2, 1, 4},
		{"zero total weight", 1, 2, 1, 0},
		{"weight above total", 1, 2, 5, 4},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			if _, err := CalculateThreshold(c.c1, c.c2, c.weight, c.totalWeight); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}

func TestVrfOutputValueLittleEndian(t *testing.T) {
	var out types.VrfOutput
	out[0] = 1
	if vrfOutputValue(out).Cmp(big.NewInt(1)) != 0 {
		t.Error("byte 0 is the least significant")
	}

	out = types.VrfOutput{}
	out[15] = 1
	want := new(big.Int).Lsh(big.NewInt(1), 120)
	if vrfOutputValue(out).Cmp(want) != 0 {
		t.Error("byte 15 is the most significant")
	}

	// Bytes past the first 16 do not contribute.
	out[16] = 0xff
	if vrfOutputValue(out).Cmp(want) != 0 {
		t.Error("bytes beyond the u128 window must be ignored")
	}
}
