// Package epoch tracks the consensus parameters in force at every block of
// every live branch: which authorities may author, with what weights, under
// which randomness and primary-slot threshold constant. Descriptors are
// immutable once committed; branches that diverge fork them, they are never
// mutated in place.
package epoch

import (
	"fmt"

	"github.com/geanlabs/babe/types"
)

// Descriptor is the full set of parameters a slot claim is verified against.
type Descriptor struct {
	Index       types.EpochIndex
	StartSlot   types.Slot
	Authorities types.AuthorityList
	TotalWeight uint64
	Randomness  types.Randomness

	// Threshold constant c = C1/C2, with 0 < c <= 1.
	C1, C2 uint64

	// AllowSecondary permits secondary-plain slot claims in this epoch.
	AllowSecondary bool

	// Disabled holds authority indices barred from authoring in this epoch.
	// Rebuilt at every epoch boundary from the previous epoch's OnDisabled
	// logs.
	Disabled map[types.AuthorityIndex]struct{}
}

// NewDescriptor builds a validated descriptor. The authority list invariants
// (non-empty, unique, positive weights) are enforced here so that every
// descriptor in the tracker is known-good.
func NewDescriptor(index types.EpochIndex, startSlot types.Slot, authorities types.AuthorityList,
	randomness types.Randomness, c1, c2 uint64, allowSecondary bool) (*Descriptor, error) {

	if err := authorities.Validate(); err != nil {
		return nil, err
	}
	if c2 == 0 || c1 > c2 {
		return nil, fmt.Errorf("invalid threshold constant %d/%d", c1, c2)
	}
	return &Descriptor{
		Index:          index,
		StartSlot:      startSlot,
		Authorities:    authorities,
		TotalWeight:    authorities.TotalWeight(),
		Randomness:     randomness,
		C1:             c1,
		C2:             c2,
		AllowSecondary: allowSecondary,
	}, nil
}

// Contains reports whether slot falls inside this descriptor's epoch, given
// the chain's epoch length.
func (d *Descriptor) Contains(slot types.Slot, epochLength uint64) bool {
	return slot >= d.StartSlot && uint64(slot-d.StartSlot) < epochLength
}

// Authority returns the authority at idx, if it exists.
func (d *Descriptor) Authority(idx types.AuthorityIndex) (types.Authority, bool) {
	if int(idx) >= len(d.Authorities) {
		return types.Authority{}, false
	}
	return d.Authorities[idx], true
}

// IsDisabled reports whether idx is disabled in this epoch.
func (d *Descriptor) IsDisabled(idx types.AuthorityIndex) bool {
	_, disabled := d.Disabled[idx]
	return disabled
}

// clone returns a copy sharing the authority list but owning its own
// Disabled set.
func (d *Descriptor) clone() *Descriptor {
	c := *d
	if d.Disabled != nil {
		c.Disabled = make(map[types.AuthorityIndex]struct{}, len(d.Disabled))
		for idx := range d.Disabled {
			c.Disabled[idx] = struct{}{}
		}
	}
	return &c
}
