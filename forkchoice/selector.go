// Package forkchoice implements BABE chain selection: a comparator over
// verified chain tips preferring the higher slot, then the branch with more
// primary slot claims since the fork point. Ties are genuinely incomparable;
// callers keep all tied tips until a later block breaks the tie.
package forkchoice

import (
	"fmt"

	"github.com/geanlabs/babe/epoch"
	"github.com/geanlabs/babe/types"
)

// Result is the outcome of comparing two tips.
type Result int

const (
	// Incomparable means neither tip is preferred; both stay canonical
	// candidates.
	Incomparable Result = iota
	// Greater means the first tip is canonical over the second.
	Greater
	// Less means the second tip is canonical over the first.
	Less
)

func (r Result) String() string {
	switch r {
	case Greater:
		return "greater"
	case Less:
		return "less"
	default:
		return "incomparable"
	}
}

// Index resolves block hashes to committed metadata. *epoch.Tracker
// implements it.
type Index interface {
	Info(hash types.Hash) (epoch.BlockInfo, bool)
}

// Select compares two verified chain tips sharing common history.
//
//  1. The tip with the strictly greater slot number wins.
//  2. At equal slots, the branch with strictly more primary claims since
//     the fork point wins.
//  3. Otherwise the tips are Incomparable; no arbitrary rule breaks the tie.
func Select(index Index, a, b types.Hash) (Result, error) {
	if a == b {
		return Incomparable, nil
	}

	infoA, ok := index.Info(a)
	if !ok {
		return Incomparable, fmt.Errorf("%w: %s", ErrUnknownBlock, a.Short())
	}
	infoB, ok := index.Info(b)
	if !ok {
		return Incomparable, fmt.Errorf("%w: %s", ErrUnknownBlock, b.Short())
	}

	if infoA.Slot != infoB.Slot {
		if infoA.Slot > infoB.Slot {
			return Greater, nil
		}
		return Less, nil
	}

	primariesA, primariesB, err := primariesSinceFork(index, a, infoA, b, infoB)
	if err != nil {
		return Incomparable, err
	}
	if primariesA != primariesB {
		if primariesA > primariesB {
			return Greater, nil
		}
		return Less, nil
	}
	return Incomparable, nil
}

// primariesSinceFork walks both branches back to their common ancestor,
// counting primary claims on each side.
func primariesSinceFork(index Index, a types.Hash, infoA epoch.BlockInfo, b types.Hash, infoB epoch.BlockInfo) (uint64, uint64, error) {
	var countA, countB uint64

	// Equalize depth first; block numbers decrease strictly along parents.
	for infoA.Number > infoB.Number {
		if infoA.Primary {
			countA++
		}
		var ok bool
		if a, infoA, ok = step(index, infoA); !ok {
			return 0, 0, fmt.Errorf("%w: ancestor of first tip", ErrUnknownBlock)
		}
	}
	for infoB.Number > infoA.Number {
		if infoB.Primary {
			countB++
		}
		var ok bool
		if b, infoB, ok = step(index, infoB); !ok {
			return 0, 0, fmt.Errorf("%w: ancestor of second tip", ErrUnknownBlock)
		}
	}

	for a != b {
		if infoA.Number == 0 {
			return 0, 0, ErrNoCommonAncestor
		}
		if infoA.Primary {
			countA++
		}
		if infoB.Primary {
			countB++
		}
		var ok bool
		if a, infoA, ok = step(index, infoA); !ok {
			return 0, 0, fmt.Errorf("%w: ancestor of first tip", ErrUnknownBlock)
		}
		if b, infoB, ok = step(index, infoB); !ok {
			return 0, 0, fmt.Errorf("%w: ancestor of second tip", ErrUnknownBlock)
		}
	}
	return countA, countB, nil
}

func step(index Index, info epoch.BlockInfo) (types.Hash, epoch.BlockInfo, bool) {
	parent := info.Parent
	parentInfo, ok := index.Info(parent)
	return parent, parentInfo, ok
}
