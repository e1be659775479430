package babe

import (
	"fmt"

	"github.com/geanlabs/babe/epoch"
	"github.com/geanlabs/babe/types"
)

// verifyClaim validates a slot claim against the epoch descriptor for the
// claimed slot. On success it returns the authoring authority and, for
// VRF-backed claims, the output to feed the randomness accumulator.
func verifyClaim(pre types.PreDigest, desc *epoch.Descriptor, epochLength uint64, crypto AuthorshipVerifier) (types.Authority, *types.VrfOutput, error) {
	idx := pre.AuthorityIndex()
	slot := pre.SlotNumber()

	author, ok := desc.Authority(idx)
	if !ok {
		return types.Authority{}, nil, fmt.Errorf("%w: index %d of %d", ErrBadAuthorityIndex, idx, len(desc.Authorities))
	}
	if desc.IsDisabled(idx) {
		return types.Authority{}, nil, fmt.Errorf("%w: index %d is disabled", ErrBadAuthorityIndex, idx)
	}
	if !desc.Contains(slot, epochLength) {
		return types.Authority{}, nil, fmt.Errorf("%w: slot %d, epoch %d covers [%d, %d)",
			ErrSlotEpochMismatch, slot, desc.Index, desc.StartSlot, uint64(desc.StartSlot)+epochLength)
	}

	switch claim := pre.(type) {
	case types.PrimaryPreDigest:
		if err := verifyVrfClaim(crypto, author.Key, desc, slot, claim.Output, claim.Proof); err != nil {
			return types.Authority{}, nil, err
		}
		threshold, err := CalculateThreshold(desc.C1, desc.C2, author.Weight, desc.TotalWeight)
		if err != nil {
			return types.Authority{}, nil, fmt.Errorf("%w: %v", ErrVrfOutputTooHigh, err)
		}
		if !belowThreshold(claim.Output, threshold) {
			// The proof was valid; the author simply was not entitled to a
			// primary slot here.
			return types.Authority{}, nil, fmt.Errorf("%w: authority %d at slot %d", ErrVrfOutputTooHigh, idx, slot)
		}
		out := claim.Output
		return author, &out, nil

	case types.SecondaryVRFPreDigest:
		if !desc.AllowSecondary {
			return types.Authority{}, nil, fmt.Errorf("%w: slot %d", ErrSecondaryClaimsDisallowed, slot)
		}
		if expected, ok := secondarySlotAuthor(slot, desc); !ok || expected != idx {
			return types.Authority{}, nil, fmt.Errorf("%w: claimed %d", ErrWrongSecondaryAuthor, idx)
		}
		if err := verifyVrfClaim(crypto, author.Key, desc, slot, claim.Output, claim.Proof); err != nil {
			return types.Authority{}, nil, err
		}
		out := claim.Output
		return author, &out, nil

	case types.SecondaryPlainPreDigest:
		if !desc.AllowSecondary {
			return types.Authority{}, nil, fmt.Errorf("%w: slot %d", ErrSecondaryClaimsDisallowed, slot)
		}
		if expected, ok := secondarySlotAuthor(slot, desc); !ok || expected != idx {
			return types.Authority{}, nil, fmt.Errorf("%w: claimed %d", ErrWrongSecondaryAuthor, idx)
		}
		return author, nil, nil

	default:
		return types.Authority{}, nil, fmt.Errorf("%w: unhandled claim variant %T", ErrPreRuntimeDigestDecode, pre)
	}
}

func verifyVrfClaim(crypto AuthorshipVerifier, key types.AuthorityID, desc *epoch.Descriptor, slot types.Slot, output types.VrfOutput, proof types.VrfProof) error {
	transcript := MakeTranscript(desc.Randomness, slot, desc.Index)
	ok, err := crypto.VerifyVrf(key, transcript, output, proof)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrBadVrfProof, err)
	}
	if !ok {
		return fmt.Errorf("%w: authority %s at slot %d", ErrBadVrfProof, key, slot)
	}
	return nil
}

// secondarySlotAuthor computes the deterministic author of a secondary
// slot: slot mod the authority count, advancing past disabled indices.
func secondarySlotAuthor(slot types.Slot, desc *epoch.Descriptor) (types.AuthorityIndex, bool) {
	n := uint64(len(desc.Authorities))
	idx := types.AuthorityIndex(uint64(slot) % n)
	for i := uint64(0); i < n; i++ {
		if !desc.IsDisabled(idx) {
			return idx, true
		}
		idx = types.AuthorityIndex((uint64(idx) + 1) % n)
	}
	return 0, false
}
