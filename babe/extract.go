package babe

import (
	"fmt"

	"github.com/geanlabs/babe/types"
)

// Digests holds the consensus payloads extracted from a header.
type Digests struct {
	Seal      types.SealSignature
	PreDigest types.PreDigest
	Logs      []types.ConsensusLog
}

// ExtractDigests pulls the seal signature, the slot claim and the consensus
// logs out of a decoded header, enforcing the structural digest rules: the
// final log entry must be a BABE seal, and exactly one BABE pre-runtime
// digest must exist among the rest. Non-BABE items and other log kinds are
// ignored. Pure; no state is touched.
func ExtractDigests(h *types.Header) (*Digests, error) {
	if len(h.Digest) == 0 {
		return nil, fmt.Errorf("%w: empty digest log", ErrMissingSeal)
	}

	// The seal's position is a protocol rule: last entry, always.
	last := h.Digest[len(h.Digest)-1]
	if last.Kind != types.DigestSeal || !last.IsBabe() {
		return nil, fmt.Errorf("%w: final digest item is not a babe seal", ErrMissingSeal)
	}
	if len(last.Payload) != len(types.SealSignature{}) {
		return nil, fmt.Errorf("%w: seal is %d bytes, want %d", ErrBadSeal, len(last.Payload), len(types.SealSignature{}))
	}

	out := new(Digests)
	copy(out.Seal[:], last.Payload)

	for i, item := range h.Digest[:len(h.Digest)-1] {
		if !item.IsBabe() {
			continue
		}
		switch item.Kind {
		case types.DigestPreRuntime:
			if out.PreDigest != nil {
				return nil, ErrMultiplePreRuntimeDigests
			}
			pre, err := types.DecodePreDigest(item.Payload)
			if err != nil {
				return nil, fmt.Errorf("%w: item %d: %v", ErrPreRuntimeDigestDecode, i, err)
			}
			out.PreDigest = pre
		case types.DigestConsensus:
			log, err := types.DecodeConsensusLog(item.Payload)
			if err != nil {
				return nil, fmt.Errorf("%w: item %d: %v", ErrConsensusDigestDecode, i, err)
			}
			out.Logs = append(out.Logs, log)
		}
	}

	if out.PreDigest == nil {
		return nil, ErrMissingPreRuntimeDigest
	}
	return out, nil
}
