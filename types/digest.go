package types

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/geanlabs/babe/scale"
)

var (
	ErrUnknownPreDigestVariant    = errors.New("unknown pre-digest variant")
	ErrUnknownConsensusLogVariant = errors.New("unknown consensus log variant")
	ErrUnknownConfigVersion       = errors.New("unknown config data version")
	ErrUnknownAllowedSlots        = errors.New("unknown allowed-slots mode")
)

// Pre-digest variant tags, matching the on-chain encoding.
const (
	preDigestPrimary        byte = 1
	preDigestSecondaryPlain byte = 2
	preDigestSecondaryVRF   byte = 3
)

// Consensus log variant tags, matching the on-chain encoding.
const (
	consensusLogNextEpochData  byte = 1
	consensusLogOnDisabled     byte = 2
	consensusLogNextConfigData byte = 3
)

// PreDigest is the slot claim carried in a header's BABE pre-runtime digest.
// It is a closed sum: PrimaryPreDigest, SecondaryPlainPreDigest or
// SecondaryVRFPreDigest.
type PreDigest interface {
	AuthorityIndex() AuthorityIndex
	SlotNumber() Slot
	// IsPrimary reports whether this is a primary slot claim. Only primary
	// claims count for chain selection and randomness accumulation.
	IsPrimary() bool
	Encode() []byte
}

// PrimaryPreDigest is a VRF-backed claim to a primary slot.
type PrimaryPreDigest struct {
	Authority AuthorityIndex
	Slot      Slot
	Output    VrfOutput
	Proof     VrfProof
}

func (d PrimaryPreDigest) AuthorityIndex() AuthorityIndex { return d.Authority }
func (d PrimaryPreDigest) SlotNumber() Slot               { return d.Slot }
func (d PrimaryPreDigest) IsPrimary() bool                { return true }

func (d PrimaryPreDigest) Encode() []byte {
	out := []byte{preDigestPrimary}
	out = scale.AppendUint32(out, uint32(d.Authority))
	out = scale.AppendUint64(out, uint64(d.Slot))
	out = append(out, d.Output[:]...)
	out = append(out, d.Proof[:]...)
	return out
}

// SecondaryPlainPreDigest is a deterministic fallback claim with no VRF.
type SecondaryPlainPreDigest struct {
	Authority AuthorityIndex
	Slot      Slot
}

func (d SecondaryPlainPreDigest) AuthorityIndex() AuthorityIndex { return d.Authority }
func (d SecondaryPlainPreDigest) SlotNumber() Slot               { return d.Slot }
func (d SecondaryPlainPreDigest) IsPrimary() bool                { return false }

func (d SecondaryPlainPreDigest) Encode() []byte {
	out := []byte{preDigestSecondaryPlain}
	out = scale.AppendUint32(out, uint32(d.Authority))
	out = scale.AppendUint64(out, uint64(d.Slot))
	return out
}

// SecondaryVRFPreDigest is a deterministic fallback claim bound to a VRF
// output, used as an anti-grinding measure.
type SecondaryVRFPreDigest struct {
	Authority AuthorityIndex
	Slot      Slot
	Output    VrfOutput
	Proof     VrfProof
}

func (d SecondaryVRFPreDigest) AuthorityIndex() AuthorityIndex { return d.Authority }
func (d SecondaryVRFPreDigest) SlotNumber() Slot               { return d.Slot }
func (d SecondaryVRFPreDigest) IsPrimary() bool                { return false }

func (d SecondaryVRFPreDigest) Encode() []byte {
	out := []byte{preDigestSecondaryVRF}
	out = scale.AppendUint32(out, uint32(d.Authority))
	out = scale.AppendUint64(out, uint64(d.Slot))
	out = append(out, d.Output[:]...)
	out = append(out, d.Proof[:]...)
	return out
}

// DecodePreDigest decodes a BABE pre-runtime digest payload. The payload
// must contain exactly one claim; trailing bytes are an error.
func DecodePreDigest(data []byte) (PreDigest, error) {
	r := bytes.NewReader(data)
	variant, err := scale.ReadByte(r)
	if err != nil {
		return nil, err
	}

	authority, err := scale.ReadUint32(r)
	if err != nil {
		return nil, fmt.Errorf("authority index: %w", err)
	}
	slot, err := scale.ReadUint64(r)
	if err != nil {
		return nil, fmt.Errorf("slot number: %w", err)
	}

	var pre PreDigest
	switch variant {
	case preDigestPrimary, preDigestSecondaryVRF:
		output, err := scale.Read32Bytes(r)
		if err != nil {
			return nil, fmt.Errorf("vrf output: %w", err)
		}
		proof, err := scale.Read64Bytes(r)
		if err != nil {
			return nil, fmt.Errorf("vrf proof: %w", err)
		}
		if variant == preDigestPrimary {
			pre = PrimaryPreDigest{
				Authority: AuthorityIndex(authority),
				Slot:      Slot(slot),
				Output:    output,
				Proof:     proof,
			}
		} else {
			pre = SecondaryVRFPreDigest{
				Authority: AuthorityIndex(authority),
				Slot:      Slot(slot),
				Output:    output,
				Proof:     proof,
			}
		}
	case preDigestSecondaryPlain:
		pre = SecondaryPlainPreDigest{
			Authority: AuthorityIndex(authority),
			Slot:      Slot(slot),
		}
	default:
		return nil, fmt.Errorf("%w: %d", ErrUnknownPreDigestVariant, variant)
	}

	if r.Len() != 0 {
		return nil, fmt.Errorf("%w: %d bytes", ErrTrailingBytes, r.Len())
	}
	return pre, nil
}

// ConsensusLog is an epoch-state announcement carried in a BABE consensus
// digest. It is a closed sum: NextEpochData, OnDisabled or NextConfigData.
type ConsensusLog interface {
	Encode() []byte
	isConsensusLog()
}

// NextEpochData announces the authority set and randomness of the next
// epoch. It must appear in some block of the epoch preceding the one it
// describes, conventionally the first.
type NextEpochData struct {
	Authorities AuthorityList
	Randomness  Randomness
}

func (NextEpochData) isConsensusLog() {}

func (d NextEpochData) Encode() []byte {
	out := []byte{consensusLogNextEpochData}
	out = append(out, d.Authorities.Encode()...)
	out = append(out, d.Randomness[:]...)
	return out
}

// OnDisabled marks an authority as disabled for the next epoch.
type OnDisabled struct {
	Authority AuthorityIndex
}

func (OnDisabled) isConsensusLog() {}

func (d OnDisabled) Encode() []byte {
	return scale.AppendUint32([]byte{consensusLogOnDisabled}, uint32(d.Authority))
}

// NextConfigData announces a change to the threshold constant and the
// secondary-claim policy, effective from the next epoch.
type NextConfigData struct {
	C1             uint64
	C2             uint64
	AllowSecondary bool
}

func (NextConfigData) isConsensusLog() {}

func (d NextConfigData) Encode() []byte {
	out := []byte{consensusLogNextConfigData, 1} // version 1
	out = scale.AppendUint64(out, d.C1)
	out = scale.AppendUint64(out, d.C2)
	if d.AllowSecondary {
		out = append(out, 1)
	} else {
		out = append(out, 0)
	}
	return out
}

// DecodeConsensusLog decodes a BABE consensus digest payload.
func DecodeConsensusLog(data []byte) (ConsensusLog, error) {
	r := bytes.NewReader(data)
	variant, err := scale.ReadByte(r)
	if err != nil {
		return nil, err
	}

	var log ConsensusLog
	switch variant {
	case consensusLogNextEpochData:
		authorities, err := DecodeAuthorityList(r)
		if err != nil {
			return nil, fmt.Errorf("next epoch authorities: %w", err)
		}
		randomness, err := scale.Read32Bytes(r)
		if err != nil {
			return nil, fmt.Errorf("next epoch randomness: %w", err)
		}
		log = NextEpochData{Authorities: authorities, Randomness: randomness}
	case consensusLogOnDisabled:
		idx, err := scale.ReadUint32(r)
		if err != nil {
			return nil, fmt.Errorf("disabled authority index: %w", err)
		}
		log = OnDisabled{Authority: AuthorityIndex(idx)}
	case consensusLogNextConfigData:
		version, err := scale.ReadByte(r)
		if err != nil {
			return nil, fmt.Errorf("config version: %w", err)
		}
		if version != 1 {
			return nil, fmt.Errorf("%w: %d", ErrUnknownConfigVersion, version)
		}
		c1, err := scale.ReadUint64(r)
		if err != nil {
			return nil, fmt.Errorf("config c1: %w", err)
		}
		c2, err := scale.ReadUint64(r)
		if err != nil {
			return nil, fmt.Errorf("config c2: %w", err)
		}
		allowed, err := scale.ReadByte(r)
		if err != nil {
			return nil, fmt.Errorf("config allowed slots: %w", err)
		}
		if allowed > 2 {
			return nil, fmt.Errorf("%w: %d", ErrUnknownAllowedSlots, allowed)
		}
		log = NextConfigData{C1: c1, C2: c2, AllowSecondary: allowed != 0}
	default:
		return nil, fmt.Errorf("%w: %d", ErrUnknownConsensusLogVariant, variant)
	}

	if r.Len() != 0 {
		return nil, fmt.Errorf("%w: %d bytes", ErrTrailingBytes, r.Len())
	}
	return log, nil
}
