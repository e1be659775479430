package types

import (
	"bytes"
	"errors"
	"fmt"

	"golang.org/x/crypto/blake2b"

	"github.com/geanlabs/babe/scale"
)

// DigestKind is the variant tag of a digest item. Values match the on-chain
// encoding.
type DigestKind byte

const (
	DigestOther                     DigestKind = 0
	DigestConsensus                 DigestKind = 4
	DigestSeal                      DigestKind = 5
	DigestPreRuntime                DigestKind = 6
	DigestRuntimeEnvironmentUpdated DigestKind = 8
)

var (
	ErrUnknownDigestKind = errors.New("unknown digest item kind")
	ErrTrailingBytes     = errors.New("trailing bytes after header")
)

// DigestItem is one entry of a header's digest log: a kind tag, the engine
// that produced it, and an opaque payload. Engine is zero for kinds that do
// not carry one (Other, RuntimeEnvironmentUpdated).
type DigestItem struct {
	Kind    DigestKind
	Engine  EngineID
	Payload []byte
}

// IsBabe reports whether the item was produced by the BABE engine.
func (d DigestItem) IsBabe() bool {
	return d.Engine == BabeEngineID
}

// Header is a decoded block header. The digest log order is the on-chain
// order; the protocol requires the seal to be the final entry.
type Header struct {
	ParentHash     Hash
	Number         uint64
	StateRoot      Hash
	ExtrinsicsRoot Hash
	Digest         []DigestItem
}

// Encode returns the SCALE encoding of the header.
func (h *Header) Encode() []byte {
	out := make([]byte, 0, 128)
	out = append(out, h.ParentHash[:]...)
	out = append(out, scale.EncodeCompact(h.Number)...)
	out = append(out, h.StateRoot[:]...)
	out = append(out, h.ExtrinsicsRoot[:]...)
	out = append(out, scale.EncodeCompact(uint64(len(h.Digest)))...)
	for _, item := range h.Digest {
		out = append(out, byte(item.Kind))
		switch item.Kind {
		case DigestConsensus, DigestSeal, DigestPreRuntime:
			out = append(out, item.Engine[:]...)
			out = append(out, scale.EncodeCompact(uint64(len(item.Payload)))...)
			out = append(out, item.Payload...)
		case DigestOther:
			out = append(out, scale.EncodeCompact(uint64(len(item.Payload)))...)
			out = append(out, item.Payload...)
		case DigestRuntimeEnvironmentUpdated:
			// no payload
		}
	}
	return out
}

// DecodeHeader decodes a SCALE-encoded header. The input must contain
// exactly one header; trailing bytes are an error.
func DecodeHeader(data []byte) (*Header, error) {
	r := bytes.NewReader(data)
	h := new(Header)

	var err error
	if h.ParentHash, err = scale.Read32Bytes(r); err != nil {
		return nil, fmt.Errorf("parent hash: %w", err)
	}
	if h.Number, err = scale.DecodeCompact(r); err != nil {
		return nil, fmt.Errorf("number: %w", err)
	}
	if h.StateRoot, err = scale.Read32Bytes(r); err != nil {
		return nil, fmt.Errorf("state root: %w", err)
	}
	if h.ExtrinsicsRoot, err = scale.Read32Bytes(r); err != nil {
		return nil, fmt.Errorf("extrinsics root: %w", err)
	}

	count, err := scale.DecodeCompact(r)
	if err != nil {
		return nil, fmt.Errorf("digest count: %w", err)
	}
	// Each item occupies at least one byte; a count beyond the remaining
	// input cannot be satisfied and must not drive the allocation.
	if count > uint64(r.Len()) {
		return nil, fmt.Errorf("digest count: %w: %d items, %d bytes left", scale.ErrUnexpectedEOF, count, r.Len())
	}
	h.Digest = make([]DigestItem, 0, count)
	for i := uint64(0); i < count; i++ {
		item, err := decodeDigestItem(r)
		if err != nil {
			return nil, fmt.Errorf("digest item %d: %w", i, err)
		}
		h.Digest = append(h.Digest, item)
	}

	if r.Len() != 0 {
		return nil, fmt.Errorf("%w: %d bytes", ErrTrailingBytes, r.Len())
	}
	return h, nil
}

func decodeDigestItem(r *bytes.Reader) (DigestItem, error) {
	kind, err := scale.ReadByte(r)
	if err != nil {
		return DigestItem{}, err
	}

	item := DigestItem{Kind: DigestKind(kind)}
	switch item.Kind {
	case DigestConsensus, DigestSeal, DigestPreRuntime:
		engine, err := scale.ReadBytes(r, 4)
		if err != nil {
			return DigestItem{}, fmt.Errorf("engine id: %w", err)
		}
		copy(item.Engine[:], engine)
		if item.Payload, err = readByteString(r); err != nil {
			return DigestItem{}, err
		}
	case DigestOther:
		if item.Payload, err = readByteString(r); err != nil {
			return DigestItem{}, err
		}
	case DigestRuntimeEnvironmentUpdated:
		// no payload
	default:
		return DigestItem{}, fmt.Errorf("%w: %d", ErrUnknownDigestKind, kind)
	}
	return item, nil
}

func readByteString(r *bytes.Reader) ([]byte, error) {
	n, err := scale.DecodeCompact(r)
	if err != nil {
		return nil, fmt.Errorf("payload length: %w", err)
	}
	if n > uint64(r.Len()) {
		return nil, fmt.Errorf("%w: payload of %d bytes", scale.ErrUnexpectedEOF, n)
	}
	return scale.ReadBytes(r, int(n))
}

// Hash returns the blake2b-256 hash of the encoded header.
func (h *Header) Hash() Hash {
	return blake2b.Sum256(h.Encode())
}

// HashWithoutSeal returns the hash of the header with its final digest item
// removed. This is the pre-seal hash the seal signature commits to.
func (h *Header) HashWithoutSeal() Hash {
	unsealed := Header{
		ParentHash:     h.ParentHash,
		Number:         h.Number,
		StateRoot:      h.StateRoot,
		ExtrinsicsRoot: h.ExtrinsicsRoot,
	}
	if len(h.Digest) > 0 {
		unsealed.Digest = h.Digest[:len(h.Digest)-1]
	}
	return blake2b.Sum256(unsealed.Encode())
}
