package types

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/geanlabs/babe/scale"
)

// Sentinel errors for authority list validation.
var (
	ErrAuthorityListEmpty  = errors.New("authority list is empty")
	ErrZeroAuthorityWeight = errors.New("authority has zero weight")
	ErrDuplicateAuthority  = errors.New("duplicate authority key")
)

// Authority pairs an sr25519 public key with its babe weight. The weight
// determines the authority's share of the primary-slot threshold.
type Authority struct {
	Key    AuthorityID
	Weight uint64
}

// AuthorityList is an ordered authority set. Order is protocol-relevant:
// slot claims reference authorities by index.
type AuthorityList []Authority

// TotalWeight returns the sum of all authority weights.
func (l AuthorityList) TotalWeight() uint64 {
	var total uint64
	for _, a := range l {
		total += a.Weight
	}
	return total
}

// Validate checks the invariants every committed authority list must hold:
// non-empty, unique keys, strictly positive weights.
func (l AuthorityList) Validate() error {
	if len(l) == 0 {
		return ErrAuthorityListEmpty
	}
	seen := make(map[AuthorityID]struct{}, len(l))
	for i, a := range l {
		if a.Weight == 0 {
			return fmt.Errorf("%w: index %d", ErrZeroAuthorityWeight, i)
		}
		if _, dup := seen[a.Key]; dup {
			return fmt.Errorf("%w: index %d", ErrDuplicateAuthority, i)
		}
		seen[a.Key] = struct{}{}
	}
	return nil
}

// Encode returns the SCALE encoding of the list: a compact length prefix
// followed by (key, weight) pairs.
func (l AuthorityList) Encode() []byte {
	out := scale.EncodeCompact(uint64(len(l)))
	for _, a := range l {
		out = append(out, a.Key[:]...)
		out = scale.AppendUint64(out, a.Weight)
	}
	return out
}

// DecodeAuthorityList reads a SCALE-encoded authority list from r.
func DecodeAuthorityList(r io.Reader) (AuthorityList, error) {
	n, err := scale.DecodeCompact(r)
	if err != nil {
		return nil, fmt.Errorf("authority count: %w", err)
	}
	// n comes from the wire; grow as entries actually decode rather than
	// preallocating.
	var list AuthorityList
	for i := uint64(0); i < n; i++ {
		key, err := scale.Read32Bytes(r)
		if err != nil {
			return nil, fmt.Errorf("authority %d key: %w", i, err)
		}
		weight, err := scale.ReadUint64(r)
		if err != nil {
			return nil, fmt.Errorf("authority %d weight: %w", i, err)
		}
		list = append(list, Authority{Key: key, Weight: weight})
	}
	return list, nil
}

// Equal reports whether two lists contain the same authorities in the same
// order with the same weights.
func (l AuthorityList) Equal(other AuthorityList) bool {
	if len(l) != len(other) {
		return false
	}
	for i := range l {
		if l[i].Weight != other[i].Weight || !bytes.Equal(l[i].Key[:], other[i].Key[:]) {
			return false
		}
	}
	return true
}
