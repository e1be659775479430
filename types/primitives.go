// Package types defines the primitive and composite types of the BABE
// block-authoring protocol: headers and their digest items, slot claims,
// consensus log entries, and authority sets.
package types

import "fmt"

// Primitive types.
type Slot uint64
type EpochIndex uint64
type AuthorityIndex uint32
type Hash [32]byte
type Randomness [32]byte
type VrfOutput [32]byte
type VrfProof [64]byte
type SealSignature [64]byte

// AuthorityID is the raw sr25519 public key of a block authority. The same
// key signs seals and produces VRF outputs.
type AuthorityID [32]byte

// EngineID identifies the consensus engine a digest item belongs to.
type EngineID [4]byte

// BabeEngineID tags digest items produced by the BABE engine.
var BabeEngineID = EngineID{'B', 'A', 'B', 'E'}

func (h Hash) IsZero() bool { return h == Hash{} }

// Short returns a short hex representation of the hash (first 4 bytes).
func (h Hash) Short() string {
	return fmt.Sprintf("%x", h[:4])
}

func (h Hash) String() string {
	return fmt.Sprintf("0x%x", h[:])
}

func (id AuthorityID) String() string {
	return fmt.Sprintf("0x%x", id[:])
}

func (e EngineID) String() string {
	return string(e[:])
}
