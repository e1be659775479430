// Package babe verifies that block headers carry a legitimate BABE slot
// claim and seal, tracks epoch descriptors across competing branches, and
// exposes the verified metadata chain selection runs on. It is a library
// for a node's block-import pipeline; it owns no storage, transport or
// runtime surface.
package babe

import (
	"bytes"
	"fmt"
	"io"
	"log/slog"

	"github.com/geanlabs/babe/clock"
	"github.com/geanlabs/babe/epoch"
	"github.com/geanlabs/babe/genesis"
	"github.com/geanlabs/babe/types"
)

// VerifiedClaim reports a successfully verified header.
type VerifiedClaim struct {
	Hash   types.Hash
	Author types.AuthorityID
	Slot   types.Slot

	// Primary reports a primary slot claim; chain selection counts these.
	Primary bool

	// VrfOutput is set for primary and secondary-VRF claims.
	VrfOutput *types.VrfOutput

	// Descriptor is the epoch descriptor the header was verified against,
	// committed for this block.
	Descriptor *epoch.Descriptor
}

// Verifier validates headers against fork-aware epoch state. Verification
// of independent headers is safe to run concurrently; the epoch tracker is
// the only shared state and serializes its own commits.
type Verifier struct {
	cfg     *genesis.Config
	tracker *epoch.Tracker
	codec   Codec
	crypto  AuthorshipVerifier
	clock   *clock.SlotClock
	log     *slog.Logger
}

// Option configures a Verifier.
type Option func(*Verifier)

// WithCodec replaces the default SCALE header codec.
func WithCodec(c Codec) Option {
	return func(v *Verifier) { v.codec = c }
}

// WithAuthorshipVerifier replaces the default sr25519 primitives.
func WithAuthorshipVerifier(av AuthorshipVerifier) Option {
	return func(v *Verifier) { v.crypto = av }
}

// WithClock enables rejection of claims for slots that have not started.
func WithClock(c *clock.SlotClock) Option {
	return func(v *Verifier) { v.clock = c }
}

// WithLogger attaches a logger. The verifier is silent without one.
func WithLogger(log *slog.Logger) Option {
	return func(v *Verifier) { v.log = log }
}

// New builds a Verifier from the runtime-supplied genesis configuration.
func New(cfg *genesis.Config, genesisHash types.Hash, opts ...Option) (*Verifier, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("genesis configuration: %w", err)
	}

	v := &Verifier{
		cfg:    cfg,
		codec:  scaleCodec{},
		crypto: sr25519Verifier{},
		log:    slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(v)
	}

	desc, err := cfg.GenesisDescriptor()
	if err != nil {
		return nil, fmt.Errorf("genesis descriptor: %w", err)
	}
	tracker, err := epoch.NewTracker(genesisHash, desc, cfg.EpochLength, v.log)
	if err != nil {
		return nil, err
	}
	v.tracker = tracker
	return v, nil
}

// Tracker exposes the epoch tracker, which also serves as the block index
// for chain selection.
func (v *Verifier) Tracker() *epoch.Tracker {
	return v.tracker
}

// VerifyHeader decodes and verifies an encoded header claimed to extend
// parent. On success the block's epoch state is committed atomically;
// on failure nothing is recorded. Re-verifying a committed header returns
// the same result without recommitting.
func (v *Verifier) VerifyHeader(encoded []byte, parent types.Hash) (*VerifiedClaim, error) {
	h, err := v.codec.DecodeHeader(encoded)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidHeader, err)
	}
	if h.ParentHash != parent {
		return nil, fmt.Errorf("%w: header extends %s, caller expects %s", ErrInvalidHeader, h.ParentHash.Short(), parent.Short())
	}
	return v.VerifyDecoded(h)
}

// VerifyDecoded verifies an already-decoded header.
func (v *Verifier) VerifyDecoded(h *types.Header) (*VerifiedClaim, error) {
	digests, err := ExtractDigests(h)
	if err != nil {
		return nil, err
	}

	pre := digests.PreDigest
	slot := pre.SlotNumber()
	if v.clock != nil {
		if current := v.clock.CurrentSlot(); slot > current {
			return nil, fmt.Errorf("%w: slot %d, current %d", ErrSlotInFuture, slot, current)
		}
	}

	desc, err := v.tracker.DescriptorFor(h.ParentHash, slot)
	if err != nil {
		return nil, fmt.Errorf("resolving epoch descriptor: %w", err)
	}

	author, vrfOutput, err := verifyClaim(pre, desc, v.cfg.EpochLength, v.crypto)
	if err != nil {
		return nil, err
	}

	if err := verifySeal(v.crypto, author.Key, h, digests.Seal); err != nil {
		return nil, err
	}

	hash := h.Hash()
	err = v.tracker.Commit(epoch.Block{
		Hash:       hash,
		Parent:     h.ParentHash,
		Number:     h.Number,
		Slot:       slot,
		Author:     author.Key,
		Primary:    pre.IsPrimary(),
		VrfOutput:  vrfOutput,
		Descriptor: desc,
		Logs:       digests.Logs,
	})
	if err != nil {
		return nil, fmt.Errorf("committing epoch state: %w", err)
	}

	v.log.Debug("verified header",
		"block", hash.Short(),
		"number", h.Number,
		"slot", uint64(slot),
		"primary", pre.IsPrimary(),
	)

	return &VerifiedClaim{
		Hash:       hash,
		Author:     author.Key,
		Slot:       slot,
		Primary:    pre.IsPrimary(),
		VrfOutput:  vrfOutput,
		Descriptor: desc,
	}, nil
}

// verifySeal checks that seal is the author's sr25519 signature over the
// pre-seal hash, the header hashed with its final digest item removed. The
// final item must still be the extracted seal: HashWithoutSeal pops whatever
// comes last, so the pop and the extraction have to agree.
func verifySeal(crypto AuthorshipVerifier, author types.AuthorityID, h *types.Header, seal types.SealSignature) error {
	n := len(h.Digest)
	if n == 0 {
		return fmt.Errorf("%w: empty digest log", ErrMissingSeal)
	}
	last := h.Digest[n-1]
	if last.Kind != types.DigestSeal || !last.IsBabe() || !bytes.Equal(last.Payload, seal[:]) {
		return fmt.Errorf("%w: final digest item is not the extracted seal", ErrBadSeal)
	}

	preSealHash := h.HashWithoutSeal()
	ok, err := crypto.VerifySignature(author, preSealHash[:], seal)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrBadSeal, err)
	}
	if !ok {
		return fmt.Errorf("%w: authority %s", ErrBadSeal, author)
	}
	return nil
}
