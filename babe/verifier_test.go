package babe

import (
	"errors"
	"testing"
	"time"

	"golang.org/x/crypto/blake2b"

	"github.com/geanlabs/babe/clock"
	"github.com/geanlabs/babe/crypto/sr25519"
	"github.com/geanlabs/babe/epoch"
	"github.com/geanlabs/babe/genesis"
	"github.com/geanlabs/babe/types"
)

var testGenesisHash = types.Hash{0xe0}

// fixture wires a verifier over freshly generated authority keypairs. The
// threshold constant is 1/1 so every valid primary VRF proof wins its slot;
// threshold selectivity is covered separately in threshold_test.go.
type fixture struct {
	t        *testing.T
	cfg      *genesis.Config
	keys     []*sr25519.Keypair
	verifier *Verifier
}

func newFixture(t *testing.T, n int, allowSecondary bool, opts ...Option) *fixture {
	t.Helper()

	keys := make([]*sr25519.Keypair, n)
	authorities := make(types.AuthorityList, n)
	for i := range keys {
		kp, err := sr25519.GenerateKeypair()
		if err != nil {
			t.Fatalf("generate keypair: %v", err)
		}
		keys[i] = kp
		authorities[i] = types.Authority{Key: types.AuthorityID(kp.Public().Encode()), Weight: 1}
	}

	cfg := &genesis.Config{
		SlotDuration:   6000,
		EpochLength:    10,
		C1:             1,
		C2:             1,
		Authorities:    authorities,
		Randomness:     types.Randomness{7},
		AllowSecondary: allowSecondary,
		GenesisSlot:    1,
	}
	v, err := New(cfg, testGenesisHash, opts...)
	if err != nil {
		t.Fatalf("new verifier: %v", err)
	}
	return &fixture{t: t, cfg: cfg, keys: keys, verifier: v}
}

// sealHeader assembles the digest log and signs the pre-seal hash.
func (f *fixture) sealHeader(kp *sr25519.Keypair, parent types.Hash, number uint64, pre types.PreDigest, logs []types.ConsensusLog) *types.Header {
	f.t.Helper()

	h := &types.Header{
		ParentHash:     parent,
		Number:         number,
		StateRoot:      types.Hash{0x51},
		ExtrinsicsRoot: types.Hash{0x52},
		Digest: []types.DigestItem{
			{Kind: types.DigestPreRuntime, Engine: types.BabeEngineID, Payload: pre.Encode()},
		},
	}
	for _, log := range logs {
		h.Digest = append(h.Digest, types.DigestItem{Kind: types.DigestConsensus, Engine: types.BabeEngineID, Payload: log.Encode()})
	}

	preSeal := h.Hash()
	sig, err := kp.Sign(preSeal[:])
	if err != nil {
		f.t.Fatalf("seal: %v", err)
	}
	h.Digest = append(h.Digest, types.DigestItem{Kind: types.DigestSeal, Engine: types.BabeEngineID, Payload: sig[:]})
	return h
}

func (f *fixture) primaryHeader(idx types.AuthorityIndex, slot types.Slot, epochIdx types.EpochIndex,
	randomness types.Randomness, parent types.Hash, number uint64, logs ...types.ConsensusLog) *types.Header {
	f.t.Helper()

	kp := f.keys[idx]
	output, proof, err := kp.VrfSign(MakeTranscript(randomness, slot, epochIdx))
	if err != nil {
		f.t.Fatalf("vrf sign: %v", err)
	}
	pre := types.PrimaryPreDigest{Authority: idx, Slot: slot, Output: output, Proof: proof}
	return f.sealHeader(kp, parent, number, pre, logs)
}

func (f *fixture) secondaryHeader(idx types.AuthorityIndex, slot types.Slot, parent types.Hash, number uint64) *types.Header {
	f.t.Helper()
	pre := types.SecondaryPlainPreDigest{Authority: idx, Slot: slot}
	return f.sealHeader(f.keys[idx], parent, number, pre, nil)
}

func (f *fixture) mustVerify(h *types.Header) *VerifiedClaim {
	f.t.Helper()
	claim, err := f.verifier.VerifyHeader(h.Encode(), h.ParentHash)
	if err != nil {
		f.t.Fatalf("verify header: %v", err)
	}
	return claim
}

func TestVerifyPrimaryHeader(t *testing.T) {
	f := newFixture(t, 3, true)
	h := f.primaryHeader(0, 2, 0, f.cfg.Randomness, testGenesisHash, 1)

	claim := f.mustVerify(h)
	if claim.Hash != h.Hash() {
		t.Error("claim hash mismatch")
	}
	if claim.Slot != 2 || !claim.Primary {
		t.Errorf("claim: slot %d primary %v", claim.Slot, claim.Primary)
	}
	if claim.Author != f.cfg.Authorities[0].Key {
		t.Error("claim author mismatch")
	}
	if claim.VrfOutput == nil {
		t.Error("primary claim must surface its vrf output")
	}
	if claim.Descriptor.Index != 0 {
		t.Errorf("descriptor epoch: got %d, want 0", claim.Descriptor.Index)
	}
}

func TestVerifyHeaderWrongParent(t *testing.T) {
	f := newFixture(t, 3, true)
	h := f.primaryHeader(0, 2, 0, f.cfg.Randomness, testGenesisHash, 1)

	_, err := f.verifier.VerifyHeader(h.Encode(), types.Hash{0x99})
	if !errors.Is(err, ErrInvalidHeader) {
		t.Fatalf("expected ErrInvalidHeader, got %v", err)
	}
}

func TestVerifyHeaderUndecodable(t *testing.T) {
	f := newFixture(t, 3, true)
	if _, err := f.verifier.VerifyHeader([]byte{1, 2, 3}, testGenesisHash); !errors.Is(err, ErrInvalidHeader) {
		t.Fatalf("expected ErrInvalidHeader, got %v", err)
	}
}

func TestVerifyRejectsTamperedSeal(t *testing.T) {
	f := newFixture(t, 3, true)
	h := f.primaryHeader(0, 2, 0, f.cfg.Randomness, testGenesisHash, 1)
	h.Digest[len(h.Digest)-1].Payload[0] ^= 0x01

	_, err := f.verifier.VerifyDecoded(h)
	if !errors.Is(err, ErrBadSeal) {
		t.Fatalf("expected ErrBadSeal, got %v", err)
	}
}

func TestVerifyRejectsTamperedContent(t *testing.T) {
	f := newFixture(t, 3, true)
	h := f.primaryHeader(0, 2, 0, f.cfg.Randomness, testGenesisHash, 1)
	h.StateRoot[0] ^= 0x01 // seal no longer covers the header

	_, err := f.verifier.VerifyDecoded(h)
	if !errors.Is(err, ErrBadSeal) {
		t.Fatalf("expected ErrBadSeal, got %v", err)
	}
}

func TestVerifyIdempotent(t *testing.T) {
	f := newFixture(t, 3, true)
	h := f.primaryHeader(0, 2, 0, f.cfg.Randomness, testGenesisHash, 1)

	first := f.mustVerify(h)
	before := f.verifier.Tracker().Len()

	second := f.mustVerify(h)
	if first.Hash != second.Hash || first.Slot != second.Slot {
		t.Error("re-verification must return the same claim")
	}
	if f.verifier.Tracker().Len() != before {
		t.Error("re-verification must not grow tracker state")
	}
}

func TestVerifyRejectsForeignVrfProof(t *testing.T) {
	f := newFixture(t, 3, true)

	// Authority 1 signs the claim but labels it with authority 0's index.
	kp := f.keys[1]
	output, proof, err := kp.VrfSign(MakeTranscript(f.cfg.Randomness, 2, 0))
	if err != nil {
		t.Fatalf("vrf sign: %v", err)
	}
	pre := types.PrimaryPreDigest{Authority: 0, Slot: 2, Output: output, Proof: proof}
	h := f.sealHeader(kp, testGenesisHash, 1, pre, nil)

	_, err = f.verifier.VerifyDecoded(h)
	if !errors.Is(err, ErrBadVrfProof) {
		t.Fatalf("expected ErrBadVrfProof, got %v", err)
	}
}

func TestVerifyRejectsOutOfRangeAuthority(t *testing.T) {
	f := newFixture(t, 3, true)
	kp := f.keys[0]
	output, proof, err := kp.VrfSign(MakeTranscript(f.cfg.Randomness, 2, 0))
	if err != nil {
		t.Fatalf("vrf sign: %v", err)
	}
	pre := types.PrimaryPreDigest{Authority: 9, Slot: 2, Output: output, Proof: proof}
	h := f.sealHeader(kp, testGenesisHash, 1, pre, nil)

	if _, err := f.verifier.VerifyDecoded(h); !errors.Is(err, ErrBadAuthorityIndex) {
		t.Fatalf("expected ErrBadAuthorityIndex, got %v", err)
	}
}

func TestVerifySecondaryPlain(t *testing.T) {
	f := newFixture(t, 3, true)

	// Slot 3 with 3 authorities: the deterministic author is index 0.
	claim := f.mustVerify(f.secondaryHeader(0, 3, testGenesisHash, 1))
	if claim.Primary {
		t.Error("secondary claim reported as primary")
	}
	if claim.VrfOutput != nil {
		t.Error("plain secondary claim has no vrf output")
	}
}

func TestVerifySecondaryWrongAuthor(t *testing.T) {
	f := newFixture(t, 3, true)
	h := f.secondaryHeader(1, 3, testGenesisHash, 1)

	if _, err := f.verifier.VerifyDecoded(h); !errors.Is(err, ErrWrongSecondaryAuthor) {
		t.Fatalf("expected ErrWrongSecondaryAuthor, got %v", err)
	}
}

func TestVerifySecondaryDisallowed(t *testing.T) {
	f := newFixture(t, 3, false)
	h := f.secondaryHeader(0, 3, testGenesisHash, 1)

	if _, err := f.verifier.VerifyDecoded(h); !errors.Is(err, ErrSecondaryClaimsDisallowed) {
		t.Fatalf("expected ErrSecondaryClaimsDisallowed, got %v", err)
	}
}

func TestVerifySecondaryVrf(t *testing.T) {
	f := newFixture(t, 3, true)

	kp := f.keys[0]
	output, proof, err := kp.VrfSign(MakeTranscript(f.cfg.Randomness, 3, 0))
	if err != nil {
		t.Fatalf("vrf sign: %v", err)
	}
	pre := types.SecondaryVRFPreDigest{Authority: 0, Slot: 3, Output: output, Proof: proof}
	claim := f.mustVerify(f.sealHeader(kp, testGenesisHash, 1, pre, nil))

	if claim.Primary {
		t.Error("secondary-vrf claim reported as primary")
	}
	if claim.VrfOutput == nil {
		t.Error("secondary-vrf claim must surface its vrf output")
	}
}

func TestVerifyEpochTransition(t *testing.T) {
	f := newFixture(t, 3, true)
	announce := types.NextEpochData{Authorities: f.cfg.Authorities, Randomness: types.Randomness{}}

	h1 := f.primaryHeader(0, 2, 0, f.cfg.Randomness, testGenesisHash, 1, announce)
	f.mustVerify(h1)

	// Epochs 0 and 1 both run on the genesis randomness.
	h2 := f.primaryHeader(1, 11, 1, f.cfg.Randomness, h1.Hash(), 2)
	claim := f.mustVerify(h2)
	if claim.Descriptor.Index != 1 {
		t.Fatalf("descriptor epoch: got %d, want 1", claim.Descriptor.Index)
	}

	// A sibling branch whose epoch 0 never announced the transition.
	s1 := f.primaryHeader(2, 3, 0, f.cfg.Randomness, testGenesisHash, 1)
	f.mustVerify(s1)
	s2 := f.primaryHeader(1, 12, 1, f.cfg.Randomness, s1.Hash(), 2)
	if _, err := f.verifier.VerifyDecoded(s2); !errors.Is(err, epoch.ErrMissingEpochTransitionLog) {
		t.Fatalf("expected ErrMissingEpochTransitionLog, got %v", err)
	}
}

func TestVerifyUnknownParent(t *testing.T) {
	f := newFixture(t, 3, true)
	h := f.primaryHeader(0, 2, 0, f.cfg.Randomness, types.Hash{0x44}, 1)

	if _, err := f.verifier.VerifyDecoded(h); !errors.Is(err, epoch.ErrParentNotCommitted) {
		t.Fatalf("expected ErrParentNotCommitted, got %v", err)
	}
}

func TestVerifyRandomnessAccumulation(t *testing.T) {
	f := newFixture(t, 3, true)
	announce := types.NextEpochData{Authorities: f.cfg.Authorities, Randomness: types.Randomness{}}

	// Epoch 0 contributes two primary VRF outputs.
	h1 := f.primaryHeader(0, 2, 0, f.cfg.Randomness, testGenesisHash, 1, announce)
	c1 := f.mustVerify(h1)
	h2 := f.primaryHeader(1, 3, 0, f.cfg.Randomness, h1.Hash(), 2)
	c2 := f.mustVerify(h2)

	h3 := f.primaryHeader(0, 11, 1, f.cfg.Randomness, h2.Hash(), 3, announce)
	f.mustVerify(h3)

	// Epoch 2 randomness folds epoch 0's outputs in chain order; the claim
	// only verifies if the verifier derives the same value.
	expected := types.Randomness(blake2b.Sum256(append(append([]byte{}, c1.VrfOutput[:]...), c2.VrfOutput[:]...)))
	h4 := f.primaryHeader(1, 21, 2, expected, h3.Hash(), 4)
	claim := f.mustVerify(h4)

	if claim.Descriptor.Index != 2 {
		t.Fatalf("descriptor epoch: got %d, want 2", claim.Descriptor.Index)
	}
	if claim.Descriptor.Randomness != expected {
		t.Error("epoch 2 randomness must hash epoch 0's primary outputs")
	}
}

func TestVerifyDisabledAuthority(t *testing.T) {
	f := newFixture(t, 3, true)
	announce := types.NextEpochData{Authorities: f.cfg.Authorities, Randomness: types.Randomness{}}

	h1 := f.primaryHeader(0, 2, 0, f.cfg.Randomness, testGenesisHash, 1, announce, types.OnDisabled{Authority: 1})
	f.mustVerify(h1)

	// Authority 1 is barred from epoch 1.
	h2 := f.primaryHeader(1, 11, 1, f.cfg.Randomness, h1.Hash(), 2)
	if _, err := f.verifier.VerifyDecoded(h2); !errors.Is(err, ErrBadAuthorityIndex) {
		t.Fatalf("expected ErrBadAuthorityIndex, got %v", err)
	}

	// Its peers are not.
	h3 := f.primaryHeader(2, 11, 1, f.cfg.Randomness, h1.Hash(), 2)
	f.mustVerify(h3)
}

func TestVerifyEquivocationSurfaced(t *testing.T) {
	f := newFixture(t, 3, true)

	// Authority 0 authors two distinct blocks in slot 3: a primary claim and
	// its secondary slot.
	f.mustVerify(f.primaryHeader(0, 3, 0, f.cfg.Randomness, testGenesisHash, 1))
	f.mustVerify(f.secondaryHeader(0, 3, testGenesisHash, 1))

	eqs := f.verifier.Tracker().EquivocationsAt(3)
	if len(eqs) != 1 {
		t.Fatalf("equivocations at slot 3: got %d, want 1", len(eqs))
	}
	if eqs[0].Author != f.cfg.Authorities[0].Key {
		t.Error("equivocation attributed to the wrong authority")
	}
}

func TestVerifySealChecksFinalDigestItem(t *testing.T) {
	var seal types.SealSignature
	seal[0] = 0xd1
	h := &types.Header{Number: 1, Digest: []types.DigestItem{
		{Kind: types.DigestSeal, Engine: types.BabeEngineID, Payload: seal[:]},
	}}

	if err := verifySeal(stubCrypto{}, types.AuthorityID{1}, h, seal); err != nil {
		t.Fatalf("matching seal rejected: %v", err)
	}

	// The header's final item no longer matches the extracted seal.
	h.Digest[0].Payload = make([]byte, 64)
	if err := verifySeal(stubCrypto{}, types.AuthorityID{1}, h, seal); !errors.Is(err, ErrBadSeal) {
		t.Fatalf("expected ErrBadSeal, got %v", err)
	}
}

func TestVerifyFutureSlot(t *testing.T) {
	const genesisTimeMs = 1_000_000

	// Frozen clock five slots past genesis: current slot 6.
	now := func() time.Time { return time.UnixMilli(genesisTimeMs + 5*6000) }
	sc := clock.NewWithTimeFunc(genesisTimeMs, 6000, 1, now)
	f := newFixture(t, 3, true, WithClock(sc))

	h := f.primaryHeader(0, 7, 0, f.cfg.Randomness, testGenesisHash, 1)
	if _, err := f.verifier.VerifyDecoded(h); !errors.Is(err, ErrSlotInFuture) {
		t.Fatalf("expected ErrSlotInFuture, got %v", err)
	}

	f.mustVerify(f.primaryHeader(0, 6, 0, f.cfg.Randomness, testGenesisHash, 1))
}
