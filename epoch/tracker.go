package epoch

import (
	"bytes"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"golang.org/x/crypto/blake2b"

	"github.com/geanlabs/babe/types"
)

// Tracker maps every committed block to the epoch descriptor in force at
// that block, across all live branches. It owns the randomness accumulator:
// primary VRF outputs recorded per block and folded into epoch randomness
// two epochs later.
//
// Reads observe only fully committed state; commits are atomic. Verifying a
// child of a block that was never committed fails with
// ErrParentNotCommitted rather than racing the parent's commit.
type Tracker struct {
	mu sync.RWMutex

	epochLength       uint64
	genesisHash       types.Hash
	genesisRandomness types.Randomness

	// anchored is set once epoch 0's start slot is known. A genesis
	// configuration may leave the start slot open, in which case the slot of
	// the first verified block pins it.
	anchored bool

	entries       map[types.Hash]*entry
	seen          map[slotAuthor]types.Hash
	equivocations []Equivocation

	log *slog.Logger
}

// entry is the per-block record. pending* fields hold announcements made by
// this block's own consensus logs; they apply to the next epoch boundary on
// this branch, never to the block's own descriptor.
type entry struct {
	parent     types.Hash
	number     uint64
	slot       types.Slot
	epochIndex types.EpochIndex
	desc       *Descriptor

	author    types.AuthorityID
	primary   bool
	vrfOutput *types.VrfOutput

	pendingEpoch    *types.NextEpochData
	pendingConfig   *types.NextConfigData
	pendingDisabled []types.AuthorityIndex
}

type slotAuthor struct {
	slot   types.Slot
	author types.AuthorityID
}

// Equivocation records two distinct blocks authored by the same authority in
// the same slot. Detection only; punishment is the caller's concern.
type Equivocation struct {
	Slot          types.Slot
	Author        types.AuthorityID
	First, Second types.Hash
}

// Block carries the per-block facts recorded at commit time.
type Block struct {
	Hash   types.Hash
	Parent types.Hash
	Number uint64
	Slot   types.Slot

	Author  types.AuthorityID
	Primary bool

	// VrfOutput is set for primary and secondary-VRF claims. Only primary
	// outputs enter the randomness accumulator.
	VrfOutput *types.VrfOutput

	// Descriptor is the epoch descriptor the block was verified against, as
	// resolved by DescriptorFor.
	Descriptor *Descriptor

	Logs []types.ConsensusLog
}

// BlockInfo is the committed metadata chain selection operates on.
type BlockInfo struct {
	Parent  types.Hash
	Number  uint64
	Slot    types.Slot
	Primary bool
}

// NewTracker seeds a tracker with the genesis descriptor anchored at the
// genesis block. A nil logger disables logging.
func NewTracker(genesisHash types.Hash, genesisDesc *Descriptor, epochLength uint64, log *slog.Logger) (*Tracker, error) {
	if genesisDesc == nil {
		return nil, ErrNilDescriptor
	}
	if epochLength == 0 {
		return nil, fmt.Errorf("epoch length must be positive")
	}
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	t := &Tracker{
		epochLength:       epochLength,
		genesisHash:       genesisHash,
		genesisRandomness: genesisDesc.Randomness,
		anchored:          genesisDesc.StartSlot > 0,
		entries:           make(map[types.Hash]*entry),
		seen:              make(map[slotAuthor]types.Hash),
		log:               log,
	}
	t.entries[genesisHash] = &entry{
		slot:       0, // the genesis block implicitly occupies slot 0
		epochIndex: 0,
		desc:       genesisDesc,
	}
	return t, nil
}

// DescriptorFor resolves the descriptor a block at slot building on parent
// must be verified against. When slot crosses into a new epoch relative to
// the parent, the transition descriptor is built from the announcements
// carried by the parent's epoch; it is not committed until Commit.
func (t *Tracker) DescriptorFor(parent types.Hash, slot types.Slot) (*Descriptor, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.descriptorForLocked(parent, slot)
}

func (t *Tracker) descriptorForLocked(parent types.Hash, slot types.Slot) (*Descriptor, error) {
	e, ok := t.entries[parent]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrParentNotCommitted, parent.Short())
	}
	if slot <= e.slot && parent != t.genesisHash {
		return nil, fmt.Errorf("%w: slot %d, parent slot %d", ErrSlotNotAfterParent, slot, e.slot)
	}

	d := e.desc
	if parent == t.genesisHash && !t.anchored {
		// First block of the chain pins epoch 0's start slot.
		d = d.clone()
		d.StartSlot = slot
	}
	if slot < d.StartSlot {
		return nil, fmt.Errorf("%w: slot %d, epoch %d starts at %d", ErrSlotBeforeEpochStart, slot, d.Index, d.StartSlot)
	}
	if d.Contains(slot, t.epochLength) {
		return d, nil
	}

	return t.buildTransitionLocked(e, d, slot)
}

// buildTransitionLocked constructs the descriptor for the epoch that slot
// falls into, using the announcements collected along the parent's epoch.
func (t *Tracker) buildTransitionLocked(e *entry, parentDesc *Descriptor, slot types.Slot) (*Descriptor, error) {
	delta := uint64(slot-parentDesc.StartSlot) / t.epochLength
	newIndex := parentDesc.Index + types.EpochIndex(delta)
	newStart := parentDesc.StartSlot + types.Slot(delta*t.epochLength)

	pendingEpoch, pendingConfig, disabled := t.collectPendingLocked(e)
	if pendingEpoch == nil {
		return nil, fmt.Errorf("%w: transition to epoch %d", ErrMissingEpochTransitionLog, newIndex)
	}

	randomness := t.genesisRandomness
	if newIndex >= 2 {
		randomness = t.branchRandomnessLocked(e, newIndex-2)
		if !bytes.Equal(randomness[:], pendingEpoch.Randomness[:]) {
			t.log.Debug("announced epoch randomness disagrees with accumulated value",
				"epoch", uint64(newIndex),
				"announced", fmt.Sprintf("%x", pendingEpoch.Randomness[:4]),
				"computed", fmt.Sprintf("%x", randomness[:4]),
			)
		}
	}

	c1, c2, allowSecondary := parentDesc.C1, parentDesc.C2, parentDesc.AllowSecondary
	if pendingConfig != nil {
		c1, c2, allowSecondary = pendingConfig.C1, pendingConfig.C2, pendingConfig.AllowSecondary
	}

	next, err := NewDescriptor(newIndex, newStart, pendingEpoch.Authorities, randomness, c1, c2, allowSecondary)
	if err != nil {
		return nil, fmt.Errorf("epoch %d descriptor: %w", newIndex, err)
	}
	if len(disabled) > 0 {
		next.Disabled = make(map[types.AuthorityIndex]struct{}, len(disabled))
		for _, idx := range disabled {
			next.Disabled[idx] = struct{}{}
		}
	}
	return next, nil
}

// collectPendingLocked walks the branch backwards through the parent's
// epoch, returning the most recent NextEpochData and NextConfigData
// announcements and every OnDisabled index seen.
func (t *Tracker) collectPendingLocked(e *entry) (*types.NextEpochData, *types.NextConfigData, []types.AuthorityIndex) {
	var (
		pendingEpoch  *types.NextEpochData
		pendingConfig *types.NextConfigData
		disabled      []types.AuthorityIndex
	)
	epochIdx := e.epochIndex
	for cur := e; cur != nil && cur.epochIndex == epochIdx; cur = t.entries[cur.parent] {
		if pendingEpoch == nil && cur.pendingEpoch != nil {
			pendingEpoch = cur.pendingEpoch
		}
		if pendingConfig == nil && cur.pendingConfig != nil {
			pendingConfig = cur.pendingConfig
		}
		disabled = append(disabled, cur.pendingDisabled...)
	}
	return pendingEpoch, pendingConfig, disabled
}

// branchRandomnessLocked hashes the ordered primary VRF outputs of the given
// epoch along the branch ending at e.
func (t *Tracker) branchRandomnessLocked(e *entry, epochIdx types.EpochIndex) types.Randomness {
	var outputs []types.VrfOutput
	for cur := e; cur != nil; cur = t.entries[cur.parent] {
		if cur.epochIndex < epochIdx {
			break
		}
		if cur.epochIndex == epochIdx && cur.vrfOutput != nil {
			outputs = append(outputs, *cur.vrfOutput)
		}
		if cur.parent.IsZero() {
			break
		}
	}

	// The walk yields tip-first order; the hash commits to chain order.
	buf := make([]byte, 0, len(outputs)*32)
	for i := len(outputs) - 1; i >= 0; i-- {
		buf = append(buf, outputs[i][:]...)
	}
	return blake2b.Sum256(buf)
}

// Commit atomically records a verified block. Committing the same block
// twice is a no-op; nothing is recorded on failure.
func (t *Tracker) Commit(b Block) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, ok := t.entries[b.Hash]; ok {
		return nil
	}
	parent, ok := t.entries[b.Parent]
	if !ok {
		return fmt.Errorf("%w: %s", ErrParentNotCommitted, b.Parent.Short())
	}
	if b.Descriptor == nil {
		return ErrNilDescriptor
	}
	if b.Slot <= parent.slot && b.Parent != t.genesisHash {
		return fmt.Errorf("%w: slot %d, parent slot %d", ErrSlotNotAfterParent, b.Slot, parent.slot)
	}

	if b.Parent == t.genesisHash && b.Descriptor.Index == 0 {
		if !t.anchored {
			// The first block's descriptor carries the pinned start slot; the
			// genesis entry adopts it so every later branch agrees.
			parent.desc = b.Descriptor
			t.anchored = true
		} else if b.Descriptor.StartSlot != parent.desc.StartSlot {
			// A descriptor resolved before a racing first block pinned the
			// anchor; the caller must re-verify against the pinned geometry.
			return fmt.Errorf("%w: descriptor starts at %d, anchor pinned at %d",
				ErrAnchorMismatch, b.Descriptor.StartSlot, parent.desc.StartSlot)
		}
	}

	e := &entry{
		parent:     b.Parent,
		number:     b.Number,
		slot:       b.Slot,
		epochIndex: b.Descriptor.Index,
		desc:       b.Descriptor,
		author:     b.Author,
		primary:    b.Primary,
	}
	if b.Primary && b.VrfOutput != nil {
		out := *b.VrfOutput
		e.vrfOutput = &out
	}
	for _, log := range b.Logs {
		switch l := log.(type) {
		case types.NextEpochData:
			next := l
			e.pendingEpoch = &next
		case types.NextConfigData:
			next := l
			e.pendingConfig = &next
		case types.OnDisabled:
			e.pendingDisabled = append(e.pendingDisabled, l.Authority)
		}
	}

	key := slotAuthor{slot: b.Slot, author: b.Author}
	if first, dup := t.seen[key]; dup && first != b.Hash {
		t.equivocations = append(t.equivocations, Equivocation{
			Slot:   b.Slot,
			Author: b.Author,
			First:  first,
			Second: b.Hash,
		})
		t.log.Info("equivocation detected",
			"slot", uint64(b.Slot),
			"author", b.Author.String(),
			"first", first.Short(),
			"second", b.Hash.Short(),
		)
	} else if !dup {
		t.seen[key] = b.Hash
	}

	t.entries[b.Hash] = e
	t.log.Debug("committed block",
		"block", b.Hash.Short(),
		"slot", uint64(b.Slot),
		"epoch", uint64(b.Descriptor.Index),
		"primary", b.Primary,
	)
	return nil
}

// Descriptor returns the committed descriptor for a block.
func (t *Tracker) Descriptor(hash types.Hash) (*Descriptor, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	e, ok := t.entries[hash]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownBlock, hash.Short())
	}
	return e.desc, nil
}

// Info returns the committed metadata for a block. It implements the index
// interface chain selection consumes.
func (t *Tracker) Info(hash types.Hash) (BlockInfo, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	e, ok := t.entries[hash]
	if !ok {
		return BlockInfo{}, false
	}
	return BlockInfo{Parent: e.parent, Number: e.number, Slot: e.slot, Primary: e.primary}, true
}

// Len returns the number of committed blocks, the genesis anchor included.
func (t *Tracker) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.entries)
}

// Equivocations returns every equivocation observed so far.
func (t *Tracker) Equivocations() []Equivocation {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]Equivocation, len(t.equivocations))
	copy(out, t.equivocations)
	return out
}

// EquivocationsAt returns the equivocations observed at a slot.
func (t *Tracker) EquivocationsAt(slot types.Slot) []Equivocation {
	t.mu.RLock()
	defer t.mu.RUnlock()
	var out []Equivocation
	for _, eq := range t.equivocations {
		if eq.Slot == slot {
			out = append(out, eq)
		}
	}
	return out
}

// Prune releases every branch not descending from finalized, and ancestors
// of finalized older than one epoch before it. Ancestors within that window
// are retained: future transitions out of the finalized epoch still fold
// their primary VRF outputs.
func (t *Tracker) Prune(finalized types.Hash) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	f, ok := t.entries[finalized]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownBlock, finalized.Short())
	}

	keep := make(map[types.Hash]struct{})

	// Finalized subtree.
	children := make(map[types.Hash][]types.Hash, len(t.entries))
	for hash, e := range t.entries {
		children[e.parent] = append(children[e.parent], hash)
	}
	queue := []types.Hash{finalized}
	for len(queue) > 0 {
		hash := queue[0]
		queue = queue[1:]
		if _, done := keep[hash]; done {
			continue
		}
		keep[hash] = struct{}{}
		queue = append(queue, children[hash]...)
	}

	// Ancestors still needed for randomness accumulation.
	var minEpoch types.EpochIndex
	if f.epochIndex > 0 {
		minEpoch = f.epochIndex - 1
	}
	for hash := f.parent; !hash.IsZero(); {
		e, ok := t.entries[hash]
		if !ok || e.epochIndex < minEpoch {
			break
		}
		keep[hash] = struct{}{}
		hash = e.parent
	}

	for hash, e := range t.entries {
		if _, kept := keep[hash]; kept {
			continue
		}
		key := slotAuthor{slot: e.slot, author: e.author}
		if t.seen[key] == hash {
			delete(t.seen, key)
		}
		delete(t.entries, hash)
	}

	// A pruned block may have carried the first-authorship record for its
	// slot; hand it to a surviving twin so later duplicates still surface
	// as equivocations.
	for hash, e := range t.entries {
		if hash == t.genesisHash {
			continue
		}
		key := slotAuthor{slot: e.slot, author: e.author}
		if _, ok := t.seen[key]; !ok {
			t.seen[key] = hash
		}
	}

	t.log.Debug("pruned epoch state", "finalized", finalized.Short(), "retained", len(t.entries))
	return nil
}
