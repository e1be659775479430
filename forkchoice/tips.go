package forkchoice

import (
	"fmt"
	"sync"

	"github.com/geanlabs/babe/types"
)

// Tips tracks the set of equally canonical chain tips. Dominated tips are
// dropped as blocks arrive; tips the comparator cannot order are all kept
// until a future block extends one of them.
type Tips struct {
	mu    sync.Mutex
	index Index
	tips  map[types.Hash]struct{}
}

// NewTips starts tracking from a single known tip, usually the genesis
// block or the latest finalized block.
func NewTips(index Index, root types.Hash) *Tips {
	return &Tips{
		index: index,
		tips:  map[types.Hash]struct{}{root: {}},
	}
}

// Add records a newly verified block. If its parent was a tracked tip the
// block replaces it; tips now dominated under the selection rule are
// dropped.
func (t *Tips) Add(block, parent types.Hash) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, ok := t.index.Info(block); !ok {
		return fmt.Errorf("%w: %s", ErrUnknownBlock, block.Short())
	}

	delete(t.tips, parent)
	t.tips[block] = struct{}{}
	return t.filterLocked()
}

// filterLocked removes every tip strictly dominated by another.
func (t *Tips) filterLocked() error {
	dropped := make(map[types.Hash]struct{})
	for a := range t.tips {
		for b := range t.tips {
			if a == b {
				continue
			}
			result, err := Select(t.index, a, b)
			if err != nil {
				return err
			}
			if result == Less {
				dropped[a] = struct{}{}
				break
			}
		}
	}
	for hash := range dropped {
		delete(t.tips, hash)
	}
	return nil
}

// Best returns the canonical tip if one strictly dominates, or false while
// tips remain tied.
func (t *Tips) Best() (types.Hash, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if len(t.tips) == 1 {
		for hash := range t.tips {
			return hash, true
		}
	}
	return types.Hash{}, false
}

// All returns every currently tracked tip.
func (t *Tips) All() []types.Hash {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make([]types.Hash, 0, len(t.tips))
	for hash := range t.tips {
		out = append(out, hash)
	}
	return out
}
