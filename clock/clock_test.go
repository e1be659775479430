package clock

import (
	"testing"
	"time"

	"github.com/geanlabs/babe/types"
)

const (
	genesisMs = 1_000_000
	slotMs    = 6000
	firstSlot = types.Slot(100)
)

func clockAt(nowMs int64) *SlotClock {
	return NewWithTimeFunc(genesisMs, slotMs, firstSlot, func() time.Time {
		return time.UnixMilli(nowMs)
	})
}

func TestCurrentSlot(t *testing.T) {
	cases := []struct {
		name  string
		nowMs int64
		want  types.Slot
	}{
		{"at genesis", genesisMs, firstSlot},
		{"mid first slot", genesisMs + slotMs/2, firstSlot},
		{"second slot", genesisMs + slotMs, firstSlot + 1},
		{"five slots in", genesisMs + 5*slotMs, firstSlot + 5},
		{"before genesis", genesisMs - 10_000, firstSlot},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			if got := clockAt(c.nowMs).CurrentSlot(); got != c.want {
				t.Fatalf("current slot: got %d, want %d", got, c.want)
			}
		})
	}
}

func TestSlotStartTime(t *testing.T) {
	c := clockAt(genesisMs)

	if got := c.SlotStartTime(firstSlot); got != genesisMs {
		t.Errorf("genesis slot start: got %d, want %d", got, genesisMs)
	}
	if got := c.SlotStartTime(firstSlot + 3); got != genesisMs+3*slotMs {
		t.Errorf("slot start: got %d, want %d", got, genesisMs+3*slotMs)
	}
	// Slots before the genesis slot clamp to genesis time.
	if got := c.SlotStartTime(firstSlot - 1); got != genesisMs {
		t.Errorf("pre-genesis slot start: got %d, want %d", got, genesisMs)
	}
}

func TestIsBeforeGenesis(t *testing.T) {
	if !clockAt(genesisMs - 1).IsBeforeGenesis() {
		t.Error("clock before genesis not detected")
	}
	if clockAt(genesisMs).IsBeforeGenesis() {
		t.Error("clock at genesis reported as before genesis")
	}
}
