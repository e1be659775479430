// Package clock provides time-to-slot conversion for BABE.
//
// The slot clock bridges wall-clock time to the discrete slot-based time
// model used by consensus. Slot duration is a chain parameter, supplied by
// the genesis configuration in milliseconds.
package clock

import (
	"time"

	"github.com/geanlabs/babe/types"
)

// SlotClock converts wall-clock time to consensus slots.
// All time values are Unix milliseconds.
type SlotClock struct {
	GenesisTime  uint64           // Unix milliseconds when GenesisSlot began
	SlotDuration uint64           // milliseconds per slot
	GenesisSlot  types.Slot       // slot number at GenesisTime
	timeFunc     func() time.Time // Injectable for testing
}

// New creates a SlotClock with the given genesis time and slot duration.
func New(genesisTimeMs, slotDurationMs uint64, genesisSlot types.Slot) *SlotClock {
	return &SlotClock{
		GenesisTime:  genesisTimeMs,
		SlotDuration: slotDurationMs,
		GenesisSlot:  genesisSlot,
		timeFunc:     time.Now,
	}
}

// NewWithTimeFunc creates a SlotClock with a custom time source (for testing).
func NewWithTimeFunc(genesisTimeMs, slotDurationMs uint64, genesisSlot types.Slot, timeFunc func() time.Time) *SlotClock {
	c := New(genesisTimeMs, slotDurationMs, genesisSlot)
	c.timeFunc = timeFunc
	return c
}

// millisSinceGenesis returns milliseconds elapsed since genesis (0 if before genesis).
func (c *SlotClock) millisSinceGenesis() uint64 {
	now := uint64(c.timeFunc().UnixMilli())
	if now < c.GenesisTime {
		return 0
	}
	return now - c.GenesisTime
}

// CurrentSlot returns the current slot number (GenesisSlot if before genesis).
func (c *SlotClock) CurrentSlot() types.Slot {
	return c.GenesisSlot + types.Slot(c.millisSinceGenesis()/c.SlotDuration)
}

// SlotStartTime returns the Unix millisecond timestamp when a given slot starts.
func (c *SlotClock) SlotStartTime(slot types.Slot) uint64 {
	if slot < c.GenesisSlot {
		return c.GenesisTime
	}
	return c.GenesisTime + uint64(slot-c.GenesisSlot)*c.SlotDuration
}

// IsBeforeGenesis returns true if current time is before genesis.
func (c *SlotClock) IsBeforeGenesis() bool {
	return uint64(c.timeFunc().UnixMilli()) < c.GenesisTime
}
