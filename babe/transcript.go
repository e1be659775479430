package babe

import (
	"encoding/binary"

	"github.com/gtank/merlin"

	"github.com/geanlabs/babe/types"
)

// MakeTranscript builds the VRF transcript a slot claim commits to: the
// slot number, the epoch index and the epoch randomness, in that order.
// The layout is compatibility-critical; it must match what the network's
// authors sign.
func MakeTranscript(randomness types.Randomness, slot types.Slot, epochIdx types.EpochIndex) *merlin.Transcript {
	t := merlin.NewTranscript("BABE")
	appendUint64(t, "slot number", uint64(slot))
	appendUint64(t, "current epoch", uint64(epochIdx))
	t.AppendMessage([]byte("chain randomness"), randomness[:])
	return t
}

func appendUint64(t *merlin.Transcript, label string, v uint64) {
	buf := make([]byte, 8)
	binary.LittleEndian.PutUint64(buf, v)
	t.AppendMessage([]byte(label), buf)
}
