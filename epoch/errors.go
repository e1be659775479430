package epoch

import "errors"

// Sentinel errors for epoch tracking.
// Callers may use errors.Is to check for specific failure types.
var (
	ErrParentNotCommitted        = errors.New("parent block not committed")        // descriptor requested against an unknown parent
	ErrMissingEpochTransitionLog = errors.New("missing epoch transition log")      // transition with no NextEpochData anywhere in the parent epoch
	ErrAnchorMismatch            = errors.New("epoch anchor mismatch")             // first-block descriptor disagrees with the pinned epoch-0 start
	ErrSlotNotAfterParent        = errors.New("slot not after parent slot")        // child slot must strictly exceed the parent's
	ErrSlotBeforeEpochStart      = errors.New("slot before epoch start")           // slot precedes the branch's epoch-0 anchor
	ErrUnknownBlock              = errors.New("unknown block")                     // lookup of a block the tracker never committed
	ErrNilDescriptor             = errors.New("nil descriptor")                    // commit without a resolved descriptor
)
