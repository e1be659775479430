package forkchoice

import "errors"

// Sentinel errors for chain selection.
// Callers may use errors.Is to check for specific failure types.
var (
	ErrUnknownBlock     = errors.New("unknown block")      // tip or ancestor not in the index
	ErrNoCommonAncestor = errors.New("no common ancestor") // tips do not share history
)
