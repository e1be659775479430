package babe

import "errors"

// Sentinel errors for header verification. Every failure is permanent: a
// header rejected with any of these is never valid on retry. Callers may use
// errors.Is; tracker failures (epoch.ErrParentNotCommitted,
// epoch.ErrMissingEpochTransitionLog) propagate unchanged.
var (
	// Structural failures.
	ErrInvalidHeader             = errors.New("invalid header")
	ErrMissingSeal               = errors.New("missing seal digest")
	ErrMissingPreRuntimeDigest   = errors.New("missing pre-runtime digest")
	ErrMultiplePreRuntimeDigests = errors.New("multiple pre-runtime digests")
	ErrPreRuntimeDigestDecode    = errors.New("cannot decode pre-runtime digest")
	ErrConsensusDigestDecode     = errors.New("cannot decode consensus digest")

	// Epoch and authority failures.
	ErrBadAuthorityIndex         = errors.New("bad authority index")
	ErrSlotEpochMismatch         = errors.New("slot outside descriptor epoch")
	ErrSecondaryClaimsDisallowed = errors.New("secondary claims disallowed")
	ErrSlotInFuture              = errors.New("slot is in the future")

	// Cryptographic failures.
	ErrBadVrfProof          = errors.New("invalid vrf proof")
	ErrVrfOutputTooHigh     = errors.New("vrf output above threshold")
	ErrWrongSecondaryAuthor = errors.New("wrong secondary slot author")
	ErrBadSeal              = errors.New("invalid seal signature")
)
