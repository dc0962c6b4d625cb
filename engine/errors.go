package engine

import "errors"

// Domain errors returned by engine operations. All of them are expected
// conditions the caller can surface to the user; none are fatal to the
// process. ErrCorruptedState is the exception: it indicates persisted state
// that violates an engine invariant and requires manual repair.
var (
	ErrOutOfOrderEvaluation = errors.New("day evaluation out of order")
	ErrRestoreWindowExpired = errors.New("restore window expired")
	ErrNoFreezeAvailable    = errors.New("no freeze available")
	ErrInsufficientFreezes  = errors.New("insufficient freezes")
	ErrInsufficientBalance  = errors.New("insufficient coin balance")
	ErrInvalidTimezone      = errors.New("invalid timezone")
	ErrEmptyMilestoneTable  = errors.New("empty milestone table")
	ErrCosmeticUnknown      = errors.New("unknown cosmetic item")
	ErrCosmeticOwned        = errors.New("cosmetic already unlocked")
	ErrDuplicateReference   = errors.New("duplicate transaction reference")
	ErrCorruptedState       = errors.New("corrupted streak state")
)
