package settlement

import "errors"

// Submission failures. Callers decide whether a retry is safe from the error:
// ErrSovereignHandshakeFailed and ErrSettlementConflict are safe to resubmit
// with the same transaction id; the others are final.
var (
	ErrInvalidAmount            = errors.New("amount must be greater than zero")
	ErrInvalidTransaction       = errors.New("invalid transaction")
	ErrInvalidSignature         = errors.New("invalid signature")
	ErrUnauthorizedAuthority    = errors.New("unauthorized authority")
	ErrUnknownAccount           = errors.New("unknown account")
	ErrAccountExists            = errors.New("account already exists")
	ErrInsufficientLiquidity    = errors.New("insufficient liquidity")
	ErrTreasuryLocked           = errors.New("treasury vault is locked")
	ErrDuplicateTransaction     = errors.New("duplicate transaction")
	ErrSovereignHandshakeFailed = errors.New("sovereign handshake failed: mirror publish did not complete")
	ErrSettlementConflict       = errors.New("settlement conflict: too many concurrent updates, retry later")
)

// Retryable reports whether resubmitting the same transaction may succeed.
func Retryable(err error) bool {
	return errors.Is(err, ErrSovereignHandshakeFailed) || errors.Is(err, ErrSettlementConflict)
}
