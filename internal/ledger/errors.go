package ledger

import "errors"

var (
	ErrInvalidAmount        = errors.New("invalid_amount")
	ErrInvalidAccount       = errors.New("invalid_account")
	ErrInsufficientFunds    = errors.New("insufficient_funds")
	ErrAccountBanned        = errors.New("account_banned")
	ErrSelfTransfer         = errors.New("self_transfer")
	ErrIdempotencyConflict  = errors.New("idempotency_conflict")
	ErrAccountNotFound      = errors.New("account_not_found")
	ErrTransactionNotFound  = errors.New("transaction_not_found")
	ErrDuplicateTransaction = errors.New("duplicate_transaction")
)
