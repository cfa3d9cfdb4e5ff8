package ledger

import "errors"

var (
	// ErrUnbalanced is returned when the debit and credit legs of a transaction differ in amount.
	ErrUnbalanced = errors.New("ledger: debit and credit legs are not balanced")
	// ErrNonPositiveAmount is returned when a leg amount is not strictly positive.
	ErrNonPositiveAmount = errors.New("ledger: amount must be positive")
	// ErrUnknownAccount is returned when a referenced account does not exist.
	ErrUnknownAccount = errors.New("ledger: unknown account")
	// ErrDuplicateTransaction names the case of a transaction id that already
	// exists with an identical payload. CreateBalancedTransactionTx does not
	// return it: it returns the existing transaction as a no-op success.
	ErrDuplicateTransaction = errors.New("ledger: duplicate transaction")
	// ErrConflict is returned when a transaction id already exists with a different payload.
	ErrConflict = errors.New("ledger: transaction id exists with a different payload")
)
