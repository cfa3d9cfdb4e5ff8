package ledger

import "time"

// AccountType classifies an account for balance presentation purposes.
type AccountType string

const (
	Asset     AccountType = "ASSET"
	Liability AccountType = "LIABILITY"
	Equity    AccountType = "EQUITY"
	Revenue   AccountType = "REVENUE"
	Expense   AccountType = "EXPENSE"
)

// Side is the debit/credit side of a ledger entry.
type Side string

const (
	Debit  Side = "DEBIT"
	Credit Side = "CREDIT"
)

// NormalSideFor returns the side on which balances of the given account type increase.
func NormalSideFor(t AccountType) Side {
	switch t {
	case Asset, Expense:
		return Debit
	default:
		return Credit
	}
}

// Account is an immutable entry in the account catalog.
type Account struct {
	ID         string
	Code       string
	Type       AccountType
	NormalSide Side
	CreatedAt  time.Time
}

// Transaction is the immutable header of a balanced double-entry transaction.
type Transaction struct {
	ID          string
	Description string
	CreatedAt   time.Time
}

// Entry is a single immutable leg of a Transaction.
type Entry struct {
	ID            string
	TransactionID string
	AccountID     string
	Side          Side
	AmountCents   int64
	Currency      string
	CreatedAt     time.Time
}

// Leg is one side of a transaction being created: which account, and how much.
type Leg struct {
	AccountID string
	Cents     int64
	Currency  string
}
