package models

import "fmt"

// Kind identifies a ledger table.
type Kind string

const (
	KindExpense  Kind = "expense"
	KindTransfer Kind = "transfer"
	KindIncome   Kind = "income"
)

// ParseKind parses a kind string as used in delete requests.
func ParseKind(s string) (Kind, error) {
	switch Kind(s) {
	case KindExpense, KindTransfer, KindIncome:
		return Kind(s), nil
	default:
		return "", fmt.Errorf("unknown movement kind %q", s)
	}
}

// Expense represents money spent from an account.
type Expense struct {
	ID       int64   `json:"id"`
	Date     Date    `json:"date"`
	Account  string  `json:"account"`
	Amount   float64 `json:"amount"`
	Category string  `json:"category"`
	Note     string  `json:"note"`
}

// Transfer represents money moved between two accounts.
type Transfer struct {
	ID      int64   `json:"id"`
	Date    Date    `json:"date"`
	Source  string  `json:"source_account"`
	Dest    string  `json:"dest_account"`
	Amount  float64 `json:"amount"`
	Comment string  `json:"comment"`
}

// Income represents money received into an account.
type Income struct {
	ID       int64   `json:"id"`
	Date     Date    `json:"date"`
	Account  string  `json:"account"`
	Amount   float64 `json:"amount"`
	Category string  `json:"category"`
	Note     string  `json:"note"`
}
