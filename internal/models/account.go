package models

// The fixed set of tracked accounts.
const (
	AccountMain   = "BBVA Concentradora"
	AccountCredit = "BBVA Credito"
	AccountNU     = "NU"
	AccountGBM    = "GBM"
)

// Accounts returns the fixed account set in display order.
func Accounts() []string {
	return []string{AccountMain, AccountCredit, AccountNU, AccountGBM}
}

// ValidAccount reports whether name is one of the tracked accounts.
func ValidAccount(name string) bool {
	for _, a := range Accounts() {
		if a == name {
			return true
		}
	}
	return false
}

// IsCreditAccount reports whether the account is a credit line, where a
// negative balance means debt rather than missing funds.
func IsCreditAccount(name string) bool {
	return name == AccountCredit
}

// AccountBalance is the balance projection of one account.
type AccountBalance struct {
	Account  string  `json:"account"`
	Balance  float64 `json:"balance"`
	IsCredit bool    `json:"is_credit"`
}
