package ledger

import "errors"

var (
	// ErrAccountNotFound reports an operation against a user with no account.
	ErrAccountNotFound = errors.New("account not found")
	// ErrAlreadyExists reports an init against a funded account; re-init must
	// never silently reset one.
	ErrAlreadyExists = errors.New("account already exists")
	// ErrInsufficientFunds reports a buy exceeding available cash.
	ErrInsufficientFunds = errors.New("insufficient funds")
	// ErrInsufficientPosition reports a sell exceeding the held quantity.
	ErrInsufficientPosition = errors.New("insufficient position")
	// ErrAccountClosed reports a mutation against a closed account.
	ErrAccountClosed = errors.New("account closed")
)
