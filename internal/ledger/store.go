package ledger

import "context"

// Store is the transactional backing for the ledger.
//
// Update runs fn inside one atomic unit covering accounts. Accounts that do not
// exist yet are created when the unit commits. If fn returns an error nothing
// it wrote is kept.
type Store interface {
	Update(ctx context.Context, accounts []string, fn func(Tx) error) error
	GetAccount(ctx context.Context, id string) (*Account, error)
	GetTransaction(ctx context.Context, id string) (*Transaction, error)
	// ListTransactions returns the account's transactions, most recent first.
	ListTransactions(ctx context.Context, account string, limit, offset int) ([]Transaction, error)
	// ListFunded returns accounts whose id starts with prefix and whose
	// balance is not zero, ordered by id.
	ListFunded(ctx context.Context, prefix string) ([]Account, error)
}

type Tx interface {
	// Account returns the locked account, or a fresh zero-balance account
	// when it has never been seen.
	Account(ctx context.Context, id string) (*Account, error)
	PutAccount(ctx context.Context, a *Account) error
	// FindTransaction returns nil, nil when id is unknown.
	FindTransaction(ctx context.Context, id string) (*Transaction, error)
	AppendTransaction(ctx context.Context, t *Transaction) error
}
