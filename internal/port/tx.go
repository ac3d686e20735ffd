package port

import "context"

// Tx is a storage transaction. Mutating repository methods take a Tx so a
// service can span several reads and writes with one atomic unit; row locks
// taken inside the Tx are held until Commit or Rollback.
type Tx interface {
	Commit() error
	Rollback() error
}

// TxBeginner opens transactions against the system of record.
type TxBeginner interface {
	BeginTx(ctx context.Context) (Tx, error)
}
