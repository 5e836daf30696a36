package core

import "context"

// TxRunner runs fn atomically: either every write made through the ctx passed to fn is
// committed, or none is. Repositories called with that ctx join the transaction.
// A nested RunInTx joins the outer transaction.
type TxRunner interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}

type DBOrdering struct {
	Field     string
	Ascending bool
}

func (ord DBOrdering) String() string {
	direction := "DESC"
	if ord.Ascending {
		direction = "ASC"
	}
	return ord.Field + " " + direction
}
