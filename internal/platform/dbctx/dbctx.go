package dbctx

import (
	"context"

	"gorm.io/gorm"
)

// Context bundles a request context with an optional GORM transaction.
type Context struct {
	Ctx context.Context
	Tx  *gorm.DB
}

// Or returns the transaction when set, db otherwise, bound to the request context.
func (c Context) Or(db *gorm.DB) *gorm.DB {
	t := c.Tx
	if t == nil {
		t = db
	}
	if c.Ctx != nil {
		t = t.WithContext(c.Ctx)
	}
	return t
}
