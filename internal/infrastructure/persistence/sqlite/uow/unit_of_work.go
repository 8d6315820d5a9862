package uow

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"gissues/internal/ports"
)

// UnitOfWork implements ports.UnitOfWork with gorm. A nested WithTx joins the
// transaction already carried by ctx instead of opening a second one, which would block
// on the single sqlite connection.
type UnitOfWork struct {
	db *gorm.DB
}

var _ ports.UnitOfWork = (*UnitOfWork)(nil)

func NewUnitOfWork(db *gorm.DB) *UnitOfWork {
	return &UnitOfWork{db: db}
}

func (u *UnitOfWork) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if ctx == nil {
		return errors.New("context is required")
	}
	if ports.InTx(ctx) {
		return fn(ctx)
	}
	return u.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(ports.WithTxContext(ctx, tx))
	})
}
