package db

import (
	"errors"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"

	"github.com/yungbote/darx-site-generator/internal/platform/apierr"
)

const pgUniqueViolation = "23505"

// IsUniqueViolation covers the postgres and sqlite duplicate-key errors, with
// or without gorm's error translation.
func IsUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
		return true
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// Translate tags a store error: unique violations become conflicts, anything
// else is reported as the store being unavailable.
func Translate(op string, err error) error {
	if err == nil {
		return nil
	}
	if _, ok := apierr.As(err); ok {
		return err
	}
	if IsUniqueViolation(err) {
		return apierr.Conflict(apierr.UpstreamStore, op, err)
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return apierr.New(apierr.KindNotFound, apierr.UpstreamStore, op, err)
	}
	return apierr.Unavailable(apierr.UpstreamStore, op, err)
}
