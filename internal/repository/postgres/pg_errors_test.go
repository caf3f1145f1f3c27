package postgres

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/kirinyoku/tix-seats/internal/repository"
	"github.com/stretchr/testify/require"
)

type unsentErr struct{}

func (unsentErr) Error() string { return "write failed before sending" }
func (unsentErr) SafeToRetry() bool { return true }

func TestTranslateDBErr(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want error
	}{
		{name: "no rows", err: pgx.ErrNoRows, want: repository.ErrNotFound},
		{name: "unique violation", err: &pgconn.PgError{Code: "23505"}, want: repository.ErrConflict},
		{name: "serialization failure", err: &pgconn.PgError{Code: "40001"}, want: repository.ErrTransient},
		{name: "deadlock", err: &pgconn.PgError{Code: "40P01"}, want: repository.ErrTransient},
		{name: "refused dial", err: &pgconn.ConnectError{Config: &pgconn.Config{}}, want: repository.ErrTransient},
		{name: "unsent statement", err: fmt.Errorf("exec: %w", unsentErr{}), want: repository.ErrTransient},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.ErrorIs(t, translateDBErr(tt.err), tt.want)
		})
	}
}

func TestTranslateDBErr_NotTransient(t *testing.T) {
	for _, err := range []error{
		&pgconn.PgError{Code: "23514"},
		errors.New("disk full"),
		context.Canceled,
	} {
		require.NotErrorIs(t, translateDBErr(err), repository.ErrTransient)
	}

	require.NoError(t, translateDBErr(nil))
}
