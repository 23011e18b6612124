package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

func TestPresent(t *testing.T) {
	t.Parallel()

	tests := []struct {
		raw  string
		want bool
	}{
		{raw: "", want: false},
		{raw: "null", want: false},
		{raw: "  null ", want: false},
		{raw: "{}", want: true},
		{raw: `"x"`, want: true},
	}
	for _, tc := range tests {
		if got := Present(json.RawMessage(tc.raw)); got != tc.want {
			t.Fatalf("Present(%q) = %v, want %v", tc.raw, got, tc.want)
		}
	}
}

func TestMapErr(t *testing.T) {
	t.Parallel()

	if err := mapErr(nil); err != nil {
		t.Fatalf("mapErr(nil) = %v", err)
	}
	if err := mapErr(fmt.Errorf("select: %w", pgx.ErrNoRows)); !errors.Is(err, ErrNotFound) {
		t.Fatalf("mapErr(no rows) = %v, want ErrNotFound", err)
	}
	dup := &pgconn.PgError{Code: "23505", ConstraintName: "merchant_accounts_publishable_key_key"}
	if err := mapErr(dup); !errors.Is(err, ErrDuplicate) {
		t.Fatalf("mapErr(unique) = %v, want ErrDuplicate", err)
	}
	other := &pgconn.PgError{Code: "23503"}
	if err := mapErr(other); errors.Is(err, ErrDuplicate) || errors.Is(err, ErrNotFound) {
		t.Fatalf("mapErr(fk) = %v, want passthrough", err)
	}
}

func TestPlaceholders(t *testing.T) {
	t.Parallel()

	if got := placeholders(3); got != "$1, $2, $3" {
		t.Fatalf("placeholders(3) = %q", got)
	}
}
