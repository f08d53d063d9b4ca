// Package cmd provides shared construction helpers for the binaries.
package cmd

import (
	"context"
	"log/slog"
	"strings"

	"github.com/derivia/orchepy/pkg/persistence"
	"github.com/derivia/orchepy/pkg/persistence/file"
	"github.com/derivia/orchepy/pkg/persistence/postgresql"
)

// NewPersistence selects the persistence backend from the database URL
// scheme: postgres for postgres:// / postgresql://, the file store otherwise.
func NewPersistence(ctx context.Context, logger *slog.Logger, databaseURL string) (persistence.Persistence, error) {
	switch {
	case strings.HasPrefix(databaseURL, "postgres://"), strings.HasPrefix(databaseURL, "postgresql://"):
		return postgresql.NewPersistence(ctx, logger, databaseURL)
	default:
		return file.NewPersistence(databaseURL), nil
	}
}
