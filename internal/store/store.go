// Package store keeps named save slots holding engine save documents.
package store

import (
	"context"
	"errors"
	"fmt"
	"regexp"

	"github.com/tatianab/seven-sects/internal/config"
	"go.uber.org/zap"
)

var (
	ErrInvalidSlot  = errors.New("invalid slot name")
	ErrSlotNotFound = errors.New("slot not found")
)

// Slots is a named collection of save documents. Documents are opaque to
// the store; validation happens when the engine loads them.
type Slots interface {
	Save(ctx context.Context, slot string, doc []byte) error
	Load(ctx context.Context, slot string) ([]byte, error)
	List(ctx context.Context) ([]string, error)
	Close() error
}

var slotPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,64}$`)

// ValidateSlot rejects names that could escape the save directory or the
// slot column.
func ValidateSlot(slot string) error {
	if !slotPattern.MatchString(slot) {
		return fmt.Errorf("%w: %q", ErrInvalidSlot, slot)
	}
	return nil
}

// Open returns the backend selected by cfg.Storage.
func Open(ctx context.Context, cfg *config.Config, logger *zap.Logger) (Slots, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	switch cfg.Storage {
	case config.StorageFile:
		logger.Info("save slots", zap.String("backend", "file"), zap.String("dir", cfg.SaveDir))
		return NewFileStore(cfg.SaveDir), nil
	case config.StorageSQLite:
		logger.Info("save slots", zap.String("backend", "sqlite"), zap.String("path", cfg.SQLitePath))
		return openSQL(ctx, DialectSQLite, cfg.SQLitePath)
	case config.StoragePostgres:
		logger.Info("save slots", zap.String("backend", "postgres"))
		return openSQL(ctx, DialectPostgres, cfg.PostgresDSN)
	}
	return nil, fmt.Errorf("unsupported storage %q", cfg.Storage)
}

func openSQL(ctx context.Context, dialect Dialect, dsn string) (Slots, error) {
	s, err := OpenSQL(ctx, dialect, dsn)
	if err != nil {
		return nil, err
	}
	return s, nil
}
