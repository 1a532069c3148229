// Package store persists interactions and sessions. Two backends share one
// contract: a directory of JSON documents and a SQLite database.
package store

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/soyeahso/witness/internal/config"
	"github.com/soyeahso/witness/internal/domain"
	"github.com/soyeahso/witness/internal/logging"
)

// Store is the persistence contract used by capture. Interactions are keyed
// by (session id, witness id); saving an existing key overwrites it. No
// locking is applied: concurrent writers to the same key race and the last
// write wins.
type Store interface {
	SaveInteraction(ctx context.Context, i domain.Interaction) error
	// GetInteraction looks in sessionID only when it is set. With an empty
	// sessionID every session is searched, most recently created first.
	GetInteraction(ctx context.Context, witnessID, sessionID string) (domain.Interaction, error)
	// ListInteractions returns newest first; limit <= 0 means all.
	ListInteractions(ctx context.Context, sessionID string, limit int) ([]domain.Interaction, error)
	CountInteractions(ctx context.Context, sessionID string) (int, error)

	SaveSession(ctx context.Context, s domain.Session) error
	GetSession(ctx context.Context, id string) (domain.Session, error)
	// ListSessions returns most recently created first; limit <= 0 means all.
	ListSessions(ctx context.Context, limit int) ([]domain.Session, error)
	CountSessions(ctx context.Context) (int, error)

	Close() error
}

// Open returns the backend selected by cfg.Type.
func Open(cfg config.StorageConfig, log *logging.Logger) (Store, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("%w: storage path is required", domain.ErrInvalidArgument)
	}
	switch cfg.Type {
	case "", "file":
		return NewFileStore(cfg.Path, log)
	case "sqlite":
		return OpenSQLite(cfg.Path, log)
	default:
		return nil, fmt.Errorf("%w: unknown storage type %q", domain.ErrInvalidArgument, cfg.Type)
	}
}

// checkWitnessID rejects ids that could escape a session's namespace.
func checkWitnessID(id string) error {
	if strings.TrimSpace(id) == "" {
		return fmt.Errorf("%w: witness id is required", domain.ErrInvalidArgument)
	}
	if strings.ContainsAny(id, `/\`) || id == "." || id == ".." {
		return fmt.Errorf("%w: witness id %q must not contain path separators", domain.ErrInvalidArgument, id)
	}
	return nil
}

func notFound(witnessID, sessionID string) error {
	if sessionID == "" {
		return fmt.Errorf("%w: interaction %s", domain.ErrNotFound, witnessID)
	}
	return fmt.Errorf("%w: interaction %s in session %s", domain.ErrNotFound, witnessID, sessionID)
}

func storageErr(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", domain.ErrStorage, op, err)
}

// sortInteractions orders newest first, ties broken by witness id descending.
func sortInteractions(list []domain.Interaction) {
	sort.SliceStable(list, func(a, b int) bool {
		ta, tb := list[a].Timestamp, list[b].Timestamp
		if !ta.Equal(tb) {
			return ta.After(tb)
		}
		return list[a].ID.Value > list[b].ID.Value
	})
}

// sortSessions orders most recently created first, ties broken by id descending.
func sortSessions(list []domain.Session) {
	sort.SliceStable(list, func(a, b int) bool {
		ta, tb := list[a].CreatedAt, list[b].CreatedAt
		if !ta.Equal(tb) {
			return ta.After(tb)
		}
		return list[a].ID > list[b].ID
	})
}

func truncate[T any](list []T, limit int) []T {
	if limit > 0 && len(list) > limit {
		return list[:limit]
	}
	return list
}
