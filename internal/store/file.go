package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/soyeahso/witness/internal/domain"
	"github.com/soyeahso/witness/internal/logging"
)

const (
	sessionsDir     = "sessions"
	interactionsDir = "interactions"
	sessionFile     = "session.json"
	jsonExt         = ".json"
)

// FileStore keeps one JSON document per interaction and per session:
//
//	<root>/sessions/<sessionId>/session.json
//	<root>/sessions/<sessionId>/interactions/<witnessId>.json
//
// Writes land in a temporary file that is renamed into place, so readers
// never see a partially written document.
type FileStore struct {
	root string
	log  *logging.Logger
}

// NewFileStore creates the root directory if needed.
func NewFileStore(root string, log *logging.Logger) (*FileStore, error) {
	if err := os.MkdirAll(filepath.Join(root, sessionsDir), 0o700); err != nil {
		return nil, storageErr("creating store directory", err)
	}
	s := &FileStore{root: root, log: log.Sub("store")}
	s.log.Info().Str("root", root).Str("type", "file").Msg("store opened")
	return s, nil
}

// Root returns the store's base directory.
func (s *FileStore) Root() string { return s.root }

func (s *FileStore) sessionDir(id string) string {
	return filepath.Join(s.root, sessionsDir, id)
}

func (s *FileStore) interactionPath(sessionID, witnessID string) string {
	return filepath.Join(s.sessionDir(sessionID), interactionsDir, witnessID+jsonExt)
}

// SaveInteraction writes the interaction document, replacing any previous one.
func (s *FileStore) SaveInteraction(ctx context.Context, i domain.Interaction) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := domain.ValidateSessionID(i.SessionID); err != nil {
		return err
	}
	if err := checkWitnessID(i.ID.Value); err != nil {
		return err
	}
	path := s.interactionPath(i.SessionID, i.ID.Value)
	if err := writeJSONAtomic(path, i); err != nil {
		return err
	}
	s.log.Debug().Str("witnessId", i.ID.Value).Str("sessionId", i.SessionID).Msg("interaction saved")
	return nil
}

// GetInteraction loads one interaction.
func (s *FileStore) GetInteraction(ctx context.Context, witnessID, sessionID string) (domain.Interaction, error) {
	if err := ctx.Err(); err != nil {
		return domain.Interaction{}, err
	}
	if err := checkWitnessID(witnessID); err != nil {
		return domain.Interaction{}, err
	}

	if sessionID != "" {
		if err := domain.ValidateSessionID(sessionID); err != nil {
			return domain.Interaction{}, err
		}
		var i domain.Interaction
		err := readJSON(s.interactionPath(sessionID, witnessID), &i)
		if errors.Is(err, fs.ErrNotExist) {
			return domain.Interaction{}, notFound(witnessID, sessionID)
		}
		return i, err
	}

	ids, err := s.sessionIDsByRecency(ctx)
	if err != nil {
		return domain.Interaction{}, err
	}
	for _, id := range ids {
		var i domain.Interaction
		err := readJSON(s.interactionPath(id, witnessID), &i)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		return i, err
	}
	return domain.Interaction{}, notFound(witnessID, "")
}

// ListInteractions decodes every interaction of a session. Unreadable
// documents are skipped and logged. An unknown session lists as empty.
func (s *FileStore) ListInteractions(ctx context.Context, sessionID string, limit int) ([]domain.Interaction, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := domain.ValidateSessionID(sessionID); err != nil {
		return nil, err
	}

	names, err := jsonFiles(filepath.Join(s.sessionDir(sessionID), interactionsDir))
	if err != nil {
		return nil, err
	}

	list := make([]domain.Interaction, 0, len(names))
	for _, path := range names {
		var i domain.Interaction
		if err := readJSON(path, &i); err != nil {
			s.log.Warn().Err(err).Str("path", path).Msg("skipping unreadable interaction")
			continue
		}
		list = append(list, i)
	}
	sortInteractions(list)
	return truncate(list, limit), nil
}

// CountInteractions counts interaction documents in a session.
func (s *FileStore) CountInteractions(ctx context.Context, sessionID string) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if err := domain.ValidateSessionID(sessionID); err != nil {
		return 0, err
	}
	names, err := jsonFiles(filepath.Join(s.sessionDir(sessionID), interactionsDir))
	return len(names), err
}

// SaveSession writes the session document.
func (s *FileStore) SaveSession(ctx context.Context, sess domain.Session) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := domain.ValidateSessionID(sess.ID); err != nil {
		return err
	}
	return writeJSONAtomic(filepath.Join(s.sessionDir(sess.ID), sessionFile), sess)
}

// GetSession loads a session document.
func (s *FileStore) GetSession(ctx context.Context, id string) (domain.Session, error) {
	if err := ctx.Err(); err != nil {
		return domain.Session{}, err
	}
	if err := domain.ValidateSessionID(id); err != nil {
		return domain.Session{}, err
	}
	var sess domain.Session
	err := readJSON(filepath.Join(s.sessionDir(id), sessionFile), &sess)
	if errors.Is(err, fs.ErrNotExist) {
		return domain.Session{}, fmt.Errorf("%w: session %s", domain.ErrNotFound, id)
	}
	return sess, err
}

// ListSessions returns every session that has a session document.
func (s *FileStore) ListSessions(ctx context.Context, limit int) ([]domain.Session, error) {
	sessions, _, err := s.scanSessions(ctx)
	if err != nil {
		return nil, err
	}
	return truncate(sessions, limit), nil
}

// CountSessions counts sessions with a session document.
func (s *FileStore) CountSessions(ctx context.Context) (int, error) {
	sessions, _, err := s.scanSessions(ctx)
	return len(sessions), err
}

// Close is a no-op; the file store holds no handles.
func (s *FileStore) Close() error { return nil }

// scanSessions reads every session directory. Directories without a readable
// session document are returned separately as orphans.
func (s *FileStore) scanSessions(ctx context.Context) ([]domain.Session, []string, error) {
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}
	entries, err := os.ReadDir(filepath.Join(s.root, sessionsDir))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil, nil
	}
	if err != nil {
		return nil, nil, storageErr("listing sessions", err)
	}

	var sessions []domain.Session
	var orphans []string
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		var sess domain.Session
		if err := readJSON(filepath.Join(s.sessionDir(e.Name()), sessionFile), &sess); err != nil {
			if !errors.Is(err, fs.ErrNotExist) {
				s.log.Warn().Err(err).Str("sessionId", e.Name()).Msg("unreadable session document")
			}
			orphans = append(orphans, e.Name())
			continue
		}
		sessions = append(sessions, sess)
	}
	sortSessions(sessions)
	return sessions, orphans, nil
}

// sessionIDsByRecency lists session ids most recently created first, then
// directories that hold interactions but no session document.
func (s *FileStore) sessionIDsByRecency(ctx context.Context) ([]string, error) {
	sessions, orphans, err := s.scanSessions(ctx)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(sessions)+len(orphans))
	for _, sess := range sessions {
		ids = append(ids, sess.ID)
	}
	for i := len(orphans) - 1; i >= 0; i-- {
		ids = append(ids, orphans[i])
	}
	return ids, nil
}

// jsonFiles lists the .json documents in dir, skipping in-flight temp files.
func jsonFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, storageErr("listing "+dir, err)
	}
	var paths []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || strings.HasPrefix(name, ".") || !strings.HasSuffix(name, jsonExt) {
			continue
		}
		paths = append(paths, filepath.Join(dir, name))
	}
	return paths, nil
}

func readJSON(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return err
		}
		return storageErr("reading "+path, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return storageErr("decoding "+path, err)
	}
	return nil
}

// writeJSONAtomic writes v as indented JSON via a uuid-named temp file in the
// target directory followed by a rename.
func writeJSONAtomic(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return storageErr("encoding "+filepath.Base(path), err)
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return storageErr("creating "+dir, err)
	}
	tmp := filepath.Join(dir, "."+uuid.NewString()+".tmp")
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		_ = os.Remove(tmp)
		return storageErr("writing "+tmp, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return storageErr("renaming into "+path, err)
	}
	return nil
}
