// Package session stores bookmarked results view queries. A session keeps the session
// properties of a page's URL so the page can be reopened later from a short id.
package session

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
)

// SourceMainSession marks sessions created from the results view.
const SourceMainSession = "main_session"

// Session is one bookmarked query.
type Session struct {
	ID        string            `json:"id"`
	Source    string            `json:"source"`
	Query     map[string]string `json:"query"`
	CreatedAt time.Time         `json:"created_at"`
	UpdatedAt time.Time         `json:"updated_at"`
}

// Store defines the interface for session storage operations.
type Store interface {
	// Save stores a session, assigning an id when it has none. Saving an existing id replaces
	// its query.
	Save(ctx context.Context, session *Session) error

	// Get returns the session with the given id, or nil when there is none.
	Get(ctx context.Context, id string) (*Session, error)

	// List returns sessions, newest first.
	List(ctx context.Context, limit, offset int) ([]*Session, error)

	Count(ctx context.Context) (int64, error)

	Delete(ctx context.Context, id string) error

	// ExportJSON writes every session to writer.
	ExportJSON(ctx context.Context, writer io.Writer) error

	// ImportJSON reads sessions written by ExportJSON. Sessions whose id already exists are
	// skipped.
	ImportJSON(ctx context.Context, reader io.Reader) (imported int, skipped int, err error)

	Close() error
}

// SessionExport represents the JSON export format.
type SessionExport struct {
	Version    string     `json:"version"`
	ExportedAt time.Time  `json:"exported_at"`
	Count      int        `json:"count"`
	Sessions   []*Session `json:"sessions"`
}

// maxExportLimit is the maximum number of sessions exported at once.
const maxExportLimit = 1000000

func prepare(session *Session, now time.Time) {
	if session.ID == "" {
		session.ID = uuid.NewString()
	}
	if session.Source == "" {
		session.Source = SourceMainSession
	}
	if session.Query == nil {
		session.Query = map[string]string{}
	}
	session.UpdatedAt = now
}

func encodeQuery(query map[string]string) (string, error) {
	raw, err := json.Marshal(query)
	if err != nil {
		return "", fmt.Errorf("failed to encode query: %w", err)
	}
	return string(raw), nil
}

func decodeQuery(raw string) (map[string]string, error) {
	query := map[string]string{}
	if raw == "" {
		return query, nil
	}
	if err := json.Unmarshal([]byte(raw), &query); err != nil {
		return nil, fmt.Errorf("failed to decode query: %w", err)
	}
	return query, nil
}

// scanner is an interface for sql.Row and sql.Rows
type scanner interface {
	Scan(dest ...interface{}) error
}

func scanSession(s scanner) (*Session, error) {
	session := &Session{}
	var query string
	if err := s.Scan(&session.ID, &session.Source, &query, &session.CreatedAt, &session.UpdatedAt); err != nil {
		return nil, err
	}
	decoded, err := decodeQuery(query)
	if err != nil {
		return nil, err
	}
	session.Query = decoded
	return session, nil
}

func writeExport(writer io.Writer, all []*Session) error {
	export := &SessionExport{
		Version:    "1.0",
		ExportedAt: time.Now(),
		Count:      len(all),
		Sessions:   all,
	}
	encoder := json.NewEncoder(writer)
	encoder.SetIndent("", "  ")
	return encoder.Encode(export)
}

// importSessions saves the sessions of an export that store does not hold yet.
func importSessions(ctx context.Context, store Store, reader io.Reader) (imported int, skipped int, err error) {
	var export SessionExport
	if err := json.NewDecoder(reader).Decode(&export); err != nil {
		return 0, 0, fmt.Errorf("failed to decode JSON: %w", err)
	}

	for _, s := range export.Sessions {
		if s.ID != "" {
			existing, err := store.Get(ctx, s.ID)
			if err != nil {
				return imported, skipped, fmt.Errorf("failed to check existing: %w", err)
			}
			if existing != nil {
				skipped++
				continue
			}
		}
		if err := store.Save(ctx, s); err != nil {
			return imported, skipped, fmt.Errorf("failed to save: %w", err)
		}
		imported++
	}
	return imported, skipped, nil
}
