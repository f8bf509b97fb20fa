package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/solatis/lumen/internal/profile"
	"github.com/solatis/lumen/internal/types"
)

// ProfileSummary describes a stored profile without its document.
type ProfileSummary struct {
	Name         string    `db:"name" json:"name"`
	Version      int       `db:"version" json:"version"`
	ElementCount int       `db:"element_count" json:"element_count"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`
}

// ProfileStore persists profile documents in their canonical JSON encoding.
type ProfileStore struct {
	queries *Queries
	now     func() time.Time
}

// NewProfileStore creates a store over loaded queries.
func NewProfileStore(queries *Queries) *ProfileStore {
	return &ProfileStore{
		queries: queries,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// Save inserts or replaces the profile named doc.Name.
// The document is validated by re-decoding its encoding before it is stored.
func (s *ProfileStore) Save(ctx context.Context, doc *profile.Document) error {
	data, err := profile.Encode(doc, profile.FormatJSON)
	if err != nil {
		return err
	}
	if _, err := profile.Decode(data, profile.FormatJSON); err != nil {
		return err
	}

	now := s.now()
	_, err = s.queries.Exec(ctx, "upsert-profile",
		doc.Name, profile.CurrentVersion, len(doc.Elements), string(data), now, now)
	if err != nil {
		return fmt.Errorf("save profile %q: %w", doc.Name, err)
	}
	return nil
}

// Get loads and decodes the profile called name.
// Returns types.ErrProfileNotFound if there is none.
func (s *ProfileStore) Get(ctx context.Context, name string) (*profile.Document, error) {
	var row struct {
		ProfileSummary
		Document string `db:"document"`
	}
	err := s.queries.Get(ctx, "get-profile", &row, name)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", types.ErrProfileNotFound, name)
	}
	if err != nil {
		return nil, fmt.Errorf("get profile %q: %w", name, err)
	}
	return profile.Decode([]byte(row.Document), profile.FormatJSON)
}

// List returns every stored profile ordered by name.
func (s *ProfileStore) List(ctx context.Context) ([]ProfileSummary, error) {
	var out []ProfileSummary
	if err := s.queries.Select(ctx, "list-profiles", &out); err != nil {
		return nil, fmt.Errorf("list profiles: %w", err)
	}
	return out, nil
}

// Delete removes the profile called name.
// Returns types.ErrProfileNotFound if there is none.
func (s *ProfileStore) Delete(ctx context.Context, name string) error {
	res, err := s.queries.Exec(ctx, "delete-profile", name)
	if err != nil {
		return fmt.Errorf("delete profile %q: %w", name, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%w: %s", types.ErrProfileNotFound, name)
	}
	return nil
}
