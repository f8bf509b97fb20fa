package db

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/jmoiron/sqlx"

	"github.com/solatis/lumen/internal/display"
	"github.com/solatis/lumen/internal/profile"
	"github.com/solatis/lumen/internal/timeline"
	"github.com/solatis/lumen/internal/types"
)

func openTestDB(t *testing.T) *sqlx.DB {
	t.Helper()
	ctx := context.Background()
	db, err := Open(ctx, "sqlite://"+filepath.Join(t.TempDir(), "lumen.db"))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	if _, err := MigrateUp(ctx, db); err != nil {
		t.Fatalf("MigrateUp failed: %v", err)
	}
	return db
}

func TestParseURL(t *testing.T) {
	tests := []struct {
		name       string
		url        string
		wantDriver string
		wantSource string
		wantErr    bool
	}{
		{"relative sqlite", "sqlite://lumen.db", "sqlite3", "lumen.db?_foreign_keys=on&_busy_timeout=5000", false},
		{"absolute sqlite", "sqlite:///var/lib/lumen.db", "sqlite3", "/var/lib/lumen.db?_foreign_keys=on&_busy_timeout=5000", false},
		{"postgres", "postgres://u:p@db:5432/lumen?sslmode=disable", "postgres", "postgres://u:p@db:5432/lumen?sslmode=disable", false},
		{"empty sqlite path", "sqlite://", "", "", true},
		{"unknown scheme", "mysql://db/lumen", "", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			driver, source, err := parseURL(tt.url)
			if (err != nil) != tt.wantErr {
				t.Fatalf("parseURL() error = %v, wantErr %v", err, tt.wantErr)
			}
			if driver != tt.wantDriver || source != tt.wantSource {
				t.Errorf("parseURL() = (%q, %q), want (%q, %q)", driver, source, tt.wantDriver, tt.wantSource)
			}
		})
	}
}

func TestSplitStatements(t *testing.T) {
	sql := "-- header\nCREATE TABLE a (x TEXT);\n\n-- second\nCREATE INDEX i ON a (x);\n"
	got := splitStatements(sql)
	if len(got) != 2 {
		t.Fatalf("splitStatements() returned %d statements: %q", len(got), got)
	}
	if got[0] != "CREATE TABLE a (x TEXT)" {
		t.Errorf("first statement = %q", got[0])
	}
}

func TestMigrate(t *testing.T) {
	ctx := context.Background()
	db, err := Open(ctx, "sqlite://"+filepath.Join(t.TempDir(), "lumen.db"))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer db.Close()

	before, err := MigrateStatus(ctx, db)
	if err != nil {
		t.Fatalf("MigrateStatus failed: %v", err)
	}
	if len(before) == 0 {
		t.Fatal("no embedded migrations")
	}
	for _, s := range before {
		if s.Applied {
			t.Errorf("migration %s applied before MigrateUp", s.ID)
		}
	}

	ran, err := MigrateUp(ctx, db)
	if err != nil {
		t.Fatalf("MigrateUp failed: %v", err)
	}
	if len(ran) != len(before) {
		t.Errorf("MigrateUp ran %d migrations, want %d", len(ran), len(before))
	}

	again, err := MigrateUp(ctx, db)
	if err != nil {
		t.Fatalf("second MigrateUp failed: %v", err)
	}
	if len(again) != 0 {
		t.Errorf("second MigrateUp ran %v", again)
	}

	after, err := MigrateStatus(ctx, db)
	if err != nil {
		t.Fatalf("MigrateStatus failed: %v", err)
	}
	for _, s := range after {
		if !s.Applied || s.AppliedAt == nil {
			t.Errorf("migration %s: applied=%v at=%v", s.ID, s.Applied, s.AppliedAt)
		}
	}

	if _, err := db.Exec("UPDATE migrations SET checksum = 'tampered' WHERE migration_id = ?", after[0].ID); err != nil {
		t.Fatal(err)
	}
	if _, err := MigrateUp(ctx, db); err == nil {
		t.Error("MigrateUp accepted a tampered checksum")
	}
}

func testDocument(name string) *profile.Document {
	return &profile.Document{
		Name: name,
		Elements: []profile.ElementEntity{
			{
				ID:        types.ElementID("0190c1a8-0000-7000-8000-000000000001"),
				Name:      "hud",
				Timeline:  timeline.Entity{MainMS: 1000},
				Condition: display.ConditionEntity{Kind: display.KindAlwaysOn},
			},
			{
				ID:        types.ElementID("0190c1a8-0000-7000-8000-000000000002"),
				Name:      "flash",
				ParentID:  types.ElementID("0190c1a8-0000-7000-8000-000000000001"),
				Timeline:  timeline.Entity{StartMS: 100, MainMS: 300, EndMS: 100},
				Condition: display.ConditionEntity{Kind: display.KindPlayOnce},
			},
		},
	}
}

func TestProfileStore(t *testing.T) {
	ctx := context.Background()
	queries, err := LoadQueries(openTestDB(t))
	if err != nil {
		t.Fatalf("LoadQueries failed: %v", err)
	}
	store := NewProfileStore(queries)

	if err := store.Save(ctx, testDocument("racing")); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if err := store.Save(ctx, testDocument("ambient")); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	got, err := store.Get(ctx, "racing")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.Version != profile.CurrentVersion || len(got.Elements) != 2 {
		t.Errorf("Get() = version %d with %d elements", got.Version, len(got.Elements))
	}
	if got.Elements[1].Timeline.StartMS != 100 {
		t.Errorf("timeline not preserved: %+v", got.Elements[1].Timeline)
	}

	// Saving again replaces the document
	smaller := testDocument("racing")
	smaller.Elements = smaller.Elements[:1]
	if err := store.Save(ctx, smaller); err != nil {
		t.Fatalf("Save (replace) failed: %v", err)
	}

	list, err := store.List(ctx)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(list) != 2 || list[0].Name != "ambient" || list[1].Name != "racing" {
		t.Fatalf("List() = %+v", list)
	}
	if list[1].ElementCount != 1 {
		t.Errorf("racing element_count = %d, want 1", list[1].ElementCount)
	}
	if list[1].UpdatedAt.IsZero() {
		t.Error("updated_at not set")
	}

	if err := store.Delete(ctx, "ambient"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if _, err := store.Get(ctx, "ambient"); !errors.Is(err, types.ErrProfileNotFound) {
		t.Errorf("Get after Delete error = %v, want ErrProfileNotFound", err)
	}
	if err := store.Delete(ctx, "ambient"); !errors.Is(err, types.ErrProfileNotFound) {
		t.Errorf("second Delete error = %v, want ErrProfileNotFound", err)
	}
}

func TestProfileStore_RejectsInvalid(t *testing.T) {
	queries, err := LoadQueries(openTestDB(t))
	if err != nil {
		t.Fatalf("LoadQueries failed: %v", err)
	}
	store := NewProfileStore(queries)

	doc := testDocument("broken")
	doc.Elements[1].ParentID = types.ElementID("0190c1a8-0000-7000-8000-0000000000ff")

	if err := store.Save(context.Background(), doc); !errors.Is(err, types.ErrInvalidProfile) {
		t.Errorf("Save() error = %v, want ErrInvalidProfile", err)
	}
}
