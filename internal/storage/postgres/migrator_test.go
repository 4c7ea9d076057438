package postgres

import (
	"strings"
	"testing"
	"testing/fstest"
)

func TestReadMigrations(t *testing.T) {
	fsys := fstest.MapFS{
		"sql/migrations/0002_add_index.up.sql":       {Data: []byte("CREATE INDEX idx ON orders (status);")},
		"sql/migrations/0002_add_index.down.sql":     {Data: []byte("DROP INDEX idx;")},
		"sql/migrations/0001_create_orders.up.sql":   {Data: []byte("CREATE TABLE orders ();")},
		"sql/migrations/0001_create_orders.down.sql": {Data: []byte("DROP TABLE orders;")},
	}

	migrations, err := readMigrations(fsys)
	if err != nil {
		t.Fatalf("read migrations failed: %v", err)
	}
	if len(migrations) != 2 {
		t.Fatalf("expected 2 migrations, got %d", len(migrations))
	}
	if migrations[0].Version != 1 || migrations[1].Version != 2 {
		t.Fatalf("migrations are not sorted by version: %v", migrations)
	}
	if migrations[0].Name != "create_orders" {
		t.Fatalf("unexpected migration name: %s", migrations[0].Name)
	}
	if migrations[0].UpSQL == "" || migrations[0].DownSQL == "" {
		t.Fatal("expected both up and down bodies to be loaded")
	}
}

func TestReadMigrations_Errors(t *testing.T) {
	tests := []struct {
		name    string
		fsys    fstest.MapFS
		wantErr string
	}{
		{
			name:    "empty filesystem",
			fsys:    fstest.MapFS{},
			wantErr: "no migration files",
		},
		{
			name: "missing down pair",
			fsys: fstest.MapFS{
				"sql/migrations/0001_create_orders.up.sql": {Data: []byte("CREATE TABLE orders ();")},
			},
			wantErr: "both up and down",
		},
		{
			name: "invalid file name",
			fsys: fstest.MapFS{
				"sql/migrations/create_orders.sql": {Data: []byte("CREATE TABLE orders ();")},
			},
			wantErr: "invalid migration file name",
		},
		{
			name: "empty body",
			fsys: fstest.MapFS{
				"sql/migrations/0001_create_orders.up.sql":   {Data: []byte("   \n")},
				"sql/migrations/0001_create_orders.down.sql": {Data: []byte("DROP TABLE orders;")},
			},
			wantErr: "empty",
		},
		{
			name: "name mismatch within version",
			fsys: fstest.MapFS{
				"sql/migrations/0001_create_orders.up.sql": {Data: []byte("CREATE TABLE orders ();")},
				"sql/migrations/0001_drop_orders.down.sql": {Data: []byte("DROP TABLE orders;")},
			},
			wantErr: "name mismatch",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := readMigrations(tc.fsys)
			if err == nil || !strings.Contains(err.Error(), tc.wantErr) {
				t.Fatalf("expected error containing %q, got %v", tc.wantErr, err)
			}
		})
	}
}

func TestParseMigrationName(t *testing.T) {
	version, name, direction, err := parseMigrationName("0003_add_items.down.sql")
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if version != 3 || name != "add_items" || direction != "down" {
		t.Fatalf("unexpected parse result: %d %s %s", version, name, direction)
	}

	if _, _, _, err := parseMigrationName("notes.txt"); err == nil {
		t.Fatal("expected error for foreign file name")
	}
}

func TestEmbeddedMigrationsAreWellFormed(t *testing.T) {
	migrations, err := readMigrations(migrationsFS)
	if err != nil {
		t.Fatalf("embedded migrations are broken: %v", err)
	}
	if len(migrations) == 0 {
		t.Fatal("expected at least one embedded migration")
	}
}
