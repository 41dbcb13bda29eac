package migrations

import (
	"database/sql"
	"path/filepath"
	"strings"
	"testing"

	_ "modernc.org/sqlite"
)

func openSQLite(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", filepath.Join(t.TempDir(), "m.db"))
	if err != nil {
		t.Fatal(err)
	}
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestCheckFreshDatabaseNeedsMigration(t *testing.T) {
	db := openSQLite(t)

	s, err := Check(db, SQLite)
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	if !s.NeedsMigration || s.Compatible {
		t.Errorf("status = %+v", s)
	}
	if !strings.Contains(Describe(s), "migrate up") {
		t.Errorf("Describe = %q", Describe(s))
	}
}

func TestUpIsIdempotentAndCompatible(t *testing.T) {
	db := openSQLite(t)

	for i := 0; i < 2; i++ {
		if err := Up(db, SQLite); err != nil {
			t.Fatalf("Up #%d: %v", i+1, err)
		}
	}
	if err := db.Ping(); err != nil {
		t.Fatalf("db closed by migrator: %v", err)
	}

	s, err := Check(db, SQLite)
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	if !s.Compatible || s.CurrentVersion != RequiredVersion {
		t.Errorf("status = %+v", s)
	}

	var n int
	if err := db.QueryRow(`SELECT COUNT(*) FROM messages`).Scan(&n); err != nil {
		t.Fatalf("messages table missing: %v", err)
	}
}

func TestUnknownBackend(t *testing.T) {
	db := openSQLite(t)
	if _, err := New(db, "oracle"); err == nil {
		t.Fatal("expected error for unknown backend")
	}
}

func TestDescribe(t *testing.T) {
	tests := []struct {
		s    SchemaStatus
		want string
	}{
		{SchemaStatus{CurrentVersion: 2, Dirty: true}, "migrate force 1"},
		{SchemaStatus{CurrentVersion: 1, RequiredVersion: 1, Compatible: true}, "up to date"},
		{SchemaStatus{CurrentVersion: 3, RequiredVersion: 1}, "newer than this binary"},
	}
	for _, tt := range tests {
		if got := Describe(&tt.s); !strings.Contains(got, tt.want) {
			t.Errorf("Describe(%+v) = %q, want substring %q", tt.s, got, tt.want)
		}
	}
}
