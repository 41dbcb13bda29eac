package migrations

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
)

// SchemaStatus is the result of a schema compatibility check.
type SchemaStatus struct {
	Backend         string
	CurrentVersion  uint
	RequiredVersion uint
	Dirty           bool
	Compatible      bool
	NeedsMigration  bool
}

// Check reads the applied schema version for db without changing it.
// Like Up, it leaves db open.
func Check(db *sql.DB, backend string) (*SchemaStatus, error) {
	m, err := New(db, backend)
	if err != nil {
		return nil, err
	}

	s := &SchemaStatus{Backend: backend, RequiredVersion: RequiredVersion}
	v, dirty, err := m.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		s.NeedsMigration = true
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read schema version: %w", err)
	}

	s.CurrentVersion = v
	s.Dirty = dirty
	if dirty {
		return s, nil
	}
	switch {
	case v == RequiredVersion:
		s.Compatible = true
	case v < RequiredVersion:
		s.NeedsMigration = true
	}
	return s, nil
}

// Describe renders the status as a short human-readable line with a fix hint.
func Describe(s *SchemaStatus) string {
	switch {
	case s.Dirty:
		return fmt.Sprintf("dirty at v%d (a migration failed partway; run: tgrelay migrate force %d)",
			s.CurrentVersion, s.CurrentVersion-1)
	case s.Compatible:
		return fmt.Sprintf("v%d (up to date)", s.CurrentVersion)
	case s.NeedsMigration:
		return fmt.Sprintf("v%d, requires v%d (run: tgrelay migrate up)", s.CurrentVersion, s.RequiredVersion)
	default:
		return fmt.Sprintf("v%d is newer than this binary (requires v%d); upgrade tgrelay", s.CurrentVersion, s.RequiredVersion)
	}
}
