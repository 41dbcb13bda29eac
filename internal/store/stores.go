package store

// Backend names for StoreConfig.Driver.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// StoreConfig selects and locates the queue backend.
// PostgresDSN is only populated from the environment.
type StoreConfig struct {
	Driver      string // "sqlite" (default) or "postgres"
	Path        string // SQLite file path
	PostgresDSN string
}

// Stores is the top-level container for storage backends.
type Stores struct {
	Queue MessageQueue
}

// Close releases every backend.
func (s *Stores) Close() error {
	if s == nil || s.Queue == nil {
		return nil
	}
	return s.Queue.Close()
}
