package persistence

import (
	"fmt"

	"github.com/appshell/engine/pkg/config"
)

// Open constructs the Adapter selected by cfg.Driver.
func Open(cfg config.PersistenceConfig) (Adapter, error) {
	switch cfg.Driver {
	case "", "memory":
		return NewMemory(), nil
	case "badger":
		return NewBadger(cfg.Badger)
	case "sqlite":
		return NewSQLite(cfg.SQLite)
	case "redis":
		return NewRedis(cfg.Redis)
	case "postgres":
		return NewPostgres(cfg.Postgres)
	default:
		return nil, fmt.Errorf("persistence: unknown driver %q", cfg.Driver)
	}
}
