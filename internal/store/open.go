package store

import (
	"context"
	"errors"
	"strings"

	logx "schoolbell/pkg/logx"
)

// Store is the durable key/value API shared by the scheduler checkpoint,
// the playback projection, and the network-health counters.
//
// Keys are flat strings namespaced by dotted prefixes (see types.go).
// Values are primitive scalars or small JSON lists rendered as strings.
type Store interface {
	Get(ctx context.Context, key string) (value string, ok bool, err error)
	Put(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
	AppendEvent(ctx context.Context, e Event) error
	Close() error
}

// Open initializes the configured store.
//
// Unlike optional subsystems, persistence is mandatory: running without a
// durable checkpoint risks duplicate playback after a crash, so any open
// failure must abort daemon startup.
func Open(cfg Config, log logx.Logger) (Store, error) {
	if log.IsZero() {
		log = logx.Nop()
	}

	driver := strings.ToLower(strings.TrimSpace(cfg.Driver))
	switch driver {
	case "", "sqlite", "sqlite3":
		return openSQLite(cfg, log)
	case "memory":
		log.Warn("using volatile in-memory store; checkpoints will not survive restart")
		return NewMemory(), nil
	default:
		return nil, errors.New("unknown store driver: " + driver)
	}
}
