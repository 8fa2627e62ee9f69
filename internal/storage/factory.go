package storage

import (
	"fmt"
	"strings"
)

const (
	KindMemory = "memory"
	KindSQLite = "sqlite"

	// DefaultSQLitePath is used when a sqlite store is requested without a path.
	DefaultSQLitePath = "autopoiesis.db"
)

// Kinds lists the backends NewStore understands, whether or not this build
// can open them.
func Kinds() []string {
	return []string{KindMemory, KindSQLite}
}

// NewStore opens the backend named by kind. An empty kind selects
// DefaultStoreKind; names are matched case-insensitively.
func NewStore(kind, sqlitePath string) (Store, error) {
	kind = strings.ToLower(strings.TrimSpace(kind))
	if kind == "" {
		kind = DefaultStoreKind()
	}
	switch kind {
	case KindMemory:
		return NewMemoryStore(), nil
	case KindSQLite:
		if sqlitePath == "" {
			sqlitePath = DefaultSQLitePath
		}
		return newSQLiteStore(sqlitePath)
	default:
		return nil, fmt.Errorf("unsupported store backend %q (want one of %s)", kind, strings.Join(Kinds(), "|"))
	}
}

func CloseIfSupported(store Store) error {
	closer, ok := store.(interface{ Close() error })
	if !ok {
		return nil
	}
	return closer.Close()
}
