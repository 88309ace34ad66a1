package storage

import (
	"context"
	"fmt"
	"log"
)

// Open builds the store selected by backend ("memory", "file" or "postgres").
func Open(ctx context.Context, backend, filePath, dsn string) (Store, error) {
	switch backend {
	case "", "memory":
		log.Printf("storage: using in-memory store")
		return NewMemoryStore(), nil
	case "file":
		log.Printf("storage: using file store at %s", filePath)
		return NewFileStore(filePath)
	case "postgres":
		db, err := Connect(ctx, dsn)
		if err != nil {
			return nil, fmt.Errorf("connect postgres: %w", err)
		}
		s := NewPostgresStore(db)
		if err := s.EnsureSchema(ctx); err != nil {
			_ = s.Close()
			return nil, err
		}
		log.Printf("storage: using postgres store")
		return s, nil
	default:
		return nil, fmt.Errorf("unknown storage backend %q", backend)
	}
}
