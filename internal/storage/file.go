package storage

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"sync"
)

// FileStore is a JSONL-backed store. Every committed turn is one line, so a
// turn is either fully on disk or absent. Reads are served from the
// in-memory index.
type FileStore struct {
	*MemoryStore
	path     string
	mu       sync.Mutex
	f        *os.File
	size     int64 // length of the log up to the last committed line
	syncFile func(*os.File) error
}

func NewFileStore(path string) (*FileStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to ensure storage dir: %w", err)
	}
	mem := NewMemoryStore()
	good, err := replay(path, mem)
	if err != nil {
		return nil, err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to open storage file: %w", err)
	}
	s := &FileStore{MemoryStore: mem, path: path, f: f, syncFile: (*os.File).Sync}
	if err := s.repair(good); err != nil {
		_ = f.Close()
		return nil, err
	}
	return s, nil
}

// repair cuts a torn tail off the log so the next batch starts on its own
// line. good is the offset just past the last readable line.
func (s *FileStore) repair(good int64) error {
	st, err := s.f.Stat()
	if err != nil {
		return fmt.Errorf("stat storage file: %w", err)
	}
	if st.Size() > good {
		log.Printf("storage: truncating %d trailing bytes of %s", st.Size()-good, s.path)
		if err := s.f.Truncate(good); err != nil {
			return fmt.Errorf("truncate torn tail: %w", err)
		}
	}
	s.size = good
	if good == 0 {
		return nil
	}
	// The last good line may have lost its newline.
	last := make([]byte, 1)
	r, err := os.Open(s.path)
	if err != nil {
		return fmt.Errorf("open read: %w", err)
	}
	defer func(r *os.File) {
		_ = r.Close()
	}(r)
	if _, err := r.ReadAt(last, good-1); err != nil {
		return fmt.Errorf("read tail: %w", err)
	}
	if last[0] != '\n' {
		if _, err := s.f.Write([]byte{'\n'}); err != nil {
			return fmt.Errorf("terminate last line: %w", err)
		}
		s.size++
	}
	return nil
}

// replay loads every readable line into mem and returns the offset just past
// the last one. Unreadable lines are skipped.
func replay(path string, mem *MemoryStore) (int64, error) {
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("open read: %w", err)
	}
	defer func(f *os.File) {
		_ = f.Close()
	}(f)

	r := bufio.NewReaderSize(f, 1024*1024)
	mem.mu.Lock()
	defer mem.mu.Unlock()
	var (
		offset, good int64
		line         int
	)
	for {
		raw, err := r.ReadBytes('\n')
		if len(raw) > 0 {
			line++
			offset += int64(len(raw))
			if data := bytes.TrimSpace(raw); len(data) > 0 {
				var b batch
				if uerr := json.Unmarshal(data, &b); uerr != nil {
					log.Printf("storage: skipping unreadable line %d in %s: %v", line, path, uerr)
				} else {
					mem.applyLocked(b)
					good = offset
				}
			} else {
				good = offset
			}
		}
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return 0, fmt.Errorf("scan: %w", err)
		}
	}
	return good, nil
}

func (s *FileStore) WithTx(ctx context.Context, fn func(Tx) error) error {
	return s.MemoryStore.commit(ctx, fn, s.write)
}

func (s *FileStore) CompleteTask(ctx context.Context, sessionID, id string) (Artifact, error) {
	return s.MemoryStore.complete(ctx, sessionID, id, s.write)
}

// write appends b as one line. On failure the log is cut back to its previous
// length so a batch reported as failed never comes back on replay.
func (s *FileStore) write(b batch) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, err := json.Marshal(b)
	if err != nil {
		return fmt.Errorf("encode batch: %w", err)
	}
	data = append(data, '\n')
	if _, err := s.f.Write(data); err != nil {
		return s.rollback(fmt.Errorf("append batch: %w", err))
	}
	if err := s.syncFile(s.f); err != nil {
		return s.rollback(fmt.Errorf("sync storage file: %w", err))
	}
	s.size += int64(len(data))
	return nil
}

func (s *FileStore) rollback(cause error) error {
	if err := s.f.Truncate(s.size); err != nil {
		return errors.Join(cause, fmt.Errorf("truncate after failed append: %w", err))
	}
	return cause
}

func (s *FileStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.f.Close()
}
