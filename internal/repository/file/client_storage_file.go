package file

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"lexdesk/internal/repository"
)

// ClientStorageFile keeps the durable client slots in a single JSON document on disk.
// Every write replaces the file atomically (temp file + rename), so a crash never
// leaves a half-written slot behind. It is safe for concurrent use.
type ClientStorageFile struct {
	mu    sync.Mutex
	path  string
	slots map[string]string
}

var _ repository.ClientStorage = (*ClientStorageFile)(nil)

// NewClientStorageFile opens (or lazily creates) the storage file at path.
func NewClientStorageFile(path string) (*ClientStorageFile, error) {
	if path == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	s := &ClientStorageFile{path: path, slots: make(map[string]string)}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return s, nil
		}
		return nil, fmt.Errorf("read client storage: %w", err)
	}
	if len(data) == 0 {
		return s, nil
	}
	if err := json.Unmarshal(data, &s.slots); err != nil {
		return nil, fmt.Errorf("parse client storage: %w", err)
	}
	return s, nil
}

// Get returns the value of a slot.
func (s *ClientStorageFile) Get(ctx context.Context, key string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.slots[key]
	if !ok {
		return "", repository.ErrNotFound
	}
	return v, nil
}

// Set stores a slot and flushes the file before returning.
func (s *ClientStorageFile) Set(ctx context.Context, key, value string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	prev, had := s.slots[key]
	s.slots[key] = value
	if err := s.flush(); err != nil {
		// keep memory consistent with disk
		if had {
			s.slots[key] = prev
		} else {
			delete(s.slots, key)
		}
		return err
	}
	return nil
}

// Delete removes a slot. Missing keys are not an error.
func (s *ClientStorageFile) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	prev, had := s.slots[key]
	if !had {
		return nil
	}
	delete(s.slots, key)
	if err := s.flush(); err != nil {
		s.slots[key] = prev
		return err
	}
	return nil
}

func (s *ClientStorageFile) flush() error {
	data, err := json.Marshal(s.slots)
	if err != nil {
		return fmt.Errorf("encode client storage: %w", err)
	}
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("create storage dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".client-storage-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write client storage: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("sync client storage: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close client storage: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("replace client storage: %w", err)
	}
	return nil
}
