package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// File keeps the whole keyspace in a single JSON document on disk.
type File struct {
	filePath string
	mu       sync.RWMutex
	data     map[string]string
}

// OpenFile loads the document at filePath, creating its directory if needed.
// A corrupted document is moved aside to <filePath>.backup and the store
// starts empty.
func OpenFile(filePath string) (*File, error) {
	f := &File{
		filePath: filePath,
		data:     make(map[string]string),
	}

	// Create directory if it doesn't exist
	dir := filepath.Dir(filePath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create storage directory: %w", err)
	}

	raw, err := os.ReadFile(filePath)
	if os.IsNotExist(err) {
		return f, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read storage file: %w", err)
	}

	if err := json.Unmarshal(raw, &f.data); err != nil {
		// Corrupted file - backup and start fresh
		backupPath := filePath + ".backup"
		if err := os.Rename(filePath, backupPath); err != nil {
			return nil, fmt.Errorf("failed to back up corrupted storage file: %w", err)
		}
		f.data = make(map[string]string)
	}
	if f.data == nil {
		f.data = make(map[string]string)
	}

	return f, nil
}

func (f *File) Get(_ context.Context, key string) (string, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	v, ok := f.data[key]
	if !ok {
		return "", ErrNotFound
	}
	return v, nil
}

func (f *File) Set(_ context.Context, key, value string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	prev, existed := f.data[key]
	f.data[key] = value
	if err := f.saveUnlocked(); err != nil {
		if existed {
			f.data[key] = prev
		} else {
			delete(f.data, key)
		}
		return err
	}
	return nil
}

func (f *File) Remove(_ context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	prev, existed := f.data[key]
	if !existed {
		return nil
	}
	delete(f.data, key)
	if err := f.saveUnlocked(); err != nil {
		f.data[key] = prev
		return err
	}
	return nil
}

func (f *File) Keys(_ context.Context, prefix string) ([]string, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	keys := make([]string, 0, len(f.data))
	for k := range f.data {
		keys = append(keys, k)
	}
	return filterKeys(keys, prefix), nil
}

func (f *File) Close() error {
	return nil
}

// saveUnlocked saves without acquiring the lock (must be called with lock held)
func (f *File) saveUnlocked() error {
	data, err := json.MarshalIndent(f.data, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal storage: %w", err)
	}

	// Write to temp file
	tempPath := f.filePath + ".tmp"
	if err := os.WriteFile(tempPath, data, 0600); err != nil {
		return fmt.Errorf("failed to write temp file: %w", err)
	}

	// Atomic rename
	if err := os.Rename(tempPath, f.filePath); err != nil {
		return fmt.Errorf("failed to rename temp file: %w", err)
	}

	return nil
}
