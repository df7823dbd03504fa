package datastore

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Config holds configuration options for the DataStore
type Config struct {
	FilePath    string
	BackupCount int // Number of backup files to keep
	Logger      zerolog.Logger
}

// DefaultConfig returns a default configuration
func DefaultConfig(filePath string) *Config {
	return &Config{
		FilePath:    filePath,
		BackupCount: 3,
		Logger:      zerolog.Nop(),
	}
}

// DataStore persists a single document to one file. Writes go through a
// temporary file and a rename so a crash never leaves a half-written document.
type DataStore struct {
	file         string
	mu           sync.Mutex
	config       *Config
	lastChecksum string
	closed       bool
}

// New creates a new DataStore with default configuration
func New(filePath string) (*DataStore, error) {
	return NewWithConfig(DefaultConfig(filePath))
}

// NewWithConfig creates a new DataStore with custom configuration
func NewWithConfig(config *Config) (*DataStore, error) {
	if config == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}

	if config.FilePath == "" {
		return nil, fmt.Errorf("file path cannot be empty")
	}

	dir := filepath.Dir(config.FilePath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	return &DataStore{
		file:   config.FilePath,
		config: config,
	}, nil
}

// Path returns the document location on disk.
func (ds *DataStore) Path() string {
	return ds.file
}

// Read returns the current document. A missing file is created with an empty
// object and that content is returned.
func (ds *DataStore) Read() ([]byte, error) {
	ds.mu.Lock()
	defer ds.mu.Unlock()

	if ds.closed {
		return nil, fmt.Errorf("datastore is closed")
	}

	data, err := os.ReadFile(ds.file)
	if os.IsNotExist(err) {
		empty := []byte("{}")
		if err := ds.writeFileAtomic(empty); err != nil {
			return nil, fmt.Errorf("failed to create empty document: %w", err)
		}
		ds.lastChecksum = calculateChecksum(empty)
		return empty, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	ds.lastChecksum = calculateChecksum(data)
	return data, nil
}

// Write persists data and reports whether anything was written. Content equal
// to the last read or written document is skipped.
func (ds *DataStore) Write(data []byte) (bool, error) {
	ds.mu.Lock()
	defer ds.mu.Unlock()

	if ds.closed {
		return false, fmt.Errorf("datastore is closed")
	}

	checksum := calculateChecksum(data)
	if checksum == ds.lastChecksum {
		return false, nil
	}

	if ds.config.BackupCount > 0 {
		if err := ds.createBackup(); err != nil {
			ds.config.Logger.Warn().Err(err).Str("file", ds.file).Msg("failed to create backup")
		}
	}

	if err := ds.writeFileAtomic(data); err != nil {
		return false, err
	}

	if err := ds.verifyFile(checksum); err != nil {
		return false, fmt.Errorf("file verification failed: %w", err)
	}

	ds.lastChecksum = checksum
	return true, nil
}

// Changed reports whether the file on disk differs from what this store last
// read or wrote, i.e. whether someone else edited it.
func (ds *DataStore) Changed() (bool, error) {
	ds.mu.Lock()
	defer ds.mu.Unlock()

	data, err := os.ReadFile(ds.file)
	if err != nil {
		return false, err
	}
	return calculateChecksum(data) != ds.lastChecksum, nil
}

// Checksum returns the checksum of the last persisted document.
func (ds *DataStore) Checksum() string {
	ds.mu.Lock()
	defer ds.mu.Unlock()
	return ds.lastChecksum
}

// Close marks the store closed. Further reads and writes fail.
func (ds *DataStore) Close() error {
	ds.mu.Lock()
	defer ds.mu.Unlock()
	ds.closed = true
	return nil
}

// writeFileAtomic performs atomic file write using temporary file and rename
func (ds *DataStore) writeFileAtomic(data []byte) error {
	tmpFile := ds.file + ".tmp"

	file, err := os.OpenFile(tmpFile, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return fmt.Errorf("failed to open temp file: %w", err)
	}

	if _, err := file.Write(data); err != nil {
		file.Close()
		os.Remove(tmpFile)
		return fmt.Errorf("failed to write to temp file: %w", err)
	}

	if err := file.Sync(); err != nil {
		file.Close()
		os.Remove(tmpFile)
		return fmt.Errorf("failed to sync temp file: %w", err)
	}
	file.Close()

	if err := os.Rename(tmpFile, ds.file); err != nil {
		os.Remove(tmpFile)
		return fmt.Errorf("failed to rename temp file: %w", err)
	}

	return nil
}

func (ds *DataStore) verifyFile(expected string) error {
	actualData, err := os.ReadFile(ds.file)
	if err != nil {
		return fmt.Errorf("failed to read file for verification: %w", err)
	}

	if calculateChecksum(actualData) != expected {
		return fmt.Errorf("file checksum mismatch")
	}

	return nil
}

// createBackup creates a timestamped backup of the current file
func (ds *DataStore) createBackup() error {
	if _, err := os.Stat(ds.file); os.IsNotExist(err) {
		return nil
	}

	timestamp := time.Now().Format("20060102_150405.000000000")
	backupFile := fmt.Sprintf("%s.backup.%s", ds.file, timestamp)

	src, err := os.Open(ds.file)
	if err != nil {
		return err
	}
	defer src.Close()

	dst, err := os.Create(backupFile)
	if err != nil {
		return err
	}
	defer dst.Close()

	if _, err := io.Copy(dst, src); err != nil {
		return err
	}

	ds.cleanupOldBackups()
	return nil
}

// cleanupOldBackups removes old backup files beyond the configured limit
func (ds *DataStore) cleanupOldBackups() {
	matches, err := filepath.Glob(ds.file + ".backup.*")
	if err != nil || len(matches) <= ds.config.BackupCount {
		return
	}

	// timestamps sort lexically
	sort.Strings(matches)
	for _, path := range matches[:len(matches)-ds.config.BackupCount] {
		os.Remove(path)
	}
}

func calculateChecksum(data []byte) string {
	hash := sha256.Sum256(data)
	return hex.EncodeToString(hash[:])
}
