// Package idgen implements persistent, monotonically increasing issue ID
// allocation. The high-water mark lives in .ams/meta.json so a restart does
// not require a full log scan; if the meta file is missing or corrupt the
// allocator falls back to scanning the log for the maximum existing ID.
package idgen

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

const (
	// MetaFile is the counter file name inside the .ams directory.
	MetaFile = "meta.json"
	// Version is written into the meta file for forward compatibility.
	Version = "1.0"
)

// meta is the on-disk counter format, shared with the original tool:
// {"next_id": 7, "version": "1.0"}.
type meta struct {
	NextID  int    `json:"next_id"`
	Version string `json:"version"`
}

// Allocator hands out fresh issue IDs, durably persisting the new high-water
// mark before each ID reaches the caller so a crash between allocation and
// use never causes reuse.
type Allocator struct {
	path string
	// scan recovers the maximum existing ID from the log when the meta
	// file is unusable. Never fail creation outright over missing counter
	// state.
	scan func() (int, error)
}

// New creates an Allocator for the .ams directory at dir. scan is consulted
// only when the meta file is missing or corrupt.
func New(dir string, scan func() (int, error)) *Allocator {
	return &Allocator{
		path: filepath.Join(dir, MetaFile),
		scan: scan,
	}
}

// Init writes the initial counter file if it does not exist.
func (a *Allocator) Init() error {
	if _, err := os.Stat(a.path); err == nil {
		return nil
	}
	return writeMetaAtomic(a.path, meta{NextID: 1, Version: Version})
}

// Next returns a fresh ID strictly greater than any previously returned or
// loaded value. The incremented counter is flushed to disk before the ID is
// handed to the caller.
func (a *Allocator) Next() (int, error) {
	m, err := a.load()
	if err != nil {
		return 0, err
	}

	id := m.NextID
	m.NextID = id + 1
	if err := writeMetaAtomic(a.path, m); err != nil {
		return 0, fmt.Errorf("persisting id counter: %w", err)
	}
	return id, nil
}

// EnsureAtLeast raises the persisted counter so the next allocated ID is at
// least min. Used after load to reconcile the counter with the log, keeping
// the two sources in agreement.
func (a *Allocator) EnsureAtLeast(min int) error {
	m, err := a.load()
	if err != nil {
		return err
	}
	if m.NextID >= min {
		return nil
	}
	m.NextID = min
	return writeMetaAtomic(a.path, m)
}

// load reads the counter, recovering via the log scan when the meta file is
// missing, unreadable, or holds an implausible value.
func (a *Allocator) load() (meta, error) {
	data, err := os.ReadFile(a.path)
	if err == nil {
		var m meta
		if jsonErr := json.Unmarshal(data, &m); jsonErr == nil && m.NextID >= 1 {
			return m, nil
		}
	}

	max, err := a.scan()
	if err != nil {
		return meta{}, fmt.Errorf("recovering id counter from log: %w", err)
	}
	return meta{NextID: max + 1, Version: Version}, nil
}

// writeMetaAtomic writes the counter via a unique temp file, fsync, and
// rename so the meta file is never observed half-written.
func writeMetaAtomic(path string, m meta) error {
	randBytes := make([]byte, 8)
	if _, err := rand.Read(randBytes); err != nil {
		return fmt.Errorf("generating random suffix: %w", err)
	}
	tmp := path + ".tmp." + hex.EncodeToString(randBytes)

	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_WRONLY|os.O_EXCL, 0644)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	if err := enc.Encode(m); err != nil {
		f.Close()
		os.Remove(tmp)
		return err
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return err
	}

	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return err
	}
	return nil
}
