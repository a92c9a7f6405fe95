// Package appendlog implements durable issue persistence as a line-oriented
// JSONL append log. Each record is one self-contained JSON object per line;
// an update appends a superseding record for the same ID, and reload resolves
// duplicates with last-record-wins. The log is the sole source of truth after
// a crash.
package appendlog

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"ams/internal/issuestorage"

	"github.com/gofrs/flock"
)

const (
	// IssuesFile is the log file name inside the .ams directory.
	IssuesFile = "issues.jsonl"
	// LockFile guards mutating operations against concurrent invocations.
	LockFile = "issues.jsonl.lock"

	// DefaultLockTimeout bounds the wait for the mutation lock.
	DefaultLockTimeout = 3 * time.Second
	// lockRetryDelay is the poll interval while waiting for the lock.
	lockRetryDelay = 25 * time.Millisecond
)

// Log provides append and full-reload access to the issues log file.
type Log struct {
	dir         string // path to the .ams directory
	lockTimeout time.Duration
}

// Option configures a Log.
type Option func(*Log)

// WithLockTimeout overrides the bounded wait for the mutation lock.
func WithLockTimeout(d time.Duration) Option {
	return func(l *Log) {
		if d > 0 {
			l.lockTimeout = d
		}
	}
}

// New creates a Log rooted at the given .ams directory.
func New(dir string, opts ...Option) *Log {
	l := &Log{
		dir:         dir,
		lockTimeout: DefaultLockTimeout,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Dir returns the .ams directory this log lives in.
func (l *Log) Dir() string { return l.dir }

// Path returns the full path of the log file.
func (l *Log) Path() string { return filepath.Join(l.dir, IssuesFile) }

func (l *Log) lockPath() string { return filepath.Join(l.dir, LockFile) }

// Init creates the .ams directory and an empty log file if absent.
func (l *Log) Init(ctx context.Context) error {
	if err := os.MkdirAll(l.dir, 0755); err != nil {
		return err
	}
	f, err := os.OpenFile(l.Path(), os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}
	return f.Close()
}

// Lock acquires the advisory mutation lock with a bounded wait and returns
// a release function. Two concurrent invocations can therefore never
// interleave appends. Read-only operations do not take the lock.
func (l *Log) Lock(ctx context.Context) (release func(), err error) {
	fl := flock.New(l.lockPath())

	lockCtx, cancel := context.WithTimeout(ctx, l.lockTimeout)
	defer cancel()

	locked, err := fl.TryLockContext(lockCtx, lockRetryDelay)
	if err != nil && lockCtx.Err() == nil {
		return nil, fmt.Errorf("acquiring lock %s: %w", l.lockPath(), err)
	}
	if !locked {
		return nil, fmt.Errorf("%s held by another process after %v: %w",
			l.lockPath(), l.lockTimeout, issuestorage.ErrLockTimeout)
	}
	return func() { _ = fl.Unlock() }, nil
}

// LoadAll reads every record in file order and folds them into the
// authoritative issue set, keeping only the last occurrence per ID.
// A record that fails to parse is a hard CorruptLogError for the whole
// load, except for a trailing line left unterminated by a crashed append,
// which is detectable and ignored.
func (l *Log) LoadAll(ctx context.Context) (map[int]*issuestorage.Issue, error) {
	f, err := os.Open(l.Path())
	if err != nil {
		if os.IsNotExist(err) {
			return map[int]*issuestorage.Issue{}, nil
		}
		return nil, err
	}
	defer f.Close()

	issues := make(map[int]*issuestorage.Issue)
	reader := bufio.NewReader(f)
	lineNum := 0

	for {
		line, readErr := reader.ReadString('\n')
		terminated := strings.HasSuffix(line, "\n")
		line = strings.TrimRight(line, "\n")
		if line != "" {
			lineNum++
			var issue issuestorage.Issue
			err := json.Unmarshal([]byte(line), &issue)
			if err == nil {
				err = issue.Validate()
			}
			if err != nil {
				if !terminated {
					// Partially written final record from a crashed
					// append; the flush discipline guarantees every
					// complete record ends in a newline.
					break
				}
				return nil, &issuestorage.CorruptLogError{Path: l.Path(), Line: lineNum, Err: err}
			}
			issue.NormalizeDependencies()
			issues[issue.ID] = &issue
		}
		if readErr != nil {
			break
		}
	}

	return issues, nil
}

// MaxID scans the log for the highest issue ID. Used to recover the
// identifier counter when the meta file is missing or corrupt.
func (l *Log) MaxID(ctx context.Context) (int, error) {
	issues, err := l.LoadAll(ctx)
	if err != nil {
		return 0, err
	}
	max := 0
	for id := range issues {
		if id > max {
			max = id
		}
	}
	return max, nil
}

// Append serializes one issue as a single line and durably appends it.
// The write is flushed to disk before Append returns, so the in-memory view
// only ever advances after the log does.
func (l *Log) Append(ctx context.Context, issue *issuestorage.Issue) error {
	if err := issue.Validate(); err != nil {
		return err
	}

	data, err := json.Marshal(issue)
	if err != nil {
		return fmt.Errorf("encoding issue %d: %w", issue.ID, err)
	}
	data = append(data, '\n')

	f, err := os.OpenFile(l.Path(), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return err
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		return fmt.Errorf("appending issue %d: %w", issue.ID, err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return fmt.Errorf("flushing issue %d: %w", issue.ID, err)
	}
	return f.Close()
}
