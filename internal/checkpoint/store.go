package checkpoint

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
)

// KeyFunc returns the identity of a record. Records with an empty key are stored
// but never marked as seen.
type KeyFunc[T any] func(T) string

// Store is an append-only JSON-lines file with an in-memory key set. One Store per
// file per process; there is no cross-process locking.
type Store[T any] struct {
	path string
	key  KeyFunc[T]

	mu      sync.Mutex
	seen    map[string]struct{}
	records []T
	skipped int
	// set when the file does not end in a newline (torn tail)
	needsNewline bool
}

// Open loads path (a missing file is empty) and returns a store keyed by key.
// The parent directory is created if needed.
func Open[T any](path string, key KeyFunc[T]) (*Store[T], error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, &Error{Path: path, Message: "failed to create directory", Cause: err}
		}
	}

	records, skipped, err := Load[T](path)
	if err != nil {
		return nil, err
	}

	needsNewline, err := endsWithoutNewline(path)
	if err != nil {
		return nil, err
	}

	s := &Store[T]{
		path:         path,
		key:          key,
		seen:         make(map[string]struct{}, len(records)),
		records:      records,
		skipped:      skipped,
		needsNewline: needsNewline,
	}
	for _, rec := range records {
		if k := key(rec); k != "" {
			s.seen[k] = struct{}{}
		}
	}
	return s, nil
}

// Load reads every well-formed line of path in file order. Blank lines are
// ignored; malformed lines (such as a torn final line) are skipped and counted.
// A missing file yields no records and no error.
func Load[T any](path string) (records []T, skipped int, err error) {
	f, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, 0, nil
	}
	if err != nil {
		return nil, 0, &Error{Path: path, Message: "failed to open", Cause: err}
	}
	defer func() { _ = f.Close() }()

	reader := bufio.NewReader(f)
	for {
		line, readErr := reader.ReadBytes('\n')
		line = bytes.TrimSpace(line)
		if len(line) > 0 {
			var rec T
			if jsonErr := json.Unmarshal(line, &rec); jsonErr != nil {
				skipped++
			} else {
				records = append(records, rec)
			}
		}
		if readErr != nil {
			if errors.Is(readErr, io.EOF) {
				break
			}
			return nil, 0, &Error{Path: path, Message: "failed to read", Cause: readErr}
		}
	}
	return records, skipped, nil
}

func endsWithoutNewline(path string) (bool, error) {
	f, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, &Error{Path: path, Message: "failed to open", Cause: err}
	}
	defer func() { _ = f.Close() }()

	info, err := f.Stat()
	if err != nil {
		return false, &Error{Path: path, Message: "failed to stat", Cause: err}
	}
	if info.Size() == 0 {
		return false, nil
	}
	last := make([]byte, 1)
	if _, err := f.ReadAt(last, info.Size()-1); err != nil {
		return false, &Error{Path: path, Message: "failed to read", Cause: err}
	}
	return last[0] != '\n', nil
}

// Path returns the file backing the store.
func (s *Store[T]) Path() string {
	return s.path
}

// AlreadySeen reports whether a record with key has been loaded or appended.
func (s *Store[T]) AlreadySeen(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.seen[key]
	return ok
}

// Append writes rec as one line and syncs the file before returning. The line is
// written with a single write call while holding the store lock.
func (s *Store[T]) Append(rec T) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return &Error{Path: s.path, Message: "failed to encode record", Cause: err}
	}
	data = append(data, '\n')

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.needsNewline {
		data = append([]byte{'\n'}, data...)
	}

	f, err := os.OpenFile(s.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return &Error{Path: s.path, Message: "failed to open for append", Cause: err}
	}
	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		return &Error{Path: s.path, Message: "failed to append", Cause: err}
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		return &Error{Path: s.path, Message: "failed to sync", Cause: err}
	}
	if err := f.Close(); err != nil {
		return &Error{Path: s.path, Message: "failed to close", Cause: err}
	}

	s.needsNewline = false
	if k := s.key(rec); k != "" {
		s.seen[k] = struct{}{}
	}
	s.records = append(s.records, rec)
	return nil
}

// Records returns a copy of every record in file order, loaded and appended.
func (s *Store[T]) Records() []T {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]T, len(s.records))
	copy(out, s.records)
	return out
}

// Len returns the number of records held.
func (s *Store[T]) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records)
}

// Skipped returns how many malformed lines were ignored at open.
func (s *Store[T]) Skipped() int {
	return s.skipped
}
