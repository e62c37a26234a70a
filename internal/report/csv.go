// Package report writes the outreach CSV from the email checkpoint.
package report

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/jonathan/speaker-outreach/internal/types"
)

// WriteError represents a failure writing the report file.
type WriteError struct {
	Path    string
	Message string
	Cause   error
}

func (e *WriteError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("report %s: %s: %v", e.Path, e.Message, e.Cause)
	}
	return fmt.Sprintf("report %s: %s", e.Path, e.Message)
}

func (e *WriteError) Unwrap() error {
	return e.Cause
}

type rowKey struct {
	name    string
	company string
}

// Materialize turns email checkpoint records into report rows in file order,
// keeping the first record per URL. Records without a URL are dropped.
func Materialize(records []types.EmailRecord) []types.ReportRow {
	seen := make(map[string]struct{}, len(records))
	rows := make([]types.ReportRow, 0, len(records))
	for _, rec := range records {
		if rec.URL == "" {
			continue
		}
		if _, ok := seen[rec.URL]; ok {
			continue
		}
		seen[rec.URL] = struct{}{}
		rows = append(rows, rec.Row())
	}
	return rows
}

// Write appends rows to the CSV at path. The header is written only when the file
// is new or empty. Rows whose (speaker name, company) pair is already in the file,
// or earlier in rows, are skipped. Returns the number of rows written.
func Write(path string, rows []types.ReportRow) (int, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return 0, &WriteError{Path: path, Message: "failed to create directory", Cause: err}
		}
	}

	existing, hasContent, err := existingKeys(path)
	if err != nil {
		return 0, err
	}

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return 0, &WriteError{Path: path, Message: "failed to open", Cause: err}
	}
	defer func() { _ = f.Close() }()

	w := csv.NewWriter(f)
	if !hasContent {
		if err := w.Write(types.ReportHeader); err != nil {
			return 0, &WriteError{Path: path, Message: "failed to write header", Cause: err}
		}
	}

	written := 0
	for _, row := range rows {
		key := rowKey{name: row.SpeakerName, company: row.SpeakerCompany}
		if _, ok := existing[key]; ok {
			continue
		}
		existing[key] = struct{}{}
		if err := w.Write(row.Columns()); err != nil {
			return written, &WriteError{Path: path, Message: "failed to write row", Cause: err}
		}
		written++
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return written, &WriteError{Path: path, Message: "failed to flush", Cause: err}
	}
	if err := f.Sync(); err != nil {
		return written, &WriteError{Path: path, Message: "failed to sync", Cause: err}
	}
	return written, nil
}

// existingKeys reads the (name, company) pairs already in the report. An
// unreadable body is treated as having no keys, but the header is still kept.
func existingKeys(path string) (map[rowKey]struct{}, bool, error) {
	keys := make(map[rowKey]struct{})

	info, err := os.Stat(path)
	if errors.Is(err, fs.ErrNotExist) {
		return keys, false, nil
	}
	if err != nil {
		return nil, false, &WriteError{Path: path, Message: "failed to stat", Cause: err}
	}
	if info.Size() == 0 {
		return keys, false, nil
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, false, &WriteError{Path: path, Message: "failed to open", Cause: err}
	}
	defer func() { _ = f.Close() }()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1

	header, err := r.Read()
	if err != nil {
		return keys, true, nil
	}
	nameCol, companyCol := columnIndex(header, "Speaker Name", 0), columnIndex(header, "Company", 2)

	for {
		rec, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return make(map[rowKey]struct{}), true, nil
		}
		if nameCol >= len(rec) || companyCol >= len(rec) {
			continue
		}
		keys[rowKey{name: rec[nameCol], company: rec[companyCol]}] = struct{}{}
	}
	return keys, true, nil
}

func columnIndex(header []string, name string, fallback int) int {
	for i, h := range header {
		if h == name {
			return i
		}
	}
	return fallback
}
