// Package csvfile stores each collection as a CSV file in one directory,
// using the same layout as the legacy spreadsheet files.
package csvfile

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"thredvault/backend/internal/store"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

type Store struct {
	mu        sync.Mutex
	dir       string
	backupDir string
	now       func() time.Time
}

// New opens dir, creating it when missing. backupDir may be empty to
// disable Backup.
func New(dir string, backupDir string) (*Store, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, errors.New("csv store directory required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	return &Store{dir: dir, backupDir: backupDir, now: time.Now}, nil
}

func (s *Store) path(name string) string {
	return filepath.Join(s.dir, name+".csv")
}

func (s *Store) Load(ctx context.Context, name string) ([]store.Record, error) {
	coll, err := store.Lookup(name)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	raw, err := os.ReadFile(s.path(name))
	s.mu.Unlock()
	if errors.Is(err, os.ErrNotExist) {
		return []store.Record{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", name, err)
	}

	reader := csv.NewReader(bytes.NewReader(bytes.TrimPrefix(raw, utf8BOM)))
	reader.FieldsPerRecord = -1
	rows, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", store.ErrMalformedRecord, name, err)
	}
	if coll.Headerless {
		return keyValueRecords(coll, rows), nil
	}
	return headedRecords(rows), nil
}

func headedRecords(rows [][]string) []store.Record {
	if len(rows) == 0 {
		return []store.Record{}
	}
	header := rows[0]
	out := make([]store.Record, 0, len(rows)-1)
	for _, row := range rows[1:] {
		if blankRow(row) {
			continue
		}
		r := make(store.Record, len(header))
		for i, col := range header {
			if i < len(row) {
				r[strings.TrimSpace(col)] = row[i]
			}
		}
		out = append(out, r)
	}
	return out
}

func keyValueRecords(coll store.Collection, rows [][]string) []store.Record {
	out := make([]store.Record, 0, len(rows))
	for _, row := range rows {
		if len(row) < 2 || blankRow(row) {
			continue
		}
		if row[0] == coll.Columns[0] && row[1] == coll.Columns[1] {
			continue
		}
		out = append(out, store.Record{coll.Columns[0]: row[0], coll.Columns[1]: row[1]})
	}
	return out
}

func blankRow(row []string) bool {
	for _, v := range row {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}

// Save writes the collection to a temporary file in the same directory and
// renames it over the old one.
func (s *Store) Save(ctx context.Context, name string, records []store.Record) error {
	coll, err := store.Lookup(name)
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tmp, err := os.CreateTemp(s.dir, "."+name+"-*.csv.tmp")
	if err != nil {
		return fmt.Errorf("create temp for %s: %w", name, err)
	}
	tmpName := tmp.Name()
	committed := false
	defer func() {
		if !committed {
			_ = os.Remove(tmpName)
		}
	}()

	if err := writeCSV(tmp, coll, records); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write %s: %w", name, err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("sync %s: %w", name, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close %s: %w", name, err)
	}
	if err := os.Rename(tmpName, s.path(name)); err != nil {
		return fmt.Errorf("replace %s: %w", name, err)
	}
	committed = true
	return nil
}

func writeCSV(w io.Writer, coll store.Collection, records []store.Record) error {
	writer := csv.NewWriter(w)
	if !coll.Headerless {
		if err := writer.Write(coll.Columns); err != nil {
			return err
		}
	}
	row := make([]string, len(coll.Columns))
	for _, r := range records {
		for i, col := range coll.Columns {
			row[i] = r[col]
		}
		if err := writer.Write(row); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

// Backup copies every existing collection file into a new timestamped
// directory under the backup root and returns that directory.
func (s *Store) Backup(ctx context.Context) (string, error) {
	if s.backupDir == "" {
		return "", errors.New("backup directory not configured")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	target := filepath.Join(s.backupDir, "backup_"+s.now().Format("20060102_150405"))
	if err := os.MkdirAll(target, 0o755); err != nil {
		return "", fmt.Errorf("create backup dir: %w", err)
	}
	for _, name := range store.Names() {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		raw, err := os.ReadFile(s.path(name))
		if errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err != nil {
			return "", fmt.Errorf("read %s for backup: %w", name, err)
		}
		if err := os.WriteFile(filepath.Join(target, name+".csv"), raw, 0o644); err != nil {
			return "", fmt.Errorf("write backup of %s: %w", name, err)
		}
	}
	return target, nil
}
