package flatfile

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/gofrs/flock"
	"github.com/rs/zerolog"
)

// ErrMalformedRecord indicates a row could not be mapped onto the file header.
var ErrMalformedRecord = errors.New("malformed flat-file record")

// Record maps a field name to its value.
type Record map[string]string

// Table is a named collection of same-shaped records stored in one encoded file.
// Inserts only ever append; deletes and replacements rewrite the whole file while
// holding both an in-process lock and an advisory file lock.
type Table struct {
	name   string
	path   string
	header []string
	mu     sync.RWMutex
	lock   *flock.Flock
	logger zerolog.Logger
}

// NewTable builds a table over path using the ordered header as its schema.
func NewTable(name, path string, header []string, logger zerolog.Logger) *Table {
	return &Table{
		name:   name,
		path:   path,
		header: append([]string(nil), header...),
		lock:   flock.New(path + ".lock"),
		logger: logger.With().Str("component", "flatfile").Str("table", name).Logger(),
	}
}

// Name returns the logical table name.
func (t *Table) Name() string {
	return t.name
}

// Path returns the backing file location.
func (t *Table) Path() string {
	return t.path
}

// Header returns a copy of the table schema.
func (t *Table) Header() []string {
	return append([]string(nil), t.header...)
}

// EnsureInitialized creates the backing file holding only the header row when it
// does not exist yet.
func (t *Table) EnsureInitialized() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if err := t.prepareDir(); err != nil {
		return err
	}

	if _, err := os.Stat(t.path); err == nil {
		return nil
	} else if !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("stat %s: %w", t.name, err)
	}

	if err := os.WriteFile(t.path, []byte(EncodeRow(t.header)+"\n"), 0o644); err != nil {
		return fmt.Errorf("initialise %s: %w", t.name, err)
	}
	return nil
}

// ReadAll returns every record in file order. A missing file yields no records; an
// unreadable or malformed file is logged and treated as empty.
func (t *Table) ReadAll() []Record {
	records, err := t.Load()
	if err != nil {
		t.logger.Warn().Err(err).Str("path", t.path).Msg("treating flat file as empty")
		return []Record{}
	}
	return records
}

// Load is ReadAll with the failure reported instead of logged.
func (t *Table) Load() ([]Record, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if _, err := os.Stat(t.path); errors.Is(err, fs.ErrNotExist) {
		return []Record{}, nil
	}

	if err := t.lock.RLock(); err != nil {
		return nil, fmt.Errorf("lock %s: %w", t.name, err)
	}
	defer func() { _ = t.lock.Unlock() }()

	return t.load()
}

// Filter returns the records accepted by match.
func (t *Table) Filter(match func(Record) bool) []Record {
	all := t.ReadAll()
	out := make([]Record, 0, len(all))
	for _, record := range all {
		if match(record) {
			out = append(out, record)
		}
	}
	return out
}

// Append writes one record at the end of the file. Fields missing from the record
// are stored as empty strings. A file whose header is not in schema order is
// rewritten in schema order first.
func (t *Table) Append(record Record) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if err := t.prepareDir(); err != nil {
		return err
	}
	if err := t.lock.Lock(); err != nil {
		return fmt.Errorf("lock %s: %w", t.name, err)
	}
	defer func() { _ = t.lock.Unlock() }()

	if err := t.ensureHeaderLocked(); err != nil {
		return err
	}

	aligned, err := t.headerAlignedLocked()
	if err != nil {
		return err
	}
	if !aligned {
		return t.normalizeLocked(record)
	}

	f, err := os.OpenFile(t.path, os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open %s: %w", t.name, err)
	}
	defer f.Close()

	if _, err := f.WriteString(t.encode(record) + "\n"); err != nil {
		return fmt.Errorf("append %s: %w", t.name, err)
	}
	return nil
}

// Rewrite replaces the file content with the header followed by records. The
// write is not atomic: a crash part way through loses data.
func (t *Table) Rewrite(records []Record) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if err := t.prepareDir(); err != nil {
		return err
	}
	if err := t.lock.Lock(); err != nil {
		return fmt.Errorf("lock %s: %w", t.name, err)
	}
	defer func() { _ = t.lock.Unlock() }()

	return t.rewriteLocked(records)
}

// RemoveWhere drops every record accepted by match and reports how many were
// removed. The file is only rewritten when something matched.
func (t *Table) RemoveWhere(match func(Record) bool) (int, error) {
	return t.replaceWhere(match, nil)
}

// ReplaceWhere drops every record accepted by match and appends replacement in the
// same rewrite.
func (t *Table) ReplaceWhere(match func(Record) bool, replacement Record) (int, error) {
	return t.replaceWhere(match, replacement)
}

func (t *Table) replaceWhere(match func(Record) bool, replacement Record) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if err := t.prepareDir(); err != nil {
		return 0, err
	}
	if err := t.lock.Lock(); err != nil {
		return 0, fmt.Errorf("lock %s: %w", t.name, err)
	}
	defer func() { _ = t.lock.Unlock() }()

	records, err := t.load()
	if err != nil {
		return 0, err
	}

	kept := make([]Record, 0, len(records)+1)
	removed := 0
	for _, record := range records {
		if match(record) {
			removed++
			continue
		}
		kept = append(kept, record)
	}

	if replacement == nil {
		if removed == 0 {
			return 0, nil
		}
	} else {
		kept = append(kept, replacement)
	}

	if err := t.rewriteLocked(kept); err != nil {
		return 0, err
	}
	return removed, nil
}

func (t *Table) load() ([]Record, error) {
	content, err := os.ReadFile(t.path)
	if errors.Is(err, fs.ErrNotExist) {
		return []Record{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", t.name, err)
	}

	rows := SplitRows(string(content))
	if len(rows) <= 1 {
		return []Record{}, nil
	}

	header := DecodeLine(strings.TrimPrefix(rows[0], "\ufeff"))
	records := make([]Record, 0, len(rows)-1)
	for i, row := range rows[1:] {
		if row == "" {
			continue
		}
		values := DecodeLine(row)
		if len(values) > len(header) {
			return nil, fmt.Errorf("%w: %s row %d has %d fields, header has %d", ErrMalformedRecord, t.name, i+1, len(values), len(header))
		}
		record := make(Record, len(t.header))
		for _, field := range t.header {
			record[field] = ""
		}
		for idx, field := range header {
			if idx < len(values) {
				record[field] = values[idx]
			} else {
				record[field] = ""
			}
		}
		records = append(records, record)
	}

	return records, nil
}

func (t *Table) rewriteLocked(records []Record) error {
	var b strings.Builder
	b.WriteString(EncodeRow(t.header))
	b.WriteByte('\n')
	for _, record := range records {
		b.WriteString(t.encode(record))
		b.WriteByte('\n')
	}

	if err := os.WriteFile(t.path, []byte(b.String()), 0o644); err != nil {
		return fmt.Errorf("rewrite %s: %w", t.name, err)
	}
	return nil
}

// headerAlignedLocked reports whether the file header matches the schema order,
// so appended rows line up with it.
func (t *Table) headerAlignedLocked() (bool, error) {
	f, err := os.Open(t.path)
	if err != nil {
		return false, fmt.Errorf("open %s: %w", t.name, err)
	}
	defer f.Close()

	line, err := bufio.NewReader(f).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return false, fmt.Errorf("read %s header: %w", t.name, err)
	}
	line = strings.TrimSuffix(strings.TrimSuffix(line, "\n"), "\r")
	return line == EncodeRow(t.header), nil
}

// normalizeLocked rewrites a file stored under a different header order in
// schema order, followed by record.
func (t *Table) normalizeLocked(record Record) error {
	records, err := t.load()
	if err != nil {
		return err
	}
	t.logger.Info().Str("path", t.path).Msg("rewriting flat file in schema column order")
	return t.rewriteLocked(append(records, record))
}

func (t *Table) ensureHeaderLocked() error {
	if _, err := os.Stat(t.path); err == nil {
		return nil
	} else if !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("stat %s: %w", t.name, err)
	}
	return os.WriteFile(t.path, []byte(EncodeRow(t.header)+"\n"), 0o644)
}

func (t *Table) prepareDir() error {
	if err := os.MkdirAll(filepath.Dir(t.path), 0o755); err != nil {
		return fmt.Errorf("create data directory: %w", err)
	}
	return nil
}

func (t *Table) encode(record Record) string {
	values := make([]string, len(t.header))
	for i, field := range t.header {
		values[i] = record[field]
	}
	return EncodeRow(values)
}
