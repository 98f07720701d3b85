package flatfile

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

var testHeader = []string{"AdmissionNumber", "Biography", "LastUpdated"}

func newTestTable(t *testing.T) *Table {
	t.Helper()
	path := filepath.Join(t.TempDir(), "data", "biographies.csv")
	return NewTable("biographies", path, testHeader, zerolog.Nop())
}

func TestTableEnsureInitializedIsIdempotent(t *testing.T) {
	table := newTestTable(t)

	require.NoError(t, table.EnsureInitialized())
	require.NoError(t, table.Append(Record{"AdmissionNumber": "A1", "Biography": "hello"}))
	require.NoError(t, table.EnsureInitialized())

	content, err := os.ReadFile(table.Path())
	require.NoError(t, err)
	require.Equal(t, "AdmissionNumber,Biography,LastUpdated\nA1,hello,\n", string(content))
}

func TestTableReadAllMissingFile(t *testing.T) {
	table := newTestTable(t)
	require.Empty(t, table.ReadAll())
}

func TestTableReadAllHeaderOnly(t *testing.T) {
	table := newTestTable(t)
	require.NoError(t, table.EnsureInitialized())
	require.Empty(t, table.ReadAll())
}

func TestTableAppendFillsMissingFields(t *testing.T) {
	table := newTestTable(t)
	require.NoError(t, table.Append(Record{"AdmissionNumber": "A1", "Biography": "likes maths, art\nand \"football\""}))

	records := table.ReadAll()
	require.Len(t, records, 1)
	require.Equal(t, Record{
		"AdmissionNumber": "A1",
		"Biography":       "likes maths, art\nand \"football\"",
		"LastUpdated":     "",
	}, records[0])
}

func TestTableRemoveWhere(t *testing.T) {
	table := newTestTable(t)
	require.NoError(t, table.Append(Record{"AdmissionNumber": "A1", "Biography": "one"}))
	require.NoError(t, table.Append(Record{"AdmissionNumber": "A2", "Biography": "two"}))

	removed, err := table.RemoveWhere(func(r Record) bool { return r["AdmissionNumber"] == "A1" })
	require.NoError(t, err)
	require.Equal(t, 1, removed)

	records := table.ReadAll()
	require.Len(t, records, 1)
	require.Equal(t, "A2", records[0]["AdmissionNumber"])

	removed, err = table.RemoveWhere(func(r Record) bool { return r["AdmissionNumber"] == "missing" })
	require.NoError(t, err)
	require.Zero(t, removed)
}

func TestTableReplaceWhere(t *testing.T) {
	table := newTestTable(t)
	require.NoError(t, table.Append(Record{"AdmissionNumber": "A1", "Biography": "old"}))

	removed, err := table.ReplaceWhere(
		func(r Record) bool { return r["AdmissionNumber"] == "A1" },
		Record{"AdmissionNumber": "A1", "Biography": "new"},
	)
	require.NoError(t, err)
	require.Equal(t, 1, removed)

	records := table.ReadAll()
	require.Len(t, records, 1)
	require.Equal(t, "new", records[0]["Biography"])
}

func TestTableRewrite(t *testing.T) {
	table := newTestTable(t)
	require.NoError(t, table.Append(Record{"AdmissionNumber": "A1"}))

	require.NoError(t, table.Rewrite([]Record{{"AdmissionNumber": "B1"}, {"AdmissionNumber": "B2"}}))

	records := table.ReadAll()
	require.Len(t, records, 2)
	require.Equal(t, "B1", records[0]["AdmissionNumber"])
	require.Equal(t, "B2", records[1]["AdmissionNumber"])
}

func TestTableMalformedFileTreatedAsEmpty(t *testing.T) {
	table := newTestTable(t)
	require.NoError(t, os.MkdirAll(filepath.Dir(table.Path()), 0o755))
	require.NoError(t, os.WriteFile(table.Path(), []byte("AdmissionNumber,Biography,LastUpdated\nA1,b,c,d,e\n"), 0o644))

	_, err := table.Load()
	require.ErrorIs(t, err, ErrMalformedRecord)
	require.Empty(t, table.ReadAll())
}

func TestTableUsesFileHeaderOrder(t *testing.T) {
	table := newTestTable(t)
	require.NoError(t, os.MkdirAll(filepath.Dir(table.Path()), 0o755))
	require.NoError(t, os.WriteFile(table.Path(), []byte("Biography,AdmissionNumber\nshort bio,A9\n"), 0o644))

	records := table.ReadAll()
	require.Len(t, records, 1)
	require.Equal(t, "A9", records[0]["AdmissionNumber"])
	require.Equal(t, "short bio", records[0]["Biography"])
	require.Equal(t, "", records[0]["LastUpdated"])
}

func TestTableAppendToReorderedFile(t *testing.T) {
	table := newTestTable(t)
	require.NoError(t, os.MkdirAll(filepath.Dir(table.Path()), 0o755))
	require.NoError(t, os.WriteFile(table.Path(), []byte("Biography,AdmissionNumber,LastUpdated\nshort bio,A9,2024\n"), 0o644))

	require.NoError(t, table.Append(Record{"AdmissionNumber": "B1", "Biography": "new", "LastUpdated": "2025"}))
	require.NoError(t, table.Append(Record{"AdmissionNumber": "C2", "Biography": "later"}))

	records, err := table.Load()
	require.NoError(t, err)
	require.Equal(t, []Record{
		{"AdmissionNumber": "A9", "Biography": "short bio", "LastUpdated": "2024"},
		{"AdmissionNumber": "B1", "Biography": "new", "LastUpdated": "2025"},
		{"AdmissionNumber": "C2", "Biography": "later", "LastUpdated": ""},
	}, records)

	content, err := os.ReadFile(table.Path())
	require.NoError(t, err)
	require.Equal(t, "AdmissionNumber,Biography,LastUpdated\nA9,short bio,2024\nB1,new,2025\nC2,later,\n", string(content))
}

func TestTableAppendToEmptyFileWritesHeader(t *testing.T) {
	table := newTestTable(t)
	require.NoError(t, os.MkdirAll(filepath.Dir(table.Path()), 0o755))
	require.NoError(t, os.WriteFile(table.Path(), nil, 0o644))

	require.NoError(t, table.Append(Record{"AdmissionNumber": "A1"}))

	content, err := os.ReadFile(table.Path())
	require.NoError(t, err)
	require.Equal(t, "AdmissionNumber,Biography,LastUpdated\nA1,,\n", string(content))
}
