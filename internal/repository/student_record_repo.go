package repository

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/bson"

	"github.com/noah-isme/sponsor-portal-api/internal/docstore"
	"github.com/noah-isme/sponsor-portal-api/internal/flatfile"
	"github.com/noah-isme/sponsor-portal-api/internal/models"
	"github.com/noah-isme/sponsor-portal-api/internal/observability"
)

var (
	// ErrNotFound indicates no record matched the identifier and key.
	ErrNotFound = errors.New("record not found")
	// ErrUpdateUnsupported indicates an update was requested while only the flat
	// files can answer; the record has to be deleted and recreated instead.
	ErrUpdateUnsupported = errors.New("update is not supported by flat-file storage; delete and recreate the record")
	// ErrInvalidPatch indicates an update named no field or a field that cannot change.
	ErrInvalidPatch = errors.New("invalid term patch")
)

const (
	backendMongo = "mongo"
	backendCSV   = "csv"

	outcomeOK       = "ok"
	outcomeNotFound = "not_found"
	outcomeError    = "error"

	timestampLayout = "2006-01-02T15:04:05.000Z07:00"
)

// DocumentStore is the document database consulted before the flat files.
type DocumentStore interface {
	Insert(ctx context.Context, collection string, document interface{}) docstore.Result
	Find(ctx context.Context, collection string, filter bson.M, sortField string, descending bool) docstore.Result
	UpdateOne(ctx context.Context, collection string, filter, patch bson.M, upsert bool) docstore.Result
	DeleteOne(ctx context.Context, collection string, filter bson.M) docstore.Result
}

// BackendSelector reports whether the next call should try the document store.
type BackendSelector interface {
	UseDocumentStore() bool
}

// FlatFiles groups the per-kind flat-file tables.
type FlatFiles struct {
	Terms       *flatfile.Table
	Reports     *flatfile.Table
	Biographies *flatfile.Table
}

// OpenFlatFiles creates the data directory and the three record files.
func OpenFlatFiles(dataDir string, logger zerolog.Logger) (FlatFiles, error) {
	files := FlatFiles{
		Terms:       flatfile.NewTable(docstore.CollectionTerms, filepath.Join(dataDir, "terms.csv"), models.TermColumns, logger),
		Reports:     flatfile.NewTable(docstore.CollectionReports, filepath.Join(dataDir, "reports.csv"), models.ReportColumns, logger),
		Biographies: flatfile.NewTable(docstore.CollectionBiographies, filepath.Join(dataDir, "biographies.csv"), models.BiographyColumns, logger),
	}

	for _, table := range []*flatfile.Table{files.Terms, files.Reports, files.Biographies} {
		if err := table.EnsureInitialized(); err != nil {
			return FlatFiles{}, err
		}
	}

	return files, nil
}

// StudentRecordRepository is the backend-agnostic store for term updates,
// report references and biographies.
type StudentRecordRepository interface {
	ListTerms(ctx context.Context, admissionNumber string) []models.Term
	LatestTerm(ctx context.Context, admissionNumber string) (models.Term, error)
	AddTerm(ctx context.Context, admissionNumber string, term models.Term) (models.Term, error)
	UpdateTerm(ctx context.Context, admissionNumber, key string, patch map[string]string) error
	RemoveTerm(ctx context.Context, admissionNumber, key string) error

	ListReports(ctx context.Context, admissionNumber string) []models.Report
	FindReport(ctx context.Context, admissionNumber, key string) (models.Report, error)
	AddReport(ctx context.Context, admissionNumber, filename, publicID string) (models.Report, error)
	RemoveReport(ctx context.Context, admissionNumber, key string) error

	GetBiography(ctx context.Context, admissionNumber string) (models.Biography, error)
	UpdateBiography(ctx context.Context, admissionNumber, text string) (models.Biography, error)
}

// RecordOption customises the repository.
type RecordOption func(*studentRecordRepository)

// WithClock replaces the clock used for creation timestamps.
func WithClock(now func() time.Time) RecordOption {
	return func(r *studentRecordRepository) {
		r.now = now
	}
}

type recordKind struct {
	name       string
	collection string
	table      *flatfile.Table
	sortField  string
	keyField   string
}

type studentRecordRepository struct {
	docs     DocumentStore
	selector BackendSelector
	terms    recordKind
	reports  recordKind
	bios     *flatfile.Table
	logger   zerolog.Logger

	clockMu sync.Mutex
	now     func() time.Time
	last    time.Time
}

// NewStudentRecordRepository wires the document store, the selector and the
// flat files into one repository.
func NewStudentRecordRepository(docs DocumentStore, selector BackendSelector, files FlatFiles, logger zerolog.Logger, opts ...RecordOption) StudentRecordRepository {
	r := &studentRecordRepository{
		docs:     docs,
		selector: selector,
		terms: recordKind{
			name:       "terms",
			collection: docstore.CollectionTerms,
			table:      files.Terms,
			sortField:  models.TermFieldTimestamp,
			keyField:   models.TermFieldTimestamp,
		},
		reports: recordKind{
			name:       "reports",
			collection: docstore.CollectionReports,
			table:      files.Reports,
			sortField:  models.ReportFieldCreatedAt,
			keyField:   models.ReportFieldPublicID,
		},
		bios:   files.Biographies,
		logger: logger.With().Str("component", "student_record_repository").Logger(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *studentRecordRepository) ListTerms(ctx context.Context, admissionNumber string) []models.Term {
	records := r.list(ctx, r.terms, admissionNumber)
	terms := make([]models.Term, 0, len(records))
	for _, record := range records {
		terms = append(terms, models.TermFromFields(record))
	}
	return terms
}

func (r *studentRecordRepository) LatestTerm(ctx context.Context, admissionNumber string) (models.Term, error) {
	terms := r.ListTerms(ctx, admissionNumber)
	if len(terms) == 0 {
		return models.Term{}, ErrNotFound
	}
	return terms[0], nil
}

func (r *studentRecordRepository) AddTerm(ctx context.Context, admissionNumber string, term models.Term) (models.Term, error) {
	term.ID = ""
	term.AdmissionNumber = admissionNumber
	term.Timestamp = r.stamp()

	record, err := r.add(ctx, r.terms, term.Fields())
	if err != nil {
		return models.Term{}, err
	}
	return models.TermFromFields(record), nil
}

func (r *studentRecordRepository) UpdateTerm(ctx context.Context, admissionNumber, key string, patch map[string]string) error {
	if len(patch) == 0 {
		return fmt.Errorf("%w: no fields to update", ErrInvalidPatch)
	}
	set := bson.M{}
	for field, value := range patch {
		if !models.TermPatchable(field) {
			return fmt.Errorf("%w: field %q cannot be updated", ErrInvalidPatch, field)
		}
		set[field] = value
	}

	if !r.selector.UseDocumentStore() {
		r.count(r.terms, "update", backendCSV, outcomeError)
		return ErrUpdateUnsupported
	}

	filter := docstore.KeyFilter(models.FieldAdmissionNumber, admissionNumber, r.terms.keyField, key)
	res := r.docs.UpdateOne(ctx, r.terms.collection, filter, set, false)
	if !res.OK() {
		r.fallback(r.terms, "update", res)
		return fmt.Errorf("%w: document store failed: %v", ErrUpdateUnsupported, res.Err)
	}

	if !res.Matched {
		if len(r.terms.table.Filter(matchKey(admissionNumber, r.terms.keyField, key))) > 0 {
			r.count(r.terms, "update", backendCSV, outcomeError)
			return ErrUpdateUnsupported
		}
		r.count(r.terms, "update", backendMongo, outcomeNotFound)
		return ErrNotFound
	}

	r.count(r.terms, "update", backendMongo, outcomeOK)
	return nil
}

func (r *studentRecordRepository) RemoveTerm(ctx context.Context, admissionNumber, key string) error {
	return r.remove(ctx, r.terms, admissionNumber, key)
}

func (r *studentRecordRepository) ListReports(ctx context.Context, admissionNumber string) []models.Report {
	records := r.list(ctx, r.reports, admissionNumber)
	reports := make([]models.Report, 0, len(records))
	for _, record := range records {
		reports = append(reports, models.ReportFromFields(record))
	}
	return reports
}

func (r *studentRecordRepository) FindReport(ctx context.Context, admissionNumber, key string) (models.Report, error) {
	for _, report := range r.ListReports(ctx, admissionNumber) {
		if report.Key == key || report.PublicID == key {
			return report, nil
		}
	}
	return models.Report{}, ErrNotFound
}

func (r *studentRecordRepository) AddReport(ctx context.Context, admissionNumber, filename, publicID string) (models.Report, error) {
	report := models.Report{
		AdmissionNumber: admissionNumber,
		Filename:        filename,
		PublicID:        publicID,
		CreatedAt:       r.stamp(),
	}

	record, err := r.add(ctx, r.reports, report.Fields())
	if err != nil {
		return models.Report{}, err
	}
	return models.ReportFromFields(record), nil
}

func (r *studentRecordRepository) RemoveReport(ctx context.Context, admissionNumber, key string) error {
	return r.remove(ctx, r.reports, admissionNumber, key)
}

func (r *studentRecordRepository) GetBiography(ctx context.Context, admissionNumber string) (models.Biography, error) {
	candidates := make([]flatfile.Record, 0, 2)
	backend := backendCSV
	if r.selector.UseDocumentStore() {
		res := r.docs.Find(ctx, docstore.CollectionBiographies, bson.M{models.FieldAdmissionNumber: admissionNumber}, models.BiographyFieldLastUpdated, true)
		if res.OK() {
			for _, document := range res.Documents {
				candidates = append(candidates, flatfile.Record(docstore.Flatten(document)))
			}
			if len(candidates) > 0 {
				backend = backendMongo
			}
		} else {
			r.fallbackKind("biographies", "get", res)
		}
	}

	// A biography written while the document store was down lives only in the
	// flat file, so both sources compete on LastUpdated.
	candidates = append(candidates, r.bios.Filter(matchIdentifier(admissionNumber))...)
	if len(candidates) == 0 {
		r.countKind("biographies", "get", backend, outcomeNotFound)
		return models.Biography{}, ErrNotFound
	}

	sortNewestFirst(candidates, models.BiographyFieldLastUpdated)
	r.countKind("biographies", "get", backend, outcomeOK)
	return models.BiographyFromFields(candidates[0]), nil
}

func (r *studentRecordRepository) UpdateBiography(ctx context.Context, admissionNumber, text string) (models.Biography, error) {
	bio := models.Biography{
		AdmissionNumber: admissionNumber,
		Text:            text,
		LastUpdated:     r.stamp(),
	}
	sameStudent := func(record flatfile.Record) bool {
		return record[models.FieldAdmissionNumber] == admissionNumber
	}

	if r.selector.UseDocumentStore() {
		res := r.docs.UpdateOne(ctx, docstore.CollectionBiographies,
			bson.M{models.FieldAdmissionNumber: admissionNumber},
			bson.M{models.BiographyFieldText: bio.Text, models.BiographyFieldLastUpdated: bio.LastUpdated},
			true,
		)
		if res.OK() {
			r.countKind("biographies", "update", backendMongo, outcomeOK)
			if _, err := r.bios.RemoveWhere(sameStudent); err != nil {
				r.logger.Warn().Err(err).Str("admission_number", admissionNumber).Msg("failed to drop superseded flat-file biography")
			}
			return bio, nil
		}
		r.fallbackKind("biographies", "update", res)
	}

	if _, err := r.bios.ReplaceWhere(sameStudent, bio.Fields()); err != nil {
		r.countKind("biographies", "update", backendCSV, outcomeError)
		return models.Biography{}, fmt.Errorf("write biography: %w", err)
	}

	r.countKind("biographies", "update", backendCSV, outcomeOK)
	return bio, nil
}

// list merges document store results with flat-file rows for the identifier so
// records written during a per-call fallback stay visible.
func (r *studentRecordRepository) list(ctx context.Context, kind recordKind, admissionNumber string) []flatfile.Record {
	records := make([]flatfile.Record, 0)
	seen := map[string]struct{}{}

	if r.selector.UseDocumentStore() {
		res := r.docs.Find(ctx, kind.collection, bson.M{models.FieldAdmissionNumber: admissionNumber}, kind.sortField, true)
		if res.OK() {
			r.count(kind, "list", backendMongo, outcomeOK)
			for _, document := range res.Documents {
				record := flatfile.Record(docstore.Flatten(document))
				seen[record[kind.keyField]] = struct{}{}
				records = append(records, record)
			}
		} else {
			r.fallback(kind, "list", res)
		}
	}

	for _, record := range kind.table.Filter(matchIdentifier(admissionNumber)) {
		if _, dup := seen[record[kind.keyField]]; dup {
			continue
		}
		records = append(records, record)
	}
	r.count(kind, "list", backendCSV, outcomeOK)

	sortNewestFirst(records, kind.sortField)
	return records
}

func (r *studentRecordRepository) add(ctx context.Context, kind recordKind, fields map[string]string) (flatfile.Record, error) {
	if r.selector.UseDocumentStore() {
		res := r.docs.Insert(ctx, kind.collection, docstore.Document(fields))
		if res.OK() {
			r.count(kind, "add", backendMongo, outcomeOK)
			record := flatfile.Record(fields)
			record[models.FieldID] = res.InsertedID
			return record, nil
		}
		r.fallback(kind, "add", res)
	}

	if err := kind.table.Append(fields); err != nil {
		r.count(kind, "add", backendCSV, outcomeError)
		return nil, fmt.Errorf("append %s: %w", kind.name, err)
	}

	r.count(kind, "add", backendCSV, outcomeOK)
	return flatfile.Record(fields), nil
}

func (r *studentRecordRepository) remove(ctx context.Context, kind recordKind, admissionNumber, key string) error {
	if r.selector.UseDocumentStore() {
		filter := docstore.KeyFilter(models.FieldAdmissionNumber, admissionNumber, kind.keyField, key)
		res := r.docs.DeleteOne(ctx, kind.collection, filter)
		switch {
		case !res.OK():
			r.fallback(kind, "remove", res)
		case res.Matched:
			r.count(kind, "remove", backendMongo, outcomeOK)
			return nil
		}
	}

	removed, err := kind.table.RemoveWhere(matchKey(admissionNumber, kind.keyField, key))
	if err != nil {
		r.count(kind, "remove", backendCSV, outcomeError)
		return fmt.Errorf("remove %s: %w", kind.name, err)
	}
	if removed == 0 {
		r.count(kind, "remove", backendCSV, outcomeNotFound)
		return ErrNotFound
	}

	r.count(kind, "remove", backendCSV, outcomeOK)
	return nil
}

// stamp returns a UTC creation timestamp that is strictly increasing within the
// process, so it can double as a surrogate key.
func (r *studentRecordRepository) stamp() string {
	r.clockMu.Lock()
	defer r.clockMu.Unlock()

	now := r.now().UTC().Truncate(time.Millisecond)
	if !now.After(r.last) {
		now = r.last.Add(time.Millisecond)
	}
	r.last = now
	return now.Format(timestampLayout)
}

func (r *studentRecordRepository) count(kind recordKind, op, backend, outcome string) {
	r.countKind(kind.name, op, backend, outcome)
}

func (r *studentRecordRepository) countKind(kind, op, backend, outcome string) {
	observability.BackendOperations().WithLabelValues(kind, op, backend, outcome).Inc()
}

func (r *studentRecordRepository) fallback(kind recordKind, op string, res docstore.Result) {
	r.fallbackKind(kind.name, op, res)
}

func (r *studentRecordRepository) fallbackKind(kind, op string, res docstore.Result) {
	observability.BackendFallbacks().WithLabelValues(kind, op).Inc()
	r.countKind(kind, op, backendMongo, outcomeError)
	r.logger.Warn().
		Err(res.Err).
		Str("kind", kind).
		Str("op", op).
		Bool("connectivity", res.Connectivity).
		Msg("document store call failed, using flat files")
}

func matchIdentifier(admissionNumber string) func(flatfile.Record) bool {
	return func(record flatfile.Record) bool {
		return record[models.FieldAdmissionNumber] == admissionNumber
	}
}

func matchKey(admissionNumber, keyField, key string) func(flatfile.Record) bool {
	return func(record flatfile.Record) bool {
		return record[models.FieldAdmissionNumber] == admissionNumber && record[keyField] == key
	}
}

func sortNewestFirst(records []flatfile.Record, field string) {
	sort.SliceStable(records, func(i, j int) bool {
		left, leftErr := time.Parse(time.RFC3339Nano, records[i][field])
		right, rightErr := time.Parse(time.RFC3339Nano, records[j][field])
		if leftErr != nil || rightErr != nil {
			return records[i][field] > records[j][field]
		}
		return left.After(right)
	})
}
