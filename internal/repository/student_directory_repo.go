package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/bson"
	"gorm.io/gorm"

	"github.com/noah-isme/sponsor-portal-api/internal/docstore"
	"github.com/noah-isme/sponsor-portal-api/internal/flatfile"
	"github.com/noah-isme/sponsor-portal-api/internal/models"
)

// StudentDirectory provides read-only access to student master data.
type StudentDirectory interface {
	Get(ctx context.Context, admissionNumber string) (models.Student, error)
	Search(ctx context.Context, query, department string) ([]models.Student, error)
}

type csvStudentDirectory struct {
	table *flatfile.Table
}

// NewCSVStudentDirectory reads the student master file through the flat-file table.
func NewCSVStudentDirectory(table *flatfile.Table) StudentDirectory {
	return &csvStudentDirectory{table: table}
}

func (d *csvStudentDirectory) Get(_ context.Context, admissionNumber string) (models.Student, error) {
	admissionNumber = strings.TrimSpace(admissionNumber)
	for _, record := range d.table.ReadAll() {
		student := models.StudentFromColumns(record)
		if student.AdmissionNumber == admissionNumber {
			return student, nil
		}
	}
	return models.Student{}, ErrNotFound
}

func (d *csvStudentDirectory) Search(_ context.Context, query, department string) ([]models.Student, error) {
	students := make([]models.Student, 0)
	for _, record := range d.table.ReadAll() {
		student := models.StudentFromColumns(record)
		if student.AdmissionNumber == "" {
			continue
		}
		if student.Matches(query, department) {
			students = append(students, student)
		}
	}
	return students, nil
}

type sqlStudentDirectory struct {
	db *gorm.DB
}

// NewSQLStudentDirectory reads student master data from the students table.
func NewSQLStudentDirectory(db *gorm.DB) StudentDirectory {
	return &sqlStudentDirectory{db: db}
}

func (d *sqlStudentDirectory) Get(ctx context.Context, admissionNumber string) (models.Student, error) {
	var student models.Student
	err := d.db.WithContext(ctx).
		Where("admission_number = ?", strings.TrimSpace(admissionNumber)).
		First(&student).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return models.Student{}, ErrNotFound
	}
	if err != nil {
		return models.Student{}, err
	}
	return student, nil
}

func (d *sqlStudentDirectory) Search(ctx context.Context, query, department string) ([]models.Student, error) {
	tx := d.db.WithContext(ctx).Model(&models.Student{})

	if q := strings.ToLower(strings.TrimSpace(query)); q != "" {
		like := "%" + q + "%"
		tx = tx.Where("LOWER(full_name) LIKE ? OR LOWER(admission_number) LIKE ?", like, like)
	}
	if dept := strings.ToLower(strings.TrimSpace(department)); dept != "" {
		tx = tx.Where("LOWER(department) LIKE ?", "%"+dept+"%")
	}

	var students []models.Student
	if err := tx.Order("full_name ASC").Find(&students).Error; err != nil {
		return nil, err
	}
	return students, nil
}

type documentStudentDirectory struct {
	docs     DocumentStore
	selector BackendSelector
	next     StudentDirectory
	logger   zerolog.Logger
}

// NewDocumentStudentDirectory serves master data from the students collection
// while the document store is active. Missing students, an empty collection and
// failed calls are answered by next.
func NewDocumentStudentDirectory(docs DocumentStore, selector BackendSelector, next StudentDirectory, logger zerolog.Logger) StudentDirectory {
	return &documentStudentDirectory{
		docs:     docs,
		selector: selector,
		next:     next,
		logger:   logger.With().Str("component", "student_directory").Logger(),
	}
}

func (d *documentStudentDirectory) Get(ctx context.Context, admissionNumber string) (models.Student, error) {
	if d.selector.UseDocumentStore() {
		filter := bson.M{models.StudentColumnAdmissionNumber: strings.TrimSpace(admissionNumber)}
		res := d.docs.Find(ctx, docstore.CollectionStudents, filter, models.StudentColumnFullName, false)
		switch {
		case !res.OK():
			d.logger.Warn().Err(res.Err).Msg("students collection lookup failed, using fallback directory")
		case len(res.Documents) > 0:
			return models.StudentFromColumns(docstore.Flatten(res.Documents[0])), nil
		}
	}
	return d.next.Get(ctx, admissionNumber)
}

func (d *documentStudentDirectory) Search(ctx context.Context, query, department string) ([]models.Student, error) {
	if d.selector.UseDocumentStore() {
		res := d.docs.Find(ctx, docstore.CollectionStudents, bson.M{}, models.StudentColumnFullName, false)
		switch {
		case !res.OK():
			d.logger.Warn().Err(res.Err).Msg("students collection search failed, using fallback directory")
		case len(res.Documents) > 0:
			students := make([]models.Student, 0, len(res.Documents))
			for _, document := range res.Documents {
				student := models.StudentFromColumns(docstore.Flatten(document))
				if student.AdmissionNumber != "" && student.Matches(query, department) {
					students = append(students, student)
				}
			}
			return students, nil
		}
	}
	return d.next.Search(ctx, query, department)
}

type cachedStudentDirectory struct {
	next   StudentDirectory
	cache  *redis.Client
	ttl    time.Duration
	logger zerolog.Logger
}

// NewCachedStudentDirectory adds a read-through Redis cache in front of next.
// A nil client disables caching.
func NewCachedStudentDirectory(next StudentDirectory, cache *redis.Client, ttl time.Duration, logger zerolog.Logger) StudentDirectory {
	if cache == nil {
		return next
	}
	return &cachedStudentDirectory{
		next:   next,
		cache:  cache,
		ttl:    ttl,
		logger: logger.With().Str("component", "student_directory_cache").Logger(),
	}
}

func (d *cachedStudentDirectory) Get(ctx context.Context, admissionNumber string) (models.Student, error) {
	key := fmt.Sprintf("directory:student:%s", strings.TrimSpace(admissionNumber))

	var student models.Student
	if d.load(ctx, key, &student) {
		return student, nil
	}

	student, err := d.next.Get(ctx, admissionNumber)
	if err != nil {
		return models.Student{}, err
	}
	d.store(ctx, key, student)
	return student, nil
}

func (d *cachedStudentDirectory) Search(ctx context.Context, query, department string) ([]models.Student, error) {
	key := fmt.Sprintf("directory:search:%s|%s",
		strings.ToLower(strings.TrimSpace(query)),
		strings.ToLower(strings.TrimSpace(department)))

	var students []models.Student
	if d.load(ctx, key, &students) {
		return students, nil
	}

	students, err := d.next.Search(ctx, query, department)
	if err != nil {
		return nil, err
	}
	d.store(ctx, key, students)
	return students, nil
}

func (d *cachedStudentDirectory) load(ctx context.Context, key string, target interface{}) bool {
	cached, err := d.cache.Get(ctx, key).Result()
	if err != nil {
		if err != redis.Nil {
			d.logger.Warn().Err(err).Str("key", key).Msg("failed to read directory cache")
		}
		return false
	}
	if err := json.Unmarshal([]byte(cached), target); err != nil {
		d.logger.Warn().Err(err).Str("key", key).Msg("discarding corrupt directory cache entry")
		return false
	}
	d.logger.Debug().Str("key", key).Msg("directory cache hit")
	return true
}

func (d *cachedStudentDirectory) store(ctx context.Context, key string, value interface{}) {
	payload, err := json.Marshal(value)
	if err != nil {
		return
	}
	if err := d.cache.Set(ctx, key, payload, d.ttl).Err(); err != nil {
		d.logger.Warn().Err(err).Str("key", key).Msg("failed to store directory cache")
	}
}
