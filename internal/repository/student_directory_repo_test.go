package repository

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/noah-isme/sponsor-portal-api/internal/docstore"
	"github.com/noah-isme/sponsor-portal-api/internal/flatfile"
	"github.com/noah-isme/sponsor-portal-api/internal/models"
)

const studentsFile = "Admission Number,Full Name,Department,Class,Gender,Contact,Photo,Small Biography\n" +
	"A123,Grace Wanjiru,Mini India,Grade 5,F,0700000000,static/images/a123.jpg,\"Loves football, art\"\n" +
	"B456,Peter Otieno,Science,Grade 6,M,,,\n"

func newCSVDirectory(t *testing.T) StudentDirectory {
	t.Helper()
	path := filepath.Join(t.TempDir(), "students.csv")
	require.NoError(t, os.WriteFile(path, []byte(studentsFile), 0o644))
	return NewCSVStudentDirectory(flatfile.NewTable("students", path, models.StudentColumns, zerolog.Nop()))
}

func setupDirectoryDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.Student{}))
	return db
}

func TestCSVStudentDirectory(t *testing.T) {
	directory := newCSVDirectory(t)
	ctx := context.Background()

	student, err := directory.Get(ctx, "A123")
	require.NoError(t, err)
	require.Equal(t, "Grace Wanjiru", student.FullName)
	require.Equal(t, "Loves football, art", student.SmallBiography)
	require.Equal(t, "/images/a123.jpg", student.PhotoURL())

	_, err = directory.Get(ctx, "Z999")
	require.ErrorIs(t, err, ErrNotFound)

	students, err := directory.Search(ctx, "", "")
	require.NoError(t, err)
	require.Len(t, students, 2)

	students, err = directory.Search(ctx, "peter", "")
	require.NoError(t, err)
	require.Len(t, students, 1)
	require.Equal(t, "B456", students[0].AdmissionNumber)

	students, err = directory.Search(ctx, "", "india")
	require.NoError(t, err)
	require.Len(t, students, 1)
}

func TestCSVStudentDirectoryMissingFile(t *testing.T) {
	directory := NewCSVStudentDirectory(flatfile.NewTable("students", filepath.Join(t.TempDir(), "students.csv"), models.StudentColumns, zerolog.Nop()))

	students, err := directory.Search(context.Background(), "", "")
	require.NoError(t, err)
	require.Empty(t, students)
}

func TestSQLStudentDirectory(t *testing.T) {
	db := setupDirectoryDB(t)
	require.NoError(t, db.Create(&models.Student{AdmissionNumber: "A123", FullName: "Grace Wanjiru", Department: "Mini India"}).Error)
	require.NoError(t, db.Create(&models.Student{AdmissionNumber: "B456", FullName: "Peter Otieno", Department: "Science"}).Error)

	directory := NewSQLStudentDirectory(db)
	ctx := context.Background()

	student, err := directory.Get(ctx, "B456")
	require.NoError(t, err)
	require.Equal(t, "Peter Otieno", student.FullName)

	_, err = directory.Get(ctx, "Z999")
	require.ErrorIs(t, err, ErrNotFound)

	students, err := directory.Search(ctx, "GRACE", "")
	require.NoError(t, err)
	require.Len(t, students, 1)
	require.Equal(t, "A123", students[0].AdmissionNumber)

	students, err = directory.Search(ctx, "", "")
	require.NoError(t, err)
	require.Len(t, students, 2)
	require.Equal(t, "Grace Wanjiru", students[0].FullName, "expected name order")

	students, err = directory.Search(ctx, "", "science")
	require.NoError(t, err)
	require.Len(t, students, 1)
}

func TestDocumentStudentDirectory(t *testing.T) {
	docs := newMemoryDocs()
	docs.Insert(context.Background(), docstore.CollectionStudents, bson.M{
		models.StudentColumnAdmissionNumber: "C789",
		models.StudentColumnFullName:        "Amina Njeri",
		models.StudentColumnDepartment:      "Arts",
	})
	selector := &fakeSelector{useDocs: true}
	directory := NewDocumentStudentDirectory(docs, selector, newCSVDirectory(t), zerolog.Nop())
	ctx := context.Background()

	student, err := directory.Get(ctx, "C789")
	require.NoError(t, err)
	require.Equal(t, "Amina Njeri", student.FullName)
	require.Equal(t, "/images/placeholder.jpg", student.PhotoURL())

	student, err = directory.Get(ctx, "A123")
	require.NoError(t, err, "students only in the flat file still resolve")
	require.Equal(t, "Grace Wanjiru", student.FullName)

	students, err := directory.Search(ctx, "", "arts")
	require.NoError(t, err)
	require.Len(t, students, 1)
	require.Equal(t, "C789", students[0].AdmissionNumber)

	docs.failing = true
	students, err = directory.Search(ctx, "peter", "")
	require.NoError(t, err)
	require.Len(t, students, 1)
	require.Equal(t, "B456", students[0].AdmissionNumber)

	docs.failing = false
	selector.useDocs = false
	calls := docs.calls
	_, err = directory.Get(ctx, "C789")
	require.ErrorIs(t, err, ErrNotFound)
	require.Equal(t, calls, docs.calls)
}

type countingDirectory struct {
	StudentDirectory
	gets     int
	searches int
}

func (c *countingDirectory) Get(ctx context.Context, admissionNumber string) (models.Student, error) {
	c.gets++
	return c.StudentDirectory.Get(ctx, admissionNumber)
}

func (c *countingDirectory) Search(ctx context.Context, query, department string) ([]models.Student, error) {
	c.searches++
	return c.StudentDirectory.Search(ctx, query, department)
}

func TestCachedStudentDirectory(t *testing.T) {
	mini, err := miniredis.Run()
	require.NoError(t, err)
	defer mini.Close()

	redisClient := redis.NewClient(&redis.Options{Addr: mini.Addr()})
	inner := &countingDirectory{StudentDirectory: newCSVDirectory(t)}
	directory := NewCachedStudentDirectory(inner, redisClient, time.Minute, zerolog.Nop())
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		student, err := directory.Get(ctx, "A123")
		require.NoError(t, err)
		require.Equal(t, "Grace Wanjiru", student.FullName)

		students, err := directory.Search(ctx, "Grace", "")
		require.NoError(t, err)
		require.Len(t, students, 1)
	}
	require.Equal(t, 1, inner.gets)
	require.Equal(t, 1, inner.searches)
	require.True(t, mini.Exists("directory:student:A123"))

	_, err = directory.Get(ctx, "Z999")
	require.ErrorIs(t, err, ErrNotFound)
	require.False(t, mini.Exists("directory:student:Z999"))

	mini.FastForward(2 * time.Minute)
	_, err = directory.Get(ctx, "A123")
	require.NoError(t, err)
	require.Equal(t, 3, inner.gets)
}

func TestCachedStudentDirectoryWithoutClient(t *testing.T) {
	inner := newCSVDirectory(t)
	require.Equal(t, inner, NewCachedStudentDirectory(inner, nil, time.Minute, zerolog.Nop()))
}
