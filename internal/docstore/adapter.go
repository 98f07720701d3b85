package docstore

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

// Collection names inside the logical portal database.
const (
	CollectionStudents    = "students"
	CollectionTerms       = "terms"
	CollectionReports     = "reports"
	CollectionBiographies = "biographies"
)

const (
	defaultDatabase               = "student_portal"
	defaultConnectTimeout         = 15 * time.Second
	defaultServerSelectionTimeout = 10 * time.Second
)

var (
	// ErrUnavailable is returned without touching the network once the adapter
	// has been marked unusable.
	ErrUnavailable = errors.New("document store unavailable")
	// ErrNotConfigured indicates no connection URI was supplied.
	ErrNotConfigured = errors.New("document store uri not configured")
)

// Config carries connection settings for the document store.
type Config struct {
	URI                    string
	Database               string
	ConnectTimeout         time.Duration
	ServerSelectionTimeout time.Duration
}

func (c Config) withDefaults() Config {
	if c.Database == "" {
		c.Database = defaultDatabase
	}
	if c.ConnectTimeout <= 0 {
		c.ConnectTimeout = defaultConnectTimeout
	}
	if c.ServerSelectionTimeout <= 0 {
		c.ServerSelectionTimeout = defaultServerSelectionTimeout
	}
	return c
}

// Result is the outcome of one adapter call. Err is nil on success; Connectivity
// reports whether a failure was caused by the connection itself.
type Result struct {
	Acknowledged bool
	Matched      bool
	Modified     int64
	InsertedID   string
	Documents    []bson.M
	Err          error
	Connectivity bool
}

// OK reports whether the call completed without error.
func (r Result) OK() bool {
	return r.Err == nil
}

// causeBox keeps the atomic.Value concrete type stable across error types.
type causeBox struct {
	err error
}

// Adapter wraps the long-lived MongoDB connection shared by every request.
type Adapter struct {
	mu        sync.RWMutex
	client    *mongo.Client
	db        *mongo.Database
	name      string
	available atomic.Bool
	cause     atomic.Value
	logger    zerolog.Logger
}

// New constructs an adapter that is unavailable until Initialize succeeds.
func New(logger zerolog.Logger) *Adapter {
	return &Adapter{
		name:   defaultDatabase,
		logger: logger.With().Str("component", "docstore").Logger(),
	}
}

// NewWithDatabase wraps an already connected database handle and marks it usable.
func NewWithDatabase(db *mongo.Database, logger zerolog.Logger) *Adapter {
	a := New(logger)
	a.client = db.Client()
	a.db = db
	a.name = db.Name()
	a.available.Store(true)
	return a
}

// Initialize connects with bounded timeouts and confirms the connection with a
// ping. Failures are recorded and reported as false; they never propagate.
func (a *Adapter) Initialize(ctx context.Context, cfg Config) bool {
	cfg = cfg.withDefaults()

	a.mu.Lock()
	defer a.mu.Unlock()

	a.name = cfg.Database
	if cfg.URI == "" {
		a.fail(ErrNotConfigured)
		a.logger.Info().Msg("document store uri not set")
		return false
	}

	a.logger.Info().Str("database", cfg.Database).Msg("attempting document store connection")

	opts := options.Client().
		ApplyURI(cfg.URI).
		SetConnectTimeout(cfg.ConnectTimeout).
		SetServerSelectionTimeout(cfg.ServerSelectionTimeout)

	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		a.fail(fmt.Errorf("connect: %w", err))
		a.logger.Warn().Err(err).Msg("document store connection failed")
		return false
	}

	db := client.Database(cfg.Database)
	pingCtx, cancel := context.WithTimeout(ctx, cfg.ServerSelectionTimeout+cfg.ConnectTimeout)
	defer cancel()
	if err := db.RunCommand(pingCtx, bson.D{{Key: "ping", Value: 1}}).Err(); err != nil {
		_ = client.Disconnect(context.Background())
		a.fail(fmt.Errorf("ping: %w", err))
		a.logger.Warn().Err(err).Msg("document store ping failed")
		return false
	}

	a.client = client
	a.db = db
	a.available.Store(true)
	a.logger.Info().Str("database", cfg.Database).Msg("document store connected")
	return true
}

// EnsureIndexes creates the identifier and timestamp indexes of every
// collection.
func (a *Adapter) EnsureIndexes(ctx context.Context) error {
	db, err := a.database()
	if err != nil {
		return err
	}

	indexes := map[string][]mongo.IndexModel{
		CollectionStudents: {
			{Keys: bson.D{{Key: "Admission Number", Value: 1}}},
		},
		CollectionTerms: {
			{Keys: bson.D{{Key: "AdmissionNumber", Value: 1}}},
			{Keys: bson.D{{Key: "Timestamp", Value: -1}}},
		},
		CollectionReports: {
			{Keys: bson.D{{Key: "AdmissionNumber", Value: 1}}},
			{Keys: bson.D{{Key: "CreatedAt", Value: -1}}},
		},
		CollectionBiographies: {
			{Keys: bson.D{{Key: "AdmissionNumber", Value: 1}}},
			{Keys: bson.D{{Key: "LastUpdated", Value: -1}}},
		},
	}

	for _, collection := range []string{CollectionStudents, CollectionTerms, CollectionReports, CollectionBiographies} {
		if _, err := db.Collection(collection).Indexes().CreateMany(ctx, indexes[collection]); err != nil {
			a.observe(err)
			return fmt.Errorf("create %s indexes: %w", collection, err)
		}
	}

	a.logger.Info().Msg("document store indexes ensured")
	return nil
}

// Available is a cached read of the connection state; it never probes.
func (a *Adapter) Available() bool {
	return a.available.Load()
}

// Cause returns the failure that made the adapter unavailable, if any.
func (a *Adapter) Cause() error {
	if v, ok := a.cause.Load().(causeBox); ok {
		return v.err
	}
	return nil
}

// DatabaseName returns the logical database name.
func (a *Adapter) DatabaseName() string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.name
}

// MarkUnavailable demotes the adapter so later callers short-circuit.
func (a *Adapter) MarkUnavailable(cause error) {
	if cause == nil {
		cause = ErrUnavailable
	}
	if a.available.Swap(false) {
		a.logger.Warn().Err(cause).Msg("document store marked unavailable")
	}
	a.cause.Store(causeBox{err: cause})
}

// Ping issues a liveness probe against the primary.
func (a *Adapter) Ping(ctx context.Context) error {
	db, err := a.database()
	if err != nil {
		return err
	}
	if err := db.Client().Ping(ctx, readpref.Primary()); err != nil {
		a.observe(err)
		return err
	}
	return nil
}

// CollectionNames lists the collections of the logical database.
func (a *Adapter) CollectionNames(ctx context.Context) ([]string, error) {
	db, err := a.database()
	if err != nil {
		return nil, err
	}
	names, err := db.ListCollectionNames(ctx, bson.D{})
	if err != nil {
		a.observe(err)
		return nil, err
	}
	return names, nil
}

// Insert stores one document.
func (a *Adapter) Insert(ctx context.Context, collection string, document interface{}) Result {
	db, err := a.database()
	if err != nil {
		return a.failed(err)
	}

	res, err := db.Collection(collection).InsertOne(ctx, document)
	if err != nil {
		return a.failed(err)
	}

	return Result{Acknowledged: true, InsertedID: idString(res.InsertedID)}
}

// Find returns the documents matching filter ordered by sortField.
func (a *Adapter) Find(ctx context.Context, collection string, filter bson.M, sortField string, descending bool) Result {
	db, err := a.database()
	if err != nil {
		return a.failed(err)
	}

	opts := options.Find()
	if sortField != "" {
		direction := 1
		if descending {
			direction = -1
		}
		opts.SetSort(bson.D{{Key: sortField, Value: direction}})
	}

	cursor, err := db.Collection(collection).Find(ctx, filter, opts)
	if err != nil {
		return a.failed(err)
	}

	documents := make([]bson.M, 0)
	if err := cursor.All(ctx, &documents); err != nil {
		return a.failed(err)
	}

	return Result{Acknowledged: true, Matched: len(documents) > 0, Documents: documents}
}

// UpdateOne applies patch with $set to the first document matching filter.
func (a *Adapter) UpdateOne(ctx context.Context, collection string, filter, patch bson.M, upsert bool) Result {
	db, err := a.database()
	if err != nil {
		return a.failed(err)
	}

	opts := options.Update().SetUpsert(upsert)
	res, err := db.Collection(collection).UpdateOne(ctx, filter, bson.M{"$set": patch}, opts)
	if err != nil {
		return a.failed(err)
	}

	return Result{
		Acknowledged: true,
		Matched:      res.MatchedCount > 0 || res.UpsertedCount > 0,
		Modified:     res.ModifiedCount + res.UpsertedCount,
		InsertedID:   idString(res.UpsertedID),
	}
}

// DeleteOne removes the first document matching filter.
func (a *Adapter) DeleteOne(ctx context.Context, collection string, filter bson.M) Result {
	db, err := a.database()
	if err != nil {
		return a.failed(err)
	}

	res, err := db.Collection(collection).DeleteOne(ctx, filter)
	if err != nil {
		return a.failed(err)
	}

	return Result{Acknowledged: true, Matched: res.DeletedCount > 0}
}

// Close disconnects the client.
func (a *Adapter) Close(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.available.Store(false)
	if a.client == nil {
		return nil
	}
	err := a.client.Disconnect(ctx)
	a.client = nil
	a.db = nil
	return err
}

func (a *Adapter) database() (*mongo.Database, error) {
	if !a.available.Load() {
		return nil, ErrUnavailable
	}
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.db == nil {
		return nil, ErrUnavailable
	}
	return a.db, nil
}

func (a *Adapter) failed(err error) Result {
	connectivity := errors.Is(err, ErrUnavailable) || a.observe(err)
	return Result{Err: err, Connectivity: connectivity}
}

// observe demotes the adapter when err indicates the connection is gone.
func (a *Adapter) observe(err error) bool {
	if !IsConnectivityError(err) {
		return false
	}
	a.MarkUnavailable(err)
	return true
}

func (a *Adapter) fail(err error) {
	a.available.Store(false)
	a.cause.Store(causeBox{err: err})
}

// IsConnectivityError reports whether err means the server cannot be reached.
func IsConnectivityError(err error) bool {
	if err == nil {
		return false
	}
	return mongo.IsNetworkError(err) ||
		mongo.IsTimeout(err) ||
		errors.Is(err, mongo.ErrClientDisconnected) ||
		errors.Is(err, context.DeadlineExceeded)
}
