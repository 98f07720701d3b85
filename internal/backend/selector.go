package backend

import (
	"context"
	"errors"
	"sync"

	"github.com/looplab/fsm"
	"github.com/rs/zerolog"

	"github.com/noah-isme/sponsor-portal-api/internal/docstore"
)

// Selector states.
const (
	StateUninitialized = "uninitialized"
	StateProbing       = "probing"
	StateMongoActive   = "mongo_active"
	StateCSVOnly       = "csv_only"
)

const (
	eventProbe    = "probe"
	eventActivate = "activate"
	eventDegrade  = "degrade"
	eventDemote   = "demote"
)

// Modes reported to callers and status endpoints.
const (
	ModeMongo = "MongoDB"
	ModeCSV   = "CSV"
)

// Store is the slice of the document store the selector drives.
type Store interface {
	Initialize(ctx context.Context, cfg docstore.Config) bool
	EnsureIndexes(ctx context.Context) error
	Available() bool
	MarkUnavailable(cause error)
	Cause() error
	Ping(ctx context.Context) error
	CollectionNames(ctx context.Context) ([]string, error)
	DatabaseName() string
}

// Selector decides once per process which backend answers record calls.
// It prefers the document store and settles on the flat files when the store
// cannot be reached or indexed; it never moves back without a restart.
type Selector struct {
	store   Store
	machine *fsm.FSM
	logger  zerolog.Logger

	mu        sync.Mutex
	listeners []func(state string)
}

// NewSelector builds a selector in the uninitialized state.
func NewSelector(store Store, logger zerolog.Logger) *Selector {
	s := &Selector{
		store:  store,
		logger: logger.With().Str("component", "backend_selector").Logger(),
	}

	s.machine = fsm.NewFSM(
		StateUninitialized,
		fsm.Events{
			{Name: eventProbe, Src: []string{StateUninitialized}, Dst: StateProbing},
			{Name: eventActivate, Src: []string{StateProbing}, Dst: StateMongoActive},
			{Name: eventDegrade, Src: []string{StateProbing}, Dst: StateCSVOnly},
			{Name: eventDemote, Src: []string{StateMongoActive}, Dst: StateCSVOnly},
		},
		fsm.Callbacks{
			"enter_state": func(_ context.Context, e *fsm.Event) {
				s.logger.Debug().Str("from", e.Src).Str("to", e.Dst).Msg("backend state changed")
				s.notify(e.Dst)
			},
		},
	)

	return s
}

// OnStateChange registers a listener invoked after every transition.
func (s *Selector) OnStateChange(listener func(state string)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, listener)
}

// Initialize probes the document store and settles the selector. A connection
// whose indexes cannot be created is treated as unusable. Calling it again
// returns the settled state.
func (s *Selector) Initialize(ctx context.Context, cfg docstore.Config) string {
	if err := s.machine.Event(ctx, eventProbe); err != nil {
		return s.machine.Current()
	}

	if !s.store.Initialize(ctx, cfg) {
		s.logger.Info().AnErr("cause", s.store.Cause()).Msg("using flat-file storage")
		s.fire(ctx, eventDegrade)
		return s.machine.Current()
	}

	if err := s.store.EnsureIndexes(ctx); err != nil {
		s.store.MarkUnavailable(err)
		s.logger.Warn().Err(err).Msg("document store initialisation failed, falling back to flat-file storage")
		s.fire(ctx, eventDegrade)
		return s.machine.Current()
	}

	s.fire(ctx, eventActivate)
	s.logger.Info().Str("database", s.store.DatabaseName()).Msg("database mode: MongoDB")
	return s.machine.Current()
}

// State returns the current selector state.
func (s *Selector) State() string {
	return s.machine.Current()
}

// UseDocumentStore reports whether the next call should try the document store.
// It re-reads the store's cached availability on every call and demotes the
// selector once that flag has been cleared.
func (s *Selector) UseDocumentStore() bool {
	if s.machine.Current() != StateMongoActive {
		return false
	}
	if s.store.Available() {
		return true
	}

	s.logger.Warn().AnErr("cause", s.store.Cause()).Msg("document store lost, serving from flat files")
	s.fire(context.Background(), eventDemote)
	return false
}

// Mode names the backend currently answering calls.
func (s *Selector) Mode() string {
	if s.UseDocumentStore() {
		return ModeMongo
	}
	return ModeCSV
}

// Status is the payload of the database status probe.
type Status struct {
	Success     bool     `json:"success"`
	Message     string   `json:"message"`
	Mode        string   `json:"mode"`
	Database    string   `json:"database,omitempty"`
	Collections []string `json:"collections,omitempty"`
	Error       string   `json:"error,omitempty"`
}

// Status probes the document store when it is the active backend. A failing
// probe demotes the store.
func (s *Selector) Status(ctx context.Context) Status {
	if !s.UseDocumentStore() {
		return Status{Message: "MongoDB not connected - using CSV fallback", Mode: ModeCSV}
	}

	collections, err := s.probe(ctx)
	if err != nil {
		s.store.MarkUnavailable(err)
		s.fire(ctx, eventDemote)
		return Status{
			Message: "MongoDB connection test failed",
			Mode:    ModeCSV,
			Error:   err.Error(),
		}
	}

	return Status{
		Success:     true,
		Message:     "MongoDB connected successfully",
		Mode:        ModeMongo,
		Database:    s.store.DatabaseName(),
		Collections: collections,
	}
}

func (s *Selector) probe(ctx context.Context) ([]string, error) {
	if err := s.store.Ping(ctx); err != nil {
		return nil, err
	}
	return s.store.CollectionNames(ctx)
}

func (s *Selector) fire(ctx context.Context, event string) {
	err := s.machine.Event(ctx, event)
	var noTransition fsm.NoTransitionError
	if err != nil && !errors.As(err, &noTransition) {
		s.logger.Debug().Err(err).Str("event", event).Msg("backend transition skipped")
	}
}

func (s *Selector) notify(state string) {
	s.mu.Lock()
	listeners := append([]func(string){}, s.listeners...)
	s.mu.Unlock()

	for _, listener := range listeners {
		listener(state)
	}
}
