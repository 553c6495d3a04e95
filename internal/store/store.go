package store

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strconv"
	"sync"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	appLog "days/internal/log"
	"days/internal/model"
	"days/internal/storage"
)

// DefaultKey is the storage key the event collection lives under.
const DefaultKey = "chrono_events"

// OwnerFunc returns the id of the signed-in user, or "" when nobody is.
type OwnerFunc func(ctx context.Context) string

// Store is the only writer of the event collection. Every mutation runs
// load-merge-save under one mutex and re-reads storage first, so a second
// process writing the same key is picked up on the next call.
type Store struct {
	storage  storage.Storage
	key      string
	clock    clockwork.Clock
	reporter Reporter
	owner    OwnerFunc
	newID    func() (string, error)

	mu sync.Mutex
}

type Option func(*Store)

func WithKey(key string) Option {
	return func(s *Store) {
		if key != "" {
			s.key = key
		}
	}
}

func WithClock(c clockwork.Clock) Option {
	return func(s *Store) { s.clock = c }
}

func WithReporter(r Reporter) Option {
	return func(s *Store) { s.reporter = r }
}

func WithOwner(f OwnerFunc) Option {
	return func(s *Store) { s.owner = f }
}

// WithIDGenerator replaces the default "event_<uuidv7>" generator.
func WithIDGenerator(f func() (string, error)) Option {
	return func(s *Store) { s.newID = f }
}

func New(st storage.Storage, opts ...Option) *Store {
	s := &Store{
		storage:  st,
		key:      DefaultKey,
		clock:    clockwork.NewRealClock(),
		reporter: LogReporter{},
		newID:    newEventID,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func newEventID() (string, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return "", err
	}
	return "event_" + id.String(), nil
}

// Key returns the storage key in use.
func (s *Store) Key() string { return s.key }

// Clock is the time source that stamps records. Consumers derive countdowns
// from it too.
func (s *Store) Clock() clockwork.Clock { return s.clock }

// snapshot is one read of the collection. raw is kept so a lossy read can
// be quarantined before the next write replaces it.
type snapshot struct {
	records []model.EventRecord
	raw     []byte
	lossy   bool
}

func (s *Store) read(ctx context.Context) (snapshot, error) {
	data, found, err := s.storage.Get(ctx, s.key)
	if err != nil {
		return snapshot{}, &StorageIOError{Op: "read", Key: s.key, Err: err}
	}
	if !found {
		return snapshot{}, nil
	}

	records, bad := decodeRecords(s.key, data)
	for _, c := range bad {
		s.report(c)
	}
	return snapshot{records: records, raw: data, lossy: len(bad) > 0}, nil
}

func (s *Store) report(c *StorageCorruptionError) {
	if s.reporter == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			appLog.Warn("corruption reporter panicked", "panic", fmt.Sprint(r))
		}
	}()
	s.reporter.ReportCorruption(c)
}

func (s *Store) write(ctx context.Context, snap snapshot, records []model.EventRecord) error {
	data, err := encodeRecords(records)
	if err != nil {
		return &StorageIOError{Op: "encode", Key: s.key, Err: err}
	}
	if snap.lossy {
		qkey := s.key + ".corrupt"
		if err := s.storage.Set(ctx, qkey, snap.raw); err != nil {
			return &StorageIOError{Op: "quarantine", Key: qkey, Err: err}
		}
		appLog.Warn("quarantined unreadable event data", "key", qkey, "bytes", len(snap.raw))
	}
	if err := s.storage.Set(ctx, s.key, data); err != nil {
		return &StorageIOError{Op: "write", Key: s.key, Err: err}
	}
	return nil
}

// Load returns every decodable record. Missing data is an empty collection.
// Corruption is reported to the Reporter and never returned; only a failing
// storage read yields an error.
func (s *Store) Load(ctx context.Context) ([]model.EventRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap, err := s.read(ctx)
	if err != nil {
		return nil, err
	}
	return cloneAll(snap.records), nil
}

// Get returns one record by id.
func (s *Store) Get(ctx context.Context, id string) (model.EventRecord, error) {
	records, err := s.Load(ctx)
	if err != nil {
		return model.EventRecord{}, err
	}
	for _, r := range records {
		if r.ID == id {
			return r, nil
		}
	}
	return model.EventRecord{}, &NotFoundError{ID: id}
}

// Add validates in, assigns id, owner and timestamps, and persists.
func (s *Store) Add(ctx context.Context, in model.EventInput) (model.EventRecord, error) {
	in.Normalize()
	if err := in.Validate(); err != nil {
		return model.EventRecord{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	snap, err := s.read(ctx)
	if err != nil {
		return model.EventRecord{}, err
	}

	rec, err := s.newRecord(ctx, in, snap.records)
	if err != nil {
		return model.EventRecord{}, err
	}
	records := append(cloneAll(snap.records), rec)
	if err := s.write(ctx, snap, records); err != nil {
		return model.EventRecord{}, err
	}

	appLog.Debug("event added", "id", rec.ID)
	return rec.Clone(), nil
}

// Import adds every input under one lock and one write. Nothing is stored
// unless all inputs validate.
func (s *Store) Import(ctx context.Context, inputs []model.EventInput) ([]model.EventRecord, error) {
	var fields []model.FieldError
	for i := range inputs {
		inputs[i].Normalize()
		var verr *model.ValidationError
		if errors.As(inputs[i].Validate(), &verr) {
			for _, f := range verr.Fields {
				f.Field = "[" + strconv.Itoa(i) + "]." + f.Field
				fields = append(fields, f)
			}
		}
	}
	if len(fields) > 0 {
		return nil, &model.ValidationError{Fields: fields}
	}
	if len(inputs) == 0 {
		return nil, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	snap, err := s.read(ctx)
	if err != nil {
		return nil, err
	}

	records := cloneAll(snap.records)
	added := make([]model.EventRecord, 0, len(inputs))
	for _, in := range inputs {
		rec, err := s.newRecord(ctx, in, records)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
		added = append(added, rec.Clone())
	}
	if err := s.write(ctx, snap, records); err != nil {
		return nil, err
	}

	appLog.Info("events imported", "count", len(added))
	return added, nil
}

// Update merges patch into the record with id. Fields left nil in patch are
// kept exactly as stored.
func (s *Store) Update(ctx context.Context, id string, patch model.Patch) (model.EventRecord, error) {
	patch.Normalize()
	if err := patch.Validate(); err != nil {
		return model.EventRecord{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	snap, err := s.read(ctx)
	if err != nil {
		return model.EventRecord{}, err
	}

	records := cloneAll(snap.records)
	idx := slices.IndexFunc(records, func(r model.EventRecord) bool { return r.ID == id })
	if idx < 0 {
		return model.EventRecord{}, &NotFoundError{ID: id}
	}

	updated := patch.Apply(records[idx])
	now := s.clock.Now().UTC()
	if now.Before(updated.CreatedAt) {
		now = updated.CreatedAt
	}
	updated.UpdatedAt = now
	records[idx] = updated

	if err := s.write(ctx, snap, records); err != nil {
		return model.EventRecord{}, err
	}

	appLog.Debug("event updated", "id", id)
	return updated.Clone(), nil
}

// Remove deletes the record with id. Removing an unknown id is a no-op and
// does not write.
func (s *Store) Remove(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap, err := s.read(ctx)
	if err != nil {
		return err
	}

	records := slices.DeleteFunc(cloneAll(snap.records), func(r model.EventRecord) bool { return r.ID == id })
	if len(records) == len(snap.records) {
		return nil
	}
	if err := s.write(ctx, snap, records); err != nil {
		return err
	}

	appLog.Debug("event removed", "id", id)
	return nil
}

func (s *Store) newRecord(ctx context.Context, in model.EventInput, existing []model.EventRecord) (model.EventRecord, error) {
	id, err := s.uniqueID(existing)
	if err != nil {
		return model.EventRecord{}, err
	}

	rec := in.Record()
	rec.ID = id
	rec.OwnerID = model.LocalOwnerID
	if s.owner != nil {
		if owner := s.owner(ctx); owner != "" {
			rec.OwnerID = owner
		}
	}
	now := s.clock.Now().UTC()
	rec.CreatedAt = now
	rec.UpdatedAt = now
	return rec, nil
}

const maxIDAttempts = 8

func (s *Store) uniqueID(existing []model.EventRecord) (string, error) {
	for range maxIDAttempts {
		id, err := s.newID()
		if err != nil {
			return "", fmt.Errorf("generate event id: %w", err)
		}
		if !slices.ContainsFunc(existing, func(r model.EventRecord) bool { return r.ID == id }) {
			return id, nil
		}
	}
	return "", fmt.Errorf("generate event id: %d collisions in a row", maxIDAttempts)
}

func cloneAll(records []model.EventRecord) []model.EventRecord {
	out := make([]model.EventRecord, len(records))
	for i, r := range records {
		out[i] = r.Clone()
	}
	return out
}
