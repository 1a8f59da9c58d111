package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/go-memdb"
	"github.com/ridge/must/v2"
	"github.com/ridge/travertine/scheduler"
	"github.com/ridge/travertine/tlog"
	"go.uber.org/zap"
)

// Config is the session store configuration
type Config struct {
	// Remove sessions that have not been accessed for this long. 0 to keep
	// sessions until they are removed explicitly.
	IdleTimeout time.Duration
}

// DefaultConfig is the default Config value
var DefaultConfig = Config{
	IdleTimeout: 20 * time.Minute,
}

const (
	tableSession   = "session"
	tableAttribute = "attribute"
)

type sessionRecord struct {
	ID      string
	Created time.Time
	Expires time.Time // zero if the session never expires
}

type attributeRecord struct {
	SessionID string
	Name      string
	Attr      Attribute
}

var schema = &memdb.DBSchema{
	Tables: map[string]*memdb.TableSchema{
		tableSession: {
			Name: tableSession,
			Indexes: map[string]*memdb.IndexSchema{
				"id": {
					Name:    "id",
					Unique:  true,
					Indexer: &memdb.StringFieldIndex{Field: "ID"},
				},
			},
		},
		tableAttribute: {
			Name: tableAttribute,
			Indexes: map[string]*memdb.IndexSchema{
				"id": {
					Name:   "id",
					Unique: true,
					Indexer: &memdb.CompoundIndex{
						Indexes: []memdb.Indexer{
							&memdb.StringFieldIndex{Field: "SessionID"},
							&memdb.StringFieldIndex{Field: "Name"},
						},
					},
				},
				"session": {
					Name:    "session",
					Indexer: &memdb.StringFieldIndex{Field: "SessionID"},
				},
			},
		},
	},
}

// MemStore is an in-process Store.
//
// Expired sessions become invisible immediately, but their objects are only
// released once Run notices the expiry, or on Close.
type MemStore struct {
	config    Config
	db        *memdb.MemDB
	scheduler *scheduler.Scheduler[string]
	now       func() time.Time

	closeOnce sync.Once
}

var _ Store = (*MemStore)(nil)

// NewMemStore creates an empty MemStore
func NewMemStore(config Config) *MemStore {
	return &MemStore{
		config:    config,
		db:        must.OK1(memdb.NewMemDB(schema)),
		scheduler: scheduler.New[string](),
		now:       time.Now,
	}
}

func (s *MemStore) expiry(now time.Time) time.Time {
	if s.config.IdleTimeout == 0 {
		return time.Time{}
	}
	return now.Add(s.config.IdleTimeout)
}

func (s *MemStore) live(rec *sessionRecord, now time.Time) bool {
	return rec.Expires.IsZero() || now.Before(rec.Expires)
}

// lookup returns the live session record, or nil
func (s *MemStore) lookup(txn *memdb.Txn, id string, now time.Time) *sessionRecord {
	if id == "" {
		return nil
	}
	raw := must.OK1(txn.First(tableSession, "id", id))
	if raw == nil {
		return nil
	}
	rec := raw.(*sessionRecord)
	if !s.live(rec, now) {
		return nil
	}
	return rec
}

// touch extends the life of the session within a write transaction
func (s *MemStore) touch(txn *memdb.Txn, rec *sessionRecord, now time.Time) {
	if rec.Expires.IsZero() {
		return
	}
	updated := *rec
	updated.Expires = s.expiry(now)
	must.OK(txn.Insert(tableSession, &updated))
	s.scheduler.Schedule(rec.ID, updated.Expires)
}

// Create implements Store
func (s *MemStore) Create() (string, error) {
	id, err := uuid.NewRandom()
	if err != nil {
		return "", fmt.Errorf("failed to generate session token: %w", err)
	}
	now := s.now()
	rec := &sessionRecord{
		ID:      id.String(),
		Created: now,
		Expires: s.expiry(now),
	}

	txn := s.db.Txn(true)
	defer txn.Abort()
	if err := txn.Insert(tableSession, rec); err != nil {
		return "", fmt.Errorf("failed to create session: %w", err)
	}
	txn.Commit()

	if !rec.Expires.IsZero() {
		s.scheduler.Schedule(rec.ID, rec.Expires)
	}
	return rec.ID, nil
}

// Find implements Store
func (s *MemStore) Find(id string) bool {
	now := s.now()
	txn := s.db.Txn(true)
	defer txn.Abort()

	rec := s.lookup(txn, id, now)
	if rec == nil {
		return false
	}
	s.touch(txn, rec, now)
	txn.Commit()
	return true
}

// SetAttribute implements Store
func (s *MemStore) SetAttribute(id, name string, attr Attribute) error {
	if name == "" {
		return ErrEmptyName
	}

	now := s.now()
	txn := s.db.Txn(true)
	defer txn.Abort()

	rec := s.lookup(txn, id, now)
	if rec == nil {
		return ErrNotFound
	}

	var previous Attribute
	if raw := must.OK1(txn.First(tableAttribute, "id", id, name)); raw != nil {
		previous = raw.(*attributeRecord).Attr
	}
	if err := txn.Insert(tableAttribute, &attributeRecord{SessionID: id, Name: name, Attr: attr}); err != nil {
		return fmt.Errorf("failed to set session attribute %q: %w", name, err)
	}
	s.touch(txn, rec, now)
	txn.Commit()

	if previous.kind == KindObject && (attr.kind != KindObject || previous.object != attr.object) {
		previous.release()
	}
	return nil
}

// Attribute implements Store
func (s *MemStore) Attribute(id, name string) (Attribute, bool) {
	now := s.now()
	txn := s.db.Txn(true)
	defer txn.Abort()

	rec := s.lookup(txn, id, now)
	if rec == nil {
		return Attribute{}, false
	}
	raw := must.OK1(txn.First(tableAttribute, "id", id, name))
	s.touch(txn, rec, now)
	txn.Commit()

	if raw == nil {
		return Attribute{}, false
	}
	return raw.(*attributeRecord).Attr, true
}

// AttributeNames implements Store. The names are sorted.
func (s *MemStore) AttributeNames(id string) []string {
	txn := s.db.Txn(false)
	if s.lookup(txn, id, s.now()) == nil {
		return nil
	}

	var names []string
	it := must.OK1(txn.Get(tableAttribute, "session", id))
	for raw := it.Next(); raw != nil; raw = it.Next() {
		names = append(names, raw.(*attributeRecord).Name)
	}
	return names
}

// RemoveAttribute implements Store
func (s *MemStore) RemoveAttribute(id, name string) {
	txn := s.db.Txn(true)
	defer txn.Abort()

	if s.lookup(txn, id, s.now()) == nil {
		return
	}
	raw := must.OK1(txn.First(tableAttribute, "id", id, name))
	if raw == nil {
		return
	}
	must.OK(txn.Delete(tableAttribute, raw))
	txn.Commit()

	raw.(*attributeRecord).Attr.release()
}

// Remove implements Store
func (s *MemStore) Remove(id string) {
	s.scheduler.Cancel(id)
	txn := s.db.Txn(true)
	defer txn.Abort()

	released := s.delete(txn, id)
	txn.Commit()

	for _, attr := range released {
		attr.release()
	}
}

// delete removes a session record with its attributes and returns the
// removed attributes
func (s *MemStore) delete(txn *memdb.Txn, id string) []Attribute {
	raw := must.OK1(txn.First(tableSession, "id", id))
	if raw == nil {
		return nil
	}
	must.OK(txn.Delete(tableSession, raw))

	var removed []Attribute
	it := must.OK1(txn.Get(tableAttribute, "session", id))
	for raw := it.Next(); raw != nil; raw = it.Next() {
		removed = append(removed, raw.(*attributeRecord).Attr)
	}
	must.OK1(txn.DeleteAll(tableAttribute, "session", id))
	return removed
}

// Len returns the number of stored sessions, including expired ones that
// have not been collected yet
func (s *MemStore) Len() int {
	txn := s.db.Txn(false)
	it := must.OK1(txn.Get(tableSession, "id_prefix", ""))
	n := 0
	for raw := it.Next(); raw != nil; raw = it.Next() {
		n++
	}
	return n
}

// expire removes the given sessions if they are really past their expiry
// time. An alarm can be stale if the session was touched concurrently with
// the alarm firing.
func (s *MemStore) expire(ids []string) int {
	now := s.now()
	txn := s.db.Txn(true)
	defer txn.Abort()

	var released []Attribute
	n := 0
	for _, id := range ids {
		raw := must.OK1(txn.First(tableSession, "id", id))
		if raw == nil || s.live(raw.(*sessionRecord), now) {
			continue
		}
		released = append(released, s.delete(txn, id)...)
		n++
	}
	txn.Commit()

	for _, attr := range released {
		attr.release()
	}
	return n
}

// Run removes expired sessions until the context is closed
func (s *MemStore) Run(ctx context.Context) error {
	logger := tlog.Get(tlog.Named(ctx, "sessions"))
	for {
		select {
		case <-s.scheduler.Wait():
			if n := s.expire(s.scheduler.Get()); n > 0 {
				logger.Debug("Sessions expired", zap.Int("count", n))
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Close removes all sessions, releasing their objects
func (s *MemStore) Close() {
	s.closeOnce.Do(func() {
		s.scheduler.Clear()

		txn := s.db.Txn(true)
		defer txn.Abort()

		var released []Attribute
		// "_prefix" is the magic suffix recognized by memdb to enable
		// prefix search; the empty prefix matches everything
		it := must.OK1(txn.Get(tableAttribute, "session_prefix", ""))
		for raw := it.Next(); raw != nil; raw = it.Next() {
			released = append(released, raw.(*attributeRecord).Attr)
		}
		must.OK1(txn.DeleteAll(tableAttribute, "session_prefix", ""))
		must.OK1(txn.DeleteAll(tableSession, "id_prefix", ""))
		txn.Commit()

		for _, attr := range released {
			attr.release()
		}
	})
}
