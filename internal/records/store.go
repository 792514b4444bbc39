// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package records keeps the per-document processing table and persists it
// after every mutation.
package records

import (
	"fmt"
	"sync"
	"time"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"

	"github.com/pdiddy/docflow/internal/logging"
	"github.com/pdiddy/docflow/pkg/types"
)

// Persister reads and writes the whole record table.
type Persister interface {
	// Load returns the stored records in table order. A missing store is not
	// an error; Load returns no records.
	Load() ([]types.ProcessingRecord, error)

	// Save overwrites the stored table with records.
	Save(records []types.ProcessingRecord) error
}

// Archiver is implemented by persisters that can move an unreadable table
// aside so that starting a new one does not destroy it.
type Archiver interface {
	Archive() (string, error)
}

// Updater is the write side of the Store, used by pipeline components.
type Updater interface {
	Update(name string, u types.RecordUpdate)
}

// Store is the in-memory record table. Every Update is serialized by a single
// mutex around read, merge, write, and persist.
type Store struct {
	mu      sync.Mutex
	records []types.ProcessingRecord
	index   map[string]int
	persist Persister
	logger  log.Logger
	now     func() time.Time
}

// Option configures a Store.
type Option func(*Store)

// WithClock overrides the time source used for timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// Open builds a Store backed by p, loading any existing records. A table
// that cannot be read is replaced by a fresh, empty one. When p is an
// Archiver the unreadable table is moved aside first, and Open fails if
// that move fails.
func Open(p Persister, logger log.Logger, opts ...Option) (*Store, error) {
	if p == nil {
		return nil, fmt.Errorf("records: nil persister")
	}
	s := &Store{
		index:   make(map[string]int),
		persist: p,
		logger:  log.With(logging.OrNop(logger), "component", "records"),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}

	existing, err := p.Load()
	if err != nil {
		if a, ok := p.(Archiver); ok {
			backup, aerr := a.Archive()
			if aerr != nil {
				return nil, fmt.Errorf("records: table unreadable (%v) and could not be kept: %w", err, aerr)
			}
			level.Warn(s.logger).Log("msg", "could not read record table, moved it aside", "backup", backup, "err", err)
		} else {
			level.Warn(s.logger).Log("msg", "could not read record table, starting a new one", "err", err)
		}
		s.save()
		return s, nil
	}
	for _, r := range existing {
		if r.Name == "" {
			continue
		}
		if i, ok := s.index[r.Name]; ok {
			s.records[i] = r
			continue
		}
		s.index[r.Name] = len(s.records)
		s.records = append(s.records, r)
	}
	level.Info(s.logger).Log("msg", "record table loaded", "records", len(s.records))
	return s, nil
}

// Update creates the record for name if absent, otherwise merges the
// supplied fields of u into it. FirstProcessedAt is set only while empty.
// The whole table is persisted afterwards; persistence failures are logged
// and never returned.
func (s *Store) Update(name string, u types.RecordUpdate) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()

	i, ok := s.index[name]
	if !ok {
		i = len(s.records)
		s.index[name] = i
		s.records = append(s.records, types.ProcessingRecord{Name: name})
	}
	r := &s.records[i]

	if u.Markdown != nil {
		r.Markdown = types.FlagOf(*u.Markdown)
	}
	if u.Images != nil {
		r.Images = types.FlagOf(*u.Images)
	}
	if u.ImageCount != nil && *u.ImageCount >= 0 {
		r.ImageCount = *u.ImageCount
	}
	if u.Note != "" {
		r.Note = u.Note
	}
	if u.WorkflowStatus != "" {
		r.WorkflowStatus = u.WorkflowStatus
		r.WorkflowProcessedAt = now
	}
	if u.WorkflowFileID != "" {
		r.WorkflowFileID = u.WorkflowFileID
	}
	if u.WorkflowResult != "" {
		r.WorkflowResult = u.WorkflowResult
	}
	if r.FirstProcessedAt.IsZero() {
		r.FirstProcessedAt = now
	}

	s.save()
}

// Get returns a copy of the record for name.
func (s *Store) Get(name string) (types.ProcessingRecord, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i, ok := s.index[name]
	if !ok {
		return types.ProcessingRecord{}, false
	}
	return s.records[i], true
}

// All returns a copy of every record in table order.
func (s *Store) All() []types.ProcessingRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]types.ProcessingRecord, len(s.records))
	copy(out, s.records)
	return out
}

// Len returns the number of records.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records)
}

// save must be called with s.mu held.
func (s *Store) save() {
	snapshot := make([]types.ProcessingRecord, len(s.records))
	copy(snapshot, s.records)
	if err := s.persist.Save(snapshot); err != nil {
		level.Error(s.logger).Log("msg", "saving record table failed", "err", err)
	}
}

// Bool returns a pointer to b, for RecordUpdate fields.
func Bool(b bool) *bool { return &b }

// Int returns a pointer to n.
func Int(n int) *int { return &n }
