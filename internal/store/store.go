// Package store owns the canonical in-memory representation of all tickets
// and leads. It is the only component performing I/O against the durable
// medium; every other component is a pure transformation over snapshots.
package store

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/support-chat/internal/domain"
	"github.com/spec-kit/support-chat/internal/persistence"
)

// Snapshot is a deep, detached copy of the chat state. Callers must route
// every mutation through the services, never by editing a snapshot.
type Snapshot struct {
	Tickets []domain.Ticket
	Leads   []domain.Lead
}

// Listener receives committed snapshots.
type Listener func(Snapshot)

// Store serializes all mutations behind one mutex, persists whole
// collections on every commit, and re-reads on external change
// notifications from sibling processes.
type Store struct {
	mu          sync.Mutex
	kv          persistence.KV
	notifier    persistence.Notifier
	logger      *zap.Logger
	origin      string
	tickets     []domain.Ticket
	leads       []domain.Lead
	listeners   map[int]Listener
	nextListen  int
	cancelWatch func()
}

// New rehydrates state from the durable medium and begins watching for
// external changes. Malformed persisted values decode to empty collections.
func New(ctx context.Context, kv persistence.KV, notifier persistence.Notifier, logger *zap.Logger) (*Store, error) {
	s := &Store{
		kv:        kv,
		notifier:  notifier,
		logger:    logger,
		origin:    uuid.NewString(),
		listeners: make(map[int]Listener),
	}
	s.tickets = s.loadTickets(ctx)
	s.leads = s.loadLeads(ctx)

	if notifier != nil {
		cancel, err := notifier.Subscribe(ctx, s.onExternalChange)
		if err != nil {
			return nil, err
		}
		s.cancelWatch = cancel
	}
	return s, nil
}

// Close stops the external-change watcher.
func (s *Store) Close() {
	if s.cancelWatch != nil {
		s.cancelWatch()
	}
}

// Snapshot returns a deep, detached copy of the current state.
func (s *Store) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

// Subscribe registers a listener, immediately feeds it the current snapshot,
// and returns its unsubscribe function. Listeners also fire on every
// committed mutation and on externally observed changes.
func (s *Store) Subscribe(l Listener) func() {
	s.mu.Lock()
	id := s.nextListen
	s.nextListen++
	s.listeners[id] = l
	snap := s.snapshotLocked()
	s.mu.Unlock()

	l(snap)

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.listeners, id)
	}
}

// MutateTickets applies a pure updater over the ticket collection, persists
// the result, and broadcasts. The updater receives a detached copy; its
// return value becomes the new canonical collection.
func (s *Store) MutateTickets(ctx context.Context, fn func([]domain.Ticket) []domain.Ticket) error {
	return s.Mutate(ctx, func(snap *Snapshot) {
		snap.Tickets = fn(snap.Tickets)
	})
}

// MutateLeads applies a pure updater over the lead collection.
func (s *Store) MutateLeads(ctx context.Context, fn func([]domain.Lead) []domain.Lead) error {
	return s.Mutate(ctx, func(snap *Snapshot) {
		snap.Leads = fn(snap.Leads)
	})
}

// Mutate applies an updater over both collections atomically relative to
// other mutations; lead merges use this to re-point tickets and collapse
// lead records in one commit.
func (s *Store) Mutate(ctx context.Context, fn func(*Snapshot)) error {
	s.mu.Lock()
	work := s.snapshotLocked()
	fn(&work)
	s.tickets = work.Tickets
	s.leads = work.Leads

	if err := s.persistLocked(ctx); err != nil {
		s.mu.Unlock()
		return err
	}
	listeners := s.listenerList()
	snap := s.snapshotLocked()
	s.mu.Unlock()

	for _, l := range listeners {
		l(cloneSnapshot(snap))
	}
	return nil
}

// NextLeadNumber returns the next value of the monotonically increasing,
// globally unique lead sequence.
func (s *Store) NextLeadNumber(ctx context.Context) (int64, error) {
	return s.kv.Incr(ctx, persistence.KeyLeadSeq)
}

// SaveSession persists the anonymous-visitor-to-lead binding.
func (s *Store) SaveSession(ctx context.Context, visitorID string, binding domain.SessionBinding) error {
	raw, err := json.Marshal(binding)
	if err != nil {
		return err
	}
	return s.kv.Set(ctx, persistence.SessionKeyPrefix+visitorID, raw)
}

// LoadSession returns the stored binding for a visitor, or nil.
func (s *Store) LoadSession(ctx context.Context, visitorID string) (*domain.SessionBinding, error) {
	raw, err := s.kv.Get(ctx, persistence.SessionKeyPrefix+visitorID)
	if err != nil || raw == nil {
		return nil, err
	}
	var binding domain.SessionBinding
	if err := json.Unmarshal(raw, &binding); err != nil {
		s.logger.Warn("malformed session binding, ignoring", zap.String("visitor", visitorID))
		return nil, nil
	}
	return &binding, nil
}

// onExternalChange re-reads the durable medium when another process writes
// one of our collections, then re-broadcasts.
func (s *Store) onExternalChange(key, origin string) {
	if origin == s.origin {
		return
	}
	if key != persistence.KeyTickets && key != persistence.KeyLeads {
		return
	}
	ctx := context.Background()

	s.mu.Lock()
	switch key {
	case persistence.KeyTickets:
		s.tickets = s.loadTickets(ctx)
	case persistence.KeyLeads:
		s.leads = s.loadLeads(ctx)
	}
	listeners := s.listenerList()
	snap := s.snapshotLocked()
	s.mu.Unlock()

	for _, l := range listeners {
		l(cloneSnapshot(snap))
	}
}

func (s *Store) persistLocked(ctx context.Context) error {
	rawTickets, err := json.Marshal(s.tickets)
	if err != nil {
		return err
	}
	rawLeads, err := json.Marshal(s.leads)
	if err != nil {
		return err
	}
	if err := s.kv.Set(ctx, persistence.KeyTickets, rawTickets); err != nil {
		return err
	}
	if err := s.kv.Set(ctx, persistence.KeyLeads, rawLeads); err != nil {
		return err
	}
	if s.notifier != nil {
		if err := s.notifier.Publish(ctx, persistence.KeyTickets, s.origin); err != nil {
			s.logger.Warn("change notification failed", zap.Error(err))
		}
		if err := s.notifier.Publish(ctx, persistence.KeyLeads, s.origin); err != nil {
			s.logger.Warn("change notification failed", zap.Error(err))
		}
	}
	return nil
}

func (s *Store) loadTickets(ctx context.Context) []domain.Ticket {
	raw, err := s.kv.Get(ctx, persistence.KeyTickets)
	if err != nil {
		s.logger.Warn("reading tickets from durable store failed", zap.Error(err))
		return []domain.Ticket{}
	}
	return DecodeTickets(raw, s.logger)
}

func (s *Store) loadLeads(ctx context.Context) []domain.Lead {
	raw, err := s.kv.Get(ctx, persistence.KeyLeads)
	if err != nil {
		s.logger.Warn("reading leads from durable store failed", zap.Error(err))
		return []domain.Lead{}
	}
	return DecodeLeads(raw, s.logger)
}

func (s *Store) snapshotLocked() Snapshot {
	return Snapshot{
		Tickets: cloneTickets(s.tickets),
		Leads:   cloneLeads(s.leads),
	}
}

func (s *Store) listenerList() []Listener {
	out := make([]Listener, 0, len(s.listeners))
	for _, l := range s.listeners {
		out = append(out, l)
	}
	return out
}

func cloneSnapshot(snap Snapshot) Snapshot {
	return Snapshot{
		Tickets: cloneTickets(snap.Tickets),
		Leads:   cloneLeads(snap.Leads),
	}
}

func cloneTickets(tickets []domain.Ticket) []domain.Ticket {
	out := make([]domain.Ticket, len(tickets))
	for i := range tickets {
		out[i] = cloneTicket(tickets[i])
	}
	return out
}

func cloneTicket(t domain.Ticket) domain.Ticket {
	clone := t
	clone.ResolvedAt = cloneTime(t.ResolvedAt)
	clone.SLADueAt = cloneTime(t.SLADueAt)
	if t.LeadCategories != nil {
		clone.LeadCategories = append([]domain.LeadCategory(nil), t.LeadCategories...)
	}
	clone.Messages = make([]domain.Message, len(t.Messages))
	for i := range t.Messages {
		msg := t.Messages[i]
		if msg.Attachments != nil {
			msg.Attachments = append([]domain.Attachment(nil), msg.Attachments...)
		}
		clone.Messages[i] = msg
	}
	return clone
}

func cloneLeads(leads []domain.Lead) []domain.Lead {
	out := make([]domain.Lead, len(leads))
	for i := range leads {
		clone := leads[i]
		if leads[i].Categories != nil {
			clone.Categories = append([]domain.LeadCategory(nil), leads[i].Categories...)
		}
		out[i] = clone
	}
	return out
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	copied := *t
	return &copied
}
