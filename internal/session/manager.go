package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/Audatic07/collab-notes/internal/events"
	"github.com/Audatic07/collab-notes/internal/metrics"
	"github.com/Audatic07/collab-notes/internal/models"
)

var (
	ErrNoteNotFound   = errors.New("note not found")
	ErrNotOwner       = errors.New("only the owner can edit this note")
	ErrSaveFailed     = errors.New("failed to save note")
	ErrLookupFailed   = errors.New("failed to load note")
	ErrManagerStopped = errors.New("session manager stopped")
)

// DocumentDirectory is the document store contract: ownership lookup for
// authorization, and content persistence.
type DocumentDirectory interface {
	FindOwner(ctx context.Context, documentID string) (ownerID string, found bool, err error)
	WriteContent(ctx context.Context, documentID, content string, title *string) error
}

// Stats is a point-in-time count of live state.
type Stats struct {
	Sessions int `json:"sessions"`
	Rooms    int `json:"rooms"`
}

// Manager owns every session and the presence registry. All events from all
// connections are handled on the single goroutine running Run, one at a time
// and to completion, so the registry needs no locking.
type Manager struct {
	log       *zap.Logger
	docs      DocumentDirectory
	publisher events.Publisher

	registry    *Registry
	broadcaster *Broadcaster
	sessions    map[string]*Session

	register chan *Session
	events   chan Event
	queries  chan func()

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
}

type Option func(*Manager)

// WithPublisher sets where accepted note saves are announced.
func WithPublisher(p events.Publisher) Option {
	return func(m *Manager) {
		if p != nil {
			m.publisher = p
		}
	}
}

// WithQueueSize sets the capacity of the inbound event queue.
func WithQueueSize(n int) Option {
	return func(m *Manager) {
		if n > 0 {
			m.events = make(chan Event, n)
		}
	}
}

func NewManager(log *zap.Logger, docs DocumentDirectory, opts ...Option) *Manager {
	ctx, cancel := context.WithCancel(context.Background())
	m := &Manager{
		log:       log,
		docs:      docs,
		publisher: events.NopPublisher{},
		registry:  NewRegistry(),
		sessions:  make(map[string]*Session),
		register:  make(chan *Session),
		events:    make(chan Event, 1024),
		queries:   make(chan func()),
		ctx:       ctx,
		cancel:    cancel,
		done:      make(chan struct{}),
	}
	for _, opt := range opts {
		opt(m)
	}
	m.broadcaster = NewBroadcaster(m.registry, m.lookup, log)
	return m
}

// Run is the event loop. It returns after Shutdown.
func (m *Manager) Run() {
	defer close(m.done)

	for {
		select {
		case <-m.ctx.Done():
			m.closeAll()
			return
		case s := <-m.register:
			m.attach(s)
		case ev := <-m.events:
			m.dispatch(ev)
		case q := <-m.queries:
			q()
		}
	}
}

// Register hands an authenticated session to the loop. It returns once the
// loop has accepted it, so events submitted afterwards see the session.
func (m *Manager) Register(s *Session) error {
	if s == nil || s.state != StateAuthenticated {
		return fmt.Errorf("register session: not authenticated")
	}
	if m.ctx.Err() != nil {
		return ErrManagerStopped
	}
	select {
	case m.register <- s:
		return nil
	case <-m.ctx.Done():
		return ErrManagerStopped
	}
}

// Submit queues an event. Events from one connection must be submitted from
// one goroutine to keep their order.
func (m *Manager) Submit(ev Event) error {
	if m.ctx.Err() != nil {
		return ErrManagerStopped
	}
	select {
	case m.events <- ev:
		return nil
	case <-m.ctx.Done():
		return ErrManagerStopped
	}
}

// Presence returns the current membership of a note room.
func (m *Manager) Presence(ctx context.Context, documentID string) ([]models.PresenceEntry, error) {
	result := make(chan []models.PresenceEntry, 1)
	if err := m.query(ctx, func() { result <- m.registry.Members(documentID) }); err != nil {
		return nil, err
	}
	return <-result, nil
}

// Stats counts sessions and rooms.
func (m *Manager) Stats(ctx context.Context) (Stats, error) {
	result := make(chan Stats, 1)
	if err := m.query(ctx, func() { result <- Stats{Sessions: len(m.sessions), Rooms: m.registry.Len()} }); err != nil {
		return Stats{}, err
	}
	return <-result, nil
}

func (m *Manager) query(ctx context.Context, fn func()) error {
	if m.ctx.Err() != nil {
		return ErrManagerStopped
	}
	select {
	case m.queries <- fn:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-m.ctx.Done():
		return ErrManagerStopped
	}
}

// Shutdown stops the loop and closes every connection, waiting at most
// timeout for the loop to finish.
func (m *Manager) Shutdown(timeout time.Duration) error {
	m.cancel()
	select {
	case <-m.done:
		return nil
	case <-time.After(timeout):
		return context.DeadlineExceeded
	}
}

func (m *Manager) lookup(id string) (*Session, bool) {
	s, ok := m.sessions[id]
	return s, ok
}

func (m *Manager) attach(s *Session) {
	m.sessions[s.ID] = s
	metrics.SetActiveSessions(len(m.sessions))
	m.log.Info("session attached",
		zap.String("session", s.ID),
		zap.String("user", s.UserID),
		zap.Int("sessions", len(m.sessions)))
}

// dispatch is the single entry point for events. A panic in a handler is
// contained here and the session is torn down as if it had disconnected.
func (m *Manager) dispatch(ev Event) {
	s := ev.owner()
	if s == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			m.log.Error("recovered from panic while handling event",
				zap.String("event", ev.name()),
				zap.String("session", s.ID),
				zap.Any("panic", r))
			metrics.ObserveEvent(ev.name(), "panic")
			m.disconnect(s)
		}
	}()

	if _, ok := m.sessions[s.ID]; !ok || s.state != StateAuthenticated {
		metrics.ObserveEvent(ev.name(), "ignored")
		return
	}

	switch e := ev.(type) {
	case Join:
		m.join(e.Session, e.DocumentID)
	case Leave:
		m.leave(e.Session, e.DocumentID)
	case Update:
		m.update(e)
	case Disconnect:
		m.disconnect(e.Session)
	default:
		m.log.Error("unhandled event type", zap.String("type", fmt.Sprintf("%T", ev)))
	}
}

func (m *Manager) join(s *Session, documentID string) {
	_, found, err := m.docs.FindOwner(m.ctx, documentID)
	if err != nil {
		m.log.Error("note lookup failed", zap.String("document", documentID), zap.Error(err))
		m.fail(s, models.EventJoinNote, ErrLookupFailed)
		return
	}
	if !found {
		m.fail(s, models.EventJoinNote, ErrNoteNotFound)
		return
	}

	m.registry.Add(documentID, s.ID, s.Entry())
	s.rooms[documentID] = struct{}{}
	metrics.SetActiveRooms(m.registry.Len())
	metrics.ObserveEvent(models.EventJoinNote, "ok")

	m.broadcastPresence(documentID)
	m.log.Debug("session joined note", zap.String("session", s.ID), zap.String("document", documentID))
}

func (m *Manager) leave(s *Session, documentID string) {
	if !s.inRoom(documentID) {
		metrics.ObserveEvent(models.EventLeaveNote, "noop")
		return
	}
	delete(s.rooms, documentID)
	empty := m.registry.Remove(documentID, s.ID)
	metrics.SetActiveRooms(m.registry.Len())
	metrics.ObserveEvent(models.EventLeaveNote, "ok")

	if empty {
		m.log.Debug("note room closed", zap.String("document", documentID))
		return
	}
	m.broadcastPresence(documentID)
}

// update is last-write-wins: the owner's content replaces whatever is stored.
// Nothing is announced unless the write succeeded.
func (m *Manager) update(e Update) {
	s := e.Session
	owner, found, err := m.docs.FindOwner(m.ctx, e.DocumentID)
	if err != nil {
		m.log.Error("note lookup failed", zap.String("document", e.DocumentID), zap.Error(err))
		m.fail(s, models.EventNoteUpdate, ErrLookupFailed)
		return
	}
	if !found {
		m.fail(s, models.EventNoteUpdate, ErrNoteNotFound)
		return
	}
	if owner != s.UserID {
		m.log.Warn("rejected note update from non-owner",
			zap.String("document", e.DocumentID),
			zap.String("user", s.UserID))
		m.fail(s, models.EventNoteUpdate, ErrNotOwner)
		return
	}

	if err := m.docs.WriteContent(m.ctx, e.DocumentID, e.Content, e.Title); err != nil {
		m.log.Error("failed to persist note update", zap.String("document", e.DocumentID), zap.Error(err))
		m.fail(s, models.EventNoteUpdate, ErrSaveFailed)
		return
	}
	metrics.ObserveEvent(models.EventNoteUpdate, "ok")

	m.broadcaster.EmitToRoom(e.DocumentID, models.EventNoteUpdated, models.NoteUpdated{
		DocumentID: e.DocumentID,
		Content:    e.Content,
		Title:      e.Title,
		UpdatedBy:  s.DisplayName,
	})

	saved := events.NoteSaved{
		DocumentID: e.DocumentID,
		UserID:     s.UserID,
		UpdatedBy:  s.DisplayName,
		Title:      e.Title,
		SavedAt:    time.Now().UTC(),
	}
	if err := m.publisher.PublishNoteSaved(m.ctx, saved); err != nil {
		m.log.Warn("failed to publish note saved event", zap.String("document", e.DocumentID), zap.Error(err))
	}
}

// disconnect leaves every joined room, then discards the session.
func (m *Manager) disconnect(s *Session) {
	if _, ok := m.sessions[s.ID]; !ok {
		return
	}
	for _, room := range s.Rooms() {
		m.leave(s, room)
	}
	delete(m.sessions, s.ID)
	s.state = StateClosed
	if s.client != nil {
		s.client.Close()
	}
	metrics.SetActiveSessions(len(m.sessions))
	metrics.ObserveEvent("disconnect", "ok")
	m.log.Info("session closed",
		zap.String("session", s.ID),
		zap.String("user", s.UserID),
		zap.Int("sessions", len(m.sessions)))
}

func (m *Manager) closeAll() {
	for id, s := range m.sessions {
		s.state = StateClosed
		if s.client != nil {
			s.client.Close()
		}
		delete(m.sessions, id)
	}
	m.registry = NewRegistry()
	m.broadcaster = NewBroadcaster(m.registry, m.lookup, m.log)
	metrics.SetActiveSessions(0)
	metrics.SetActiveRooms(0)
	m.log.Info("session manager stopped")
}

func (m *Manager) broadcastPresence(documentID string) {
	m.broadcaster.EmitToRoom(documentID, models.EventPresenceUpdate, models.PresenceUpdate{
		DocumentID: documentID,
		Users:      m.registry.Members(documentID),
	})
}

// fail reports an error to the acting session only.
func (m *Manager) fail(s *Session, event string, err error) {
	metrics.ObserveEvent(event, "rejected")
	s.send(ErrorFrame(err.Error()))
}
