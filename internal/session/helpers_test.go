package session

import (
	"context"
	"encoding/json"
	"sync"
	"testing"

	"go.uber.org/zap"

	"github.com/Audatic07/collab-notes/internal/events"
	"github.com/Audatic07/collab-notes/internal/models"
)

// recorder captures frames handed to a client's send hook.
type recorder struct {
	mu     sync.Mutex
	frames []models.WSFrame
}

func (r *recorder) hook(frame models.WSFrame) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.frames = append(r.frames, frame)
}

func (r *recorder) all() []models.WSFrame {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]models.WSFrame(nil), r.frames...)
}

func (r *recorder) ofType(typ string) []models.WSFrame {
	var out []models.WSFrame
	for _, f := range r.all() {
		if f.Type == typ {
			out = append(out, f)
		}
	}
	return out
}

func (r *recorder) last(typ string) (models.WSFrame, bool) {
	frames := r.ofType(typ)
	if len(frames) == 0 {
		return models.WSFrame{}, false
	}
	return frames[len(frames)-1], true
}

func (r *recorder) reset() {
	r.mu.Lock()
	r.frames = nil
	r.mu.Unlock()
}

// newTestSession builds an authenticated session whose client records
// outgoing frames instead of writing to a socket.
func newTestSession(id string, entry models.PresenceEntry) (*Session, *recorder) {
	rec := &recorder{}
	c := NewClient(nil, zap.NewNop(), DefaultClientOptions())
	c.SetSendHook(rec.hook)
	s := &Session{
		ID:          id,
		UserID:      entry.UserID,
		DisplayName: entry.Name,
		Email:       entry.Email,
		state:       StateAuthenticated,
		rooms:       make(map[string]struct{}),
	}
	s.Attach(c)
	return s, rec
}

type mockDirectory struct {
	FindOwnerFunc    func(ctx context.Context, documentID string) (string, bool, error)
	WriteContentFunc func(ctx context.Context, documentID, content string, title *string) error

	mu     sync.Mutex
	writes []write
}

type write struct {
	DocumentID string
	Content    string
	Title      *string
}

func (m *mockDirectory) FindOwner(ctx context.Context, documentID string) (string, bool, error) {
	if m.FindOwnerFunc != nil {
		return m.FindOwnerFunc(ctx, documentID)
	}
	return "", false, nil
}

func (m *mockDirectory) WriteContent(ctx context.Context, documentID, content string, title *string) error {
	if m.WriteContentFunc != nil {
		if err := m.WriteContentFunc(ctx, documentID, content, title); err != nil {
			return err
		}
	}
	m.mu.Lock()
	m.writes = append(m.writes, write{DocumentID: documentID, Content: content, Title: title})
	m.mu.Unlock()
	return nil
}

func (m *mockDirectory) savedWrites() []write {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]write(nil), m.writes...)
}

// ownedBy returns a directory where every id in docs exists and is owned by owner.
func ownedBy(owner string, docs ...string) *mockDirectory {
	known := make(map[string]bool, len(docs))
	for _, d := range docs {
		known[d] = true
	}
	return &mockDirectory{
		FindOwnerFunc: func(_ context.Context, id string) (string, bool, error) {
			if !known[id] {
				return "", false, nil
			}
			return owner, true, nil
		},
	}
}

type mockPublisher struct {
	mu    sync.Mutex
	saved []events.NoteSaved
	err   error
}

func (p *mockPublisher) PublishNoteSaved(_ context.Context, ev events.NoteSaved) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.saved = append(p.saved, ev)
	return p.err
}

func (p *mockPublisher) published() []events.NoteSaved {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]events.NoteSaved(nil), p.saved...)
}

// decode re-encodes a frame's payload into out, the way a client would see it.
func decode(t *testing.T, frame models.WSFrame, out interface{}) {
	t.Helper()
	raw, err := json.Marshal(frame.Data)
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		t.Fatalf("unmarshal payload: %v", err)
	}
}
