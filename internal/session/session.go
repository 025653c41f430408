package session

import (
	"context"
	"fmt"
	"sort"

	"github.com/google/uuid"

	"github.com/Audatic07/collab-notes/internal/accounts"
	"github.com/Audatic07/collab-notes/internal/models"
)

// State is the lifecycle of one connection.
type State int

const (
	StateConnecting State = iota
	StateAuthenticating
	StateAuthenticated
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateAuthenticating:
		return "authenticating"
	case StateAuthenticated:
		return "authenticated"
	case StateClosed:
		return "closed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// CredentialVerifier is the account service contract consumed at handshake.
type CredentialVerifier interface {
	Verify(token string) (accounts.Identity, error)
	DisplayName(ctx context.Context, userID string) (string, error)
}

// Session is one live, authenticated connection. After Authenticate returns,
// only the Manager's event loop reads or writes it.
type Session struct {
	ID          string
	UserID      string
	DisplayName string
	Email       string

	state  State
	rooms  map[string]struct{}
	client *Client
}

// Authenticate runs the handshake half of the state machine. On any failure
// no session is returned and the connection must be refused.
func Authenticate(ctx context.Context, verifier CredentialVerifier, token string) (*Session, error) {
	s := &Session{state: StateConnecting, rooms: make(map[string]struct{})}

	s.state = StateAuthenticating
	identity, err := verifier.Verify(token)
	if err != nil {
		s.state = StateClosed
		return nil, err
	}
	name, err := verifier.DisplayName(ctx, identity.UserID)
	if err != nil {
		s.state = StateClosed
		return nil, err
	}

	s.ID = uuid.NewString()
	s.UserID = identity.UserID
	s.Email = identity.Email
	s.DisplayName = name
	s.state = StateAuthenticated
	return s, nil
}

func (s *Session) State() State { return s.state }

// Attach binds the transport the session's frames go out on.
func (s *Session) Attach(c *Client) { s.client = c }

func (s *Session) Client() *Client { return s.client }

// Entry is how this session appears in presence snapshots.
func (s *Session) Entry() models.PresenceEntry {
	return models.PresenceEntry{UserID: s.UserID, Name: s.DisplayName, Email: s.Email}
}

// Rooms lists the note rooms the session has joined, sorted.
func (s *Session) Rooms() []string {
	out := make([]string, 0, len(s.rooms))
	for room := range s.rooms {
		out = append(out, room)
	}
	sort.Strings(out)
	return out
}

func (s *Session) inRoom(room string) bool {
	_, ok := s.rooms[room]
	return ok
}

func (s *Session) send(frame models.WSFrame) {
	if s.client != nil {
		s.client.Send(frame)
	}
}
