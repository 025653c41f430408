package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/Audatic07/collab-notes/internal/models"
)

var (
	ErrMalformedFrame = errors.New("malformed message")
	ErrUnknownEvent   = errors.New("unknown event")
)

// Event is the closed set of inputs the Manager's loop consumes: Join,
// Leave, Update and Disconnect.
type Event interface {
	owner() *Session
	name() string
}

type Join struct {
	Session    *Session
	DocumentID string
}

type Leave struct {
	Session    *Session
	DocumentID string
}

// Update carries a full replacement of the note's content. Title is nil when
// the client did not send one.
type Update struct {
	Session    *Session
	DocumentID string
	Content    string
	Title      *string
}

type Disconnect struct {
	Session *Session
}

func (e Join) owner() *Session       { return e.Session }
func (e Leave) owner() *Session      { return e.Session }
func (e Update) owner() *Session     { return e.Session }
func (e Disconnect) owner() *Session { return e.Session }

func (Join) name() string       { return models.EventJoinNote }
func (Leave) name() string      { return models.EventLeaveNote }
func (Update) name() string     { return models.EventNoteUpdate }
func (Disconnect) name() string { return "disconnect" }

// ParseEvent decodes one inbound websocket frame into an event for s.
func ParseEvent(s *Session, raw []byte) (Event, error) {
	var frame models.InboundFrame
	if err := json.Unmarshal(raw, &frame); err != nil {
		return nil, ErrMalformedFrame
	}

	switch frame.Type {
	case models.EventJoinNote:
		id, err := decodeDocumentID(frame.Data)
		if err != nil {
			return nil, err
		}
		return Join{Session: s, DocumentID: id}, nil

	case models.EventLeaveNote:
		id, err := decodeDocumentID(frame.Data)
		if err != nil {
			return nil, err
		}
		return Leave{Session: s, DocumentID: id}, nil

	case models.EventNoteUpdate:
		var req models.NoteUpdateRequest
		if err := json.Unmarshal(frame.Data, &req); err != nil {
			return nil, ErrMalformedFrame
		}
		if strings.TrimSpace(req.DocumentID) == "" {
			return nil, ErrMalformedFrame
		}
		return Update{Session: s, DocumentID: req.DocumentID, Content: req.Content, Title: req.Title}, nil

	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownEvent, frame.Type)
	}
}

func decodeDocumentID(data json.RawMessage) (string, error) {
	var id string
	if err := json.Unmarshal(data, &id); err != nil {
		return "", ErrMalformedFrame
	}
	if strings.TrimSpace(id) == "" {
		return "", ErrMalformedFrame
	}
	return id, nil
}

// ErrorFrame is the frame sent to a single connection when its request fails.
func ErrorFrame(message string) models.WSFrame {
	return models.WSFrame{Type: models.EventError, Data: models.ErrorPayload{Message: message}}
}
