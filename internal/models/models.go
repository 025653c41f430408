package models

import (
	"encoding/json"
	"time"
)

/*** Records owned by the account and document stores ***/

// User is the account row the credential verifier resolves display names from.
type User struct {
	ID        string `gorm:"primaryKey" json:"id"`
	Name      string `gorm:"not null" json:"name"`
	Email     string `gorm:"uniqueIndex;not null" json:"email"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Document is a note. The collaboration layer only reads OwnerID and writes
// Title/Content.
type Document struct {
	ID        string    `gorm:"primaryKey" json:"id"`
	OwnerID   string    `gorm:"index;not null" json:"ownerId"`
	Title     string    `json:"title"`
	Content   string    `gorm:"type:text" json:"content"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

/*** Websocket event surface ***/

const (
	EventJoinNote       = "join-note"
	EventLeaveNote      = "leave-note"
	EventNoteUpdate     = "note-update"
	EventNoteUpdated    = "note-updated"
	EventPresenceUpdate = "presence-update"
	EventError          = "error"
)

// WSFrame is an outbound frame.
type WSFrame struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

// InboundFrame defers decoding of Data until the event type is known.
type InboundFrame struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

type NoteUpdateRequest struct {
	DocumentID string  `json:"documentId"`
	Content    string  `json:"content"`
	Title      *string `json:"title,omitempty"`
}

type NoteUpdated struct {
	DocumentID string  `json:"documentId"`
	Content    string  `json:"content"`
	Title      *string `json:"title,omitempty"`
	UpdatedBy  string  `json:"updatedBy"`
}

// PresenceEntry is one connected session as other room members see it.
type PresenceEntry struct {
	UserID string `json:"userId"`
	Name   string `json:"name"`
	Email  string `json:"email"`
}

// PresenceUpdate is a full membership snapshot, never a delta.
type PresenceUpdate struct {
	DocumentID string          `json:"documentId"`
	Users      []PresenceEntry `json:"users"`
}

type ErrorPayload struct {
	Message string `json:"message"`
}
