package session

import (
	"errors"
	"testing"
)

func TestParseEvent(t *testing.T) {
	s, _ := newTestSession("s", alice)

	ev, err := ParseEvent(s, []byte(`{"type":"join-note","data":"N"}`))
	if err != nil {
		t.Fatalf("join: %v", err)
	}
	if join, ok := ev.(Join); !ok || join.DocumentID != "N" || join.Session != s {
		t.Fatalf("unexpected join %#v", ev)
	}

	ev, err = ParseEvent(s, []byte(`{"type":"leave-note","data":"N"}`))
	if err != nil {
		t.Fatalf("leave: %v", err)
	}
	if leave, ok := ev.(Leave); !ok || leave.DocumentID != "N" {
		t.Fatalf("unexpected leave %#v", ev)
	}

	ev, err = ParseEvent(s, []byte(`{"type":"note-update","data":{"documentId":"N","content":"hi","title":"T"}}`))
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	update, ok := ev.(Update)
	if !ok || update.DocumentID != "N" || update.Content != "hi" || update.Title == nil || *update.Title != "T" {
		t.Fatalf("unexpected update %#v", ev)
	}

	ev, err = ParseEvent(s, []byte(`{"type":"note-update","data":{"documentId":"N","content":""}}`))
	if err != nil {
		t.Fatalf("update without title: %v", err)
	}
	if update := ev.(Update); update.Title != nil || update.Content != "" {
		t.Fatalf("expected empty content and no title, got %#v", update)
	}
}

func TestParseEventRejects(t *testing.T) {
	s, _ := newTestSession("s", alice)
	tests := []struct {
		name string
		raw  string
		want error
	}{
		{name: "not json", raw: `nope`, want: ErrMalformedFrame},
		{name: "join with object", raw: `{"type":"join-note","data":{"id":"N"}}`, want: ErrMalformedFrame},
		{name: "join with blank id", raw: `{"type":"join-note","data":"  "}`, want: ErrMalformedFrame},
		{name: "leave without data", raw: `{"type":"leave-note"}`, want: ErrMalformedFrame},
		{name: "update without document", raw: `{"type":"note-update","data":{"content":"x"}}`, want: ErrMalformedFrame},
		{name: "update with string", raw: `{"type":"note-update","data":"x"}`, want: ErrMalformedFrame},
		{name: "unknown type", raw: `{"type":"delete-note","data":"N"}`, want: ErrUnknownEvent},
		{name: "outbound type", raw: `{"type":"note-updated","data":"N"}`, want: ErrUnknownEvent},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ev, err := ParseEvent(s, []byte(tt.raw))
			if !errors.Is(err, tt.want) {
				t.Fatalf("expected %v, got %v (%#v)", tt.want, err, ev)
			}
		})
	}
}
