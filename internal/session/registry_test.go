package session

import (
	"testing"

	"github.com/Audatic07/collab-notes/internal/models"
)

var (
	alice = models.PresenceEntry{UserID: "a", Name: "Alice", Email: "alice@example.com"}
	bob   = models.PresenceEntry{UserID: "b", Name: "Bob", Email: "bob@example.com"}
)

func TestRegistryAddAndMembers(t *testing.T) {
	reg := NewRegistry()
	if got := reg.Members("doc"); len(got) != 0 {
		t.Fatalf("expected no members, got %#v", got)
	}
	if reg.Has("doc") {
		t.Fatalf("room should not exist before first join")
	}

	reg.Add("doc", "s1", alice)
	reg.Add("doc", "s2", bob)

	got := reg.Members("doc")
	if len(got) != 2 || got[0] != alice || got[1] != bob {
		t.Fatalf("expected [alice bob], got %#v", got)
	}
	if reg.Len() != 1 {
		t.Fatalf("expected 1 room, got %d", reg.Len())
	}
}

func TestRegistryAddIsIdempotent(t *testing.T) {
	reg := NewRegistry()
	reg.Add("doc", "s1", alice)
	reg.Add("doc", "s2", bob)
	renamed := alice
	renamed.Name = "Alice B."
	reg.Add("doc", "s1", renamed)

	got := reg.Members("doc")
	if len(got) != 2 {
		t.Fatalf("expected 2 entries after re-join, got %d", len(got))
	}
	if got[0] != renamed {
		t.Fatalf("re-join should keep position and refresh entry, got %#v", got)
	}
}

func TestRegistrySameUserTwoSessions(t *testing.T) {
	reg := NewRegistry()
	reg.Add("doc", "tab-1", alice)
	reg.Add("doc", "tab-2", alice)

	if got := reg.Members("doc"); len(got) != 2 {
		t.Fatalf("each session is its own entry, got %#v", got)
	}
}

func TestRegistryRemoveDeletesEmptyRoom(t *testing.T) {
	reg := NewRegistry()
	reg.Add("doc", "s1", alice)
	reg.Add("doc", "s2", bob)

	if empty := reg.Remove("doc", "s1"); empty {
		t.Fatalf("room still has bob")
	}
	if got := reg.Members("doc"); len(got) != 1 || got[0] != bob {
		t.Fatalf("expected [bob], got %#v", got)
	}
	if empty := reg.Remove("doc", "s2"); !empty {
		t.Fatalf("expected room to be empty")
	}
	if reg.Has("doc") || reg.Len() != 0 {
		t.Fatalf("empty room must be deleted")
	}
}

func TestRegistryRemoveUnknown(t *testing.T) {
	reg := NewRegistry()
	if empty := reg.Remove("ghost", "s1"); !empty {
		t.Fatalf("missing room reports empty")
	}

	reg.Add("doc", "s1", alice)
	if empty := reg.Remove("doc", "stranger"); empty {
		t.Fatalf("removing a non-member must not empty the room")
	}
	if got := reg.Members("doc"); len(got) != 1 {
		t.Fatalf("expected alice to remain, got %#v", got)
	}
}

func TestRegistryMembersReturnsCopy(t *testing.T) {
	reg := NewRegistry()
	reg.Add("doc", "s1", alice)

	got := reg.Members("doc")
	got[0].Name = "mutated"
	if reg.Members("doc")[0].Name != "Alice" {
		t.Fatalf("registry state leaked through Members")
	}

	ids := reg.SessionIDs("doc")
	ids[0] = "mutated"
	if reg.SessionIDs("doc")[0] != "s1" {
		t.Fatalf("registry state leaked through SessionIDs")
	}
}
