package session

import "github.com/Audatic07/collab-notes/internal/models"

// Registry maps note rooms to the sessions present in them. It is not
// synchronized: only the Manager's event loop may touch it.
type Registry struct {
	rooms map[string]*roomMembers
}

type roomMembers struct {
	entries map[string]models.PresenceEntry
	order   []string
}

func NewRegistry() *Registry {
	return &Registry{rooms: make(map[string]*roomMembers)}
}

// Add registers a session in a room, creating the room on first join.
// Adding the same session again replaces its entry in place.
func (r *Registry) Add(room, sessionID string, entry models.PresenceEntry) {
	members, ok := r.rooms[room]
	if !ok {
		members = &roomMembers{entries: make(map[string]models.PresenceEntry)}
		r.rooms[room] = members
	}
	if _, exists := members.entries[sessionID]; !exists {
		members.order = append(members.order, sessionID)
	}
	members.entries[sessionID] = entry
}

// Remove drops a session from a room and deletes the room once it is empty.
// It reports whether the room is now gone.
func (r *Registry) Remove(room, sessionID string) bool {
	members, ok := r.rooms[room]
	if !ok {
		return true
	}
	if _, exists := members.entries[sessionID]; exists {
		delete(members.entries, sessionID)
		for i, id := range members.order {
			if id == sessionID {
				members.order = append(members.order[:i], members.order[i+1:]...)
				break
			}
		}
	}
	if len(members.entries) == 0 {
		delete(r.rooms, room)
		return true
	}
	return false
}

// Members returns the room's entries in join order. The slice is a copy.
func (r *Registry) Members(room string) []models.PresenceEntry {
	members, ok := r.rooms[room]
	if !ok {
		return []models.PresenceEntry{}
	}
	out := make([]models.PresenceEntry, 0, len(members.order))
	for _, id := range members.order {
		out = append(out, members.entries[id])
	}
	return out
}

// SessionIDs returns the ids of the sessions in a room, in join order.
func (r *Registry) SessionIDs(room string) []string {
	members, ok := r.rooms[room]
	if !ok {
		return nil
	}
	out := make([]string, len(members.order))
	copy(out, members.order)
	return out
}

func (r *Registry) Has(room string) bool {
	_, ok := r.rooms[room]
	return ok
}

// Len is the number of live rooms.
func (r *Registry) Len() int { return len(r.rooms) }
