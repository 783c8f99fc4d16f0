package server

import (
	"sort"

	"github.com/anchal79/StudySphere-Collaborative-Study-Hub/internal/types"
)

// roster derives the presence list from the live connection set. Presence is
// never stored: a user is present exactly while a connection of theirs is
// attached to the room.
func (r *Room) roster() []types.PresenceEntry {
	r.clientLock.RLock()
	defer r.clientLock.RUnlock()

	return r.rosterLocked()
}

func (r *Room) rosterLocked() []types.PresenceEntry {
	entries := make([]types.PresenceEntry, 0, len(r.clients))
	for c := range r.clients {
		entries = append(entries, types.PresenceEntry{
			ConnectionId: c.id,
			UserId:       c.user.Id,
			Username:     c.user.Username,
		})
	}

	// map iteration order is random; sort so every observer sees the same list
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Username != entries[j].Username {
			return entries[i].Username < entries[j].Username
		}
		return entries[i].ConnectionId < entries[j].ConnectionId
	})

	return entries
}
