package db

import (
	"context"

	"github.com/google/uuid"
)

// TeamResolver answers which users belong to a caller's team.
// Team membership lives outside this subsystem.
type TeamResolver interface {
	Members(ctx context.Context, callerID uuid.UUID) ([]uuid.UUID, error)
}

// StaticTeams is a TeamResolver backed by a fixed lead -> members table
type StaticTeams map[uuid.UUID][]uuid.UUID

// Members returns the lead's team, including the lead, or just the caller when they lead no team.
func (t StaticTeams) Members(_ context.Context, callerID uuid.UUID) ([]uuid.UUID, error) {
	members := []uuid.UUID{callerID}
	seen := map[uuid.UUID]bool{callerID: true}
	for _, id := range t[callerID] {
		if !seen[id] {
			seen[id] = true
			members = append(members, id)
		}
	}
	return members, nil
}
