package chat

import (
	"sort"
	"time"
)

// Role identifies the author of a chat turn.
type Role string

const (
	RoleUser Role = "user"
	RoleBot  Role = "bot"
)

// Turn is one immutable chat entry.
type Turn struct {
	ID        string    `json:"id,omitempty"`
	Role      Role      `json:"type"`
	Text      string    `json:"message"`
	CreatedAt time.Time `json:"createdAt"`
}

// SortByCreatedAt orders turns by creation time in place. The sort is stable so
// a user/bot pair sharing a timestamp keeps its append order.
func SortByCreatedAt(turns []Turn) {
	sort.SliceStable(turns, func(i, j int) bool {
		return turns[i].CreatedAt.Before(turns[j].CreatedAt)
	})
}
