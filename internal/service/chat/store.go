package chat

import (
	"context"
	"time"

	"github.com/zhouzirui/moodchat/backend/internal/model/chat"
	"github.com/zhouzirui/moodchat/backend/internal/model/emotion"
)

// Store owns every user's emotion counters and chat history. All operations are
// keyed by an opaque user id and are safe for concurrent use. Unknown users are
// never an error: reads return the zero state and deletes are no-ops.
type Store interface {
	// RecordEmotions adds one to every category flagged in v.
	RecordEmotions(ctx context.Context, user string, v emotion.Vector) error
	// AppendTurns appends a user turn followed by a bot turn. Both carry the same
	// timestamp, no earlier than now, so a pair never splits when sorted.
	AppendTurns(ctx context.Context, user, userText, botText string, now time.Time) error
	// History returns the user's turns ordered by creation time.
	History(ctx context.Context, user string) ([]chat.Turn, error)
	// EmotionCounts returns the user's full counter set.
	EmotionCounts(ctx context.Context, user string) (emotion.Counts, error)
	// DeleteUser drops the user's counters and history together.
	DeleteUser(ctx context.Context, user string) error
}
