package utils

import (
	"encoding/json"
	"fmt"
	"net/http"

	logx "github.com/zhouzirui/moodchat/backend/pkg/logger"
)

// SetupSSEHeaders prepares w for a Server-Sent Events stream. CORS headers are
// left to the middleware.
func SetupSSEHeaders(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
}

// SendSSEEvent writes one named event and flushes it.
func SendSSEEvent(w http.ResponseWriter, flusher http.Flusher, event string, data interface{}) error {
	jsonData, err := json.Marshal(data)
	if err != nil {
		logx.Error().Err(err).Str("event", event).Msg("failed to marshal sse event data")
		return err
	}

	if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, jsonData); err != nil {
		logx.Debug().Err(err).Str("event", event).Msg("failed to write sse event")
		return err
	}
	flusher.Flush()
	return nil
}
