package handlers

import (
	"io"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/dcespedes8/avicontrol/internal/store"
)

// EventsHandler streams collection-changed notifications to stations over
// SSE, so an open weighing screen refreshes when another device syncs in an
// update.
type EventsHandler struct {
	store  *store.Store
	logger *zap.Logger
}

// NewEventsHandler constructs the SSE adapter.
func NewEventsHandler(st *store.Store, logger *zap.Logger) *EventsHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EventsHandler{store: st, logger: logger}
}

// Stream subscribes the connection to store notifications until the client
// disconnects.
func (h *EventsHandler) Stream(c *gin.Context) {
	ch := make(chan store.Collection, 16)
	cancel := h.store.Subscribe(func(col store.Collection) {
		select {
		case ch <- col:
		default:
			// drop if this client is slow; the next event re-syncs it
		}
	})
	defer cancel()

	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")

	c.Stream(func(w io.Writer) bool {
		select {
		case col, ok := <-ch:
			if !ok {
				return false
			}
			c.SSEvent("collection", string(col))
			return true
		case <-c.Request.Context().Done():
			return false
		}
	})
}
