package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	xlogger "MarketPulse/pkg/logger"

	"github.com/labstack/echo/v4"
)

const sseKeepalive = 25 * time.Second

// StreamSSE pushes bus events as server-sent events. The event id
// doubles as the resume cursor for /api/events?since_id=.
func (h *Handler) StreamSSE(c echo.Context) error {
	w := c.Response()
	w.Header().Set(echo.HeaderContentType, "text/event-stream")
	w.Header().Set(echo.HeaderCacheControl, "no-cache")
	w.Header().Set(echo.HeaderConnection, "keep-alive")
	w.WriteHeader(http.StatusOK)
	w.Flush()

	ch, cancel := h.bus.Subscribe()
	defer cancel()

	// current snapshot first, then a short replay tail so a fresh
	// client is not staring at nothing
	if b, err := json.Marshal(h.computer.State()); err == nil {
		if _, err := fmt.Fprintf(w, "event: state\ndata: %s\n\n", b); err != nil {
			return nil
		}
	}
	// Latest is newest-first; replay oldest-first so event ids
	// reach the client in ascending order.
	tail := h.bus.Latest(10)
	for i := len(tail) - 1; i >= 0; i-- {
		if err := writeSSE(w, tail[i].ID, tail[i]); err != nil {
			return nil
		}
	}
	w.Flush()

	keepalive := time.NewTicker(sseKeepalive)
	defer keepalive.Stop()

	ctx := c.Request().Context()
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-ch:
			if !ok {
				return nil
			}
			if err := writeSSE(w, ev.ID, ev); err != nil {
				h.logger.Debug("sse client gone", xlogger.Error(err))
				return nil
			}
			w.Flush()
		case <-keepalive.C:
			if _, err := fmt.Fprint(w, ": keepalive\n\n"); err != nil {
				return nil
			}
			w.Flush()
		}
	}
}

func writeSSE(w *echo.Response, id int64, payload any) error {
	b, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "id: %d\ndata: %s\n\n", id, b)
	return err
}
