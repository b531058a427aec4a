package api

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"

	"MarketPulse/internal/eventbus"
	"MarketPulse/internal/usecase"
	"MarketPulse/pkg/config"
	applogger "MarketPulse/pkg/logger"

	"github.com/labstack/echo/v4"
)

func sseHandler(t *testing.T, bus *eventbus.Bus) *Handler {
	t.Helper()
	l, err := applogger.New(&applogger.Config{Level: "error", Format: "console", Output: "stdout"})
	if err != nil {
		t.Fatal(err)
	}
	cfg := &config.Config{Asset: "ETH-USD"}
	computer := usecase.NewSignalComputer(cfg, nil, nil, bus, nil, nil, l)
	return NewHandler(l, nil, computer, bus, nil, "ETH-USD", "ETHUSDT")
}

// The replay tail must reach a fresh client oldest-first so event ids
// ascend, matching the /api/events?since_id cursor contract.
func TestStreamSSEReplayAscends(t *testing.T) {
	bus := eventbus.New(16)
	for i := 0; i < 5; i++ {
		bus.Publish("signal", fmt.Sprintf("tick %d", i), nil)
	}

	e := echo.New()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	req := httptest.NewRequest(http.MethodGet, "/events", nil).WithContext(ctx)
	rec := httptest.NewRecorder()

	if err := sseHandler(t, bus).StreamSSE(e.NewContext(req, rec)); err != nil {
		t.Fatalf("StreamSSE: %v", err)
	}

	var ids []int64
	for _, line := range strings.Split(rec.Body.String(), "\n") {
		if !strings.HasPrefix(line, "id: ") {
			continue
		}
		id, err := strconv.ParseInt(strings.TrimPrefix(line, "id: "), 10, 64)
		if err != nil {
			t.Fatalf("bad id line %q: %v", line, err)
		}
		ids = append(ids, id)
	}
	if len(ids) != 5 {
		t.Fatalf("replayed %d events, want 5", len(ids))
	}
	for i, id := range ids {
		if want := int64(i + 1); id != want {
			t.Fatalf("replay out of order: got ids %v", ids)
		}
	}
}
