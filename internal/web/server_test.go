package web

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/vitos/trade_signal_bot/internal/domain"
	"go.uber.org/zap"
)

func testSnapshot() domain.Snapshot {
	return domain.Snapshot{
		Running:  true,
		LastTick: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC),
		Account:  domain.Account{Equity: 10000, Cash: 9000},
		Signals: []domain.SignalDecision{{
			Symbol: "BTC/USD", Signal: domain.SignalHold, Reason: "no crossover", Price: 50000,
		}},
	}
}

// snapshotService satisfies the handler's needs without a live bot.
type snapshotService struct {
	snap domain.Snapshot
}

func (s *snapshotService) Snapshot() domain.Snapshot { return s.snap }

func newTestServer(t *testing.T) (*Server, *Hub, *httptest.Server) {
	t.Helper()
	svc := &snapshotService{snap: testSnapshot()}
	hub := NewHub(svc.Snapshot, zap.NewNop())

	s := &Server{
		router:   http.NewServeMux(),
		stateSrc: svc,
		hub:      hub,
		logger:   zap.NewNop(),
	}
	s.routes()

	ts := httptest.NewServer(s.router)
	t.Cleanup(ts.Close)
	return s, hub, ts
}

func TestHandleState(t *testing.T) {
	_, _, ts := newTestServer(t)

	resp, err := http.Get(ts.URL + "/api/state")
	if err != nil {
		t.Fatalf("GET /api/state: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "application/json" {
		t.Errorf("expected application/json, got %q", ct)
	}

	var snap domain.Snapshot
	if err := json.NewDecoder(resp.Body).Decode(&snap); err != nil {
		t.Fatalf("decode snapshot: %v", err)
	}
	if !snap.Running {
		t.Error("expected running snapshot")
	}
	if len(snap.Signals) != 1 || snap.Signals[0].Symbol != "BTC/USD" {
		t.Errorf("unexpected signals payload: %+v", snap.Signals)
	}
}

func TestHandleHealthz(t *testing.T) {
	_, _, ts := newTestServer(t)

	resp, err := http.Get(ts.URL + "/healthz")
	if err != nil {
		t.Fatalf("GET /healthz: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	_, _, ts := newTestServer(t)

	resp, err := http.Get(ts.URL + "/metrics")
	if err != nil {
		t.Fatalf("GET /metrics: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
}

func TestWebsocket_InitialSnapshotAndPush(t *testing.T) {
	_, hub, ts := newTestServer(t)

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	// A fresh client gets the current state immediately.
	var first stateUpdate
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	if err := conn.ReadJSON(&first); err != nil {
		t.Fatalf("read initial update: %v", err)
	}
	if first.Type != "STATE_UPDATE" {
		t.Errorf("expected STATE_UPDATE, got %q", first.Type)
	}
	if !first.Data.Running {
		t.Error("expected the seeded snapshot")
	}

	// Publishes reach the connected client.
	next := testSnapshot()
	next.Account.Equity = 12345
	hub.Publish(next)

	var second stateUpdate
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	if err := conn.ReadJSON(&second); err != nil {
		t.Fatalf("read pushed update: %v", err)
	}
	if second.Data.Account.Equity != 12345 {
		t.Errorf("expected pushed equity 12345, got %v", second.Data.Account.Equity)
	}
}

func TestWebsocket_ConnectDuringPublishStorm(t *testing.T) {
	_, hub, ts := newTestServer(t)

	// A continuous stream of publishes overlaps every initial snapshot
	// send; each connection's writes must stay serialized.
	done := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case <-done:
				return
			default:
				hub.Publish(testSnapshot())
			}
		}
	}()

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	for i := 0; i < 20; i++ {
		conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
		if err != nil {
			t.Fatalf("dial %d: %v", i, err)
		}
		var update stateUpdate
		conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		if err := conn.ReadJSON(&update); err != nil {
			t.Fatalf("read %d: %v", i, err)
		}
		if update.Type != "STATE_UPDATE" {
			t.Errorf("client %d: expected STATE_UPDATE, got %q", i, update.Type)
		}
		conn.Close()
	}

	close(done)
	wg.Wait()
}

func TestHub_PublishWithoutClientsIsANoOp(t *testing.T) {
	hub := NewHub(nil, zap.NewNop())
	hub.Publish(testSnapshot())
	if hub.ClientCount() != 0 {
		t.Errorf("expected no clients, got %d", hub.ClientCount())
	}
}
