package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/five82/kdebridge/internal/menu"
	"github.com/five82/kdebridge/internal/protocol"
	"github.com/five82/kdebridge/internal/session"
)

type fakeBridge struct {
	state    protocol.BridgeState
	stateErr error
	clickErr error

	mu     sync.Mutex
	clicks []clickRequest
}

func (f *fakeBridge) State(context.Context) (protocol.BridgeState, error) {
	return f.state, f.stateErr
}

func (f *fakeBridge) ClickMenu(_ context.Context, itemID, url string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.clicks = append(f.clicks, clickRequest{ItemID: itemID, URL: url})
	return f.clickErr
}

func newTestServer(t *testing.T, bridge Bridge, surfaces http.Handler) *httptest.Server {
	t.Helper()
	s := New(Options{Bridge: bridge, Surfaces: surfaces, Logger: log.New(io.Discard, "", 0)})
	ts := httptest.NewServer(s.Handler())
	t.Cleanup(ts.Close)
	return ts
}

func TestServer_State(t *testing.T) {
	bridge := &fakeBridge{state: protocol.BridgeState{
		Connection:      "connected",
		ExpectedVersion: "0.1.3",
		Surfaces:        2,
	}}
	ts := newTestServer(t, bridge, nil)

	resp, err := http.Get(ts.URL + "/api/state")
	if err != nil {
		t.Fatalf("GET /api/state: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	var got protocol.BridgeState
	if err := json.NewDecoder(resp.Body).Decode(&got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.Connection != "connected" || got.ExpectedVersion != "0.1.3" || got.Surfaces != 2 {
		t.Fatalf("state = %#v", got)
	}

	resp, err = http.Post(ts.URL+"/api/state", "application/json", nil)
	if err != nil {
		t.Fatalf("POST /api/state: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Fatalf("POST status = %d, want 405", resp.StatusCode)
	}
}

func TestServer_StateUnavailable(t *testing.T) {
	ts := newTestServer(t, &fakeBridge{stateErr: errors.New("loop: stopped")}, nil)

	resp, err := http.Get(ts.URL + "/api/state")
	if err != nil {
		t.Fatalf("GET /api/state: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", resp.StatusCode)
	}
	var body ErrorResponse
	_ = json.NewDecoder(resp.Body).Decode(&body)
	if body.Error != "loop: stopped" {
		t.Fatalf("error = %q", body.Error)
	}
}

func TestServer_MenuClick(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		clickErr error
		want     int
	}{
		{"ok", `{"itemId":"a","url":"https://example.com"}`, nil, http.StatusNoContent},
		{"unknown item", `{"itemId":"zzz","url":"https://example.com"}`, fmt.Errorf("%w: %q", menu.ErrUnknownItem, "zzz"), http.StatusNotFound},
		{"disabled", `{"itemId":"a","url":"https://example.com"}`, menu.ErrDisabledItem, http.StatusConflict},
		{"missing url", `{"itemId":"a"}`, menu.ErrMissingURL, http.StatusBadRequest},
		{"not connected", `{"itemId":"a","url":"u"}`, fmt.Errorf("share to a: %w", session.ErrNotConnected), http.StatusServiceUnavailable},
		{"bad json", `{"itemId":`, nil, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bridge := &fakeBridge{clickErr: tt.clickErr}
			ts := newTestServer(t, bridge, nil)

			resp, err := http.Post(ts.URL+"/api/menu/click", "application/json", strings.NewReader(tt.body))
			if err != nil {
				t.Fatalf("POST: %v", err)
			}
			resp.Body.Close()
			if resp.StatusCode != tt.want {
				t.Fatalf("status = %d, want %d", resp.StatusCode, tt.want)
			}
		})
	}
}

func TestServer_MenuClickPassesFields(t *testing.T) {
	bridge := &fakeBridge{}
	ts := newTestServer(t, bridge, nil)

	resp, err := http.Post(ts.URL+"/api/menu/click", "application/json",
		strings.NewReader(`{"itemId":"dev1","url":"https://example.com/x"}`))
	if err != nil {
		t.Fatalf("POST: %v", err)
	}
	resp.Body.Close()
	bridge.mu.Lock()
	defer bridge.mu.Unlock()
	if len(bridge.clicks) != 1 || bridge.clicks[0] != (clickRequest{ItemID: "dev1", URL: "https://example.com/x"}) {
		t.Fatalf("clicks = %#v", bridge.clicks)
	}
}

func TestServer_RoutesSurfaces(t *testing.T) {
	var hit atomic.Bool
	surfaces := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hit.Store(r.URL.Query().Get("surface") == "popup")
		w.WriteHeader(http.StatusTeapot)
	})
	ts := newTestServer(t, &fakeBridge{}, surfaces)

	resp, err := http.Get(ts.URL + "/ws?surface=popup")
	if err != nil {
		t.Fatalf("GET /ws: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusTeapot || !hit.Load() {
		t.Fatalf("surface handler not reached: status %d", resp.StatusCode)
	}
}

func TestServer_ServeStopsOnCancel(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	s := New(Options{Bridge: &fakeBridge{}, Logger: log.New(io.Discard, "", 0)})

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- s.Serve(ctx, ln) }()

	resp, err := http.Get("http://" + ln.Addr().String() + "/api/state")
	if err != nil {
		t.Fatalf("GET before cancel: %v", err)
	}
	resp.Body.Close()

	cancel()
	select {
	case err := <-errCh:
		if err != nil {
			t.Fatalf("Serve returned %v, want nil", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Serve did not return after cancel")
	}
}
