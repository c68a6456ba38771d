package diag

import (
	"context"
	"encoding/json"
	"io"
	"log"
	"net/http"
	"os"
	"testing"
	"time"

	"github.com/coder/websocket"
)

type testStatus struct {
	Syncing bool `json:"syncing"`
}

func startTestServer(t *testing.T, source func() any) *Server {
	t.Helper()
	if source == nil {
		source = func() any { return testStatus{} }
	}
	server := NewServer(source, Config{
		Port:   0, // random available port
		Logger: log.New(os.Stderr, "[test] ", log.LstdFlags),
	})
	if err := server.Start(); err != nil {
		t.Fatalf("Failed to start server: %v", err)
	}
	t.Cleanup(func() {
		if err := server.Stop(); err != nil {
			t.Errorf("Failed to stop server: %v", err)
		}
	})
	time.Sleep(50 * time.Millisecond)
	return server
}

func TestHealthEndpoint(t *testing.T) {
	server := startTestServer(t, nil)

	resp, err := http.Get("http://" + server.Addr() + "/health")
	if err != nil {
		t.Fatalf("GET /health failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want 200", resp.StatusCode)
	}

	var body map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if body["status"] != "ok" {
		t.Errorf("status field = %v, want 'ok'", body["status"])
	}
}

func TestStatusEndpoint(t *testing.T) {
	server := startTestServer(t, func() any { return testStatus{Syncing: true} })

	resp, err := http.Get("http://" + server.Addr() + "/status")
	if err != nil {
		t.Fatalf("GET /status failed: %v", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("Failed to read response: %v", err)
	}

	var got testStatus
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if !got.Syncing {
		t.Error("snapshot not served from source")
	}
}

func TestEventBroadcast(t *testing.T) {
	server := startTestServer(t, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	wsURL := "ws://" + server.Addr() + "/ws"
	conn, _, err := websocket.Dial(ctx, wsURL, nil)
	if err != nil {
		t.Fatalf("Failed to connect WebSocket: %v", err)
	}
	defer conn.Close(websocket.StatusNormalClosure, "")

	// Let the server register the client before broadcasting.
	deadline := time.After(2 * time.Second)
	for server.ClientCount() != 1 {
		select {
		case <-deadline:
			t.Fatalf("ClientCount = %d, want 1", server.ClientCount())
		case <-time.After(time.Millisecond):
		}
	}

	server.BroadcastSyncComplete(SyncCompleteData{
		Uploaded:   3,
		Downloaded: 2,
		DurationMS: 120,
	})

	_, data, err := conn.Read(ctx)
	if err != nil {
		t.Fatalf("Failed to read broadcast: %v", err)
	}

	var ev Event
	if err := json.Unmarshal(data, &ev); err != nil {
		t.Fatalf("Failed to unmarshal event: %v", err)
	}
	if ev.Type != EventSyncComplete {
		t.Errorf("event type = %s, want %s", ev.Type, EventSyncComplete)
	}

	var payload SyncCompleteData
	if err := json.Unmarshal(ev.Data, &payload); err != nil {
		t.Fatalf("Failed to unmarshal payload: %v", err)
	}
	if payload.Uploaded != 3 || payload.Downloaded != 2 {
		t.Errorf("payload = %+v, want uploaded 3 downloaded 2", payload)
	}
}

func TestConnectivityBroadcast(t *testing.T) {
	server := startTestServer(t, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn, _, err := websocket.Dial(ctx, "ws://"+server.Addr()+"/ws", nil)
	if err != nil {
		t.Fatalf("Failed to connect WebSocket: %v", err)
	}
	defer conn.Close(websocket.StatusNormalClosure, "")

	deadline := time.After(2 * time.Second)
	for server.ClientCount() != 1 {
		select {
		case <-deadline:
			t.Fatal("client never registered")
		case <-time.After(time.Millisecond):
		}
	}

	server.BroadcastConnectivity(false)

	_, data, err := conn.Read(ctx)
	if err != nil {
		t.Fatalf("Failed to read broadcast: %v", err)
	}

	var ev Event
	if err := json.Unmarshal(data, &ev); err != nil {
		t.Fatalf("Failed to unmarshal event: %v", err)
	}
	if ev.Type != EventConnectivity {
		t.Errorf("event type = %s, want %s", ev.Type, EventConnectivity)
	}

	var payload ConnectivityData
	if err := json.Unmarshal(ev.Data, &payload); err != nil {
		t.Fatalf("Failed to unmarshal payload: %v", err)
	}
	if payload.Online {
		t.Error("Online = true, want false")
	}
}
