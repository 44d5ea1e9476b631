//go:build functional

// Package functional runs the catalog server on a real listener and drives
// it over HTTP and WebSocket.
package functional

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/vyrodovalexey/store-catalog/internal/config"
	"github.com/vyrodovalexey/store-catalog/internal/repository"
	"github.com/vyrodovalexey/store-catalog/internal/server"
)

const (
	requestTimeout  = 5 * time.Second
	shutdownTimeout = 5 * time.Second
)

// TestServer wraps a running server for testing purposes.
type TestServer struct {
	Server  *server.Server
	Repo    *repository.MemoryRepository
	BaseURL string
	WSURL   string
	Client  *http.Client
}

// NewTestServer starts a server on a random local port and stops it when
// the test ends.
func NewTestServer(t *testing.T, opts ...repository.Option) *TestServer {
	t.Helper()

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Failed to listen: %v", err)
	}

	cfg := &config.Config{
		ServerPort:        listener.Addr().(*net.TCPAddr).Port,
		LogLevel:          "error",
		ShutdownTimeout:   shutdownTimeout,
		MetricsEnabled:    true,
		WebSocketEnabled:  true,
		StoreDeletePolicy: "orphan",
		MaxBodyBytes:      config.DefaultMaxBodyBytes,
	}

	repo := repository.NewMemoryRepository(opts...)
	srv := server.New(cfg, zap.NewNop(), repo)

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- srv.Serve(listener)
	}()

	ts := &TestServer{
		Server:  srv,
		Repo:    repo,
		BaseURL: "http://" + listener.Addr().String(),
		WSURL:   "ws://" + listener.Addr().String() + "/ws",
		Client:  &http.Client{Timeout: requestTimeout},
	}

	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			t.Errorf("Shutdown() error = %v", err)
		}
		if err := <-serveErr; err != nil {
			t.Errorf("Serve() error = %v", err)
		}
	})

	ts.waitReady(t)
	return ts
}

func (ts *TestServer) waitReady(t *testing.T) {
	t.Helper()

	deadline := time.Now().Add(requestTimeout)
	for time.Now().Before(deadline) {
		resp, err := ts.Client.Get(ts.BaseURL + "/ready")
		if err == nil {
			resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				return
			}
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatal("server did not become ready")
}

// Do sends a request and returns the status code and raw body. A string body
// is sent as is; any other non-nil body is JSON encoded.
func (ts *TestServer) Do(t *testing.T, method, path string, body any) (int, []byte) {
	t.Helper()

	var reader io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		reader = strings.NewReader(b)
	default:
		data, err := json.Marshal(b)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, ts.BaseURL+path, reader)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	if reader != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := ts.Client.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return resp.StatusCode, data
}

// DoJSON sends a request, checks the status and decodes the body into out.
func (ts *TestServer) DoJSON(t *testing.T, method, path string, body any, wantStatus int, out any) {
	t.Helper()

	status, data := ts.Do(t, method, path, body)
	if status != wantStatus {
		t.Fatalf("%s %s status = %d, want %d, body = %s", method, path, status, wantStatus, data)
	}
	if out == nil {
		return
	}
	if err := json.Unmarshal(data, out); err != nil {
		t.Fatalf("decode %s %s: %v", method, path, err)
	}
}
