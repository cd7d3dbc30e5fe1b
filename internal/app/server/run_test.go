package server

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"strings"
	"testing"
	"time"

	platformgrpc "github.com/vmitra/vmitra/internal/platform/grpc"
	"github.com/vmitra/vmitra/internal/services/assistant/model"
	"github.com/vmitra/vmitra/internal/services/auth/otp"
	"golang.org/x/net/websocket"
)

func testConfig(t *testing.T) Config {
	t.Helper()
	dir := t.TempDir()
	reply := model.ModelFunc(func(context.Context, model.Request) (model.Response, error) {
		return model.Response{Text: "Aaj nafa accha hai."}, nil
	})
	return Config{
		HTTPAddr:       "127.0.0.1:0",
		GRPCPort:       0,
		BusinessDBPath: dir + "/business.db",
		AuthDBPath:     dir + "/auth.db",
		SeedCatalog:    true,
		AuthRequired:   true,
		JWTSecret:      []byte("test-secret"),
		OTP:            otp.Config{TTL: 10 * time.Minute, FixedCode: otp.DefaultFixedCode},
		Models:         &Models{Summary: reply, Assistant: reply},
	}
}

func post(t *testing.T, url, body, bearer string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(http.MethodPost, url, strings.NewReader(body))
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("post %s: %v", url, err)
	}
	t.Cleanup(func() {
		_ = resp.Body.Close()
	})
	return resp
}

func get(t *testing.T, url, bearer string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(http.MethodGet, url, nil)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("get %s: %v", url, err)
	}
	t.Cleanup(func() {
		_ = resp.Body.Close()
	})
	return resp
}

// TestServeEndToEnd registers a user, calls protected routes and the live
// socket through the middleware chain, probes gRPC health, and stops on cancel.
func TestServeEndToEnd(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	srv, err := New(ctx, testConfig(t))
	if err != nil {
		t.Fatalf("new server: %v", err)
	}
	serveErr := make(chan error, 1)
	go func() {
		serveErr <- srv.Serve(ctx)
	}()
	base := "http://" + srv.HTTPAddr()

	if resp := get(t, base+"/healthz", ""); resp.StatusCode != http.StatusOK {
		t.Fatalf("healthz status = %d", resp.StatusCode)
	}
	if resp := get(t, base+"/api/v1/business/stats", ""); resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("stats without token status = %d, want 401", resp.StatusCode)
	}

	if resp := post(t, base+"/api/auth/register", `{"email":"shivam@example.com","name":"Shivam","password":"secret1"}`, ""); resp.StatusCode != http.StatusOK {
		t.Fatalf("register status = %d", resp.StatusCode)
	}
	verify := post(t, base+"/api/auth/verify-otp", `{"email":"shivam@example.com","otp":"123456"}`, "")
	if verify.StatusCode != http.StatusOK {
		t.Fatalf("verify status = %d", verify.StatusCode)
	}
	var session struct {
		AccessToken string `json:"accessToken"`
	}
	if err := json.NewDecoder(verify.Body).Decode(&session); err != nil {
		t.Fatalf("decode session: %v", err)
	}

	stats := get(t, base+"/api/v1/business/stats", session.AccessToken)
	if stats.StatusCode != http.StatusOK {
		t.Fatalf("stats status = %d", stats.StatusCode)
	}
	summary := get(t, base+"/api/v1/assistant/summary", session.AccessToken)
	if summary.StatusCode != http.StatusOK {
		t.Fatalf("summary status = %d", summary.StatusCode)
	}
	var result struct {
		Text string `json:"text"`
	}
	if err := json.NewDecoder(summary.Body).Decode(&result); err != nil {
		t.Fatalf("decode summary: %v", err)
	}
	if result.Text != "Aaj nafa accha hai." {
		t.Fatalf("summary text = %q", result.Text)
	}

	wsURL := "ws://" + srv.HTTPAddr() + "/api/v1/assistant/live?access_token=" + session.AccessToken
	ws, err := websocket.Dial(wsURL, "", base)
	if err != nil {
		t.Fatalf("dial live socket: %v", err)
	}
	defer ws.Close()
	if err := json.NewEncoder(ws).Encode(map[string]string{"type": "text", "text": "aaj ka hisaab"}); err != nil {
		t.Fatalf("write frame: %v", err)
	}
	for _, want := range []string{"transcript", "transcript"} {
		_ = ws.SetDeadline(time.Now().Add(2 * time.Second))
		var frame struct {
			Type string `json:"type"`
		}
		if err := json.NewDecoder(ws).Decode(&frame); err != nil {
			t.Fatalf("read frame: %v", err)
		}
		if frame.Type != want {
			t.Fatalf("frame type = %q, want %q", frame.Type, want)
		}
	}

	addr := srv.GRPCAddr()
	_, port, err := net.SplitHostPort(addr)
	if err != nil {
		t.Fatalf("split address %q: %v", addr, err)
	}
	conn, err := platformgrpc.Dial(net.JoinHostPort("127.0.0.1", port))
	if err != nil {
		t.Fatalf("dial grpc: %v", err)
	}
	defer conn.Close()
	healthCtx, healthCancel := context.WithTimeout(ctx, 2*time.Second)
	defer healthCancel()
	if err := platformgrpc.WaitForHealth(healthCtx, conn, HealthBusiness, nil); err != nil {
		t.Fatalf("wait for health: %v", err)
	}

	cancel()
	select {
	case err := <-serveErr:
		if err != nil {
			t.Fatalf("serve returned error: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop in time")
	}
}

func TestNewRequiresSecretWhenAuthRequired(t *testing.T) {
	cfg := testConfig(t)
	cfg.JWTSecret = nil
	if _, err := New(context.Background(), cfg); err == nil {
		t.Fatal("expected error without jwt secret")
	}
}

func TestNewOpenServerUsesEphemeralSecret(t *testing.T) {
	cfg := testConfig(t)
	cfg.JWTSecret = nil
	cfg.AuthRequired = false
	cfg.GRPCPort = -1
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	srv, err := New(ctx, cfg)
	if err != nil {
		t.Fatalf("new server: %v", err)
	}
	if srv.GRPCAddr() != "" {
		t.Fatalf("expected grpc disabled, got %q", srv.GRPCAddr())
	}
	serveErr := make(chan error, 1)
	go func() {
		serveErr <- srv.Serve(ctx)
	}()

	if resp := get(t, "http://"+srv.HTTPAddr()+"/api/v1/business/inventory", ""); resp.StatusCode != http.StatusOK {
		t.Fatalf("open inventory status = %d", resp.StatusCode)
	}
	cancel()
	if err := <-serveErr; err != nil {
		t.Fatalf("serve returned error: %v", err)
	}
}

// TestRunPortInUse verifies Run returns an error when the HTTP port is occupied.
func TestRunPortInUse(t *testing.T) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer listener.Close()

	cfg := testConfig(t)
	cfg.HTTPAddr = listener.Addr().String()
	if err := Run(context.Background(), cfg); err == nil {
		t.Fatal("expected error when port is already in use")
	}
}
