package integration_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/hazz-dev/watchdog/internal/config"
	"github.com/hazz-dev/watchdog/internal/probe"
	"github.com/hazz-dev/watchdog/internal/scheduler"
	"github.com/hazz-dev/watchdog/internal/server"
	"github.com/hazz-dev/watchdog/internal/status"
	"github.com/hazz-dev/watchdog/internal/storage"
)

// TestIntegration_FullFlow verifies the complete pipeline:
// config → scheduler → prober → storage → status → API
func TestIntegration_FullFlow(t *testing.T) {
	// 1. Start a fake HTTP target
	endpoint := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer endpoint.Close()

	// 2. Open in-memory SQLite
	db, err := storage.Open(":memory:")
	if err != nil {
		t.Fatalf("opening storage: %v", err)
	}
	defer db.Close()

	// 3. Build config
	targets := []config.Target{
		{
			Name:     "test-api",
			URL:      endpoint.URL,
			Interval: config.Duration{Duration: time.Hour}, // don't auto-repeat
			Timeout:  config.Duration{Duration: 5 * time.Second},
		},
	}

	// 4. Create scheduler with the real HTTP prober
	sched := scheduler.New(targets, db, probe.NewHTTPProber(), 50*time.Millisecond, nil)

	// 5. Start scheduler — it will run the first probe immediately
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sched.Start(ctx)

	// 6. Wait for the first result to land in the DB (up to 5s)
	deadline := time.Now().Add(5 * time.Second)
	var latest *probe.Result
	for time.Now().Before(deadline) {
		r, err := db.Latest(ctx, "test-api")
		if err != nil {
			t.Fatalf("Latest: %v", err)
		}
		if r != nil {
			latest = r
			break
		}
		time.Sleep(20 * time.Millisecond)
	}
	if latest == nil {
		t.Fatal("no probe result in DB after 5s")
	}
	if latest.Outcome != probe.OutcomeSuccess {
		t.Errorf("expected outcome 'success', got %q (detail: %s)", latest.Outcome, latest.Detail)
	}

	// 7. Build status service and API server
	statuses := status.New(db, targets, 20)
	apiServer := server.New(statuses, db, nil)

	// 8. GET /api/health
	t.Run("health endpoint", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/api/health", nil)
		w := httptest.NewRecorder()
		apiServer.Router().ServeHTTP(w, req)

		if w.Code != http.StatusOK {
			t.Errorf("expected 200, got %d", w.Code)
		}
		var resp map[string]string
		json.NewDecoder(w.Body).Decode(&resp)
		if resp["status"] != "ok" {
			t.Errorf("expected status 'ok', got %q", resp["status"])
		}
	})

	// 9. GET /api/targets — verify test-api appears
	t.Run("list targets", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/api/targets", nil)
		w := httptest.NewRecorder()
		apiServer.Router().ServeHTTP(w, req)

		if w.Code != http.StatusOK {
			t.Errorf("expected 200, got %d; body: %s", w.Code, w.Body.String())
		}

		var resp struct {
			Data []struct {
				Target  string `json:"target"`
				Outcome string `json:"outcome"`
			} `json:"data"`
		}
		json.NewDecoder(w.Body).Decode(&resp)

		if len(resp.Data) != 1 {
			t.Fatalf("expected 1 target, got %d", len(resp.Data))
		}
		if resp.Data[0].Target != "test-api" {
			t.Errorf("expected target 'test-api', got %q", resp.Data[0].Target)
		}
		if resp.Data[0].Outcome != "success" {
			t.Errorf("expected outcome 'success', got %q", resp.Data[0].Outcome)
		}
	})

	// 10. GET /api/targets/{name}
	t.Run("get target detail", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/api/targets/test-api", nil)
		w := httptest.NewRecorder()
		apiServer.Router().ServeHTTP(w, req)

		if w.Code != http.StatusOK {
			t.Errorf("expected 200, got %d; body: %s", w.Code, w.Body.String())
		}

		var resp struct {
			Data struct {
				Target string `json:"target"`
			} `json:"data"`
		}
		json.NewDecoder(w.Body).Decode(&resp)
		if resp.Data.Target != "test-api" {
			t.Errorf("expected target 'test-api', got %q", resp.Data.Target)
		}
	})

	// 11. GET /api/targets/{name}/history — at least 1 result
	t.Run("target history", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/api/targets/test-api/history", nil)
		w := httptest.NewRecorder()
		apiServer.Router().ServeHTTP(w, req)

		if w.Code != http.StatusOK {
			t.Errorf("expected 200, got %d; body: %s", w.Code, w.Body.String())
		}

		var resp struct {
			Data struct {
				Results []interface{} `json:"results"`
			} `json:"data"`
		}
		json.NewDecoder(w.Body).Decode(&resp)
		if len(resp.Data.Results) < 1 {
			t.Errorf("expected at least 1 result in history, got %d", len(resp.Data.Results))
		}
	})

	// 12. Graceful shutdown
	cancel()
	sched.Wait()

	// 13. Verify the DB is still accessible after shutdown
	_, err = db.Latest(context.Background(), "test-api")
	if err != nil {
		t.Errorf("DB unusable after shutdown: %v", err)
	}
}
