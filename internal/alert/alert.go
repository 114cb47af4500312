package alert

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/hazz-dev/watchdog/internal/probe"
)

// Alerter sends webhook notifications when a target's outcome changes.
type Alerter struct {
	webhookURL string
	cooldown   time.Duration
	client     *http.Client
	lastAlert  map[string]time.Time
	mu         sync.Mutex
	logger     *slog.Logger
}

// New creates a new Alerter. Pass nil logger to use the default logger.
func New(webhookURL string, cooldown time.Duration, logger *slog.Logger) *Alerter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Alerter{
		webhookURL: webhookURL,
		cooldown:   cooldown,
		client:     &http.Client{Timeout: 10 * time.Second},
		lastAlert:  make(map[string]time.Time),
		logger:     logger,
	}
}

type webhookPayload struct {
	Target          string `json:"target"`
	Outcome         string `json:"outcome"`
	PreviousOutcome string `json:"previous_outcome"`
	Detail          string `json:"detail"`
	LatencyMs       int64  `json:"latency_ms"`
	ProbedAt        string `json:"probed_at"`
	Source          string `json:"source"`
}

// Notify sends a webhook if the target's outcome has changed and the cooldown
// has elapsed. It never blocks the caller on network I/O.
func (a *Alerter) Notify(result probe.Result, previous *probe.Outcome) {
	// No previous outcome means first probe — skip.
	if previous == nil {
		return
	}
	// Outcome unchanged — skip.
	if result.Outcome == *previous {
		return
	}

	a.mu.Lock()
	last, exists := a.lastAlert[result.Target]
	if exists && time.Since(last) < a.cooldown {
		a.mu.Unlock()
		a.logger.Info("alert suppressed by cooldown", "target", result.Target)
		return
	}
	a.lastAlert[result.Target] = time.Now()
	a.mu.Unlock()

	go a.send(result, string(*previous))
}

func (a *Alerter) send(result probe.Result, previous string) {
	payload := webhookPayload{
		Target:          result.Target,
		Outcome:         string(result.Outcome),
		PreviousOutcome: previous,
		Detail:          result.Detail,
		LatencyMs:       result.Latency.Milliseconds(),
		ProbedAt:        result.ProbedAt.UTC().Format(time.RFC3339),
		Source:          "watchdog",
	}

	body, err := json.Marshal(payload)
	if err != nil {
		a.logger.Error("marshaling webhook payload", "target", result.Target, "error", err)
		return
	}

	resp, err := a.client.Post(a.webhookURL, "application/json", bytes.NewReader(body))
	if err != nil {
		a.logger.Error("sending webhook", "target", result.Target, "url", a.webhookURL, "error", err)
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		a.logger.Warn("webhook returned non-2xx status",
			"target", result.Target,
			"status", resp.StatusCode,
		)
	}
}
