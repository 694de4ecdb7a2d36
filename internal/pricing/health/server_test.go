package health

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/vietddude/pricewatch/internal/core/domain"
	"github.com/vietddude/pricewatch/internal/infra/feed"
)

// ===== Mocks =====

type stubFeed struct {
	id     string
	state  domain.OracleState
	status Status

	mu   sync.Mutex
	subs []chan domain.OracleState
}

func (f *stubFeed) ID() string                { return f.id }
func (f *stubFeed) State() domain.OracleState { return f.state }
func (f *stubFeed) Health() Status            { return f.status }

type inspectedFeed struct {
	*stubFeed
	endpoints []EndpointStats
}

func (f *inspectedFeed) EndpointStats() []EndpointStats { return f.endpoints }

func (f *stubFeed) Subscribe() (<-chan domain.OracleState, func()) {
	ch := make(chan domain.OracleState, 4)
	f.mu.Lock()
	f.subs = append(f.subs, ch)
	f.mu.Unlock()
	return ch, func() {}
}

func (f *stubFeed) publish(s domain.OracleState) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, ch := range f.subs {
		ch <- s
	}
}

func (f *stubFeed) subscribers() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.subs)
}

// ===== Tests =====

func newTestServer(feeds ...Feed) *httptest.Server {
	s := NewServer(feeds, 0, slog.New(slog.NewTextHandler(io.Discard, nil)))
	return httptest.NewServer(s.Handler())
}

func successState(price float64, source string) domain.OracleState {
	at := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	return domain.IdleState().Succeeded(price, source, at)
}

func TestHealthEndpoint(t *testing.T) {
	healthy := &stubFeed{id: "xrp", status: Status{Feed: "xrp", Level: StatusHealthy}}
	critical := &stubFeed{id: "btc", status: Status{Feed: "btc", Level: StatusCritical, ConsecutiveFailures: 3}}

	tests := []struct {
		name     string
		feeds    []Feed
		wantCode int
		want     string
	}{
		{"healthy", []Feed{healthy}, http.StatusOK, "healthy"},
		{"critical", []Feed{healthy, critical}, http.StatusServiceUnavailable, "critical"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newTestServer(tt.feeds...)
			defer srv.Close()

			resp, err := http.Get(srv.URL + "/health")
			if err != nil {
				t.Fatalf("get: %v", err)
			}
			defer resp.Body.Close()

			if resp.StatusCode != tt.wantCode {
				t.Errorf("expected %d, got %d", tt.wantCode, resp.StatusCode)
			}
			var body map[string]string
			if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if body["status"] != tt.want {
				t.Errorf("expected status %s, got %s", tt.want, body["status"])
			}
		})
	}
}

func TestDetailedHealth(t *testing.T) {
	f := &stubFeed{id: "xrp", status: Status{Feed: "xrp", Level: StatusDegraded, TotalErrors: 2, ConsecutiveFailures: 1}}
	srv := newTestServer(f)
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/health/detailed")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()

	var report HealthReport
	if err := json.NewDecoder(resp.Body).Decode(&report); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if report.SystemStatus != StatusDegraded {
		t.Errorf("expected degraded, got %s", report.SystemStatus)
	}
	if report.Feeds["xrp"].TotalErrors != 2 {
		t.Errorf("expected 2 total errors, got %d", report.Feeds["xrp"].TotalErrors)
	}
}

func TestDetailedHealth_EndpointStats(t *testing.T) {
	quota := feed.QuotaUsage{Used: 3, DailyLimit: 10, Remaining: 7}
	xrp := &inspectedFeed{
		stubFeed: &stubFeed{id: "xrp", status: Status{Feed: "xrp", Level: StatusHealthy}},
		endpoints: []EndpointStats{
			{Name: "A", Monitor: &feed.MonitorStats{Status: "throttled", ThrottleCount429: 2}, Quota: &quota},
			{Name: "B", Monitor: &feed.MonitorStats{Status: "healthy"}},
		},
	}
	plain := &stubFeed{id: "btc", status: Status{Feed: "btc", Level: StatusHealthy}}
	srv := newTestServer(xrp, plain)
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/health/detailed")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()

	var report DetailedReport
	if err := json.NewDecoder(resp.Body).Decode(&report); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(report.Feeds) != 2 {
		t.Fatalf("expected both feeds in report, got %d", len(report.Feeds))
	}
	eps := report.Endpoints["xrp"]
	if len(eps) != 2 || eps[0].Name != "A" || eps[1].Name != "B" {
		t.Fatalf("unexpected endpoints %+v", eps)
	}
	if eps[0].Monitor.Status != "throttled" || eps[0].Monitor.ThrottleCount429 != 2 {
		t.Errorf("monitor stats lost: %+v", eps[0].Monitor)
	}
	if eps[0].Quota == nil || eps[0].Quota.Remaining != 7 {
		t.Errorf("quota lost: %+v", eps[0].Quota)
	}
	if eps[1].Quota != nil {
		t.Errorf("endpoint without quota should omit it, got %+v", eps[1].Quota)
	}
	if _, ok := report.Endpoints["btc"]; ok {
		t.Error("feed without endpoint stats should not be listed")
	}
}

func TestInspectSources(t *testing.T) {
	limited := feed.NewHTTPEndpoint(domain.EndpointDescriptor{Name: "A", URL: "http://127.0.0.1:1/a"}, feed.WithDailyQuota(5))
	defer limited.Close()
	unlimited := feed.NewHTTPEndpoint(domain.EndpointDescriptor{Name: "B", URL: "http://127.0.0.1:1/b"})
	defer unlimited.Close()

	stats := InspectSources([]Source{limited, unlimited, &stubSource{name: "C"}})
	if len(stats) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(stats))
	}
	if stats[0].Monitor == nil || stats[0].Monitor.Status != "healthy" {
		t.Errorf("expected healthy monitor for A, got %+v", stats[0].Monitor)
	}
	if stats[0].Quota == nil || stats[0].Quota.DailyLimit != 5 || stats[0].Quota.Remaining != 5 {
		t.Errorf("unexpected quota for A: %+v", stats[0].Quota)
	}
	if stats[1].Monitor == nil || stats[1].Quota != nil {
		t.Errorf("B has a monitor and no quota, got %+v", stats[1])
	}
	if stats[2].Name != "C" || stats[2].Monitor != nil {
		t.Errorf("non-inspectable source should be name only, got %+v", stats[2])
	}
}

func TestFeedState(t *testing.T) {
	f := &stubFeed{id: "xrp", state: successState(1.25, "B")}
	failed := &stubFeed{id: "btc", state: domain.IdleState().Failed(domain.ErrorReport{Service: "btc"}, time.Now())}
	srv := newTestServer(f, failed)
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/feeds/xrp/state")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()

	var got StateResponse
	if err := json.NewDecoder(resp.Body).Decode(&got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.Status != domain.StatusSuccess || got.Price == nil || *got.Price != 1.25 || *got.Source != "B" {
		t.Errorf("unexpected state: %+v", got)
	}
	if got.Message != "" {
		t.Errorf("expected no message on success, got %q", got.Message)
	}

	resp2, err := http.Get(srv.URL + "/feeds/btc/state")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp2.Body.Close()
	var errState StateResponse
	_ = json.NewDecoder(resp2.Body).Decode(&errState)
	if errState.Message != "data unavailable" {
		t.Errorf("expected generic message, got %q", errState.Message)
	}
}

func TestFeedState_HidesErrorDetails(t *testing.T) {
	const leaked = `Get "https://api.example.com/price?key=secret": dial tcp: connection refused`
	report := domain.ErrorReport{
		Service:   "price-api",
		ErrorCode: "NETWORK_ERROR",
		Details:   leaked,
		Context:   domain.ErrorContext{Endpoint: "A", Reason: "connection failed"},
	}
	f := &stubFeed{
		id:     "xrp",
		state:  domain.IdleState().Failed(report, time.Now()),
		status: Status{Feed: "xrp", RecentErrors: []domain.ErrorReport{report}},
	}
	srv := newTestServer(f)
	defer srv.Close()

	body := func(path string) string {
		t.Helper()
		resp, err := http.Get(srv.URL + path)
		if err != nil {
			t.Fatalf("get %s: %v", path, err)
		}
		defer resp.Body.Close()
		data, err := io.ReadAll(resp.Body)
		if err != nil {
			t.Fatalf("read %s: %v", path, err)
		}
		return string(data)
	}

	for _, path := range []string{"/feeds/xrp/state", "/feeds"} {
		out := body(path)
		if strings.Contains(out, "secret") || strings.Contains(out, `"details"`) {
			t.Errorf("%s exposes raw error details: %s", path, out)
		}
		if !strings.Contains(out, `"reason":"connection failed"`) {
			t.Errorf("%s should keep the failure reason: %s", path, out)
		}
	}

	if out := body("/feeds/xrp/health"); !strings.Contains(out, "secret") {
		t.Errorf("health view should keep full details, got %s", out)
	}
}

func TestUnknownFeed(t *testing.T) {
	srv := newTestServer(&stubFeed{id: "xrp"})
	defer srv.Close()

	for _, path := range []string{"/feeds/nope/state", "/feeds/nope/health", "/feeds/nope/stream"} {
		resp, err := http.Get(srv.URL + path)
		if err != nil {
			t.Fatalf("get %s: %v", path, err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusNotFound {
			t.Errorf("%s: expected 404, got %d", path, resp.StatusCode)
		}
	}
}

func TestMetricsEndpoint(t *testing.T) {
	srv := newTestServer()
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/metrics")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("expected 200, got %d", resp.StatusCode)
	}
}

func TestStream(t *testing.T) {
	f := &stubFeed{id: "xrp", state: domain.IdleState()}
	srv := newTestServer(f)
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/feeds/xrp/stream"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))

	var first StateResponse
	if err := conn.ReadJSON(&first); err != nil {
		t.Fatalf("read initial: %v", err)
	}
	if first.Status != domain.StatusIdle || first.Feed != "xrp" {
		t.Errorf("unexpected initial state: %+v", first)
	}

	deadline := time.Now().Add(time.Second)
	for f.subscribers() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	f.publish(successState(2.5, "A"))

	var next StateResponse
	if err := conn.ReadJSON(&next); err != nil {
		t.Fatalf("read update: %v", err)
	}
	if next.Status != domain.StatusSuccess || *next.Price != 2.5 {
		t.Errorf("unexpected update: %+v", next)
	}
}
