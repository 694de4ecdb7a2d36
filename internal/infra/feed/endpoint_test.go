package feed

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/vietddude/pricewatch/internal/core/clock"
	"github.com/vietddude/pricewatch/internal/core/domain"
)

func newDescriptor(name, url string) domain.EndpointDescriptor {
	return domain.EndpointDescriptor{
		Name:    name,
		URL:     url,
		Asset:   "XRP",
		Parse:   PathParser("ripple.usd"),
		Timeout: time.Second,
	}
}

func TestHTTPEndpoint_FetchSuccess(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			t.Errorf("expected GET, got %s", r.Method)
		}
		if r.Header.Get("Accept") != "application/json" {
			t.Errorf("expected Accept application/json, got %q", r.Header.Get("Accept"))
		}
		_, _ = w.Write([]byte(`{"ripple":{"usd":0.52}}`))
	}))
	defer server.Close()

	e := NewHTTPEndpoint(newDescriptor("coingecko", server.URL))
	body, err := e.Fetch(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(body) != `{"ripple":{"usd":0.52}}` {
		t.Errorf("unexpected body %s", body)
	}
	if got := e.Monitor.Stats().RequestsLast1Hour; got != 1 {
		t.Errorf("expected 1 recorded request, got %d", got)
	}
}

func TestHTTPEndpoint_Non2xx(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusBadGateway)
	}))
	defer server.Close()

	e := NewHTTPEndpoint(newDescriptor("coincap", server.URL))
	_, err := e.Fetch(context.Background())

	fe, ok := domain.AsFetchError(err)
	if !ok {
		t.Fatalf("expected FetchError, got %v", err)
	}
	if fe.Kind != domain.KindHTTP || fe.StatusCode != http.StatusBadGateway {
		t.Errorf("expected http 502, got %s %d", fe.Kind, fe.StatusCode)
	}
}

func TestHTTPEndpoint_Timeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer server.Close()

	e := NewHTTPEndpoint(newDescriptor("slow", server.URL))
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := e.Fetch(ctx)
	fe, ok := domain.AsFetchError(err)
	if !ok {
		t.Fatalf("expected FetchError, got %v", err)
	}
	if fe.Kind != domain.KindTimeout {
		t.Errorf("expected timeout, got %s", fe.Kind)
	}
}

func TestHTTPEndpoint_ConnectionRefused(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	url := server.URL
	server.Close()

	e := NewHTTPEndpoint(newDescriptor("down", url))
	_, err := e.Fetch(context.Background())
	fe, ok := domain.AsFetchError(err)
	if !ok {
		t.Fatalf("expected FetchError, got %v", err)
	}
	if fe.Kind != domain.KindNetwork {
		t.Errorf("expected network error, got %s", fe.Kind)
	}
}

func TestHTTPEndpoint_ThrottleCooldown(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Header().Set("Retry-After", "30")
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	clk := clock.NewFake(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	e := NewHTTPEndpoint(newDescriptor("binance", server.URL), WithClock(clk))

	if _, err := e.Fetch(context.Background()); err == nil {
		t.Fatal("expected 429 error")
	}

	// Within the cooldown the upstream must not be called.
	_, err := e.Fetch(context.Background())
	fe, _ := domain.AsFetchError(err)
	if fe == nil || !strings.HasPrefix(fe.Reason, "endpoint throttled, cooling down, retry after 30s") {
		t.Fatalf("expected cooldown skip, got %v", err)
	}
	if fe.StatusCode != 0 {
		t.Errorf("a skipped request has no upstream status, got %d", fe.StatusCode)
	}
	if hits.Load() != 1 {
		t.Errorf("expected 1 upstream hit during cooldown, got %d", hits.Load())
	}

	clk.Advance(31 * time.Second)
	_, _ = e.Fetch(context.Background())
	if hits.Load() != 2 {
		t.Errorf("expected upstream to be retried after cooldown, got %d hits", hits.Load())
	}
}

func TestHTTPEndpoint_LocalRateLimit(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		_, _ = w.Write([]byte(`{"ripple":{"usd":1}}`))
	}))
	defer server.Close()

	e := NewHTTPEndpoint(newDescriptor("kraken", server.URL), WithRateLimit(0.001, 1))

	if _, err := e.Fetch(context.Background()); err != nil {
		t.Fatalf("first call should pass: %v", err)
	}
	_, err := e.Fetch(context.Background())
	fe, ok := domain.AsFetchError(err)
	if !ok || fe.Reason != "local rate limit exceeded" || fe.StatusCode != 0 {
		t.Fatalf("expected local rate limit skip, got %v", err)
	}
	if hits.Load() != 1 {
		t.Errorf("expected 1 upstream hit, got %d", hits.Load())
	}
}
