package scraper

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/talisman-ep/autoria-monitoring-bot/httputil"
)

func TestCatalog_BrandsTTL(t *testing.T) {
	var fetches int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt64(&fetches, 1)
		fmt.Fprint(w, `[{"name":"Toyota","value":79},{"name":"BMW","value":9}]`)
	}))
	defer srv.Close()

	cat := newCatalog(testConfig(srv.URL), httputil.NewClients(""))
	base := time.Now()
	cat.now = func() time.Time { return base }

	ctx := context.Background()

	brands := cat.Brands(ctx)
	if len(brands) != 2 {
		t.Fatalf("expected 2 brands, got %d", len(brands))
	}
	if brands[0].ID != 79 || brands[0].Name != "Toyota" {
		t.Fatalf("unexpected first brand %+v", brands[0])
	}

	// Within TTL the cache is served without touching the network.
	cat.now = func() time.Time { return base.Add(30 * time.Minute) }
	cat.Brands(ctx)
	if n := atomic.LoadInt64(&fetches); n != 1 {
		t.Fatalf("expected 1 fetch within TTL, got %d", n)
	}

	// Past TTL the next call refreshes.
	cat.now = func() time.Time { return base.Add(61 * time.Minute) }
	cat.Brands(ctx)
	if n := atomic.LoadInt64(&fetches); n != 2 {
		t.Fatalf("expected refresh after TTL, got %d fetches", n)
	}
}

func TestCatalog_FailedRefreshKeepsNothing(t *testing.T) {
	var fetches int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt64(&fetches, 1)
		http.Error(w, "rate limited", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	cat := newCatalog(testConfig(srv.URL), httputil.NewClients(""))
	ctx := context.Background()

	if items := cat.Brands(ctx); items != nil {
		t.Fatalf("expected nil on failed fetch, got %v", items)
	}
	// A failure is not cached; the next call retries.
	cat.Brands(ctx)
	if n := atomic.LoadInt64(&fetches); n != 2 {
		t.Fatalf("expected 2 fetch attempts, got %d", n)
	}
}

func TestCatalog_ModelsCachedPerBrand(t *testing.T) {
	var fetches int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt64(&fetches, 1)
		fmt.Fprint(w, `[{"name":"Camry","value":2104},{"name":"Corolla","value":2105}]`)
	}))
	defer srv.Close()

	cat := newCatalog(testConfig(srv.URL), httputil.NewClients(""))
	ctx := context.Background()

	first := cat.Models(ctx, 79)
	if len(first) != 2 {
		t.Fatalf("expected 2 models, got %d", len(first))
	}
	cat.Models(ctx, 79)
	if n := atomic.LoadInt64(&fetches); n != 1 {
		t.Fatalf("models must be cached per brand, got %d fetches", n)
	}
	cat.Models(ctx, 9)
	if n := atomic.LoadInt64(&fetches); n != 2 {
		t.Fatalf("a new brand must trigger a fetch, got %d", n)
	}
}

// The taxonomy endpoints disagree on the id field name.
func TestCatalog_IDFieldVariants(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `[{"name":"Київська","value":10},{"name":"Львівська","id":5},{"name":""},{"value":3}]`)
	}))
	defer srv.Close()

	cat := newCatalog(testConfig(srv.URL), httputil.NewClients(""))

	states := cat.States(context.Background())
	if len(states) != 2 {
		t.Fatalf("expected 2 states, got %d", len(states))
	}
	if states[0].ID != 10 || states[1].ID != 5 {
		t.Fatalf("unexpected ids: %+v", states)
	}
}
