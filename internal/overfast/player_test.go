package overfast

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func TestPlayerIDFromBattletag(t *testing.T) {
	cases := map[string]string{
		"Name#1234":     "Name-1234",
		"  Name#1234\n": "Name-1234",
		"NoTag":         "NoTag",
		"":              "",
	}
	for in, want := range cases {
		if got := PlayerIDFromBattletag(in); got != want {
			t.Errorf("PlayerIDFromBattletag(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestParseSummary(t *testing.T) {
	s, err := ParseSummary([]byte(`{"username":"Tracer","title":"Blink","endorsement":{"level":3},"privacy":"public"}`))
	if err != nil {
		t.Fatalf("ParseSummary failed: %v", err)
	}
	if s.Username != "Tracer" || s.Title != "Blink" || s.Privacy != "public" {
		t.Errorf("Unexpected summary: %+v", s)
	}
	if s.EndorsementLevel == nil || *s.EndorsementLevel != 3 {
		t.Errorf("Expected endorsement level 3, got %v", s.EndorsementLevel)
	}
}

func TestParseSummary_MissingFields(t *testing.T) {
	s, err := ParseSummary([]byte(`{"username":"Mei","title":null,"endorsement":"n/a"}`))
	if err != nil {
		t.Fatalf("ParseSummary failed: %v", err)
	}
	if s.Title != "" || s.EndorsementLevel != nil || s.Privacy != "" {
		t.Errorf("Expected absent fields to stay empty, got %+v", s)
	}

	if _, err := ParseSummary([]byte(`[1,2]`)); err == nil {
		t.Error("Expected error for non-object summary")
	}
}

func TestCachedClient_MemoizesPerKey(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.Write([]byte(`{"username":"Ana"}`))
	}))
	defer server.Close()

	cc := NewCachedClient(NewClient(WithBaseURL(server.URL)), time.Minute)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if _, err := cc.Summary(ctx, "Ana-1"); err != nil {
			t.Fatalf("Summary failed: %v", err)
		}
	}
	if n := atomic.LoadInt32(&calls); n != 1 {
		t.Errorf("Expected 1 upstream call for repeated summary, got %d", n)
	}

	q := StatsQuery{Gamemode: "competitive"}
	cc.CareerStats(ctx, "Ana-1", q)
	cc.CareerStats(ctx, "Ana-1", q)
	cc.CareerStats(ctx, "Ana-1", StatsQuery{Gamemode: "quickplay"})
	if n := atomic.LoadInt32(&calls); n != 3 {
		t.Errorf("Expected 3 upstream calls after two distinct stats keys, got %d", n)
	}

	cc.Purge()
	cc.Summary(ctx, "Ana-1")
	if n := atomic.LoadInt32(&calls); n != 4 {
		t.Errorf("Expected purge to force a refetch, got %d calls", n)
	}
}

func TestCachedClient_DoesNotCacheErrors(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Write([]byte(`{"username":"Ana"}`))
	}))
	defer server.Close()

	cc := NewCachedClient(NewClient(WithBaseURL(server.URL)), time.Minute)
	if _, err := cc.Summary(context.Background(), "Ana-1"); err == nil {
		t.Fatal("Expected first call to fail")
	}
	if _, err := cc.Summary(context.Background(), "Ana-1"); err != nil {
		t.Errorf("Expected second call to refetch and succeed, got: %v", err)
	}
}

func TestCachedClient_ZeroTTLDisablesCache(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.Write([]byte(`{}`))
	}))
	defer server.Close()

	cc := NewCachedClient(NewClient(WithBaseURL(server.URL)), 0)
	cc.Summary(context.Background(), "x")
	cc.Summary(context.Background(), "x")
	if n := atomic.LoadInt32(&calls); n != 2 {
		t.Errorf("Expected 2 upstream calls without cache, got %d", n)
	}
}
