package overfast

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

// recordingSleeper captures requested waits without sleeping
type recordingSleeper struct {
	mu    sync.Mutex
	waits []time.Duration
}

func (r *recordingSleeper) sleep(ctx context.Context, d time.Duration) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.waits = append(r.waits, d)
	return nil
}

func newTestClient(url string, s *recordingSleeper, opts ...Option) *Client {
	return NewClient(append([]Option{WithBaseURL(url), WithSleeper(s.sleep)}, opts...)...)
}

func TestBackoffDelay_Sequence(t *testing.T) {
	want := []time.Duration{1, 2, 4, 8, 16, 30, 30}
	for i, w := range want {
		if got := BackoffDelay(i + 1); got != w*time.Second {
			t.Errorf("BackoffDelay(%d) = %v, want %v", i+1, got, w*time.Second)
		}
	}
}

// TestGet_AlwaysRateLimited tests that the retry budget is exhausted then RateLimitExceeded
func TestGet_AlwaysRateLimited(t *testing.T) {
	var attempts int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&attempts, 1)
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	s := &recordingSleeper{}
	_, err := newTestClient(server.URL, s).Get(context.Background(), "/players/x/summary", nil)

	if !errors.Is(err, ErrRateLimitExceeded) {
		t.Fatalf("Expected ErrRateLimitExceeded, got: %v", err)
	}
	var rle *RateLimitError
	if !errors.As(err, &rle) || rle.URL != server.URL+"/players/x/summary" {
		t.Errorf("Expected error to name the URL, got: %v", err)
	}
	if n := atomic.LoadInt32(&attempts); n != DefaultMaxRetries {
		t.Errorf("Expected %d attempts, got %d", DefaultMaxRetries, n)
	}

	want := []time.Duration{1 * time.Second, 2 * time.Second, 4 * time.Second, 8 * time.Second, 16 * time.Second}
	if len(s.waits) != len(want) {
		t.Fatalf("Expected %d waits, got %v", len(want), s.waits)
	}
	for i := range want {
		if s.waits[i] != want[i] {
			t.Errorf("Wait %d = %v, want %v", i, s.waits[i], want[i])
		}
	}
}

// TestGet_RecoversAfterRateLimit tests 429, 429, 200 takes exactly three attempts
func TestGet_RecoversAfterRateLimit(t *testing.T) {
	var attempts int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(&attempts, 1)
		if n <= 2 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.Write([]byte(`{"username":"Kiriko"}`))
	}))
	defer server.Close()

	s := &recordingSleeper{}
	body, err := newTestClient(server.URL, s).Get(context.Background(), "/x", nil)
	if err != nil {
		t.Fatalf("Expected success, got: %v", err)
	}
	if string(body) != `{"username":"Kiriko"}` {
		t.Errorf("Unexpected body: %s", body)
	}
	if n := atomic.LoadInt32(&attempts); n != 3 {
		t.Errorf("Expected 3 attempts, got %d", n)
	}
	if len(s.waits) != 2 || s.waits[0] != time.Second || s.waits[1] != 2*time.Second {
		t.Errorf("Unexpected waits: %v", s.waits)
	}
}

// TestGet_RetryAfterPrecedence tests that a valid Retry-After beats the computed delay
func TestGet_RetryAfterPrecedence(t *testing.T) {
	var attempts int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(&attempts, 1)
		switch n {
		case 1:
			w.Header().Set("Retry-After", "7")
			w.WriteHeader(http.StatusTooManyRequests)
		case 2:
			w.Header().Set("Retry-After", "soon")
			w.WriteHeader(http.StatusTooManyRequests)
		case 3:
			w.Header().Set("Retry-After", "-3")
			w.WriteHeader(http.StatusTooManyRequests)
		case 4:
			w.Header().Set("Retry-After", "0")
			w.WriteHeader(http.StatusTooManyRequests)
		default:
			w.Write([]byte(`{}`))
		}
	}))
	defer server.Close()

	s := &recordingSleeper{}
	if _, err := newTestClient(server.URL, s).Get(context.Background(), "/x", nil); err != nil {
		t.Fatalf("Expected success, got: %v", err)
	}

	// header wins on 1 and 4; invalid headers fall back to the doubling delay
	want := []time.Duration{7 * time.Second, 2 * time.Second, 4 * time.Second, 0}
	if len(s.waits) != len(want) {
		t.Fatalf("Expected %d waits, got %v", len(want), s.waits)
	}
	for i := range want {
		if s.waits[i] != want[i] {
			t.Errorf("Wait %d = %v, want %v", i, s.waits[i], want[i])
		}
	}
}

// TestGet_NonRetryableStatus tests that other errors fail without retrying
func TestGet_NonRetryableStatus(t *testing.T) {
	var attempts int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&attempts, 1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	s := &recordingSleeper{}
	_, err := newTestClient(server.URL, s).Get(context.Background(), "/players/nobody-1/summary", nil)

	var re *RequestError
	if !errors.As(err, &re) {
		t.Fatalf("Expected RequestError, got: %v", err)
	}
	if re.StatusCode != http.StatusNotFound {
		t.Errorf("Expected status 404, got %d", re.StatusCode)
	}
	if n := atomic.LoadInt32(&attempts); n != 1 || len(s.waits) != 0 {
		t.Errorf("Expected a single attempt and no waits, got %d attempts, waits %v", n, s.waits)
	}
}

func TestGet_MalformedJSON(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html>oops</html>`))
	}))
	defer server.Close()

	_, err := newTestClient(server.URL, &recordingSleeper{}).Get(context.Background(), "/x", nil)
	if !errors.Is(err, ErrMalformedJSON) {
		t.Errorf("Expected ErrMalformedJSON, got: %v", err)
	}
}

// TestGet_NetworkError tests that a dropped connection is a RequestError
func TestGet_NetworkError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hj, ok := w.(http.Hijacker)
		if ok {
			conn, _, _ := hj.Hijack()
			conn.Close()
		}
	}))
	defer server.Close()

	_, err := newTestClient(server.URL, &recordingSleeper{}).Get(context.Background(), "/x", nil)

	var re *RequestError
	if !errors.As(err, &re) {
		t.Fatalf("Expected RequestError, got: %v", err)
	}
	if re.StatusCode != 0 {
		t.Errorf("Expected no status code, got %d", re.StatusCode)
	}
}

func TestGet_SendsHeadersAndQuery(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("User-Agent") != UserAgent {
			t.Errorf("Expected User-Agent %q, got %q", UserAgent, r.Header.Get("User-Agent"))
		}
		if r.URL.Path != "/players/Name-1234/stats" {
			t.Errorf("Unexpected path: %s", r.URL.Path)
		}
		q := r.URL.Query()
		if q.Get("gamemode") != "competitive" || q.Get("hero") != "ana" {
			t.Errorf("Unexpected query: %s", r.URL.RawQuery)
		}
		if _, ok := q["platform"]; ok {
			t.Error("Expected empty platform to be omitted")
		}
		w.Write([]byte(`{}`))
	}))
	defer server.Close()

	c := newTestClient(server.URL, &recordingSleeper{})
	if _, err := c.CareerStats(context.Background(), "Name-1234", StatsQuery{Gamemode: "competitive", Hero: "ana"}); err != nil {
		t.Fatalf("CareerStats failed: %v", err)
	}
}

func TestGet_ObserverSeesRetries(t *testing.T) {
	var attempts int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(&attempts, 1)
		if n == 1 {
			w.Header().Set("Retry-After", "3")
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.Write([]byte(`{}`))
	}))
	defer server.Close()

	var events []RetryEvent
	ctx := ObserveRetries(context.Background(), func(ev RetryEvent) {
		events = append(events, ev)
	})

	if _, err := newTestClient(server.URL, &recordingSleeper{}).Get(ctx, "/x", nil); err != nil {
		t.Fatalf("Expected success, got: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("Expected 1 retry event, got %d", len(events))
	}
	if events[0].Attempt != 1 || events[0].Wait != 3*time.Second || !events[0].FromHeader {
		t.Errorf("Unexpected event: %+v", events[0])
	}
}

func TestTimerSleep_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := timerSleep(ctx, time.Hour); !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled, got: %v", err)
	}
}
