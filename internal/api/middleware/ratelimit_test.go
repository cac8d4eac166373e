package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
)

func TestRateLimit(t *testing.T) {
	rl := NewRateLimiter(1, 2, time.Minute)
	router := gin.New()
	router.Use(ErrorHandler())
	router.POST("/uploads", RateLimit(rl), func(c *gin.Context) { c.Status(http.StatusOK) })

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/uploads", nil)
		req.RemoteAddr = "10.0.0.1:1234"
		router.ServeHTTP(w, req)
		codes = append(codes, w.Code)
	}
	want := []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}
	for i := range want {
		if codes[i] != want[i] {
			t.Fatalf("codes = %v, want %v", codes, want)
		}
	}

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/uploads", nil)
	req.RemoteAddr = "10.0.0.2:1234"
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Errorf("other client status = %d, want 200", w.Code)
	}
}

func TestRateLimiter_Sweep(t *testing.T) {
	rl := NewRateLimiter(60, 1, time.Minute)
	rl.Allow("a")
	rl.Allow("b")

	if n := rl.Sweep(time.Now()); n != 0 {
		t.Errorf("Sweep(now) = %d, want 0", n)
	}
	if n := rl.Sweep(time.Now().Add(2 * time.Minute)); n != 2 {
		t.Errorf("Sweep(later) = %d, want 2", n)
	}
}

func TestRateLimiter_JanitorStops(t *testing.T) {
	rl := NewRateLimiter(60, 1, time.Millisecond)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() { //nolint:naked-goroutine // test helper
		rl.Janitor(ctx)
		close(done)
	}()
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("janitor did not stop")
	}
}

func TestSecurityHeaders(t *testing.T) {
	router := gin.New()
	router.Use(SecurityHeaders())
	router.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	if got := w.Header().Get("Cache-Control"); got != "no-store" {
		t.Errorf("Cache-Control = %q, want no-store", got)
	}
	if got := w.Header().Get("X-Content-Type-Options"); got != "nosniff" {
		t.Errorf("X-Content-Type-Options = %q", got)
	}
}
