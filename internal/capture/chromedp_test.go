package capture

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestNewChromedpLimiterValidation(t *testing.T) {
	t.Parallel()

	if _, err := NewChromedp(Config{MaxParallel: -1}); err == nil {
		t.Fatal("expected error for negative max parallel")
	}
	capturer, err := NewChromedp(Config{MaxParallel: 2})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer capturer.Close()
	if cap(capturer.limiter) != 2 {
		t.Fatalf("expected limiter capacity 2, got %d", cap(capturer.limiter))
	}
}

func TestCapturerSessionDefaults(t *testing.T) {
	t.Parallel()

	capturer := &Capturer{}
	if got := capturer.navTimeout(); got != 12*time.Second {
		t.Fatalf("expected default nav timeout, got %v", got)
	}
	if got := capturer.settleDelay(); got != time.Second {
		t.Fatalf("expected default settle delay, got %v", got)
	}
	if w, h := capturer.windowWidth(), capturer.windowHeight(); w != 1280 || h != 800 {
		t.Fatalf("expected default viewport, got %dx%d", w, h)
	}

	capturer.cfg.NavigationTimeout = time.Second
	capturer.cfg.SettleDelay = 100 * time.Millisecond
	capturer.cfg.WindowWidth = 640
	capturer.cfg.WindowHeight = 480
	if got := capturer.navTimeout(); got != time.Second {
		t.Fatalf("expected override to be used, got %v", got)
	}
	if got := capturer.settleDelay(); got != 100*time.Millisecond {
		t.Fatalf("expected override to be used, got %v", got)
	}
	if w, h := capturer.windowWidth(), capturer.windowHeight(); w != 640 || h != 480 {
		t.Fatalf("expected viewport override, got %dx%d", w, h)
	}
}

func TestAcquireHonorsContextCancel(t *testing.T) {
	t.Parallel()

	capturer := &Capturer{limiter: make(chan struct{}, 1)}
	if err := capturer.acquire(context.Background()); err != nil {
		t.Fatalf("first acquire failed: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := capturer.acquire(ctx); err == nil {
		t.Fatal("expected error when waiting on a full limiter with canceled context")
	}

	capturer.release()
	if err := capturer.acquire(context.Background()); err != nil {
		t.Fatalf("acquire after release failed: %v", err)
	}
}

func TestFileName(t *testing.T) {
	t.Parallel()

	got := FileName("https://youtu.be/dQw4w9WgXcQ", "0190f7a2")
	if got != "dQw4w9WgXcQ-0190f7a2.png" {
		t.Fatalf("unexpected file name: %s", got)
	}

	got = FileName("not-a-url", "0190f7a2")
	if got != "0190f7a2.png" {
		t.Fatalf("unexpected fallback file name: %s", got)
	}
}

func TestLoadCookies(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "cookies.json")
	payload := `[{"name":"CONSENT","value":"YES+1","domain":".youtube.com","path":"/","secure":true}]`
	if err := os.WriteFile(path, []byte(payload), 0o600); err != nil {
		t.Fatalf("write cookies file: %v", err)
	}

	cookies, err := LoadCookies(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(cookies) != 1 || cookies[0].Name != "CONSENT" || cookies[0].Domain != ".youtube.com" {
		t.Fatalf("unexpected cookies: %+v", cookies)
	}
	if !cookies[0].Secure {
		t.Fatal("expected secure cookie")
	}
}

func TestLoadCookiesRejectsBadEntries(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()

	missingDomain := filepath.Join(dir, "missing_domain.json")
	if err := os.WriteFile(missingDomain, []byte(`[{"name":"CONSENT","value":"x"}]`), 0o600); err != nil {
		t.Fatalf("write cookies file: %v", err)
	}
	if _, err := LoadCookies(missingDomain); err == nil {
		t.Fatal("expected error for cookie without domain")
	}

	malformed := filepath.Join(dir, "malformed.json")
	if err := os.WriteFile(malformed, []byte(`{"not":"a list"}`), 0o600); err != nil {
		t.Fatalf("write cookies file: %v", err)
	}
	if _, err := LoadCookies(malformed); err == nil {
		t.Fatal("expected error for malformed cookies file")
	}

	if _, err := LoadCookies(filepath.Join(dir, "absent.json")); err == nil {
		t.Fatal("expected error for missing cookies file")
	}
}

func TestNoopCapturerError(t *testing.T) {
	t.Parallel()

	capturer := NewNoop()
	if _, err := capturer.Capture(context.Background(), "https://youtu.be/dQw4w9WgXcQ"); err == nil {
		t.Fatal("expected error from noop capturer")
	}
}
