// Package capture drives headless browser sessions that screenshot
// reported video pages.
package capture

import (
	"context"
	"fmt"
	"time"

	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
)

const (
	defaultNavigationTimeout = 12 * time.Second
	defaultSettleDelay       = time.Second
	defaultWindowWidth       = 1280
	defaultWindowHeight      = 800
)

// Config controls the behavior of the chromedp capturer.
type Config struct {
	MaxParallel       int
	UserAgent         string
	NavigationTimeout time.Duration
	SettleDelay       time.Duration
	WindowWidth       int64
	WindowHeight      int64
	Cookies           []Cookie
}

// Capturer screenshots pages with chromedp and headless Chrome. Every
// capture runs in its own browser process with a throwaway profile, so
// nothing persists between runs and a crashed session cannot poison the
// next one.
type Capturer struct {
	cfg         Config
	limiter     chan struct{}
	allocator   context.Context
	allocCancel context.CancelFunc
}

// NewChromedp creates a headless capturer backed by chromedp.
func NewChromedp(cfg Config) (*Capturer, error) {
	if cfg.MaxParallel < 0 {
		return nil, fmt.Errorf("max parallel must be >= 0")
	}
	var limiter chan struct{}
	if cfg.MaxParallel > 0 {
		limiter = make(chan struct{}, cfg.MaxParallel)
	}

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.NoSandbox,
		chromedp.Flag("headless", "new"),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("hide-scrollbars", true),
		chromedp.Flag("mute-audio", true),
		chromedp.Flag("enable-automation", false),
	)
	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), opts...)

	return &Capturer{
		cfg:         cfg,
		limiter:     limiter,
		allocator:   allocCtx,
		allocCancel: allocCancel,
	}, nil
}

// Close cancels the allocator context, tearing down any remaining
// browser processes.
func (c *Capturer) Close() {
	c.allocCancel()
}

// Capture loads the video page and returns a PNG screenshot of the
// viewport. The whole session, launch through screenshot, is bounded by
// the navigation timeout; the browser context is torn down on every
// return path.
func (c *Capturer) Capture(ctx context.Context, videoURL string) ([]byte, error) {
	if err := c.acquire(ctx); err != nil {
		return nil, err
	}
	defer c.release()

	taskCtx, taskCancel := chromedp.NewContext(c.allocator)
	defer taskCancel()

	taskCtx, cancel := context.WithTimeout(taskCtx, c.navTimeout())
	defer cancel()

	var shot []byte
	actions := []chromedp.Action{
		c.sessionSetupAction(),
		chromedp.Navigate(videoURL),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.Sleep(c.settleDelay()),
		chromedp.CaptureScreenshot(&shot),
	}
	if err := chromedp.Run(taskCtx, actions...); err != nil {
		return nil, fmt.Errorf("chromedp run: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("capture canceled: %w", err)
	}
	return shot, nil
}

func (c *Capturer) sessionSetupAction() chromedp.Action {
	return chromedp.ActionFunc(func(ctx context.Context) error {
		if err := network.Enable().Do(ctx); err != nil {
			return fmt.Errorf("enable network domain: %w", err)
		}
		if c.cfg.UserAgent != "" {
			if err := emulation.SetUserAgentOverride(c.cfg.UserAgent).Do(ctx); err != nil {
				return fmt.Errorf("set user-agent: %w", err)
			}
		}
		if err := emulation.SetDeviceMetricsOverride(c.windowWidth(), c.windowHeight(), 1, false).Do(ctx); err != nil {
			return fmt.Errorf("set viewport: %w", err)
		}
		for _, cookie := range c.cfg.Cookies {
			if err := setCookie(ctx, cookie); err != nil {
				return err
			}
		}
		return nil
	})
}

func setCookie(ctx context.Context, cookie Cookie) error {
	params := network.SetCookie(cookie.Name, cookie.Value).WithDomain(cookie.Domain)
	if cookie.Path != "" {
		params = params.WithPath(cookie.Path)
	}
	if cookie.Secure {
		params = params.WithSecure(true)
	}
	if err := params.Do(ctx); err != nil {
		return fmt.Errorf("set cookie %s: %w", cookie.Name, err)
	}
	return nil
}

func (c *Capturer) acquire(ctx context.Context) error {
	if c.limiter == nil {
		return nil
	}
	select {
	case c.limiter <- struct{}{}:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("capture slot wait canceled: %w", ctx.Err())
	}
}

func (c *Capturer) release() {
	if c.limiter == nil {
		return
	}
	select {
	case <-c.limiter:
	default:
	}
}

func (c *Capturer) navTimeout() time.Duration {
	if c.cfg.NavigationTimeout > 0 {
		return c.cfg.NavigationTimeout
	}
	return defaultNavigationTimeout
}

func (c *Capturer) settleDelay() time.Duration {
	if c.cfg.SettleDelay > 0 {
		return c.cfg.SettleDelay
	}
	return defaultSettleDelay
}

func (c *Capturer) windowWidth() int64 {
	if c.cfg.WindowWidth > 0 {
		return c.cfg.WindowWidth
	}
	return defaultWindowWidth
}

func (c *Capturer) windowHeight() int64 {
	if c.cfg.WindowHeight > 0 {
		return c.cfg.WindowHeight
	}
	return defaultWindowHeight
}
