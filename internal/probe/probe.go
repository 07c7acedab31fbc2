// Package probe checks reported URLs over plain HTTP before a browser
// session is spent on them.
package probe

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/gocolly/colly/v2"

	"github.com/tipline/videoreports/internal/report"
)

// Config controls collector behavior.
type Config struct {
	UserAgent string
	Timeout   time.Duration
}

// Prober implements the reachability probe with a Colly collector. One
// GET per probe; the page title is scraped so downstream notifications
// can carry it.
type Prober struct {
	cfg           Config
	baseCollector *colly.Collector
}

// New builds a Prober.
func New(cfg Config) *Prober {
	c := colly.NewCollector(colly.Async(false))
	c.IgnoreRobotsTxt = true
	// The same video URL can be reported many times.
	c.AllowURLRevisit = true
	c.WithTransport(newHTTPTransport())

	return &Prober{
		cfg:           cfg,
		baseCollector: c,
	}
}

// Probe fetches the URL once and reports the status code and page title.
// Any transport or HTTP-level failure is returned as an error.
func (p *Prober) Probe(ctx context.Context, pageURL string) (report.ProbeResult, error) {
	var (
		result   report.ProbeResult
		probeErr error
	)
	collector := p.buildCollector(&result, &probeErr)

	done := make(chan error, 1)
	go func() {
		done <- collector.Visit(pageURL)
	}()

	select {
	case <-ctx.Done():
		return report.ProbeResult{}, fmt.Errorf("probe canceled: %w", ctx.Err())
	case err := <-done:
		if err != nil {
			return result, fmt.Errorf("probe visit failed: %w", err)
		}
		if probeErr != nil {
			return result, fmt.Errorf("probe response failed: %w", probeErr)
		}
	}
	return result, nil
}

func (p *Prober) buildCollector(result *report.ProbeResult, probeErr *error) *colly.Collector {
	collector := p.baseCollector.Clone()
	if p.cfg.UserAgent != "" {
		collector.UserAgent = p.cfg.UserAgent
	}
	timeout := p.cfg.Timeout
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	collector.SetRequestTimeout(timeout)

	collector.OnResponse(func(r *colly.Response) {
		result.StatusCode = r.StatusCode
	})
	collector.OnHTML("title", func(e *colly.HTMLElement) {
		if result.Title == "" {
			result.Title = strings.TrimSpace(e.Text)
		}
	})
	collector.OnError(func(r *colly.Response, err error) {
		if r != nil {
			result.StatusCode = r.StatusCode
		}
		*probeErr = err
	})
	return collector
}

func newHTTPTransport() *http.Transport {
	return &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   15 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
	}
}
