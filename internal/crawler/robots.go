package crawler

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/temoto/robotstxt"
	"go.uber.org/zap"
)

// RobotsPolicy answers whether a URL may be fetched under the site's
// robots.txt directives.
type RobotsPolicy interface {
	Allowed(rawURL string) bool
}

type robotsGovernor struct {
	data      *robotstxt.RobotsData
	userAgent string
}

// NewRobotsGovernor fetches and parses robots.txt for the base domain once,
// at startup. A failure to fetch or parse degrades to allow-all: robots
// infrastructure problems never stop a crawl. With respect=false the
// governor always allows.
func NewRobotsGovernor(ctx context.Context, baseDomain, userAgent string, respect bool, client *http.Client, logger *zap.Logger) RobotsPolicy {
	if !respect {
		logger.Info("robots.txt checking disabled")
		return allowAllPolicy{}
	}
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	robotsURL := baseDomain + "/robots.txt"
	data, err := loadRobots(ctx, client, robotsURL, userAgent, logger)
	if err != nil {
		logger.Warn("robots.txt unavailable; allowing all",
			zap.String("robots_url", robotsURL),
			zap.Error(err),
		)
		return allowAllPolicy{}
	}
	logger.Info("robots.txt loaded", zap.String("robots_url", robotsURL))
	return &robotsGovernor{data: data, userAgent: userAgent}
}

// Allowed tests the URL path against the rule group for the configured
// user agent. Unparseable URLs are denied.
func (r *robotsGovernor) Allowed(rawURL string) bool {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	group := r.data.FindGroup(r.userAgent)
	if group == nil {
		return true
	}
	return group.Test(parsed.Path)
}

func loadRobots(ctx context.Context, client *http.Client, robotsURL, userAgent string, logger *zap.Logger) (*robotstxt.RobotsData, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, robotsURL, nil)
	if err != nil {
		return nil, fmt.Errorf("new robots request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch robots: %w", err)
	}
	defer func() {
		if cerr := resp.Body.Close(); cerr != nil {
			logger.Debug("close robots response body", zap.Error(cerr))
		}
	}()
	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("read robots body: %w", err)
	}
	data, err := robotstxt.FromStatusAndBytes(resp.StatusCode, body)
	if err != nil {
		return nil, fmt.Errorf("parse robots: %w", err)
	}
	return data, nil
}

type allowAllPolicy struct{}

func (allowAllPolicy) Allowed(string) bool { return true }
