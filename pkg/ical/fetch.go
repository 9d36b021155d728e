package ical

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/carlmjohnson/requests"
	log "github.com/sirupsen/logrus"
)

// FeedFetcher retrieves the raw bytes of an external feed.
type FeedFetcher interface {
	Fetch(ctx context.Context, link string) ([]byte, error)
}

// HTTPFetcher fetches feeds over HTTP with a fixed per-request deadline.
type HTTPFetcher struct {
	timeout time.Duration
}

func NewHTTPFetcher(timeout time.Duration) *HTTPFetcher {
	return &HTTPFetcher{timeout: timeout}
}

func (f *HTTPFetcher) Fetch(ctx context.Context, link string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	var buf bytes.Buffer
	err := requests.URL(link).
		ToBytesBuffer(&buf).
		Fetch(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch feed: %w", err)
	}

	log.Debugf("fetched %d bytes from feed", buf.Len())
	return buf.Bytes(), nil
}
