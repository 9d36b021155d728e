package subscription

import (
	"context"
	"fmt"
)

// StubFetcher serves canned feed payloads by link. Links listed in
// FailLinks error on every fetch; FetchedLinks records the access order.
type StubFetcher struct {
	Feeds        map[string]string
	FailLinks    map[string]bool
	FetchedLinks []string
}

func NewStubFetcher() *StubFetcher {
	return &StubFetcher{
		Feeds:     make(map[string]string),
		FailLinks: make(map[string]bool),
	}
}

func (f *StubFetcher) Fetch(ctx context.Context, link string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f.FetchedLinks = append(f.FetchedLinks, link)
	if f.FailLinks[link] {
		return nil, fmt.Errorf("stub fetch failure for %s", link)
	}
	body, ok := f.Feeds[link]
	if !ok {
		return nil, fmt.Errorf("stub has no feed for %s", link)
	}
	return []byte(body), nil
}
