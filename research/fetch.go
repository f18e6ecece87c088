package research

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"go.uber.org/zap"
)

var trackingParams = []string{
	"utm_source", "utm_medium", "utm_campaign", "utm_term", "utm_content",
	"gclid", "fbclid",
}

// normalizeURL strips tracking params and lower-cases the host so
// duplicate search hits pointing at the same page collapse to one
// fetch.
func normalizeURL(raw string) (string, *url.URL, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", nil, err
	}
	u.Host = strings.ToLower(u.Host)

	q := u.Query()
	for _, p := range trackingParams {
		q.Del(p)
	}
	u.RawQuery = q.Encode()
	u.Fragment = ""

	return u.String(), u, nil
}

// fetchAll fetches every search hit concurrently, bounded by the
// requester's and the global concurrency gate, and gated per-domain by
// robots.txt and backoff state. Unreachable or disallowed pages are
// dropped rather than failing the whole request.
func (r *Researcher) fetchAll(ctx context.Context, requesterID string, hits []SearchResult) []fetchedPage {
	seen := make(map[string]bool)
	var mu sync.Mutex
	var wg sync.WaitGroup
	pages := make([]fetchedPage, len(hits))

	for i, hit := range hits {
		normalized, parsed, err := normalizeURL(hit.URL)
		if err != nil {
			r.logger.Debug("research: skip unparsable url", zap.String("url", hit.URL), zap.Error(err))
			continue
		}
		mu.Lock()
		dup := seen[normalized]
		seen[normalized] = true
		mu.Unlock()
		if dup {
			continue
		}

		wg.Add(1)
		go func(idx int, hit SearchResult, u *url.URL) {
			defer wg.Done()
			text, ok := r.fetchOne(ctx, requesterID, u)
			pages[idx] = fetchedPage{source: hit, text: text, fetched: ok}
		}(i, hit, parsed)
	}
	wg.Wait()

	result := make([]fetchedPage, 0, len(pages))
	for _, p := range pages {
		if p.fetched {
			result = append(result, p)
		}
	}
	return result
}

func (r *Researcher) fetchOne(ctx context.Context, requesterID string, u *url.URL) (string, bool) {
	domain := u.Hostname()

	release, err := r.gates.Acquire(ctx, requesterID)
	if err != nil {
		return "", false
	}
	defer release()

	unlock := r.domainBackoff.Lock(domain)
	defer unlock()

	if allowed, _ := r.domainBackoff.Allowed(domain); !allowed {
		r.logger.Debug("research: domain backed off, skipping", zap.String("domain", domain))
		return "", false
	}

	if !r.robotsAllowed(ctx, u.Scheme, u.Host, u.Path) {
		r.domainBackoff.RecordRobotsDisallow(domain)
		return "", false
	}

	fetchCtx, cancel := context.WithTimeout(ctx, FetchTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(fetchCtx, http.MethodGet, u.String(), nil)
	if err != nil {
		return "", false
	}
	req.Header.Set("User-Agent", "agentmesh-research/1.0")

	resp, err := r.httpClient.Do(req)
	if err != nil {
		r.domainBackoff.RecordFailure(domain)
		return "", false
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		r.domainBackoff.RecordFailure(domain)
		return "", false
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		r.domainBackoff.RecordFailure(domain)
		return "", false
	}

	r.domainBackoff.RecordSuccess(domain)
	return string(body), true
}
