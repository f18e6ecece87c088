// Package limiter implements the three independent throttles the model
// call path and the research fetcher sit behind: a concurrency gate
// (how many calls may be in flight), a token bucket (how fast one
// model may be called), and a per-domain backoff (how soon a given
// host may be fetched again after a failure or a robots block).
package limiter

// Defaults from spec §4.4: 3 concurrent LLM calls process-wide, 2 per
// requester, a 60-request burst bucket refilling at 1/s per model.
const (
	DefaultKGlobal        = 3
	DefaultKUser          = 2
	DefaultBucketCapacity = 60
	DefaultBucketRefill   = 1.0
)
