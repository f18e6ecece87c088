// Package modelclient provides the typed call path from the engine to an
// external LLM: cache lookup, concurrency/rate gates, a bounded retry
// ladder, response shape validation, and token accounting.
package modelclient
