// Package types holds the core value types shared across agentmesh:
// tasks, messages, and the structured error used at every component
// boundary. It has zero dependencies on other agentmesh packages so
// every other package can import it without risking an import cycle.
package types
