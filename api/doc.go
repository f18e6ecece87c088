// Package api is the HTTP surface from spec §6: task submission,
// research, multi-agent fan-out, task lookup/cancel, conversation
// history, and the four webhook ingress endpoints. Routing and
// middleware follow the teacher's cmd/agentflow/middleware.go chain
// idiom built directly on net/http.ServeMux, rather than pulling in a
// third-party router for a concern the teacher already covers by hand.
package api
