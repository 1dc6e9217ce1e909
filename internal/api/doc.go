// Package api hosts the ops HTTP server, middleware, and REST handlers for
// operator access. Notable routes:
//   - GET /healthz and /readyz for Kubernetes probes.
//   - GET /metrics for Prometheus scraping.
//   - GET /api/runs/{run_id} for import run history via the RunRepository
//     interface.
package api
