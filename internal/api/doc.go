// Package api hosts the operator HTTP surface of the crawler. Routes:
//   - GET /healthz and /readyz for probes.
//   - GET /metrics for Prometheus scraping.
//   - GET /v1/run for the progress of the current run.
package api
