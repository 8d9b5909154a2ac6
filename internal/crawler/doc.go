// Package crawler defines the shared types, capability interfaces, and error
// taxonomy of the job-posting pipeline: discovery, extraction, the stopping
// policy, and the bounded scrape orchestrator all speak in these terms.
package crawler
