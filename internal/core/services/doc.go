// Package services implements the application's use cases: space
// management, content ingestion, and grounded question answering.
// Services own the orchestration and compensation logic; all
// infrastructure is reached through the driven ports.
package services
