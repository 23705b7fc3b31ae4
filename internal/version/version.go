// Package version holds the release tag the agent writer reports in its
// Datadog-Meta-Tracer-Version header.
package version

// Tag is the current release tag. It is updated by hand at release time.
const Tag = "v0.1.0"
