// Package traceband holds the data model and the external collaborator
// interfaces shared by the trace assembly buffer, the agent writer, and the
// rules sampler. It is a good overview of the available API and
// functionalities; the hard engineering lives in the internal/ packages.
package traceband // import "github.com/arwalker/traceband"
