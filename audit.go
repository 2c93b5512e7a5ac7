package authcore

import (
	"io"

	"github.com/insano70/bcos-sub014/internal/audit"
)

// Audit aliases re-export the internal pipeline so sink implementations and
// event consumers never import internal packages.
type (
	AuditEvent     = audit.Event
	AuditSink      = audit.Sink
	NoOpSink       = audit.NoOpSink
	ChannelSink    = audit.ChannelSink
	JSONWriterSink = audit.JSONWriterSink
)

// Severity levels carried on AuditEvent.
const (
	SeverityInfo     = audit.SeverityInfo
	SeverityWarning  = audit.SeverityWarning
	SeverityCritical = audit.SeverityCritical
)

// NewChannelSink returns a sink that forwards events into a buffered channel
// read via Events().
func NewChannelSink(buffer int) *ChannelSink {
	return audit.NewChannelSink(buffer)
}

// NewJSONWriterSink returns a sink writing one JSON event per line.
func NewJSONWriterSink(w io.Writer) *JSONWriterSink {
	return audit.NewJSONWriterSink(w)
}
