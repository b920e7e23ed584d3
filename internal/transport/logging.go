// SPDX-License-Identifier: MIT
package transport

import (
	"sync/atomic"

	applog "spectro/internal/log"
)

var logLogger = applog.For("transport")

// LoggingTransport implements the Transport interface by logging a summary
// of each message at debug level. It is used when no network transport is
// configured so the render loop can be observed with --log-level debug.
type LoggingTransport struct {
	columns atomic.Uint64
}

// NewLoggingTransport creates a new LoggingTransport instance.
func NewLoggingTransport() *LoggingTransport {
	logLogger.Debugf("Using LoggingTransport")
	return &LoggingTransport{}
}

// Send logs the received message.
func (lt *LoggingTransport) Send(data any) error {
	switch v := data.(type) {
	case Column:
		n := lt.columns.Add(1)
		// One line per second of columns at 30Hz.
		if n%30 == 1 {
			logLogger.Debugf("column %d (height %d)", v.Seq, v.Height)
		}
	case Event:
		logLogger.Debugf("event %s %s", v.Type, v.Message)
	default:
		logLogger.Debugf("message %T", data)
	}
	return nil // Logging transport never fails to "send"
}

// Columns returns the number of columns seen.
func (lt *LoggingTransport) Columns() uint64 {
	return lt.columns.Load()
}

// Close is a no-op for LoggingTransport.
func (lt *LoggingTransport) Close() error {
	logLogger.Debugf("Close called after %d columns", lt.columns.Load())
	return nil
}

// Ensure LoggingTransport satisfies the interface at compile time.
var _ Transport = (*LoggingTransport)(nil)
