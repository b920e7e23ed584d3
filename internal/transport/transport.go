// SPDX-License-Identifier: MIT
package transport

// Transport defines a generic interface for sending processed data or events.
// Implementations should be thread-safe and must not block the render loop.
type Transport interface {
	Send(data any) error
	Close() error
}

// ColumnProvider exposes the newest spectrogram column to publishers that
// poll on their own schedule.
type ColumnProvider interface {
	// LatestColumn copies the rightmost column, top row first, into dst.
	LatestColumn(dst []uint32) []uint32
}

// Column is one freshly drawn spectrogram column. Pixels are 0xFFRRGGBB,
// top row first.
type Column struct {
	Type      string   `json:"type"` // Always "column".
	Seq       uint64   `json:"seq"`
	Timestamp int64    `json:"timestamp"` // Nanoseconds since epoch.
	Height    int      `json:"height"`
	Pixels    []uint32 `json:"pixels"`
}

// Event reports a state change such as a gradient reload or a resize.
type Event struct {
	Type    string `json:"type"`
	Message string `json:"message,omitempty"`
	Width   int    `json:"width,omitempty"`
	Height  int    `json:"height,omitempty"`
}

// Message types.
const (
	TypeColumn  = "column"
	TypeConfig  = "config_changed"
	TypeResize  = "resize"
	TypeStopped = "stopped"
)
