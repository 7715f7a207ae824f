// Copyright (c) 2026 procwatt authors under MIT License
// Package sink writes emitted rows to their final destination: an
// append-only daily CSV file, or stdout. Both are a "polymorphic sink"
// a write(row) + rotate()
// capability with two concrete variants chosen at startup.
package sink

import (
	"time"

	"github.com/context-labs/procwatt/internal/row"
)

// Sink is the C9 collaborator contract: write a row, and rotate to a new
// daily file on local-calendar-day rollover (a no-op for the stdout sink).
type Sink interface {
	WriteRow(r row.Row) error
	Rotate(now time.Time) error
	Close() error
}
