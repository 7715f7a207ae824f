package sink

import (
	"bufio"
	"io"
	"time"

	"github.com/context-labs/procwatt/internal/row"
)

// StdoutSink writes rows to an arbitrary writer (stdout in practice) with
// a single header line up front. There is no such thing as day rollover
// for a stream, so Rotate is a no-op.
type StdoutSink struct {
	w           *bufio.Writer
	wroteHeader bool
}

// NewStdoutSink wraps w, writing the header line before the first row.
func NewStdoutSink(w io.Writer) *StdoutSink {
	return &StdoutSink{w: bufio.NewWriter(w)}
}

// WriteRow writes the CSV header exactly once, then appends r.
func (s *StdoutSink) WriteRow(r row.Row) error {
	if !s.wroteHeader {
		if _, err := s.w.WriteString(row.Header + "\n"); err != nil {
			return err
		}
		s.wroteHeader = true
	}
	if _, err := s.w.WriteString(r.CSVLine() + "\n"); err != nil {
		return err
	}
	return s.w.Flush()
}

// Rotate is a no-op: a stream has no calendar day to roll over.
func (s *StdoutSink) Rotate(now time.Time) error {
	return nil
}

// Close flushes any buffered output.
func (s *StdoutSink) Close() error {
	return s.w.Flush()
}
