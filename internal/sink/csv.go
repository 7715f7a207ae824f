package sink

import (
	"bufio"
	"fmt"
	"os"
	"os/user"
	"path/filepath"
	"time"

	"github.com/context-labs/procwatt/internal/row"
)

// restartLine is written verbatim as the first line of a CSV file that
// already existed when it was (re)opened.
const restartLine = "----RESTARTLINE----"

// CSVSink appends rows to a daily log-DD_MM_YYYY-USERNAME.csv file,
// rotating to a new file whenever the local calendar day changes.
type CSVSink struct {
	dir      string
	username string

	day    string
	file   *os.File
	writer *bufio.Writer
}

// NewCSVSink creates a CSVSink rooted at dir (the current directory if
// empty) and opens today's file.
func NewCSVSink(dir string, now time.Time) (*CSVSink, error) {
	username := currentUsername()
	s := &CSVSink{dir: dir, username: username}
	if err := s.openFor(now); err != nil {
		return nil, err
	}
	return s, nil
}

func currentUsername() string {
	u, err := user.Current()
	if err != nil || u.Username == "" {
		return "unknown"
	}
	return u.Username
}

func dayKey(now time.Time) string {
	return now.Format("02_01_2006")
}

func (s *CSVSink) pathFor(now time.Time) string {
	name := fmt.Sprintf("log-%s-%s.csv", dayKey(now), s.username)
	if s.dir == "" {
		return name
	}
	return filepath.Join(s.dir, name)
}

func (s *CSVSink) openFor(now time.Time) error {
	path := s.pathFor(now)

	existed := false
	if _, err := os.Stat(path); err == nil {
		existed = true
	}

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("sink: open %s: %w", path, err)
	}

	w := bufio.NewWriter(f)
	if existed {
		if _, err := w.WriteString(restartLine + "\n"); err != nil {
			f.Close()
			return fmt.Errorf("sink: write restart line: %w", err)
		}
	} else {
		if _, err := w.WriteString(row.Header + "\n"); err != nil {
			f.Close()
			return fmt.Errorf("sink: write header: %w", err)
		}
	}
	if err := w.Flush(); err != nil {
		f.Close()
		return err
	}

	s.file = f
	s.writer = w
	s.day = dayKey(now)
	return nil
}

// WriteRow appends r as a single ';'-separated CSV line terminated by '\n'.
func (s *CSVSink) WriteRow(r row.Row) error {
	if _, err := s.writer.WriteString(r.CSVLine() + "\n"); err != nil {
		return fmt.Errorf("sink: write row: %w", err)
	}
	return s.writer.Flush()
}

// Rotate closes and reopens the sink if the local calendar day has changed
// since the file currently held open was opened.
func (s *CSVSink) Rotate(now time.Time) error {
	if dayKey(now) == s.day {
		return nil
	}
	if err := s.closeFile(); err != nil {
		return err
	}
	return s.openFor(now)
}

func (s *CSVSink) closeFile() error {
	if s.writer != nil {
		_ = s.writer.Flush()
	}
	if s.file != nil {
		return s.file.Close()
	}
	return nil
}

// Close flushes and closes the current file.
func (s *CSVSink) Close() error {
	return s.closeFile()
}
