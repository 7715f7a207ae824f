// Copyright (c) 2026 procwatt authors under MIT License
// Package logging wires up the probe's structured logger: zerolog writing
// through a size- and count-bounded lumberjack file, the pairing used
// across the example fleet's daemon-style agents.
package logging

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"gopkg.in/natefinch/lumberjack.v2"
)

const (
	maxSizeMB  = 5
	maxBackups = 3
)

// New builds a zerolog.Logger that writes to path, rotating at 5 MiB with
// up to 3 backups kept (no compression, matching the probe's low log
// volume). stderr is always written to as well, at the same level.
func New(path string) (zerolog.Logger, io.Closer, error) {
	lj := &lumberjack.Logger{
		Filename:   path,
		MaxSize:    maxSizeMB,
		MaxBackups: maxBackups,
		Compress:   false,
	}

	multi := zerolog.MultiLevelWriter(lj, zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	logger := zerolog.New(multi).With().Timestamp().Logger()
	return logger, lj, nil
}

// Banner writes a "[<date>] <message>" line to stderr, matching the
// startup/shutdown announcements the probe's predecessor wrote directly
// to its console.
func Banner(message string) {
	fmt.Fprintf(os.Stderr, "[%s] %s\n", time.Now().Format(time.RFC1123), message)
}
