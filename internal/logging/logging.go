// Package logging builds the process logger: a human readable console stream on
// stderr and a rotating file under the log directory.
package logging

import (
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
	"gopkg.in/natefinch/lumberjack.v2"

	"fastvlmd/internal/common/fsutil"
)

// Options configures New.
type Options struct {
	// File is the rotating log file. Empty disables file output.
	File string
	// MaxBytes is the size at which File rotates. Rounded up to whole megabytes.
	MaxBytes   int64
	MaxBackups int
	Level      zerolog.Level
	// Console overrides the console stream (stderr when nil).
	Console io.Writer
	// NoColor disables ANSI colors on the console stream.
	NoColor bool
}

// Logger is a configured zerolog logger plus the file it writes to.
type Logger struct {
	zerolog.Logger
	file *lumberjack.Logger
}

// New creates the log directory if needed and returns a logger writing to the
// console and, when opts.File is set, to a size-rotated file.
func New(opts Options) (*Logger, error) {
	console := opts.Console
	if console == nil {
		console = os.Stderr
	}
	writers := []io.Writer{zerolog.ConsoleWriter{Out: console, NoColor: opts.NoColor, TimeFormat: time.DateTime}}

	var file *lumberjack.Logger
	if opts.File != "" {
		if err := fsutil.EnsureDir(filepath.Dir(opts.File)); err != nil {
			return nil, err
		}
		file = &lumberjack.Logger{
			Filename:   opts.File,
			MaxSize:    maxSizeMB(opts.MaxBytes),
			MaxBackups: opts.MaxBackups,
		}
		writers = append(writers, file)
	}

	zl := zerolog.New(zerolog.MultiLevelWriter(writers...)).
		Level(opts.Level).
		With().Timestamp().Str("service", "fastvlmd").
		Logger()
	return &Logger{Logger: zl, file: file}, nil
}

// Component returns a child logger tagged with a component name.
func (l *Logger) Component(name string) zerolog.Logger {
	return l.With().Str("component", name).Logger()
}

// Close flushes and closes the log file.
func (l *Logger) Close() error {
	if l == nil || l.file == nil {
		return nil
	}
	return l.file.Close()
}

// lumberjack rotates on whole megabytes.
func maxSizeMB(n int64) int {
	if n <= 0 {
		return 0
	}
	const mb = 1 << 20
	return int((n + mb - 1) / mb)
}
