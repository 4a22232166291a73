// Package logging builds the zerolog logger shared by the server and CLI.
package logging

import (
	"io"
	"os"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/rs/zerolog"
)

type Options struct {
	// Verbose is the -v count: 1 for debug, 2 or more for trace.
	Verbose int
	// Local selects the human readable console writer.
	Local bool
	Out   io.Writer
}

func New(opts Options) zerolog.Logger {
	out := opts.Out
	if out == nil {
		out = os.Stderr
	}
	if opts.Local {
		out = zerolog.ConsoleWriter{
			Out:        out,
			TimeFormat: time.RFC3339,
		}
	}

	return zerolog.New(out).
		Level(Level(opts.Verbose)).
		With().
		Timestamp().
		Caller().
		Logger()
}

func Level(verbose int) zerolog.Level {
	switch clamp(2, verbose) {
	case 2:
		return zerolog.TraceLevel
	case 1:
		return zerolog.DebugLevel
	default:
		return zerolog.InfoLevel
	}
}

// IsTerminal reports whether f is attached to a terminal.
func IsTerminal(f *os.File) bool {
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

func clamp(clamp, a int) int {
	if a >= clamp {
		return clamp
	}
	return a
}
