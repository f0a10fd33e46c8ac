// Package logger builds the zerolog loggers used across the bridge.
package logger

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"gopkg.in/natefinch/lumberjack.v2"
)

const (
	colorRed     = 31
	colorGreen   = 32
	colorYellow  = 33
	colorMagenta = 35

	colorBold = 1
)

func colorize(s any, c int) string {
	return fmt.Sprintf("\x1b[%dm%v\x1b[0m", c, s)
}

// Options selects the logger flavour.
type Options struct {
	// Env is "dev"/"development"/"" for console output, anything else for JSON.
	Env string
	// File, when set, additionally writes JSON logs to a rotated file.
	File string
	// Level defaults to debug in development and info otherwise.
	Level string
}

// New creates a logger based on the ENV environment variable.
func New() zerolog.Logger {
	return NewWithOptions(Options{Env: os.Getenv("ENV"), File: os.Getenv("LOG_FILE")})
}

// NewWithOptions creates a console or JSON logger, teeing to File when set.
func NewWithOptions(opts Options) zerolog.Logger {
	dev := opts.Env == "development" || opts.Env == "dev" || opts.Env == ""

	var out io.Writer
	if dev {
		out = consoleWriter(os.Stderr)
	} else {
		zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
		out = os.Stderr
	}
	if opts.File != "" {
		out = zerolog.MultiLevelWriter(out, fileWriter(opts.File))
	}

	level := zerolog.InfoLevel
	if dev {
		level = zerolog.DebugLevel
	}
	if l, err := zerolog.ParseLevel(opts.Level); err == nil && opts.Level != "" {
		level = l
	}
	return zerolog.New(out).Level(level).With().Timestamp().Logger()
}

// NewDevelopment creates a development logger with console output and colors.
func NewDevelopment() zerolog.Logger {
	return NewWithOptions(Options{Env: "dev"})
}

// NewProduction creates a production logger with JSON output and UNIX timestamps.
func NewProduction() zerolog.Logger {
	return NewWithOptions(Options{Env: "production"})
}

func fileWriter(path string) io.Writer {
	return &lumberjack.Logger{
		Filename:   path,
		MaxSize:    50,
		MaxBackups: 3,
		MaxAge:     14,
		Compress:   true,
	}
}

func consoleWriter(w io.Writer) zerolog.ConsoleWriter {
	return zerolog.ConsoleWriter{
		Out:         w,
		TimeFormat:  "2006-01-02 15:04:05",
		FormatLevel: formatLevel,
	}
}

func formatLevel(i any) string {
	ll, ok := i.(string)
	if !ok {
		return strings.ToUpper(fmt.Sprintf("%s", i))
	}
	switch ll {
	case "trace":
		return colorize("TRC", colorMagenta)
	case "debug":
		return colorize("DBG", colorYellow)
	case "info":
		return colorize("INF", colorGreen)
	case "warn":
		return colorize("WRN", colorRed)
	case "error":
		return colorize("ERR", colorRed)
	case "fatal":
		return colorize("FTL", colorRed)
	case "panic":
		return colorize("PNC", colorRed)
	}
	if len(ll) > 3 {
		ll = ll[:3]
	}
	return colorize(strings.ToUpper(ll), colorBold)
}
