// Package log provides logging output for the toolchain. It is a thin veneer over log/slog with
// a handler that formats records on a single line, keeping diagnostics readable when they are
// interleaved with assembler or loader output on a terminal.
package log

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path"
	"runtime"
	"strings"
	"sync"
)

var (
	// DefaultLogger returns a new formatted logger writing to standard error. Each call builds a
	// fresh logger; it does not return the logger installed with SetDefault.
	DefaultLogger = func() *Logger { return NewFormattedLogger(os.Stderr) }

	// SetDefault overrides the default logger.
	SetDefault = slog.SetDefault

	// LogLevel is a variable holding the log level. It can be changed at runtime.
	LogLevel = &slog.LevelVar{}
)

// NewFormattedLogger returns a logger that uses a Handler to format and write logs to a Writer.
func NewFormattedLogger(out io.Writer) *Logger {
	return slog.New(NewHandler(out))
}

// Handler implements slog.Handler to produce single-line formatted log output:
//
//	ERROR asm.go:61 assembly error err="line 4: unknown mnemonic"
type Handler struct {
	mut *sync.Mutex // Synchronizes writer.
	out io.Writer

	opts  *slog.HandlerOptions
	group string
	attrs []Attr
}

// Options for log handlers.
var Options = &slog.HandlerOptions{
	AddSource:   true,
	Level:       LogLevel,
	ReplaceAttr: func(_ []string, attr Attr) Attr { return attr },
}

// NewHandler creates and initializes a Handler with a writer.
func NewHandler(out io.Writer) *Handler {
	h := Handler{
		out:  out,
		mut:  new(sync.Mutex),
		opts: Options,
	}

	return &h
}

// Enabled returns true if the level is at or above the current logging level.
func (h *Handler) Enabled(_ context.Context, level Level) bool {
	return level >= h.opts.Level.Level()
}

// Handle formats and writes a log record to the handler's writer. There are some subtle rules
// about how it ought to behave. See the [slog handler guide].
//
// [slog handler guide]: https://github.com/golang/example/tree/d9923f6970e9ba7e0d23aa9448ead71ea57235ae/slog-handler-guide
func (h *Handler) Handle(_ context.Context, rec slog.Record) error {
	out := bytes.NewBuffer(make([]byte, 0, 256))

	fmt.Fprintf(out, "%-5s", rec.Level.String())

	if h.opts.AddSource && rec.PC != 0 {
		frames := runtime.CallersFrames([]uintptr{rec.PC})
		f, _ := frames.Next()
		_, file := path.Split(f.File)
		fmt.Fprintf(out, " %s:%d", file, f.Line)
	}

	fmt.Fprintf(out, " %s", rec.Message)

	for _, a := range h.attrs {
		h.appendAttr(out, a)
	}

	rec.Attrs(func(attr Attr) bool {
		h.appendAttr(out, attr)
		return true
	})

	fmt.Fprintln(out)

	h.mut.Lock()
	defer h.mut.Unlock()

	_, err := h.out.Write(out.Bytes())

	return err
}

// WithGroup returns a new handler that prefixes attribute keys with the group name.
func (h *Handler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}

	attrs := make([]Attr, len(h.attrs))
	copy(attrs, h.attrs)

	return &Handler{
		mut:   h.mut,
		out:   h.out,
		opts:  h.opts,
		attrs: attrs,
		group: name,
	}
}

// WithAttrs returns a new handler that combines the handler's attributes and those in the argument.
func (h *Handler) WithAttrs(attrs []Attr) slog.Handler {
	as := make([]Attr, 0, len(h.attrs)+len(attrs))
	as = append(as, h.attrs...)
	as = append(as, attrs...)

	return &Handler{
		out:   h.out,
		mut:   h.mut,
		opts:  h.opts,
		group: h.group,
		attrs: as,
	}
}

func (h *Handler) appendAttr(out io.Writer, attr slog.Attr) {
	attr.Value = attr.Value.Resolve()
	attr = h.opts.ReplaceAttr([]string{h.group}, attr)

	if attr.Equal(Attr{}) {
		return
	}

	key := attr.Key
	if h.group != "" {
		key = h.group + "." + key
	}

	if attr.Value.Kind() == slog.KindGroup {
		for _, a := range attr.Value.Group() {
			h.appendAttr(out, a)
		}

		return
	}

	value := fmt.Sprintf("%v", attr.Value.Any())
	if strings.ContainsAny(value, " \t") {
		value = fmt.Sprintf("%q", value)
	}

	fmt.Fprintf(out, " %s=%s", key, value)
}

type (
	Attr   = slog.Attr
	Level  = slog.Level
	Logger = slog.Logger
)

const (
	Debug = slog.LevelDebug
	Info  = slog.LevelInfo
	Warn  = slog.LevelWarn
	Error = slog.LevelError
)
