// Package log provides leveled, structured, key-value logging for corenpu,
// in the style the rest of the pipeline core uses throughout: a short
// message followed by alternating key/value context pairs.
package log

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/go-stack/stack"
	"github.com/mattn/go-colorable"
	"github.com/mattn/go-isatty"
)

// Lvl is a logging severity level.
type Lvl int

const (
	LvlCrit Lvl = iota
	LvlError
	LvlWarn
	LvlInfo
	LvlDebug
	LvlTrace
)

func (l Lvl) String() string {
	switch l {
	case LvlCrit:
		return "crit"
	case LvlError:
		return "error"
	case LvlWarn:
		return "warn"
	case LvlInfo:
		return "info"
	case LvlDebug:
		return "debug"
	case LvlTrace:
		return "trace"
	default:
		return "unknown"
	}
}

// Logger writes structured, leveled log records.
type Logger interface {
	Trace(msg string, ctx ...interface{})
	Debug(msg string, ctx ...interface{})
	Info(msg string, ctx ...interface{})
	Warn(msg string, ctx ...interface{})
	Error(msg string, ctx ...interface{})
	Crit(msg string, ctx ...interface{})

	// New returns a child logger with ctx appended to every record it emits.
	New(ctx ...interface{}) Logger
}

type record struct {
	time time.Time
	lvl  Lvl
	msg  string
	ctx  []interface{}
	call stack.CallStack
}

type logger struct {
	ctx []interface{}
	h   *swapHandler
}

func (l *logger) write(lvl Lvl, msg string, ctx []interface{}) {
	all := make([]interface{}, 0, len(l.ctx)+len(ctx))
	all = append(all, l.ctx...)
	all = append(all, ctx...)

	var call stack.CallStack
	if lvl <= LvlWarn {
		call = stack.Callers()[2:3]
	}
	l.h.Log(&record{time: time.Now(), lvl: lvl, msg: msg, ctx: all, call: call})
}

func (l *logger) Trace(msg string, ctx ...interface{}) { l.write(LvlTrace, msg, ctx) }
func (l *logger) Debug(msg string, ctx ...interface{}) { l.write(LvlDebug, msg, ctx) }
func (l *logger) Info(msg string, ctx ...interface{})  { l.write(LvlInfo, msg, ctx) }
func (l *logger) Warn(msg string, ctx ...interface{})  { l.write(LvlWarn, msg, ctx) }
func (l *logger) Error(msg string, ctx ...interface{}) { l.write(LvlError, msg, ctx) }
func (l *logger) Crit(msg string, ctx ...interface{})  { l.write(LvlCrit, msg, ctx) }

func (l *logger) New(ctx ...interface{}) Logger {
	merged := make([]interface{}, 0, len(l.ctx)+len(ctx))
	merged = append(merged, l.ctx...)
	merged = append(merged, ctx...)
	return &logger{ctx: merged, h: l.h}
}

// Handler processes log records, e.g. by formatting and writing them out.
type Handler interface {
	Log(r *record) error
}

type swapHandler struct {
	mu sync.Mutex
	h  Handler
}

func (s *swapHandler) Log(r *record) error {
	s.mu.Lock()
	h := s.h
	s.mu.Unlock()
	return h.Log(r)
}

func (s *swapHandler) Swap(h Handler) {
	s.mu.Lock()
	s.h = h
	s.mu.Unlock()
}

type writerHandler struct {
	mu    sync.Mutex
	w     io.Writer
	color bool
	lvl   Lvl
}

func (h *writerHandler) Log(r *record) error {
	if r.lvl > h.lvl {
		return nil
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	line := format(r, h.color)
	_, err := io.WriteString(h.w, line)
	return err
}

func format(r *record, color bool) string {
	b := make([]byte, 0, 64)
	b = append(b, r.time.Format("2006-01-02T15:04:05.000")...)
	b = append(b, ' ')
	lvl := r.lvl.String()
	if color {
		b = append(b, colorFor(r.lvl)...)
		b = append(b, lvl...)
		b = append(b, "\x1b[0m"...)
	} else {
		b = append(b, lvl...)
	}
	b = append(b, ' ')
	b = append(b, r.msg...)
	for i := 0; i+1 < len(r.ctx); i += 2 {
		b = append(b, ' ')
		b = append(b, fmt.Sprintf("%v", r.ctx[i])...)
		b = append(b, '=')
		b = append(b, fmt.Sprintf("%v", r.ctx[i+1])...)
	}
	if r.call != nil && len(r.call) > 0 {
		b = append(b, fmt.Sprintf(" caller=%+v", r.call[0])...)
	}
	b = append(b, '\n')
	return string(b)
}

func colorFor(l Lvl) string {
	switch l {
	case LvlCrit:
		return "\x1b[35m"
	case LvlError:
		return "\x1b[31m"
	case LvlWarn:
		return "\x1b[33m"
	case LvlInfo:
		return "\x1b[32m"
	default:
		return "\x1b[36m"
	}
}

// StreamHandler returns a Handler writing human-readable records to w,
// colorizing the level when useColor is true.
func StreamHandler(w io.Writer, lvl Lvl, useColor bool) Handler {
	return &writerHandler{w: w, color: useColor, lvl: lvl}
}

var root = &logger{h: new(swapHandler)}

func init() {
	out := colorable.NewColorableStderr()
	useColor := isatty.IsTerminal(os.Stderr.Fd())
	root.h.Swap(StreamHandler(out, LvlInfo, useColor))
}

// Root returns the root logger.
func Root() Logger { return root }

// SetLevel adjusts the verbosity of the root logger's default handler.
func SetLevel(lvl Lvl) {
	out := colorable.NewColorableStderr()
	useColor := isatty.IsTerminal(os.Stderr.Fd())
	root.h.Swap(StreamHandler(out, lvl, useColor))
}

// New creates a child of the root logger with ctx appended to every record.
func New(ctx ...interface{}) Logger { return root.New(ctx...) }

func Trace(msg string, ctx ...interface{}) { root.Trace(msg, ctx...) }
func Debug(msg string, ctx ...interface{}) { root.Debug(msg, ctx...) }
func Info(msg string, ctx ...interface{})  { root.Info(msg, ctx...) }
func Warn(msg string, ctx ...interface{})  { root.Warn(msg, ctx...) }
func Error(msg string, ctx ...interface{}) { root.Error(msg, ctx...) }
func Crit(msg string, ctx ...interface{})  { root.Crit(msg, ctx...) }
