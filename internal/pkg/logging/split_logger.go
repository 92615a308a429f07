package logging

import (
	"io"
	"os"
	"strings"

	glog "github.com/labstack/gommon/log"
)

// SplitLogger is an echo.Logger that sends Error and above to one writer and
// everything else to another, so platform log routers can tell failed logins
// apart from request noise.
type SplitLogger struct {
	out *glog.Logger
	err *glog.Logger
}

// New writes to stdout and stderr at lvl.
func New(lvl glog.Lvl) *SplitLogger {
	return NewWithWriters(os.Stdout, os.Stderr, lvl)
}

func NewWithWriters(out, errw io.Writer, lvl glog.Lvl) *SplitLogger {
	lout := glog.New("auth")
	lout.SetOutput(out)
	lout.SetLevel(lvl)

	lerr := glog.New("auth")
	lerr.SetOutput(errw)
	lerr.SetLevel(lvl)

	return &SplitLogger{out: lout, err: lerr}
}

// ParseLevel maps LOG_LEVEL values onto gommon levels. Unknown values are INFO.
func ParseLevel(s string) glog.Lvl {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return glog.DEBUG
	case "warn", "warning":
		return glog.WARN
	case "error":
		return glog.ERROR
	case "off":
		return glog.OFF
	default:
		return glog.INFO
	}
}

func (l *SplitLogger) Output() io.Writer { return l.out.Output() }

// SetOutput points both streams at w.
func (l *SplitLogger) SetOutput(w io.Writer) {
	l.out.SetOutput(w)
	l.err.SetOutput(w)
}

func (l *SplitLogger) Prefix() string { return l.out.Prefix() }
func (l *SplitLogger) SetPrefix(p string) {
	l.out.SetPrefix(p)
	l.err.SetPrefix(p)
}

func (l *SplitLogger) Level() glog.Lvl { return l.out.Level() }
func (l *SplitLogger) SetLevel(v glog.Lvl) {
	l.out.SetLevel(v)
	l.err.SetLevel(v)
}

func (l *SplitLogger) SetHeader(h string) {
	l.out.SetHeader(h)
	l.err.SetHeader(h)
}

func (l *SplitLogger) Print(i ...interface{})                    { l.out.Print(i...) }
func (l *SplitLogger) Printf(format string, args ...interface{}) { l.out.Printf(format, args...) }
func (l *SplitLogger) Printj(j glog.JSON)                        { l.out.Printj(j) }

func (l *SplitLogger) Debug(i ...interface{})                    { l.out.Debug(i...) }
func (l *SplitLogger) Debugf(format string, args ...interface{}) { l.out.Debugf(format, args...) }
func (l *SplitLogger) Debugj(j glog.JSON)                        { l.out.Debugj(j) }

func (l *SplitLogger) Info(i ...interface{})                    { l.out.Info(i...) }
func (l *SplitLogger) Infof(format string, args ...interface{}) { l.out.Infof(format, args...) }
func (l *SplitLogger) Infoj(j glog.JSON)                        { l.out.Infoj(j) }

func (l *SplitLogger) Warn(i ...interface{})                    { l.out.Warn(i...) }
func (l *SplitLogger) Warnf(format string, args ...interface{}) { l.out.Warnf(format, args...) }
func (l *SplitLogger) Warnj(j glog.JSON)                        { l.out.Warnj(j) }

func (l *SplitLogger) Error(i ...interface{})                    { l.err.Error(i...) }
func (l *SplitLogger) Errorf(format string, args ...interface{}) { l.err.Errorf(format, args...) }
func (l *SplitLogger) Errorj(j glog.JSON)                        { l.err.Errorj(j) }

func (l *SplitLogger) Fatal(i ...interface{})                    { l.err.Fatal(i...) }
func (l *SplitLogger) Fatalj(j glog.JSON)                        { l.err.Fatalj(j) }
func (l *SplitLogger) Fatalf(format string, args ...interface{}) { l.err.Fatalf(format, args...) }

func (l *SplitLogger) Panic(i ...interface{})                    { l.err.Panic(i...) }
func (l *SplitLogger) Panicj(j glog.JSON)                        { l.err.Panicj(j) }
func (l *SplitLogger) Panicf(format string, args ...interface{}) { l.err.Panicf(format, args...) }
