// Package logger is the widget's console diagnostics: a service prefix, levels and an async
// writer so a slow sink never stalls the conversation engine or a config fetch.
package logger

import (
	"fmt"
	"log"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

const asyncBufferSize = 8192

type Level int32

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

var (
	prefix   atomic.Value
	logLevel atomic.Int32
	ch       chan string
	pending  sync.WaitGroup
	once     sync.Once
)

// ParseLevel maps LOG_LEVEL values to a Level; unknown values mean info.
func ParseLevel(s string) Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug", "trace":
		return LevelDebug
	case "warn", "warning":
		return LevelWarn
	case "error":
		return LevelError
	default:
		return LevelInfo
	}
}

func initWorker() {
	logLevel.Store(int32(ParseLevel(os.Getenv("LOG_LEVEL"))))
	ch = make(chan string, asyncBufferSize)
	go func() {
		for msg := range ch {
			log.Print(msg)
			pending.Done()
		}
	}()
}

func enqueue(l Level, msg string) {
	once.Do(initWorker)
	if l < Level(logLevel.Load()) {
		return
	}
	pending.Add(1)
	select {
	case ch <- msg:
	default:
		// buffer full: drop
		pending.Done()
	}
}

// SetPrefix sets the tag for every following line ("widget", "preview").
func SetPrefix(p string) {
	prefix.Store(p)
}

// SetLevel overrides LOG_LEVEL.
func SetLevel(l Level) {
	once.Do(initWorker)
	logLevel.Store(int32(l))
}

func tag() string {
	p, _ := prefix.Load().(string)
	if p == "" {
		return ""
	}
	return "[" + p + "] "
}

func Debugf(format string, v ...any) {
	enqueue(LevelDebug, tag()+"DEBUG: "+fmt.Sprintf(format, v...))
}

func Info(v ...any) {
	enqueue(LevelInfo, tag()+fmt.Sprint(v...))
}

func Infof(format string, v ...any) {
	enqueue(LevelInfo, tag()+fmt.Sprintf(format, v...))
}

// Warnf is for degraded-but-handled paths: default config used, transport fell through.
func Warnf(format string, v ...any) {
	enqueue(LevelWarn, tag()+"WARN: "+fmt.Sprintf(format, v...))
}

func Error(v ...any) {
	enqueue(LevelError, tag()+"ERROR: "+fmt.Sprint(v...))
}

func Errorf(format string, v ...any) {
	enqueue(LevelError, tag()+"ERROR: "+fmt.Sprintf(format, v...))
}

// Flush waits until queued lines are written or timeout passes.
func Flush(timeout time.Duration) {
	once.Do(initWorker)
	done := make(chan struct{})
	go func() {
		pending.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(timeout):
	}
}

// LogDuration logs fn and its elapsed time. At info level only calls slower than 100ms are logged.
func LogDuration(fn string, start time.Time) {
	elapsed := time.Since(start)
	if Level(logLevel.Load()) == LevelDebug || elapsed >= 100*time.Millisecond {
		enqueue(LevelInfo, fmt.Sprintf("%sfn=%s duration_ms=%d", tag(), fn, elapsed.Milliseconds()))
	}
}

// DeferLogDuration is for defer: defer logger.DeferLogDuration("resolver.fetch", time.Now())().
func DeferLogDuration(fn string, start time.Time) func() {
	return func() { LogDuration(fn, start) }
}
