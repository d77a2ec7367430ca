package observability

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"
)

type Fields map[string]any

// Logger writes one JSON object per line. Safe for concurrent use.
type Logger struct {
	service string
	base    Fields
	out     io.Writer
	mu      *sync.Mutex
}

func NewLogger(service string) *Logger {
	return &Logger{
		service: strings.TrimSpace(service),
		out:     os.Stdout,
		mu:      &sync.Mutex{},
	}
}

// With returns a logger that attaches the given fields to every entry.
func (l *Logger) With(fields Fields) *Logger {
	if l == nil || len(fields) == 0 {
		return l
	}
	merged := make(Fields, len(l.base)+len(fields))
	for key, value := range l.base {
		merged[key] = value
	}
	for key, value := range fields {
		merged[key] = value
	}
	return &Logger{service: l.service, base: merged, out: l.out, mu: l.mu}
}

func (l *Logger) Info(msg string, fields Fields) {
	l.log("info", msg, fields)
}

func (l *Logger) Warn(msg string, fields Fields) {
	l.log("warn", msg, fields)
}

func (l *Logger) Error(msg string, fields Fields) {
	l.log("error", msg, fields)
}

func (l *Logger) log(level, msg string, fields Fields) {
	if l == nil {
		return
	}

	entry := map[string]any{
		"ts":      time.Now().UTC().Format(time.RFC3339Nano),
		"level":   level,
		"msg":     strings.TrimSpace(msg),
		"service": l.service,
	}
	for key, value := range l.base {
		entry[key] = value
	}
	for key, value := range fields {
		if strings.TrimSpace(key) == "" || value == nil {
			continue
		}
		if stringValue, ok := value.(string); ok && strings.TrimSpace(stringValue) == "" {
			continue
		}
		entry[key] = value
	}

	payload, err := json.Marshal(entry)
	if err != nil {
		payload = []byte(fmt.Sprintf(`{"ts":"%s","level":"error","msg":"logger_marshal_failed","service":"%s"}`,
			time.Now().UTC().Format(time.RFC3339Nano), l.service))
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	_, _ = fmt.Fprintln(l.out, string(payload))
}
