package logging

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"
)

// LoadLog represents a single cache load attempt: the outcome of issuing a
// Definition's query for one key, whether it was served from the store or
// required a fresh load.
type LoadLog struct {
	Timestamp  time.Time `json:"timestamp"`
	TraceID    string    `json:"trace_id,omitempty"`
	SpanID     string    `json:"span_id,omitempty"`
	CacheName  string    `json:"cache_name"`
	CacheID    string    `json:"cache_id"`
	Key        string    `json:"key"`
	DurationMs int64     `json:"duration_ms"`
	Hit        bool      `json:"hit"`
	Found      bool      `json:"found"`
	Success    bool      `json:"success"`
	Error      string    `json:"error,omitempty"`
}

// Logger handles load-event logging
type Logger struct {
	mu      sync.Mutex
	enabled bool
	file    *os.File
	console bool
}

var defaultLogger = &Logger{enabled: true, console: true}

// Default returns the default logger
func Default() *Logger {
	return defaultLogger
}

// SetOutput sets the log output file
func (l *Logger) SetOutput(path string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.file != nil {
		l.file.Close()
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}
	l.file = f
	return nil
}

// SetConsole enables/disables console output
func (l *Logger) SetConsole(enabled bool) {
	l.mu.Lock()
	l.console = enabled
	l.mu.Unlock()
}

// Log writes a load log entry
func (l *Logger) Log(entry *LoadLog) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.enabled {
		return
	}

	entry.Timestamp = time.Now()

	// Console output (human-readable)
	if l.console {
		status := "✓"
		if !entry.Success {
			status = "✗"
		}
		outcome := "miss"
		if entry.Hit {
			outcome = "hit"
		}
		found := ""
		if entry.Success && !entry.Found {
			found = " [not-found]"
		}
		fmt.Printf("[load] %s %s key=%s %s %dms%s\n",
			status, entry.CacheName, entry.Key, outcome, entry.DurationMs, found)
		if entry.Error != "" {
			fmt.Printf("[load]   error: %s\n", entry.Error)
		}
	}

	// File output (JSON)
	if l.file != nil {
		data, _ := json.Marshal(entry)
		l.file.Write(append(data, '\n'))
	}
}

// Close closes the log file
func (l *Logger) Close() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.file != nil {
		l.file.Close()
		l.file = nil
	}
}
