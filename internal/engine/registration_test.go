package engine

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/cachegate/cachegate/internal/cachedef"
	"github.com/cachegate/cachegate/internal/entrystore"
	"github.com/cachegate/cachegate/internal/logging"
	"go.opentelemetry.io/otel/trace"
)

func newTestRegistration(t *testing.T, fl *fakeLoader) *registration {
	r, _ := newTestRegistrationWithLogPath(t, fl)
	return r
}

func newTestRegistrationWithLogPath(t *testing.T, fl *fakeLoader) (*registration, string) {
	t.Helper()
	l := logging.Default()
	l.SetConsole(false)
	path := filepath.Join(t.TempDir(), "loads.log")
	if err := l.SetOutput(path); err != nil {
		t.Fatalf("SetOutput: %v", err)
	}
	t.Cleanup(func() {
		l.Close()
		l.SetConsole(true)
	})
	r := &registration{
		definition:  cachedef.Definition{ID: "id1", Name: "zip"},
		store:       entrystore.New(100, 0),
		loader:      fl,
		bookkeeping: newKeyBookkeeping(),
		loadLogger:  l,
	}
	return r, path
}

// lastLoadLogLine waits briefly for the registration's async logLoad
// goroutine to flush (see registration.logLoad), then returns the last
// JSON line written to path.
func lastLoadLogLine(t *testing.T, path string) logging.LoadLog {
	t.Helper()
	var lastLine []byte
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		data, err := os.ReadFile(path)
		if err == nil && len(data) > 0 {
			lastLine = data
			break
		}
		time.Sleep(5 * time.Millisecond)
	}
	if lastLine == nil {
		t.Fatalf("no load log line written to %s within deadline", path)
	}
	scanner := bufio.NewScanner(bytes.NewReader(lastLine))
	var entry logging.LoadLog
	var line string
	for scanner.Scan() {
		line = scanner.Text()
	}
	if line == "" {
		t.Fatalf("empty load log file %s", path)
	}
	if err := json.Unmarshal([]byte(line), &entry); err != nil {
		t.Fatalf("unmarshal load log line %q: %v", line, err)
	}
	return entry
}

func TestRegistrationLookupLogsLoadEventsWithoutPanicking(t *testing.T) {
	fl := newFakeLoader(map[string]string{"a": "1"})
	r := newTestRegistration(t, fl)

	if _, found, err := r.lookup(context.Background(), "a"); err != nil || !found {
		t.Fatalf("lookup(a): found=%v err=%v", found, err)
	}
	// Second lookup is a cache hit; loader must not be invoked again.
	if _, found, err := r.lookup(context.Background(), "a"); err != nil || !found {
		t.Fatalf("lookup(a) again: found=%v err=%v", found, err)
	}
	if got := fl.callCount("a"); got != 1 {
		t.Fatalf("expected loader invoked once, got %d", got)
	}
}

func TestRegistrationLookupWithNilLoadLoggerIsSafe(t *testing.T) {
	fl := newFakeLoader(map[string]string{"a": "1"})
	r := &registration{
		definition:  cachedef.Definition{ID: "id1", Name: "zip"},
		store:       entrystore.New(100, 0),
		loader:      fl,
		bookkeeping: newKeyBookkeeping(),
	}
	if _, found, err := r.lookup(context.Background(), "a"); err != nil || !found {
		t.Fatalf("lookup(a): found=%v err=%v", found, err)
	}
}

func TestRegistrationLookupRecordsTraceAndSpanIDFromContext(t *testing.T) {
	fl := newFakeLoader(map[string]string{"a": "1"})
	r, path := newTestRegistrationWithLogPath(t, fl)

	traceID, err := trace.TraceIDFromHex("4bf92f3577b34da6a3ce929d0e0e4736")
	if err != nil {
		t.Fatalf("TraceIDFromHex: %v", err)
	}
	spanID, err := trace.SpanIDFromHex("00f067aa0ba902b7")
	if err != nil {
		t.Fatalf("SpanIDFromHex: %v", err)
	}
	sc := trace.NewSpanContext(trace.SpanContextConfig{
		TraceID:    traceID,
		SpanID:     spanID,
		TraceFlags: trace.FlagsSampled,
	})
	ctx := trace.ContextWithSpanContext(context.Background(), sc)

	if _, found, err := r.lookup(ctx, "a"); err != nil || !found {
		t.Fatalf("lookup(a): found=%v err=%v", found, err)
	}

	entry := lastLoadLogLine(t, path)
	if entry.TraceID != traceID.String() {
		t.Fatalf("entry.TraceID = %q, want %q", entry.TraceID, traceID.String())
	}
	if entry.SpanID != spanID.String() {
		t.Fatalf("entry.SpanID = %q, want %q", entry.SpanID, spanID.String())
	}
}

func TestRegistrationLookupFailurePropagatesWithoutMemoizing(t *testing.T) {
	fl := newFakeLoader(map[string]string{})
	fl.err = fmt.Errorf("boom")
	r := newTestRegistration(t, fl)

	if _, _, err := r.lookup(context.Background(), "a"); err == nil {
		t.Fatal("expected error from failing loader")
	}
	_, accesses := r.bookkeepingSnapshot()
	if accesses["a"] != 0 {
		t.Fatalf("expected no access recorded on failure, got %d", accesses["a"])
	}
}
