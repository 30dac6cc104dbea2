package logging

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
)

func TestLogWritesJSONLineToFile(t *testing.T) {
	l := &Logger{enabled: true}
	path := filepath.Join(t.TempDir(), "loads.log")
	if err := l.SetOutput(path); err != nil {
		t.Fatalf("SetOutput: %v", err)
	}
	defer l.Close()

	l.Log(&LoadLog{CacheName: "zip", Key: "10001", Hit: true, Found: true, Success: true, DurationMs: 3})

	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open log file: %v", err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	if !scanner.Scan() {
		t.Fatal("expected one log line")
	}
	var entry LoadLog
	if err := json.Unmarshal(scanner.Bytes(), &entry); err != nil {
		t.Fatalf("unmarshal log line: %v", err)
	}
	if entry.CacheName != "zip" || entry.Key != "10001" || !entry.Hit {
		t.Fatalf("unexpected log entry: %+v", entry)
	}
}

func TestLogDisabledWritesNothing(t *testing.T) {
	l := &Logger{enabled: false}
	path := filepath.Join(t.TempDir(), "loads.log")
	if err := l.SetOutput(path); err != nil {
		t.Fatalf("SetOutput: %v", err)
	}
	defer l.Close()

	l.Log(&LoadLog{CacheName: "zip", Key: "10001"})

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat: %v", err)
	}
	if info.Size() != 0 {
		t.Fatalf("expected empty file when logger disabled, got size %d", info.Size())
	}
}
