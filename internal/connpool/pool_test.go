package connpool

import (
	"context"
	"testing"
	"time"
)

func TestNewRejectsUnknownDriver(t *testing.T) {
	_, err := New(Config{Name: "zip", Driver: "oracle", URL: "whatever"}, nil)
	if err == nil {
		t.Fatal("expected error for unrecognized driver")
	}
}

func TestNewDoesNotDial(t *testing.T) {
	// An unreachable host must not cause New to fail or block; connection
	// is established lazily on first Borrow.
	p, err := New(Config{Name: "zip", Driver: "postgres", URL: "postgres://nosuchhost.invalid:5432/db", MaxConnections: 2}, nil)
	if err != nil {
		t.Fatalf("New must not dial: %v", err)
	}
	if p.Name() != "cache-zip" {
		t.Fatalf("expected pool name cache-zip, got %q", p.Name())
	}
}

func TestCloseIsIdempotent(t *testing.T) {
	p, err := New(Config{Name: "zip", Driver: "postgres", URL: "postgres://nosuchhost.invalid:5432/db", MaxConnections: 2}, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := p.Close(); err != nil {
		t.Fatalf("first Close: %v", err)
	}
	if err := p.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}
}

func TestBorrowAfterCloseFails(t *testing.T) {
	p, err := New(Config{Name: "zip", Driver: "postgres", URL: "postgres://nosuchhost.invalid:5432/db", MaxConnections: 2}, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := p.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	_, err = p.Borrow(context.Background(), time.Second)
	if err != ErrClosed {
		t.Fatalf("expected ErrClosed, got %v", err)
	}
}
