// Package cachedef defines the operator-facing record describing one named
// cache and the validation rules applied before it is handed to the engine.
package cachedef

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Definition is the input record for a registered cache. The engine always
// stores a defensive copy; mutating a Definition after Register does not
// affect the running Registration.
type Definition struct {
	ID      string `json:"id" yaml:"id"`
	Name    string `json:"name" yaml:"name"`
	Enabled bool   `json:"enabled" yaml:"enabled"`

	Driver   string `json:"driver" yaml:"driver"`
	URL      string `json:"url" yaml:"url"`
	Username string `json:"username,omitempty" yaml:"username,omitempty"`
	Password string `json:"password,omitempty" yaml:"password,omitempty"` // prefix "{enc}" when encrypted at rest

	Query       string `json:"query" yaml:"query"`
	KeyColumn   string `json:"key_column,omitempty" yaml:"keyColumn,omitempty"`
	ValueColumn string `json:"value_column" yaml:"valueColumn"`

	MaxSize         int `json:"max_size" yaml:"maxSize"`
	EvictionMinutes int `json:"eviction_duration_minutes" yaml:"evictionMinutes"`
	MaxConnections  int `json:"max_connections" yaml:"maxConnections"`

	CreatedAt time.Time `json:"created_at,omitempty" yaml:"-"`
	UpdatedAt time.Time `json:"updated_at,omitempty" yaml:"-"`
}

// Clone returns a defensive copy suitable for storing inside a Registration.
func (d Definition) Clone() Definition {
	c := d
	return c
}

// EvictionTTL converts EvictionMinutes to a time.Duration; 0 means no TTL.
func (d Definition) EvictionTTL() time.Duration {
	if d.EvictionMinutes <= 0 {
		return 0
	}
	return time.Duration(d.EvictionMinutes) * time.Minute
}

// WithGeneratedID returns d with a fresh UUID when d.ID is empty.
func (d Definition) WithGeneratedID() Definition {
	if d.ID == "" {
		d.ID = uuid.NewString()
	}
	return d
}

// ValidationError reports why a Definition was rejected before Register.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation: field %q: %s", e.Field, e.Reason)
}

// Validate enforces the field-presence and range rules required before a
// Definition may be registered. It does not check driver availability or
// reachability of url; those are left to the connection pool's lazy connect
// and to TestConnection.
func Validate(d Definition) error {
	if d.Name == "" {
		return &ValidationError{"name", "must not be empty"}
	}
	if d.Driver == "" {
		return &ValidationError{"driver", "must not be empty"}
	}
	if d.URL == "" {
		return &ValidationError{"url", "must not be empty"}
	}
	if d.Query == "" {
		return &ValidationError{"query", "must not be empty"}
	}
	if d.ValueColumn == "" {
		return &ValidationError{"valueColumn", "must not be empty"}
	}
	if d.MaxSize < 0 {
		return &ValidationError{"maxSize", "must be >= 0"}
	}
	if d.EvictionMinutes < 0 {
		return &ValidationError{"evictionMinutes", "must be >= 0"}
	}
	if d.MaxConnections < 1 {
		return &ValidationError{"maxConnections", "must be >= 1"}
	}
	return nil
}
