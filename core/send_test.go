package core

import (
	"errors"
	"testing"
	"time"
)

func TestParseDelay(t *testing.T) {
	good := map[string]time.Duration{
		"":       0,
		"0":      0,
		"500":    500 * time.Millisecond,
		"500ms":  500 * time.Millisecond,
		"1.5s":   1500 * time.Millisecond,
		" 2s ":   2 * time.Second,
		".5s":    500 * time.Millisecond,
		"1m":     time.Minute,
		"1h":     time.Hour,
		"1m30s":  90 * time.Second,
		"250us":  250 * time.Microsecond,
		"10ms":   10 * time.Millisecond,
		"0.25ms": 250 * time.Microsecond,
	}
	for s, want := range good {
		got, err := ParseDelay(s)
		if err != nil {
			t.Fatalf("%q: %v", s, err)
		}
		if got != want {
			t.Fatalf("%q: %v != %v", s, got, want)
		}
	}

	for _, s := range []string{"soon", "-1s", "1 fortnight", "s"} {
		if _, err := ParseDelay(s); !errors.Is(err, ErrBadDelay) {
			t.Fatalf("%q: %v", s, err)
		}
	}
}
