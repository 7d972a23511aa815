package util

import (
	"bytes"
	"os"
	"strings"
	"testing"

	log "github.com/sirupsen/logrus"
)

func TestLogf(t *testing.T) {
	var buf bytes.Buffer
	log.SetOutput(&buf)
	defer func() {
		log.SetOutput(os.Stderr)
		SetLogging(false)
	}()

	SetLogging(false)
	Logf("quiet %d", 1)
	if buf.Len() != 0 {
		t.Fatal(buf.String())
	}

	SetLogging(true)
	if log.GetLevel() != log.DebugLevel {
		t.Fatal(log.GetLevel())
	}
	Logf("loud %d", 2)
	if !strings.Contains(buf.String(), "loud 2") {
		t.Fatal(buf.String())
	}
}
