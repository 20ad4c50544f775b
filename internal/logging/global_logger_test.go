package logging

import (
	"runtime"
	"strings"
	"testing"
	"time"

	log "github.com/sirupsen/logrus"
)

func TestLogFormatter(t *testing.T) {
	entry := &log.Entry{
		Time:    time.Date(2026, 1, 2, 15, 4, 5, 0, time.Local),
		Level:   log.WarnLevel,
		Message: "token refresh failed\n",
		Data: log.Fields{
			"request_id": "a1b2c3d4",
			"grant_type": "refresh_token",
			"ignored":    "x",
		},
		Caller: &runtime.Frame{File: "/src/internal/auth/gitlab/gitlab_auth.go", Line: 42},
	}

	out, err := (&LogFormatter{}).Format(entry)
	if err != nil {
		t.Fatalf("Format() error = %v", err)
	}
	want := "[2026-01-02 15:04:05] [a1b2c3d4] [warn ] [gitlab_auth.go:42] token refresh failed grant_type=refresh_token\n"
	if string(out) != want {
		t.Fatalf("Format() = %q, want %q", out, want)
	}
}

func TestLogFormatterWithoutRequestID(t *testing.T) {
	entry := &log.Entry{Time: time.Now(), Level: log.InfoLevel, Message: "ready", Data: log.Fields{}}

	out, err := (&LogFormatter{}).Format(entry)
	if err != nil {
		t.Fatalf("Format() error = %v", err)
	}
	if !strings.Contains(string(out), "[--------] [info ] ready") {
		t.Fatalf("Format() = %q", out)
	}
}
