package core

import (
	"bytes"
	"os"
	"strings"
	"testing"
)

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    LogLevel
		wantErr bool
	}{
		{"debug", LogLevelDebug, false},
		{"INFO", LogLevelInfo, false},
		{" warn ", LogLevelWarn, false},
		{"Error", LogLevelError, false},
		{"fatal", LogLevelFatal, false},
		{"", LogLevelInfo, false},
		{"verbose", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseLogLevel(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseLogLevel(%q) error = %v", tt.in, err)
			}
			if got != tt.want {
				t.Errorf("ParseLogLevel(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestSetLogLevelFilters(t *testing.T) {
	var buf bytes.Buffer
	SetLogOutput(&buf)
	defer SetLogOutput(os.Stderr)
	defer SetLogLevel(LogLevelInfo)

	SetLogLevel(LogLevelWarn)
	LogInfo("hidden %d", 1)
	LogWarn("shown %d", 2)
	if strings.Contains(buf.String(), "hidden 1") {
		t.Errorf("info logged at warn level: %q", buf.String())
	}
	if !strings.Contains(buf.String(), "shown 2") {
		t.Errorf("warn not logged: %q", buf.String())
	}

	buf.Reset()
	SetLogLevel(LogLevelDebug)
	LogDebug("details")
	if !strings.Contains(buf.String(), "details") {
		t.Errorf("debug not logged at debug level: %q", buf.String())
	}
}
