package cli

import (
	"bytes"
	"context"
	"io"
	"path/filepath"
	"strings"
	"testing"

	"trackmystacks/internal/config"
	"trackmystacks/internal/log"
	sheetsmem "trackmystacks/internal/sheets/memory"
)

func TestOpenBackend(t *testing.T) {
	logger := log.Discard()
	tests := []struct {
		name    string
		cfg     config.Config
		wantErr bool
	}{
		{"memory", config.Config{DataBackend: config.BackendMemory}, false},
		{"sqlite", config.Config{DataBackend: config.BackendSQLite, SQLiteDBPath: filepath.Join(t.TempDir(), "stacks.db")}, false},
		{"unknown", config.Config{DataBackend: "sheets"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, err := OpenBackend(&tt.cfg, logger)
			if (err != nil) != tt.wantErr {
				t.Fatalf("OpenBackend() err = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil {
				return
			}
			defer b.Close()
			if b.Store == nil || b.Ranges == nil || b.Seeder == nil {
				t.Fatalf("backend ports not wired: %+v", b)
			}
		})
	}
}

func TestPublisherNilClientDisablesEvents(t *testing.T) {
	if p := Publisher(nil); p != nil {
		t.Fatalf("expected nil publisher, got %T", p)
	}
}

func TestNewAMQPClientDisabled(t *testing.T) {
	client, err := NewAMQPClient(&config.Config{}, log.Discard())
	if err != nil || client != nil {
		t.Fatalf("expected no client without AMQP_URL, got %v, %v", client, err)
	}
}

func TestNewComparisonWriterFallsBackToMemory(t *testing.T) {
	w, err := NewComparisonWriter(context.Background(), &config.Config{}, log.Discard())
	if err != nil {
		t.Fatalf("NewComparisonWriter() err = %v", err)
	}
	if _, ok := w.(*sheetsmem.Writer); !ok {
		t.Fatalf("expected memory writer, got %T", w)
	}
}

func TestSetupLoggerUnknownLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := SetupLogger("loud", &buf)
	if !strings.Contains(buf.String(), "Unknown log level") {
		t.Fatalf("expected warning about level, got %q", buf.String())
	}
	log.SetDefault(log.New(log.Config{Output: io.Discard}))
	if logger.Component() != log.ComponentApp {
		t.Fatalf("component = %q", logger.Component())
	}
}
