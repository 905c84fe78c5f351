package snapshot

import (
	"bytes"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"trackmystacks/internal/core"
)

func sampleDocument() *Document {
	created := time.Date(2025, 6, 1, 9, 30, 0, 0, time.UTC)
	return &Document{
		Version:    Version,
		ExportedAt: time.Date(2026, 3, 28, 12, 0, 0, 0, time.UTC),
		Users: []UserEntry{
			{OriginalID: 1, Username: "alice", Email: "alice@example.com", PasswordHash: "$2a$10$xyz", Admin: true, CreatedAt: &created},
		},
		Categories: []CategoryEntry{{OriginalID: 4, Name: "Food"}},
		Expenses: []ExpenseEntry{
			{OriginalID: 7, Username: "alice", Amount: amountPtr("12.34"), Category: "Food", Description: "pizza", Date: core.NewDate(2026, 3, 28)},
		},
	}
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	for _, format := range []Format{FormatJSON, FormatYAML} {
		t.Run(string(format), func(t *testing.T) {
			var buf bytes.Buffer
			if err := Encode(&buf, format, sampleDocument()); err != nil {
				t.Fatalf("encode: %v", err)
			}
			got, err := Decode(&buf, format)
			if err != nil {
				t.Fatalf("decode: %v\n%s", err, buf.String())
			}
			want := sampleDocument()
			if got.Version != want.Version || !got.ExportedAt.Equal(want.ExportedAt) {
				t.Fatalf("header mismatch: %+v", got)
			}
			if len(got.Users) != 1 || got.Users[0].PasswordHash != "$2a$10$xyz" || !got.Users[0].CreatedAt.Equal(*want.Users[0].CreatedAt) {
				t.Fatalf("users mismatch: %+v", got.Users)
			}
			e := got.Expenses[0]
			if !e.Amount.Equal(*want.Expenses[0].Amount) || !e.Date.Equal(want.Expenses[0].Date.Time) || e.Username != "alice" {
				t.Fatalf("expense mismatch: %+v", e)
			}
		})
	}
}

func TestEncodeJSONUsesDocumentKeys(t *testing.T) {
	var buf bytes.Buffer
	if err := Encode(&buf, FormatJSON, sampleDocument()); err != nil {
		t.Fatalf("encode: %v", err)
	}
	out := buf.String()
	for _, want := range []string{`"version": "1.0"`, `"exportedAt"`, `"passwordHash"`, `"originalId": 7`, `"date": "2026-03-28"`} {
		if !strings.Contains(out, want) {
			t.Fatalf("encoded json missing %s:\n%s", want, out)
		}
	}
}

func TestDecodeHandWrittenYAML(t *testing.T) {
	in := `
version: "1.2"
exportedAt: 2026-03-28T12:00:00Z
users:
  - username: alice
    email: alice@example.com
    passwordHash: "$2a$10$xyz"
categories:
  - name: Bills
expenses:
  - username: alice
    amount: 99.90
    category: Bills
    date: 2026-03-01
`
	doc, err := Decode(strings.NewReader(in), FormatYAML)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if doc.Expenses[0].Date.String() != "2026-03-01" || doc.Expenses[0].Amount.String() != "99.9" {
		t.Fatalf("unexpected expense: %+v", doc.Expenses[0])
	}
}

func TestDecodeRejectsMalformedInput(t *testing.T) {
	tests := []struct {
		name   string
		format Format
		in     string
	}{
		{"empty", FormatJSON, ""},
		{"whitespace", FormatYAML, "  \n"},
		{"null", FormatJSON, "null"},
		{"syntax", FormatJSON, `{"version": `},
		{"wrong type", FormatJSON, `{"version": "1.0", "users": {}}`},
		{"no version", FormatJSON, `{"users": []}`},
		{"bad date", FormatJSON, `{"version": "1.0", "expenses": [{"username": "a", "amount": "1", "category": "X", "date": "28/03/2026"}]}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Decode(strings.NewReader(tt.in), tt.format); !errors.Is(err, ErrMalformedDocument) {
				t.Fatalf("expected ErrMalformedDocument, got %v", err)
			}
		})
	}
}

func TestDecodeUserRequiresExpensesList(t *testing.T) {
	if _, err := DecodeUser(strings.NewReader(`{"version": "1.0", "username": "alice"}`), FormatJSON); !errors.Is(err, ErrMalformedDocument) {
		t.Fatalf("expected missing list to be malformed, got %v", err)
	}
	if _, err := DecodeUser(strings.NewReader(`{"version": "1.0", "expenses": null}`), FormatJSON); !errors.Is(err, ErrMalformedDocument) {
		t.Fatalf("expected null list to be malformed, got %v", err)
	}
	doc, err := DecodeUser(strings.NewReader(`{"version": "1.0", "expenses": []}`), FormatJSON)
	if err != nil || doc.Expenses == nil {
		t.Fatalf("expected empty list to be valid: doc=%+v err=%v", doc, err)
	}
}

func TestFormatFromFilename(t *testing.T) {
	tests := []struct {
		name    string
		want    Format
		wantErr bool
	}{
		{"backup.json", FormatJSON, false},
		{"backup.JSON", FormatJSON, false},
		{"backup.yaml", FormatYAML, false},
		{"/tmp/b.yml", FormatYAML, false},
		{"backup.csv", "", true},
		{"backup", "", true},
	}
	for _, tt := range tests {
		got, err := FormatFromFilename(tt.name)
		if tt.wantErr {
			if !errors.Is(err, ErrUnsupportedFormat) {
				t.Errorf("FormatFromFilename(%q) err = %v", tt.name, err)
			}
			continue
		}
		if err != nil || got != tt.want {
			t.Errorf("FormatFromFilename(%q) = %q, %v", tt.name, got, err)
		}
	}
}

func TestFilename(t *testing.T) {
	now := time.Date(2026, 3, 28, 23, 59, 0, 0, time.UTC)
	tests := []struct {
		name     string
		username string
		format   Format
		want     string
	}{
		{"full backup", "", FormatJSON, "trackmystacks-backup-2026-03-28.json"},
		{"user backup", "alice", FormatYAML, "trackmystacks-alice-backup-2026-03-28.yaml"},
		{"parent traversal", "../evil/x", FormatJSON, "trackmystacks-__evil_x-backup-2026-03-28.json"},
		{"backslash", `..\evil`, FormatJSON, "trackmystacks-__evil-backup-2026-03-28.json"},
		{"absolute path", "/etc/passwd", FormatYAML, "trackmystacks-_etc_passwd-backup-2026-03-28.yaml"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Filename(tt.username, now, tt.format)
			if got != tt.want {
				t.Fatalf("Filename(%q) = %q, want %q", tt.username, got, tt.want)
			}
			if filepath.Base(got) != got || strings.Contains(got, "..") {
				t.Fatalf("Filename(%q) = %q escapes its directory", tt.username, got)
			}
		})
	}
}
