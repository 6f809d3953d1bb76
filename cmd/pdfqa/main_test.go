package main

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"pdfqa/internal/apperr"
	"pdfqa/internal/storage"
)

func runCmd(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestQuery_MissingConfiguration(t *testing.T) {
	tests := []struct {
		name    string
		env     map[string]string
		wantMsg string
	}{
		{
			name:    "collection name",
			env:     map[string]string{"COLLECTION_NAME": "", "OPENAI_API_KEY": "sk-test"},
			wantMsg: "COLLECTION_NAME",
		},
		{
			name:    "api key",
			env:     map[string]string{"COLLECTION_NAME": "pdfs", "OPENAI_API_KEY": ""},
			wantMsg: "OPENAI_API_KEY",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("DB_PATH", filepath.Join(t.TempDir(), "ledger.db"))
			for k, v := range tt.env {
				t.Setenv(k, v)
			}

			out, err := runCmd(t, "query", "What", "color", "is", "the", "sky?")
			if !errors.Is(err, apperr.ErrConfiguration) {
				t.Fatalf("query error = %v, want ErrConfiguration", err)
			}
			if !strings.Contains(describe(err), tt.wantMsg) {
				t.Errorf("message %q does not name %s", describe(err), tt.wantMsg)
			}
			if out != "" {
				t.Errorf("unexpected output %q", out)
			}
		})
	}
}

func TestIngest_MissingConfiguration(t *testing.T) {
	t.Setenv("COLLECTION_NAME", "")
	if _, err := runCmd(t, "ingest", "--keep"); !errors.Is(err, apperr.ErrConfiguration) {
		t.Errorf("ingest error = %v, want ErrConfiguration", err)
	}
}

func TestIngest_PDFWithoutLicense(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "ledger.db")
	t.Setenv("DB_PATH", dbPath)
	t.Setenv("COLLECTION_NAME", "pdfs")
	t.Setenv("OPENAI_API_KEY", "sk-test")
	t.Setenv("LOADER_EXTENSIONS", ".pdf")
	t.Setenv("UNIDOC_LICENSE_KEY", "")

	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "sky.pdf"), []byte("%PDF-1.4"), 0644); err != nil {
		t.Fatal(err)
	}

	_, err := runCmd(t, "ingest", dir)
	if !errors.Is(err, apperr.ErrConfiguration) {
		t.Fatalf("ingest error = %v, want ErrConfiguration", err)
	}
	if !strings.Contains(err.Error(), "UNIDOC_LICENSE_KEY") {
		t.Errorf("error %q does not name UNIDOC_LICENSE_KEY", err)
	}

	db, err := storage.New(dbPath)
	if err != nil {
		t.Fatalf("storage.New() error = %v", err)
	}
	defer db.Close()
	runs, err := storage.NewRunRepo(db).ListRuns(context.Background(), 0)
	if err != nil {
		t.Fatalf("ListRuns() error = %v", err)
	}
	if len(runs) != 0 {
		t.Errorf("ingestion started before the configuration error: %+v", runs)
	}
}

func TestQuery_RequiresQuestion(t *testing.T) {
	if _, err := runCmd(t, "query"); err == nil {
		t.Error("query without a question should fail")
	}
}

func TestOrganizeCommand(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "Doe Deposition.pdf"), []byte("%PDF"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "misc.pdf"), []byte("%PDF"), 0644); err != nil {
		t.Fatal(err)
	}
	mapPath := filepath.Join(t.TempDir(), "cases.json")
	if err := os.WriteFile(mapPath, []byte(`{"doe": ["Doe"]}`), 0644); err != nil {
		t.Fatal(err)
	}

	out, err := runCmd(t, "organize", dir, mapPath)
	if err != nil {
		t.Fatalf("organize error = %v", err)
	}
	if !strings.Contains(out, "Moved Doe Deposition.pdf -> "+filepath.Join("doe", "doe_deposition.pdf")) {
		t.Errorf("output = %q", out)
	}
	if !strings.Contains(out, "No case match for misc.pdf") {
		t.Errorf("output = %q", out)
	}
}

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"INFO":    slog.LevelInfo,
		"warn":    slog.LevelWarn,
		"error":   slog.LevelError,
		"verbose": slog.LevelInfo,
		"":        slog.LevelInfo,
	}
	for in, want := range tests {
		if got := parseLevel(in); got != want {
			t.Errorf("parseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}
