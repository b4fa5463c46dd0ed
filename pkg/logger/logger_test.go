package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"
)

func TestLoggerInit(t *testing.T) {
	if err := Init(); err != nil {
		t.Fatalf("failed to initialize logger: %v", err)
	}
	defer func() {
		if err := Sync(); err != nil {
			t.Errorf("failed to sync logger: %v", err)
		}
	}()

	if Get() == nil {
		t.Fatal("logger is nil after initialization")
	}
}

func TestInitWithFormat_JSON(t *testing.T) {
	var buf bytes.Buffer
	if err := InitWithFormat(&buf, FormatJSON); err != nil {
		t.Fatalf("failed to initialize json logger: %v", err)
	}
	defer SetLevel(0)

	Get().Info(context.Background(), "rows dropped",
		String("reason", "missing"),
		Int("count", 3),
		Bool("partial", true),
		Duration("took", 2*time.Second),
		Error(errors.New("boom")),
	)

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("output is not json: %v: %q", err, buf.String())
	}
	if entry["msg"] != "rows dropped" {
		t.Errorf("msg = %v", entry["msg"])
	}
	if entry["reason"] != "missing" {
		t.Errorf("reason = %v", entry["reason"])
	}
	if entry["count"] != float64(3) {
		t.Errorf("count = %v", entry["count"])
	}
	src, _ := entry["source"].(string)
	if !strings.Contains(src, "logger_test.go") {
		t.Errorf("source = %q, want caller file", src)
	}
}

func TestInitWithFormat_Unknown(t *testing.T) {
	if err := InitWithFormat(&bytes.Buffer{}, "xml"); err == nil {
		t.Fatal("expected error for unknown format")
	}
}

func TestSetLevelString(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf)
	defer SetLevel(0)

	if err := SetLevelString("warn"); err != nil {
		t.Fatalf("set level: %v", err)
	}
	ctx := context.Background()
	Get().Info(ctx, "hidden")
	Get().Warn(ctx, "shown")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Errorf("info line written at warn level: %q", out)
	}
	if !strings.Contains(out, "shown") {
		t.Errorf("warn line missing: %q", out)
	}

	if err := SetLevelString("loud"); err == nil {
		t.Error("expected error for unknown level")
	}
}

func TestLoggerNamedAndWith(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf)

	l := Named("ingest").With(Int64("provider_id", 7))
	l.Info(context.Background(), "batch accepted")

	out := buf.String()
	if !strings.Contains(out, "logger=ingest") {
		t.Errorf("missing logger name: %q", out)
	}
	if !strings.Contains(out, "provider_id=7") {
		t.Errorf("missing bound field: %q", out)
	}
}
