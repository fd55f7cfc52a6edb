package logger

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"
)

// TestSetup_JSONOutput はログがJSON形式で出力されることをテストする。
func TestSetup_JSONOutput(t *testing.T) {
	var buf bytes.Buffer
	logger := Setup(&buf, slog.LevelInfo)

	logger.Info("timer started", slog.String("member", "alice"))

	var record map[string]any
	if err := json.Unmarshal(buf.Bytes(), &record); err != nil {
		t.Fatalf("log output is not valid JSON: %v", err)
	}
	if record["msg"] != "timer started" {
		t.Errorf("msg = %v, want %q", record["msg"], "timer started")
	}
	if record["member"] != "alice" {
		t.Errorf("member = %v, want %q", record["member"], "alice")
	}
}

// TestSetup_LevelFilter は指定レベル未満のログが出力されないことをテストする。
func TestSetup_LevelFilter(t *testing.T) {
	var buf bytes.Buffer
	logger := Setup(&buf, slog.LevelWarn)

	logger.Info("should be suppressed")
	if buf.Len() != 0 {
		t.Errorf("info log was emitted despite warn level: %s", buf.String())
	}

	logger.Warn("should be emitted")
	if buf.Len() == 0 {
		t.Error("warn log was not emitted")
	}
}
