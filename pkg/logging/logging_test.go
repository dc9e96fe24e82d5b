package logging

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	log "github.com/sirupsen/logrus"

	"vce/pkg/config"
)

func TestSetup_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "vce.log")
	if err := Setup(config.LoggingConfig{Level: "debug", File: path, MaxSizeMB: 1}); err != nil {
		t.Fatalf("Setup: %v", err)
	}
	t.Cleanup(func() { log.SetOutput(os.Stderr) })

	log.Infof("hello from %s", "test")
	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	if !strings.Contains(string(b), "hello from test") {
		t.Errorf("log file missing entry: %q", b)
	}
	if log.GetLevel() != log.DebugLevel {
		t.Errorf("level = %v, want debug", log.GetLevel())
	}
}

func TestSetup_BadLevel(t *testing.T) {
	if err := Setup(config.LoggingConfig{Level: "loud"}); err == nil {
		t.Fatal("expected error for unknown level")
	}
}
