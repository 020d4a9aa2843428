package provider

import (
	"bytes"
	"errors"
	"strings"
	"testing"
	"time"
)

func TestStdout(t *testing.T) {

	var out bytes.Buffer
	stdout := NewStdout(StdoutOptions{
		Format:          "template",
		Level:           "info",
		Template:        "{{.level}} {{.msg}}",
		TimestampFormat: time.RFC3339Nano,
		TextColors:      true,
		Output:          &out,
	})
	if stdout == nil {
		t.Fatal("Stdout is not defined")
	}

	stdout.Info("Some info message %d...", 1)
	stdout.Debug("Hidden debug message")
	stdout.Error(errors.New("some error"))
	stdout.Warn("")

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("Wrong lines count %d: %q", len(lines), out.String())
	}
	if lines[0] != "info Some info message 1..." {
		t.Fatalf("Wrong info line: %s", lines[0])
	}
	if lines[1] != "error some error" {
		t.Fatalf("Wrong error line: %s", lines[1])
	}
}

func TestStdoutCallerFile(t *testing.T) {

	var out bytes.Buffer
	stdout := NewStdout(StdoutOptions{
		Format:   "template",
		Level:    "debug",
		Template: "{{.file}} {{.msg}}",
		Output:   &out,
	})

	stdout.Debug("where")
	if !strings.Contains(out.String(), "stdout_test.go:") {
		t.Fatalf("Wrong caller file: %s", out.String())
	}
}

func TestStdoutJson(t *testing.T) {

	var out bytes.Buffer
	stdout := NewStdout(StdoutOptions{
		Format: "json",
		Level:  "wrong",
		Output: &out,
	})

	stdout.Info("json message")
	stdout.Debug("skipped, level falls back to info")

	if !strings.Contains(out.String(), `"msg":"json message"`) {
		t.Fatalf("Wrong json output: %s", out.String())
	}
	if strings.Contains(out.String(), "skipped") {
		t.Fatal("Debug message is logged at info level")
	}
}

func TestStdoutPanic(t *testing.T) {

	var out bytes.Buffer
	stdout := NewStdout(StdoutOptions{Format: "text", Level: "info", Output: &out})

	defer func() {
		if recover() == nil {
			t.Fatal("Panic is not raised")
		}
	}()
	stdout.Panic("boom")
}
