package logging

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestNewWithFileWritesBothSinks(t *testing.T) {
	dir := t.TempDir()
	log, closeFn, err := NewWithFile(false, dir)
	if err != nil {
		t.Fatalf("NewWithFile: %v", err)
	}
	defer closeFn()

	log.Info("hello", "k", "v")

	data, err := os.ReadFile(filepath.Join(dir, "app.log"))
	if err != nil {
		t.Fatalf("read app.log: %v", err)
	}
	if !strings.Contains(string(data), "hello") {
		t.Errorf("app.log missing log line: %q", data)
	}
}

func TestRotatingFileRotatesPastLimit(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "app.log")
	rf, err := newRotatingFile(path)
	if err != nil {
		t.Fatalf("newRotatingFile: %v", err)
	}
	defer rf.Close()

	chunk := bytes.Repeat([]byte("x"), maxFileBytes/2)
	if _, err := rf.Write(chunk); err != nil {
		t.Fatalf("write 1: %v", err)
	}
	if _, err := rf.Write(chunk); err != nil {
		t.Fatalf("write 2: %v", err)
	}
	if _, err := rf.Write(chunk); err != nil {
		t.Fatalf("write 3: %v", err)
	}

	if _, err := os.Stat(path + ".1"); err != nil {
		t.Errorf("expected rotated file %s.1 to exist: %v", path, err)
	}
}
