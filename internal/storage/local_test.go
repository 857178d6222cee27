package storage

import (
	"context"
	"os"
	"strings"
	"testing"
)

func TestLocalSaveLocalizeRemove(t *testing.T) {
	ctx := context.Background()
	s, err := NewLocal(t.TempDir(), nil)
	if err != nil {
		t.Fatal(err)
	}

	name := TokenName("scan.png")
	loc, err := s.Save(ctx, "u1", name, strings.NewReader("png-bytes"), 9)
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	if _, err := s.Save(ctx, "u1", name, strings.NewReader("again"), 5); err == nil {
		t.Error("saving over an existing token should fail")
	}

	path, cleanup, err := s.Localize(ctx, loc)
	if err != nil {
		t.Fatalf("localize: %v", err)
	}
	cleanup()
	data, err := os.ReadFile(path)
	if err != nil || string(data) != "png-bytes" {
		t.Fatalf("read back %q, %v", data, err)
	}

	if err := s.Remove(ctx, loc); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if _, err := os.Stat(loc); !os.IsNotExist(err) {
		t.Errorf("file still present: %v", err)
	}
	if err := s.Remove(ctx, loc); err != nil {
		t.Errorf("removing a missing file: %v", err)
	}
}

func TestObjectName(t *testing.T) {
	if got := ObjectName("u1", "../x/abc_scan.pdf"); got != "u1/abc_scan.pdf" {
		t.Errorf("ObjectName = %q", got)
	}
}
