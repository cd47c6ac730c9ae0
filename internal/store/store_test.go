package store

import (
	"errors"
	"path/filepath"
	"testing"
)

func openTest(t *testing.T, quota int64) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "sentinel.db"), quota)
	if err != nil {
		t.Fatalf("Open error: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestReadAbsentKey(t *testing.T) {
	s := openTest(t, 0)

	value, ok, err := s.Read("missing")
	if err != nil {
		t.Fatalf("Read error: %v", err)
	}
	if ok {
		t.Error("absent key should report ok=false")
	}
	if value != nil {
		t.Errorf("value = %q, want nil", value)
	}
}

func TestWriteReadRoundTrip(t *testing.T) {
	s := openTest(t, 0)

	if err := s.Write(KeyAlerts, []byte(`[{"id":"a1"}]`)); err != nil {
		t.Fatalf("Write error: %v", err)
	}
	value, ok, err := s.Read(KeyAlerts)
	if err != nil {
		t.Fatalf("Read error: %v", err)
	}
	if !ok {
		t.Fatal("key should exist after write")
	}
	if string(value) != `[{"id":"a1"}]` {
		t.Errorf("value = %q", value)
	}

	// Overwrite replaces, not appends.
	if err := s.Write(KeyAlerts, []byte(`[]`)); err != nil {
		t.Fatalf("Write error: %v", err)
	}
	value, _, _ = s.Read(KeyAlerts)
	if string(value) != `[]` {
		t.Errorf("value after overwrite = %q", value)
	}
}

func TestQuotaExceeded(t *testing.T) {
	s := openTest(t, 10)

	if err := s.Write("a", []byte("12345")); err != nil {
		t.Fatalf("Write error: %v", err)
	}
	err := s.Write("b", []byte("1234567")) // 5 + 7 > 10
	if !errors.Is(err, ErrQuotaExceeded) {
		t.Fatalf("err = %v, want ErrQuotaExceeded", err)
	}

	// Same-key overwrite does not double-count the old value.
	if err := s.Write("a", []byte("1234567890")); err != nil {
		t.Fatalf("same-key overwrite within quota should succeed: %v", err)
	}
}

func TestDeleteFreesQuota(t *testing.T) {
	s := openTest(t, 10)

	if err := s.Write("a", []byte("123456")); err != nil {
		t.Fatalf("Write error: %v", err)
	}
	if err := s.Write("b", []byte("123456")); !errors.Is(err, ErrQuotaExceeded) {
		t.Fatalf("err = %v, want ErrQuotaExceeded", err)
	}
	if err := s.Delete("a"); err != nil {
		t.Fatalf("Delete error: %v", err)
	}
	if err := s.Write("b", []byte("123456")); err != nil {
		t.Fatalf("Write after delete error: %v", err)
	}

	used, err := s.UsedBytes()
	if err != nil {
		t.Fatalf("UsedBytes error: %v", err)
	}
	if used != 6 {
		t.Errorf("used = %d, want 6", used)
	}
}

func TestDeleteAbsentKeyIsNoop(t *testing.T) {
	s := openTest(t, 0)
	if err := s.Delete("missing"); err != nil {
		t.Errorf("Delete absent key error: %v", err)
	}
}
