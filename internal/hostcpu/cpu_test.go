package hostcpu

import (
	"os"
	"path/filepath"
	"testing"
)

func writeProcStat(t *testing.T, dir string, line string) {
	t.Helper()
	content := "cpu  " + line + "\ncpu0 " + line + "\nctxt 12345\n"
	if err := os.WriteFile(filepath.Join(dir, "stat"), []byte(content), 0o644); err != nil {
		t.Fatalf("write stat: %v", err)
	}
}

func TestReaderFirstCallEstablishesBaseline(t *testing.T) {
	dir := t.TempDir()
	writeProcStat(t, dir, "100 0 50 800 10 0 0 0")

	r := NewReader(dir)
	busy, err := r.Busy()
	if err != nil {
		t.Fatalf("Busy: %v", err)
	}
	if busy != 0 {
		t.Errorf("first call busy = %v, want 0", busy)
	}
}

func TestReaderComputesDeltaBusyFraction(t *testing.T) {
	dir := t.TempDir()
	writeProcStat(t, dir, "100 0 50 800 10 0 0 0")
	r := NewReader(dir)
	if _, err := r.Busy(); err != nil {
		t.Fatalf("baseline Busy: %v", err)
	}

	// user +100, idle +100, everything else unchanged: busy/total = 100/200.
	writeProcStat(t, dir, "200 0 50 900 10 0 0 0")
	busy, err := r.Busy()
	if err != nil {
		t.Fatalf("Busy: %v", err)
	}
	if busy < 0.49 || busy > 0.51 {
		t.Errorf("busy = %v, want ~0.5", busy)
	}
}

func TestReaderMissingStatFileIsFatal(t *testing.T) {
	dir := t.TempDir()
	r := NewReader(dir)
	if _, err := r.Busy(); err == nil {
		t.Fatal("expected error for missing /proc/stat, got nil")
	}
}

func TestReaderMissingAggregateLineIsFatal(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "stat"), []byte("ctxt 1\n"), 0o644); err != nil {
		t.Fatalf("write stat: %v", err)
	}
	r := NewReader(dir)
	if _, err := r.Busy(); err == nil {
		t.Fatal("expected error for missing aggregate cpu line, got nil")
	}
}
