package settings

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestOpenMissingFileUsesDefaults(t *testing.T) {
	s := Open(filepath.Join(t.TempDir(), "goldilocks.json"))

	if s.Get(TempLow) != 60 {
		t.Errorf("expected default temp_low 60, got %v", s.Get(TempLow))
	}
	if s.Get(TempHigh) != 80 {
		t.Errorf("expected default temp_high 80, got %v", s.Get(TempHigh))
	}
	if len(s.Name()) != 12 {
		t.Errorf("expected generated 12-char name, got %q", s.Name())
	}
	if !s.Dirty() {
		t.Error("a generated name should be pending save")
	}
}

func TestOpenInvalidFileUsesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "goldilocks.json")
	writeFile(t, path, "{not json")

	s := Open(path)
	if s.Get(TempLow) != 60 || s.Get(TempHigh) != 80 {
		t.Errorf("expected defaults, got %v..%v", s.Get(TempLow), s.Get(TempHigh))
	}
}

func TestOpenLoadsFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "goldilocks.json")
	writeFile(t, path, `{"temp_low": 64, "temp_high": 79, "name": "abc123", "extra": true}`)

	s := Open(path)
	if s.Get(TempLow) != 64 || s.Get(TempHigh) != 79 {
		t.Errorf("expected 64..79, got %v..%v", s.Get(TempLow), s.Get(TempHigh))
	}
	if s.Name() != "abc123" {
		t.Errorf("expected name abc123, got %q", s.Name())
	}
	if s.Dirty() {
		t.Error("freshly loaded store should not be dirty")
	}
}

func TestOpenPartialFileKeepsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "goldilocks.json")
	writeFile(t, path, `{"temp_low": 62, "name": "n"}`)

	s := Open(path)
	if s.Get(TempLow) != 62 {
		t.Errorf("expected 62, got %v", s.Get(TempLow))
	}
	if s.Get(TempHigh) != 80 {
		t.Errorf("missing key should keep default 80, got %v", s.Get(TempHigh))
	}
}

func TestSetMarksDirtyOnlyOnChange(t *testing.T) {
	path := filepath.Join(t.TempDir(), "goldilocks.json")
	writeFile(t, path, `{"temp_low": 60, "temp_high": 80, "name": "n"}`)
	s := Open(path)

	if !s.Set(TempLow, 62) {
		t.Error("first set should report a change")
	}
	if !s.Dirty() {
		t.Error("store should be dirty after a change")
	}
	if err := s.Save(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s.Set(TempLow, 62) {
		t.Error("setting the same value should be a no-op")
	}
	if s.Dirty() {
		t.Error("same-value set should not mark dirty")
	}
}

func TestSaveWritesOnlyWhenDirty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "goldilocks.json")
	writeFile(t, path, `{"temp_low": 60, "temp_high": 80, "name": "n"}`)
	s := Open(path)

	if err := os.Remove(path); err != nil {
		t.Fatal(err)
	}
	if err := s.Save(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Error("save without changes must not write")
	}

	s.Set(TempHigh, 76)
	if err := s.Save(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("settings not written: %v", err)
	}
	var doc map[string]any
	if err := json.Unmarshal(data, &doc); err != nil {
		t.Fatalf("invalid JSON written: %v", err)
	}
	if doc["temp_high"] != 76.0 || doc["temp_low"] != 60.0 || doc["name"] != "n" {
		t.Errorf("unexpected document: %v", doc)
	}
	if s.Dirty() {
		t.Error("store should be clean after save")
	}
}

func TestSaveFailureKeepsDirty(t *testing.T) {
	dir := t.TempDir()
	blocker := filepath.Join(dir, "file")
	writeFile(t, blocker, "x")
	s := Open(filepath.Join(blocker, "goldilocks.json"))
	s.Set(TempLow, 55)

	if err := s.Save(); err == nil {
		t.Fatal("expected error saving under a regular file")
	}
	if !s.Dirty() {
		t.Error("failed save should leave the store dirty")
	}
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", "goldilocks.json")
	s := Open(path)
	s.Set(TempLow, 66)
	if err := s.Save(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	again := Open(path)
	if again.Get(TempLow) != 66 {
		t.Errorf("expected 66 after reopen, got %v", again.Get(TempLow))
	}
	if again.Name() != s.Name() {
		t.Errorf("name not persisted: %q vs %q", again.Name(), s.Name())
	}
}

func TestReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "goldilocks.json")
	writeFile(t, path, `{"temp_low": 60, "temp_high": 80, "name": "n"}`)
	s := Open(path)

	writeFile(t, path, `{"temp_low": 61, "temp_high": 80, "name": "n"}`)
	changed, err := s.Reload()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !changed || s.Get(TempLow) != 61 {
		t.Errorf("expected reload to pick up 61, got %v (changed=%v)", s.Get(TempLow), changed)
	}

	changed, _ = s.Reload()
	if changed {
		t.Error("reloading identical content should report no change")
	}

	s.Set(TempHigh, 77)
	if _, err := s.Reload(); err == nil {
		t.Error("reload should refuse to discard unsaved changes")
	}
	if s.Get(TempHigh) != 77 {
		t.Errorf("unsaved value lost: %v", s.Get(TempHigh))
	}
}

func TestUnknownKeyPanics(t *testing.T) {
	s := Open(filepath.Join(t.TempDir(), "goldilocks.json"))
	defer func() {
		if recover() == nil {
			t.Error("expected panic for unknown key")
		}
	}()
	s.Get(Key(42))
}

func TestKeyNames(t *testing.T) {
	if TempLow.String() != "temp_low" || TempHigh.String() != "temp_high" {
		t.Errorf("unexpected key names: %s, %s", TempLow, TempHigh)
	}
}

func TestWatcherSeesExternalWrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "goldilocks.json")
	writeFile(t, path, `{}`)

	w, err := NewWatcher(path)
	if err != nil {
		t.Skipf("fsnotify unavailable: %v", err)
	}
	defer w.Close()

	writeFile(t, filepath.Join(dir, "other.json"), `{}`)
	writeFile(t, path, `{"temp_low": 61}`)

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		changed, err := w.Changed()
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if changed {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Error("watcher did not report the settings write")
}

func TestAtomicWriteReplacesFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "goldilocks.json")
	writeFile(t, path, `{"temp_low": 60}`)

	if err := atomicWrite(path, []byte(`{"temp_low": 62}`)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != `{"temp_low": 62}` {
		t.Errorf("content: got %s", data)
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Errorf("expected only the settings file, found %d entries", len(entries))
	}
}

func TestDefault(t *testing.T) {
	if Default(TempLow) != 60 || Default(TempHigh) != 80 {
		t.Errorf("defaults: got %v-%v, want 60-80", Default(TempLow), Default(TempHigh))
	}
}
