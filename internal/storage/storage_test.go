package storage

import (
	"errors"
	"io"
	"testing"
)

func TestFsStoreRoundTrip(t *testing.T) {
	store := NewMemory()

	key, err := store.Save("documents/doc-1/source.pdf", []byte("pdf-bytes"))
	if err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if key != "documents/doc-1/source.pdf" {
		t.Errorf("unexpected key: %s", key)
	}

	if !store.Exists(key) {
		t.Error("Exists should report saved key")
	}

	f, err := store.Open(key)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	data, err := io.ReadAll(f)
	f.Close()
	if err != nil {
		t.Fatalf("read failed: %v", err)
	}
	if string(data) != "pdf-bytes" {
		t.Errorf("unexpected contents: %q", data)
	}

	got, err := store.ReadAll(key)
	if err != nil {
		t.Fatalf("ReadAll failed: %v", err)
	}
	if string(got) != "pdf-bytes" {
		t.Errorf("unexpected ReadAll contents: %q", got)
	}
}

func TestFsStoreMissingKey(t *testing.T) {
	store := NewMemory()
	if _, err := store.Open("absent"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	if store.Exists("absent") {
		t.Error("Exists should be false for missing key")
	}
}

func TestFsStoreDelete(t *testing.T) {
	store := NewMemory()
	if _, err := store.Save("k", []byte("v")); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if err := store.Delete("k"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if store.Exists("k") {
		t.Error("key still present after delete")
	}
	// Deleting again is not an error.
	if err := store.Delete("k"); err != nil {
		t.Errorf("double delete should be a no-op: %v", err)
	}
}

func TestFsStoreOverwrite(t *testing.T) {
	store := NewMemory()
	if _, err := store.Save("k", []byte("first")); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if _, err := store.Save("k", []byte("second")); err != nil {
		t.Fatalf("overwrite failed: %v", err)
	}
	got, err := store.ReadAll("k")
	if err != nil {
		t.Fatalf("ReadAll failed: %v", err)
	}
	if string(got) != "second" {
		t.Errorf("expected overwritten contents, got %q", got)
	}
}

func TestKeys(t *testing.T) {
	if got := SourcePDFKey("d1"); got != "documents/d1/source.pdf" {
		t.Errorf("unexpected source key: %s", got)
	}
	if got := ThumbnailKey("d1"); got != "documents/d1/cover.png" {
		t.Errorf("unexpected thumbnail key: %s", got)
	}
	if got := DocumentPrefix("d1"); got != "documents/d1" {
		t.Errorf("unexpected prefix: %s", got)
	}
	if got := PagePDFKey("d1", 3); got != "documents/d1/pages/3/page-3.pdf" {
		t.Errorf("unexpected page key: %s", got)
	}
	if got := PageOverlayKey("d1", 3); got != "documents/d1/pages/3/page-3-bbox.png" {
		t.Errorf("unexpected overlay key: %s", got)
	}
	if got := ExtractedImageKey("d1", 3, "img-9"); got != "documents/d1/pages/3/images/img-9.png" {
		t.Errorf("unexpected image key: %s", got)
	}
}
