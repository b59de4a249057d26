package archive

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/klauspost/compress/zip"
)

func TestIsDocument(t *testing.T) {
	cases := []struct {
		in   string
		want bool
	}{
		{"a.xml", true},
		{"A.XML", true},
		{"lote/2024/nota.Xml", true},
		{".xml", true},
		{"nota.xml.bak", false},
		{"nota.txt", false},
		{"xml", false},
		{"dir.xml/readme", false},
	}
	for _, c := range cases {
		if got := IsDocument(c.in); got != c.want {
			t.Fatalf("IsDocument(%q)=%v want %v", c.in, got, c.want)
		}
	}
}

func TestWriteThenReadPreservesOrderAndNames(t *testing.T) {
	dest := filepath.Join(t.TempDir(), "nested", "out.zip")
	w, err := Create(dest)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	entries := []struct {
		name string
		data string
	}{
		{FolderRejected + "b.xml", "<b/>"},
		{FolderApproved + "lote/a.xml", "<a/>"},
		{FolderContingency + "c.xml", ""},
	}
	for _, e := range entries {
		if err := w.AddEntry(e.name, []byte(e.data)); err != nil {
			t.Fatalf("add %s: %v", e.name, err)
		}
	}
	if w.Len() != len(entries) {
		t.Fatalf("expected %d entries, got %d", len(entries), w.Len())
	}
	if err := w.Finalize(); err != nil {
		t.Fatalf("finalize: %v", err)
	}

	r, err := Open(dest)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer func() { _ = r.Close() }()

	i := 0
	for r.Next() {
		entry := r.Entry()
		if i >= len(entries) {
			t.Fatalf("unexpected extra entry %q", entry.Name)
		}
		if entry.Name != entries[i].name {
			t.Fatalf("entry %d: name %q want %q", i, entry.Name, entries[i].name)
		}
		data, err := entry.Bytes()
		if err != nil {
			t.Fatalf("bytes %s: %v", entry.Name, err)
		}
		if string(data) != entries[i].data {
			t.Fatalf("entry %s: data %q want %q", entry.Name, data, entries[i].data)
		}
		i++
	}
	if i != len(entries) {
		t.Fatalf("read %d entries, want %d", i, len(entries))
	}
	if r.Next() {
		t.Fatalf("iteration must not restart")
	}
}

func TestEmptyArchiveIsValid(t *testing.T) {
	dest := filepath.Join(t.TempDir(), "empty.zip")
	w, err := Create(dest)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := w.Finalize(); err != nil {
		t.Fatalf("finalize: %v", err)
	}
	r, err := Open(dest)
	if err != nil {
		t.Fatalf("open empty archive: %v", err)
	}
	defer func() { _ = r.Close() }()
	if r.Next() {
		t.Fatalf("expected no entries, got %q", r.Entry().Name)
	}
}

func TestReaderSkipsDirectories(t *testing.T) {
	dest := filepath.Join(t.TempDir(), "dirs.zip")
	w, err := Create(dest)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	_ = w.AddEntry("lote/", nil)
	_ = w.AddEntry("lote/nota.xml", []byte("<x/>"))
	if err := w.Finalize(); err != nil {
		t.Fatalf("finalize: %v", err)
	}

	r, err := Open(dest)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer func() { _ = r.Close() }()
	var names []string
	for r.Next() {
		names = append(names, r.Entry().Name)
	}
	if len(names) != 1 || names[0] != "lote/nota.xml" {
		t.Fatalf("unexpected entries: %v", names)
	}
}

func TestOpenFailures(t *testing.T) {
	dir := t.TempDir()
	corrupt := filepath.Join(dir, "corrupt.zip")
	if err := os.WriteFile(corrupt, []byte("definitely not a zip"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	for _, p := range []string{corrupt, filepath.Join(dir, "missing.zip")} {
		if _, err := Open(p); !errors.Is(err, ErrOpen) {
			t.Fatalf("Open(%s): expected ErrOpen, got %v", p, err)
		}
	}
}

func TestCreateFailure(t *testing.T) {
	dir := t.TempDir()
	blocker := filepath.Join(dir, "file")
	if err := os.WriteFile(blocker, []byte("x"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	// parent "directory" is a regular file
	if _, err := Create(filepath.Join(blocker, "out.zip")); !errors.Is(err, ErrCreate) {
		t.Fatalf("expected ErrCreate, got %v", err)
	}
}

func TestDiscardRemovesPartialFile(t *testing.T) {
	dest := filepath.Join(t.TempDir(), "partial.zip")
	w, err := Create(dest)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	_ = w.AddEntry(FolderApproved+"a.xml", []byte("<a/>"))
	w.Discard()
	if _, err := os.Stat(dest); !os.IsNotExist(err) {
		t.Fatalf("expected partial archive removed, stat err=%v", err)
	}
}

func TestReaderDecodesLegacyEntryNames(t *testing.T) {
	dest := filepath.Join(t.TempDir(), "legacy.zip")
	f, err := os.Create(dest)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	zw := zip.NewWriter(f)
	for _, name := range []string{"servi\x87o.xml", "serviço.xml"} {
		fw, err := zw.CreateHeader(&zip.FileHeader{Name: name, Method: zip.Store, NonUTF8: true})
		if err != nil {
			t.Fatalf("create header %q: %v", name, err)
		}
		if _, err := fw.Write([]byte("<a/>")); err != nil {
			t.Fatalf("write %q: %v", name, err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("close writer: %v", err)
	}
	if err := f.Close(); err != nil {
		t.Fatalf("close file: %v", err)
	}

	r, err := Open(dest)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer func() { _ = r.Close() }()

	var names []string
	for r.Next() {
		names = append(names, r.Entry().Name)
	}
	// code page 437 byte 0x87 is ç; names that already are UTF-8 stay as stored
	if len(names) != 2 || names[0] != "serviço.xml" || names[1] != "serviço.xml" {
		t.Fatalf("unexpected names %q", names)
	}
}
