package archive

import (
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/klauspost/compress/zip"
	"github.com/rs/zerolog/log"
	"golang.org/x/text/encoding/charmap"
)

const (
	archiveDirPerm os.FileMode = 0o750

	// DocumentExt is the extension of entries that take part in classification.
	DocumentExt = ".xml"
)

// IsDocument reports whether an entry name carries the document extension,
// ignoring case and any directory prefix.
func IsDocument(name string) bool {
	return strings.EqualFold(path.Ext(name), DocumentExt)
}

// Entry is one stored file of an input archive.
type Entry struct {
	Name string
	file *zip.File
}

// Bytes reads and decompresses the entry payload. On a read failure the
// bytes decoded so far are returned along with the error.
func (e Entry) Bytes() ([]byte, error) {
	rc, err := e.file.Open()
	if err != nil {
		return nil, fmt.Errorf("open entry %s: %w", e.Name, err)
	}
	defer func() { _ = rc.Close() }()

	data, err := io.ReadAll(rc)
	if err != nil {
		return data, fmt.Errorf("read entry %s: %w", e.Name, err)
	}
	return data, nil
}

// Reader iterates an input archive forward, in storage order.
type Reader struct {
	rc      *zip.ReadCloser
	next    int
	current Entry
}

// Open opens the archive at path for reading. Any failure, including a
// file that is not a zip container, wraps ErrOpen.
func Open(archivePath string) (*Reader, error) {
	rc, err := zip.OpenReader(archivePath)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrOpen, archivePath, err)
	}
	return &Reader{rc: rc}, nil
}

// Next advances to the next non-directory entry. It returns false once the
// archive is exhausted; the iteration cannot be restarted.
func (r *Reader) Next() bool {
	for r.next < len(r.rc.File) {
		f := r.rc.File[r.next]
		r.next++
		if f.FileInfo().IsDir() || strings.HasSuffix(f.Name, "/") {
			continue
		}
		r.current = Entry{Name: entryName(f), file: f}
		return true
	}
	r.current = Entry{}
	return false
}

// entryName returns the entry name as UTF-8. Names written without the
// UTF-8 flag by legacy tools are in the zip default code page (IBM 437).
func entryName(f *zip.File) string {
	if !f.NonUTF8 || utf8.ValidString(f.Name) {
		return f.Name
	}
	decoded, err := charmap.CodePage437.NewDecoder().String(f.Name)
	if err != nil {
		log.Warn().Err(err).Str("entry", f.Name).Msg("decode legacy entry name")
		return f.Name
	}
	return decoded
}

// Entry returns the entry Next moved to.
func (r *Reader) Entry() Entry { return r.current }

// Close releases the underlying file.
func (r *Reader) Close() error {
	if err := r.rc.Close(); err != nil {
		return fmt.Errorf("close reader: %w", err)
	}
	return nil
}

// Writer appends entries to a new output archive.
type Writer struct {
	path      string
	file      io.WriteCloser
	zipWriter *zip.Writer
	modified  time.Time
	entries   int
}

// Create creates (or truncates) the archive at path, creating parent
// directories as needed. Failures wrap ErrCreate.
func Create(archivePath string) (*Writer, error) {
	zipFile, zipWriter, err := prepareZip(archivePath)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCreate, err)
	}
	return &Writer{
		path:      archivePath,
		file:      zipFile,
		zipWriter: zipWriter,
		modified:  time.Now(),
	}, nil
}

// Path returns the location of the archive being written.
func (w *Writer) Path() string { return w.path }

// Len returns the number of entries added so far.
func (w *Writer) Len() int { return w.entries }

// AddEntry writes data as a deflated entry called name. Names are used as
// given; callers supply the folder prefix.
func (w *Writer) AddEntry(name string, data []byte) error {
	header := &zip.FileHeader{
		Name:     name,
		Method:   zip.Deflate,
		Modified: w.modified,
	}
	entryWriter, err := w.zipWriter.CreateHeader(header)
	if err != nil {
		return fmt.Errorf("create entry %s: %w", name, err)
	}
	if _, err := entryWriter.Write(data); err != nil {
		return fmt.Errorf("write entry %s: %w", name, err)
	}
	w.entries++
	return nil
}

// Finalize writes the central directory and closes the file. It must be
// called even when no entries were added; the result is a valid empty archive.
func (w *Writer) Finalize() error {
	if err := w.zipWriter.Close(); err != nil {
		_ = w.file.Close()
		log.Error().Err(err).Str("path", w.path).Msg("closing zip writer failed")
		return fmt.Errorf("close zip writer: %w", err)
	}
	if err := w.file.Close(); err != nil {
		log.Error().Err(err).Str("path", w.path).Msg("closing zip file failed")
		return fmt.Errorf("close zip file: %w", err)
	}
	return nil
}

// Discard abandons the archive and removes the partially written file.
func (w *Writer) Discard() {
	_ = w.zipWriter.Close()
	_ = w.file.Close()
	if err := os.Remove(w.path); err != nil && !os.IsNotExist(err) {
		log.Warn().Err(err).Str("path", w.path).Msg("remove partial archive failed")
	}
}

// prepareZip creates destination file and a zip writer for it.
func prepareZip(destZipPath string) (io.WriteCloser, *zip.Writer, error) {
	zipFile, err := createFile(destZipPath)
	if err != nil {
		return nil, nil, err
	}
	zipWriter := zip.NewWriter(zipFile)
	return zipFile, zipWriter, nil
}

func createFile(destinationPath string) (io.WriteCloser, error) { return openOSFile(destinationPath) }

// openOSFile creates or truncates the destination file along with ensuring parent dir exists
func openOSFile(destinationPath string) (io.WriteCloser, error) {
	if err := os.MkdirAll(filepath.Dir(destinationPath), archiveDirPerm); err != nil { //nolint:gosec // directory created by application under controlled path
		return nil, fmt.Errorf("ensure dir: %w", err)
	}
	outputFile, err := os.Create(destinationPath) //nolint:gosec // path is constructed by the application
	if err != nil {
		return nil, fmt.Errorf("create file: %w", err)
	}
	return outputFile, nil
}
