// Package archive builds and reads the manifest container: an outer zip
// holding the inner consumer_export.zip and a detached signature over the
// inner archive's bytes.
package archive

import (
	"bytes"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/zip"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// Entry names
const (
	InnerArchiveName = "consumer_export.zip"
	SignatureName    = "signature"
	// ExportDirName is the top-level directory of the inner archive
	ExportDirName = "export"
)

// Signer signs the byte stream of the inner archive.
type Signer interface {
	Sign(r io.Reader) ([]byte, error)
}

// ExtractionError signals a malformed or incomplete archive.
type ExtractionError struct {
	Message string
	Cause   error
}

// Error implements the error interface
func (e *ExtractionError) Error() string {
	return e.Message
}

// Unwrap returns the underlying cause
func (e *ExtractionError) Unwrap() error {
	return e.Cause
}

func extractionError(cause error, format string, args ...any) *ExtractionError {
	return &ExtractionError{
		Message: fmt.Sprintf(format, args...),
		Cause:   cause,
	}
}

// Build writes the files under exportDir into workDir/consumer_export.zip
// with paths relative to exportDir's parent, signs it and wraps both into
// the outer archive workDir/archiveName. It returns the outer archive path.
func Build(workDir, exportDir, archiveName, consumerUUID string, signer Signer) (string, error) {
	innerPath := filepath.Join(workDir, InnerArchiveName)
	if err := writeInner(innerPath, exportDir, consumerUUID); err != nil {
		return "", err
	}

	inner, err := os.ReadFile(innerPath)
	if err != nil {
		return "", errors.Wrap(err, "archive: reading inner archive failed")
	}
	signature, err := signer.Sign(bytes.NewReader(inner))
	if err != nil {
		return "", errors.Wrap(err, "archive: signing failed")
	}

	outerPath := filepath.Join(workDir, archiveName)
	f, err := os.Create(outerPath)
	if err != nil {
		return "", errors.Wrap(err, "archive: creating archive failed")
	}
	defer f.Close()
	zw := zip.NewWriter(f)
	if err = zw.SetComment("signed Candlepin export for " + consumerUUID); err != nil {
		return "", errors.WithStack(err)
	}
	if err = addEntry(zw, InnerArchiveName, bytes.NewReader(inner)); err != nil {
		return "", err
	}
	if err = addEntry(zw, SignatureName, bytes.NewReader(signature)); err != nil {
		return "", err
	}
	if err = zw.Close(); err != nil {
		return "", errors.Wrap(err, "archive: finishing archive failed")
	}
	return outerPath, errors.Wrap(f.Close(), "archive: closing archive failed")
}

func writeInner(innerPath, exportDir, consumerUUID string) error {
	f, err := os.Create(innerPath)
	if err != nil {
		return errors.Wrap(err, "archive: creating inner archive failed")
	}
	defer f.Close()
	zw := zip.NewWriter(f)
	if err = zw.SetComment("Candlepin export for " + consumerUUID); err != nil {
		return errors.WithStack(err)
	}
	base := filepath.Dir(exportDir)
	err = filepath.WalkDir(
		exportDir, func(p string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() {
				return nil
			}
			rel, err := filepath.Rel(base, p)
			if err != nil {
				return err
			}
			src, err := os.Open(p)
			if err != nil {
				return err
			}
			defer src.Close()
			log.WithField("entry", rel).Debug("adding file to export archive")
			return addEntry(zw, filepath.ToSlash(rel), src)
		},
	)
	if err != nil {
		return errors.Wrap(err, "archive: writing inner archive failed")
	}
	if err = zw.Close(); err != nil {
		return errors.Wrap(err, "archive: finishing inner archive failed")
	}
	return errors.Wrap(f.Close(), "archive: closing inner archive failed")
}

func addEntry(zw *zip.Writer, name string, r io.Reader) error {
	w, err := zw.CreateHeader(
		&zip.FileHeader{
			Name:   name,
			Method: zip.Deflate,
		},
	)
	if err != nil {
		return errors.Wrapf(err, "archive: adding entry '%s' failed", name)
	}
	_, err = io.Copy(w, r)
	return errors.Wrapf(err, "archive: writing entry '%s' failed", name)
}

// DefaultMaxSize bounds the uncompressed bytes written by one extraction
// when no other limit is configured.
const DefaultMaxSize int64 = 512 << 20

// innerDirName is the scratch subdirectory holding the extracted inner
// archive, kept apart from the outer entries.
const innerDirName = "inner"

// Unpacked is an outer archive extracted into a scratch directory.
type Unpacked struct {
	// Dir is the scratch directory the archive was extracted into
	Dir string
	// InnerPath is the extracted inner archive
	InnerPath string
	// Signature is the detached signature over the inner archive
	Signature []byte

	maxSize int64
}

// Open extracts the outer archive at archivePath into scratchDir and checks
// that the signature and the inner archive are present. The outer archive
// may hold nothing else. maxSize caps the extracted bytes of each of the
// two archives; a value <= 0 means DefaultMaxSize.
func Open(archivePath, scratchDir string, maxSize int64) (*Unpacked, error) {
	name := filepath.Base(archivePath)
	if err := extract(archivePath, scratchDir, maxSize, outerEntryAllowed); err != nil {
		return nil, err
	}
	signature, err := os.ReadFile(filepath.Join(scratchDir, SignatureName))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, extractionError(err, "Unable to extract export archive")
	}
	if len(signature) == 0 {
		return nil, extractionError(nil, "The archive does not contain the required signature file")
	}
	innerPath := filepath.Join(scratchDir, InnerArchiveName)
	if info, err := os.Stat(innerPath); err != nil || info.IsDir() {
		return nil, extractionError(
			err, "The archive does not contain the required %s file", InnerArchiveName,
		)
	}
	log.WithField("archive", name).Debug("extracted manifest archive")
	return &Unpacked{
		Dir:       scratchDir,
		InnerPath: innerPath,
		Signature: signature,
		maxSize:   maxSize,
	}, nil
}

func outerEntryAllowed(name string) bool {
	return name == InnerArchiveName || name == SignatureName
}

// ExtractInner extracts the inner archive into its own subdirectory of the
// scratch dir and returns the export directory, which must not be empty.
// Only content of the signed inner archive ends up below that directory.
func (u *Unpacked) ExtractInner() (string, error) {
	innerDir := filepath.Join(u.Dir, innerDirName)
	if err := extract(u.InnerPath, innerDir, u.maxSize, nil); err != nil {
		return "", err
	}
	exportDir := filepath.Join(innerDir, ExportDirName)
	entries, err := os.ReadDir(exportDir)
	if err != nil || len(entries) == 0 {
		return "", extractionError(
			err, "The provided manifest has no content in the exported consumer archive",
		)
	}
	return exportDir, nil
}

// extract writes all entries of the zip archive at archivePath below
// destDir. Entries that would land outside destDir are rejected, as is an
// archive whose entries add up to more than maxSize bytes (<= 0 means
// DefaultMaxSize). A non-nil allowed must accept every entry name.
func extract(archivePath, destDir string, maxSize int64, allowed func(string) bool) error {
	name := filepath.Base(archivePath)
	if maxSize <= 0 {
		maxSize = DefaultMaxSize
	}
	zr, err := zip.OpenReader(archivePath)
	if err != nil {
		return extractionError(err, "The archive %s is not a properly compressed file or is empty", name)
	}
	defer zr.Close()
	if len(zr.File) == 0 {
		return extractionError(nil, "The archive %s is not a properly compressed file or is empty", name)
	}
	dest, err := filepath.Abs(destDir)
	if err != nil {
		return extractionError(err, "Unable to extract export archive")
	}
	if allowed != nil {
		for _, f := range zr.File {
			if !allowed(f.Name) {
				return extractionError(nil, "The archive %s contains the unexpected entry %s", name, f.Name)
			}
		}
	}
	remaining := maxSize
	for _, f := range zr.File {
		target, err := entryTarget(dest, f.Name)
		if err != nil {
			return err
		}
		if f.FileInfo().IsDir() {
			if err = os.MkdirAll(target, 0o750); err != nil {
				return extractionError(err, "Unable to extract export archive")
			}
			continue
		}
		if f.UncompressedSize64 > uint64(remaining) {
			return tooLarge(name, maxSize)
		}
		n, err := extractFile(f, target, remaining)
		if err != nil {
			return extractionError(err, "Unable to extract export archive")
		}
		if n > remaining {
			return tooLarge(name, maxSize)
		}
		remaining -= n
	}
	return nil
}

func tooLarge(name string, maxSize int64) *ExtractionError {
	return extractionError(nil, "The archive %s exceeds the maximum extracted size of %d bytes", name, maxSize)
}

func entryTarget(dest, entryName string) (string, error) {
	target := filepath.Join(dest, filepath.FromSlash(strings.ReplaceAll(entryName, "\\", "/")))
	if target != dest && !strings.HasPrefix(target, dest+string(filepath.Separator)) {
		return "", extractionError(nil, "Entry is outside of the target directory: %s", entryName)
	}
	return target, nil
}

// extractFile writes at most limit+1 bytes of f to target and returns the
// number written, so callers can tell an entry that exceeds limit.
func extractFile(f *zip.File, target string, limit int64) (int64, error) {
	if err := os.MkdirAll(filepath.Dir(target), 0o750); err != nil {
		return 0, err
	}
	src, err := f.Open()
	if err != nil {
		return 0, err
	}
	defer src.Close()
	dst, err := os.OpenFile(target, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o640)
	if err != nil {
		return 0, err
	}
	n, err := io.Copy(dst, io.LimitReader(src, limit+1))
	if err != nil {
		_ = dst.Close()
		return n, err
	}
	return n, dst.Close()
}
