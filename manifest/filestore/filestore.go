// Package filestore keeps uploaded and exported manifest archives until
// they are imported or downloaded. Files are stored as msgpack records
// carrying a blake3 checksum of their content.
package filestore

import (
	"bytes"
	"context"
	"io"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/vmihailenco/msgpack/v5"
	"github.com/zeebo/blake3"
)

// File kinds
const (
	KindImport = "import"
	KindExport = "export"
)

// ErrChecksumMismatch is returned when stored content does not match its checksum
var ErrChecksumMismatch = errors.New("filestore: checksum mismatch")

// ManifestFile is a stored manifest archive
type ManifestFile struct {
	ID        string    `msgpack:"id"`
	Kind      string    `msgpack:"kind"`
	TargetKey string    `msgpack:"target"`
	FileName  string    `msgpack:"file_name"`
	Principal string    `msgpack:"principal,omitempty"`
	Created   time.Time `msgpack:"created"`
	Checksum  []byte    `msgpack:"checksum"`
	Data      []byte    `msgpack:"data"`
}

// Store stores manifest files
type Store interface {
	// Put stores f. An empty id is assigned, the checksum is computed.
	Put(ctx context.Context, f *ManifestFile) error
	// Get returns the file with the passed id, or (nil, nil).
	Get(ctx context.Context, id string) (*ManifestFile, error)
	Delete(ctx context.Context, id string) error
	Close() error
}

// NewFile reads the archive at path into a ManifestFile
func NewFile(kind, targetKey, fileName, path string) (*ManifestFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "filestore: reading manifest failed")
	}
	return &ManifestFile{
		Kind:      kind,
		TargetKey: targetKey,
		FileName:  fileName,
		Data:      data,
	}, nil
}

// Reader returns a reader over the file content
func (f *ManifestFile) Reader() io.Reader {
	return bytes.NewReader(f.Data)
}

// WriteTemp writes the content to a new file in dir and returns its path
func (f *ManifestFile) WriteTemp(dir string) (string, error) {
	tmp, err := os.CreateTemp(dir, "manifest-*.zip")
	if err != nil {
		return "", errors.Wrap(err, "filestore: writing manifest failed")
	}
	if _, err = tmp.Write(f.Data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return "", errors.Wrap(err, "filestore: writing manifest failed")
	}
	return tmp.Name(), errors.Wrap(tmp.Close(), "filestore: writing manifest failed")
}

func checksum(data []byte) []byte {
	sum := blake3.Sum256(data)
	return sum[:]
}

// prepare fills in id, creation time and checksum before storing
func prepare(f *ManifestFile) {
	if f.ID == "" {
		f.ID = uuid.NewString()
	}
	if f.Created.IsZero() {
		f.Created = time.Now()
	}
	f.Checksum = checksum(f.Data)
}

func encode(f *ManifestFile) ([]byte, error) {
	data, err := msgpack.Marshal(f)
	return data, errors.Wrap(err, "filestore: encoding failed")
}

func decode(data []byte) (*ManifestFile, error) {
	var f ManifestFile
	if err := msgpack.Unmarshal(data, &f); err != nil {
		return nil, errors.Wrap(err, "filestore: decoding failed")
	}
	if !bytes.Equal(f.Checksum, checksum(f.Data)) {
		return nil, errors.WithStack(ErrChecksumMismatch)
	}
	return &f, nil
}
