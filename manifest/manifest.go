// Package manifest exports the entitlement state of a distributor consumer
// into a signed archive and applies such archives to owners.
package manifest

import (
	"context"
	"io"
	"os"
	"time"

	"github.com/jinzhu/copier"
	"github.com/pkg/errors"

	"github.com/candlepin/candlepin-sub033/storage/model"
)

// Store is the persistence manifests are exported from and imported into.
type Store interface {
	Backends() model.Backends
	// Transaction runs fn with backends bound to one transaction
	Transaction(ctx context.Context, fn func(tx model.Backends) error) error
}

// Verifier verifies the detached signature of an inner archive
type Verifier interface {
	Verify(r io.Reader, signature []byte) (bool, error)
}

// Config holds the settings shared by exporter and importer
type Config struct {
	// WorkDir is the parent of the scratch directories; empty means the
	// system temp dir
	WorkDir string
	// WebURL and APIURL are the default url prefixes written to exports
	WebURL string
	APIURL string
	// MaxExtractedSize caps the bytes extracted from an imported archive;
	// <= 0 means archive.DefaultMaxSize
	MaxExtractedSize int64
}

func (c Config) scratchDir(prefix string) (string, error) {
	if c.WorkDir != "" {
		if err := os.MkdirAll(c.WorkDir, 0o750); err != nil {
			return "", errors.Wrap(err, "manifest: creating work dir failed")
		}
	}
	dir, err := os.MkdirTemp(c.WorkDir, prefix)
	return dir, errors.Wrap(err, "manifest: creating scratch dir failed")
}

func nowOr(now func() time.Time) time.Time {
	if now != nil {
		return now()
	}
	return time.Now()
}

// upstreamSnapshot copies an upstream consumer into the form kept with
// import records. It returns nil for unbound owners.
func upstreamSnapshot(uc *model.UpstreamConsumer) *model.ImportUpstreamConsumer {
	if uc == nil {
		return nil
	}
	var snapshot model.ImportUpstreamConsumer
	if err := copier.Copy(&snapshot, uc); err != nil {
		return &model.ImportUpstreamConsumer{UUID: uc.UUID, Name: uc.Name, OwnerID: uc.OwnerID}
	}
	return &snapshot
}
