package manifest

import (
	"context"
	"os"
	"path/filepath"
	slices2 "slices"
	"strconv"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"tideland.dev/go/slices"

	"github.com/candlepin/candlepin-sub033/internal/version"
	"github.com/candlepin/candlepin-sub033/manifest/archive"
	"github.com/candlepin/candlepin-sub033/manifest/codec"
	"github.com/candlepin/candlepin-sub033/rules"
	"github.com/candlepin/candlepin-sub033/storage/model"
)

// Exporter writes signed manifest archives for distributor consumers
type Exporter struct {
	store  Store
	signer archive.Signer
	conf   Config

	Now func() time.Time
}

// NewExporter returns an Exporter
func NewExporter(store Store, signer archive.Signer, conf Config) *Exporter {
	return &Exporter{
		store:  store,
		signer: signer,
		conf:   conf,
	}
}

// ExportOptions are the per request settings of an export
type ExportOptions struct {
	// CdnLabel is written to the manifest metadata
	CdnLabel string
	// WebURL and APIURL override the configured url prefixes
	WebURL string
	APIURL string
	// Principal is the name of whoever requested the export
	Principal string
}

// Archive is a written manifest archive. Cleanup removes it together with
// its scratch directory.
type Archive struct {
	Path     string
	FileName string
	dir      string
}

// Cleanup removes the archive and its scratch directory
func (a *Archive) Cleanup() error {
	if a == nil || a.dir == "" {
		return nil
	}
	return os.RemoveAll(a.dir)
}

type exportRun struct {
	b        model.Backends
	consumer *model.Consumer
	ct       *model.ConsumerType
	dir      string
	opts     ExportOptions
}

// Export writes a manifest for the consumer with consumerUUID.
func (e *Exporter) Export(_ context.Context, consumerUUID string, opts ExportOptions) (*Archive, error) {
	return e.export(
		consumerUUID, opts, func(run *exportRun) error {
			return e.writeManifest(run)
		},
	)
}

// ExportEntitlementCerts writes an archive holding only the metadata and
// the entitlement certificates of the consumer whose serial is in serials.
// A nil serials exports all certificates. No export eligibility filter is
// applied.
func (e *Exporter) ExportEntitlementCerts(
	_ context.Context, consumerUUID string, serials []uint64, opts ExportOptions,
) (*Archive, error) {
	opts.CdnLabel = ""
	return e.export(
		consumerUUID, opts, func(run *exportRun) error {
			if err := e.writeMeta(run); err != nil {
				return err
			}
			return writeEntitlementCertificates(run, serials, nil)
		},
	)
}

func (e *Exporter) export(consumerUUID string, opts ExportOptions, write func(*exportRun) error) (*Archive, error) {
	b := e.store.Backends()
	consumer, err := b.Consumers.Get(consumerUUID)
	if err != nil {
		return nil, err
	}
	if consumer == nil {
		return nil, model.NotFoundErrorFmt("consumer not found: %s", consumerUUID)
	}
	ct, err := b.ConsumerTypes.GetByLabel(consumer.TypeLabel)
	if err != nil {
		return nil, err
	}

	scratch, err := e.conf.scratchDir("export-")
	if err != nil {
		return nil, &ExportCreationError{Message: "Unable to create export archive", Cause: err}
	}
	run := &exportRun{
		b:        b,
		consumer: consumer,
		ct:       ct,
		dir:      filepath.Join(scratch, archive.ExportDirName),
		opts:     opts,
	}
	fail := func(err error) (*Archive, error) {
		if rmErr := os.RemoveAll(scratch); rmErr != nil {
			log.WithError(rmErr).WithField("dir", scratch).Warn("could not remove export scratch dir")
		}
		var ece *ExportCreationError
		if errors.As(err, &ece) {
			return nil, ece
		}
		return nil, &ExportCreationError{Message: "Unable to create export archive", Cause: err}
	}
	if err = os.MkdirAll(run.dir, 0o750); err != nil {
		return fail(err)
	}
	if err = write(run); err != nil {
		return fail(err)
	}

	name := consumer.UUID + "-export.zip"
	p, err := archive.Build(scratch, run.dir, name, consumer.UUID, e.signer)
	if err != nil {
		return fail(err)
	}
	log.WithFields(log.Fields{"consumer": consumer.UUID, "archive": name}).Info("exported manifest")
	return &Archive{
		Path:     p,
		FileName: name,
		dir:      scratch,
	}, nil
}

func (e *Exporter) writeManifest(run *exportRun) error {
	if err := e.writeMeta(run); err != nil {
		return err
	}
	if err := e.writeConsumer(run); err != nil {
		return err
	}
	if err := writeIdentity(run); err != nil {
		return err
	}
	exported, err := writeEntitlements(run)
	if err != nil {
		return err
	}
	if err = writeEntitlementCertificates(run, nil, exported); err != nil {
		return err
	}
	if err = writeProducts(run, exported); err != nil {
		return err
	}
	if err = writeCatalog(run); err != nil {
		return err
	}
	return writeRules(run)
}

func (e *Exporter) writeMeta(run *exportRun) error {
	webURL := run.opts.WebURL
	if webURL == "" {
		webURL = e.conf.WebURL
	}
	_, err := codec.Meta.Write(
		run.dir, &codec.MetaRecord{
			Version:       version.Full(),
			Created:       nowOr(e.Now),
			PrincipalName: run.opts.Principal,
			WebAppPrefix:  webURL,
			CdnLabel:      run.opts.CdnLabel,
		},
	)
	return err
}

// urlPrefix returns the override, else the configured default, else nil
func urlPrefix(override, configured string) *string {
	switch {
	case override != "":
		return &override
	case configured != "":
		return &configured
	}
	return nil
}

func (e *Exporter) writeConsumer(run *exportRun) error {
	rec := codec.ConsumerRecordOf(
		run.consumer, run.ct,
		urlPrefix(run.opts.WebURL, e.conf.WebURL),
		urlPrefix(run.opts.APIURL, e.conf.APIURL),
	)
	_, err := codec.Consumer.Write(run.dir, rec)
	return err
}

func writeIdentity(run *exportRun) error {
	if run.consumer.IdentityCert == nil {
		return &ExportCreationError{Message: "Consumer " + run.consumer.UUID + " has no identity certificate"}
	}
	_, err := codec.UpstreamIdentity.Write(run.dir, codec.IdentityCertificateRecord(run.consumer.IdentityCert))
	return err
}

// writeEntitlements writes the exportable entitlements and returns them by id
func writeEntitlements(run *exportRun) (map[string]*model.Entitlement, error) {
	ents, err := run.b.Entitlements.ListByConsumer(run.consumer.UUID)
	if err != nil {
		return nil, err
	}
	for _, ent := range ents {
		if ent.Dirty {
			log.WithFields(log.Fields{"consumer": run.consumer.UUID, "entitlement": ent.ID}).
				Error("refusing to export dirty entitlement")
			return nil, &ExportCreationError{Message: "Attempted to export dirty entitlements"}
		}
	}

	var productIDs []string
	for _, ent := range ents {
		if ent.Pool == nil {
			continue
		}
		productIDs = append(productIDs, ent.Pool.ProvidedProductIDs...)
		productIDs = append(productIDs, ent.Pool.DerivedProvidedProductIDs...)
	}
	names, err := run.b.Products.GetMany(slices.Unique(productIDs))
	if err != nil {
		return nil, err
	}

	exported := make(map[string]*model.Entitlement)
	for i := range ents {
		ent := &ents[i]
		if !rules.CanExport(ent, run.ct) {
			log.WithField("entitlement", ent.ID).Debug("skipping entitlement not eligible for export")
			continue
		}
		if _, err = codec.Entitlements.Write(
			run.dir, codec.EntitlementRecordOf(ent, run.consumer.Owner, names),
		); err != nil {
			return nil, err
		}
		exported[ent.ID] = ent
	}
	return exported, nil
}

// writeEntitlementCertificates writes certificates named by serial. With
// a non nil exported only certificates of exported entitlements are
// written; with a non nil serials only the listed serials.
func writeEntitlementCertificates(run *exportRun, serials []uint64, exported map[string]*model.Entitlement) error {
	certs, err := run.b.Certificates.EntitlementCertificatesByConsumer(run.consumer.UUID)
	if err != nil {
		return err
	}
	for _, c := range certs {
		if exported != nil {
			if _, ok := exported[c.EntitlementID]; !ok {
				continue
			}
		}
		if serials != nil && !slices2.Contains(serials, c.SerialID) {
			continue
		}
		if _, err = codec.WritePEM(
			run.dir, codec.SegmentEntitlementCertificates, strconv.FormatUint(c.SerialID, 10), c.Cert, c.Key,
		); err != nil {
			return err
		}
	}
	return nil
}

func writeProducts(run *exportRun, exported map[string]*model.Entitlement) error {
	var ids []string
	for _, ent := range exported {
		p := ent.Pool
		ids = append(ids, p.ProductID)
		if p.DerivedProductID != "" {
			ids = append(ids, p.DerivedProductID)
		}
		ids = append(ids, p.ProvidedProductIDs...)
		ids = append(ids, p.DerivedProvidedProductIDs...)
	}
	products, err := run.b.Products.GetMany(slices.Unique(ids))
	if err != nil {
		return err
	}
	var contentIDs []string
	for _, p := range products {
		for _, pc := range p.Contents {
			contentIDs = append(contentIDs, pc.ContentID)
		}
	}
	contents, err := run.b.Contents.GetMany(slices.Unique(contentIDs))
	if err != nil {
		return err
	}

	for _, p := range products {
		if _, err = codec.Products.Write(run.dir, codec.ProductRecordOf(p, contents)); err != nil {
			return err
		}
		if !p.HasNumericID() {
			continue
		}
		cert, err := run.b.Certificates.ProductCertificate(p.ID)
		if err != nil {
			return err
		}
		if cert == nil {
			continue
		}
		if _, err = codec.WritePEM(run.dir, codec.SegmentProducts, p.ID, cert.Cert, ""); err != nil {
			return err
		}
	}
	return nil
}

func writeCatalog(run *exportRun) error {
	types, err := run.b.ConsumerTypes.List()
	if err != nil {
		return err
	}
	for i := range types {
		if _, err = codec.ConsumerTypes.Write(run.dir, codec.ConsumerTypeRecordOf(&types[i])); err != nil {
			return err
		}
	}
	versions, err := run.b.DistributorVersions.List()
	if err != nil {
		return err
	}
	for i := range versions {
		if _, err = codec.DistributorVersions.Write(
			run.dir, codec.DistributorVersionRecordOf(&versions[i]),
		); err != nil {
			return err
		}
	}
	cdns, err := run.b.Cdns.List()
	if err != nil {
		return err
	}
	for i := range cdns {
		if _, err = codec.Cdns.Write(run.dir, codec.CdnRecordOf(&cdns[i])); err != nil {
			return err
		}
	}
	return nil
}

func writeRules(run *exportRun) error {
	current, err := run.b.Rules.Current()
	if err != nil {
		return err
	}
	if current == nil {
		log.Warn("no rules stored, exporting manifest without rules")
		return nil
	}
	return codec.WriteRules(run.dir, current.Source)
}
