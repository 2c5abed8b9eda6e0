package manifest

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/candlepin/candlepin-sub033/manifest/archive"
	"github.com/candlepin/candlepin-sub033/manifest/codec"
	"github.com/candlepin/candlepin-sub033/manifest/conflict"
	"github.com/candlepin/candlepin-sub033/manifest/reconcile"
	"github.com/candlepin/candlepin-sub033/pools"
	"github.com/candlepin/candlepin-sub033/rules"
	"github.com/candlepin/candlepin-sub033/storage/model"
)

// Import status messages
const (
	msgNoActiveSubscriptions   = "No active subscriptions found in the file."
	msgInactiveSubscriptions   = "One or more inactive subscriptions found in the file."
	msgSignatureCheckFailed    = "Archive failed signature check"
	msgManifestOld             = "Import is older than existing data"
	msgManifestSame            = "Import is the same as existing data"
	msgDistributorConflict     = "Owner has already imported from another subscription management application."
	msgImportFailed            = "Failed to import archive"
	msgExtractFailed           = "Unable to extract export archive"
	msgMissingRequiredTemplate = "The archive does not contain the required %s %s"
)

// Importer applies manifest archives to owners
type Importer struct {
	store    Store
	verifier Verifier
	conf     Config

	// Now returns the current time; it decides which subscriptions are active
	Now func() time.Time
}

// NewImporter returns an Importer
func NewImporter(store Store, verifier Verifier, conf Config) *Importer {
	return &Importer{
		store:    store,
		verifier: verifier,
		conf:     conf,
	}
}

// ImportResult is the outcome of a successful import
type ImportResult struct {
	Record        *model.ImportRecord
	Subscriptions []*model.Subscription
	Meta          *codec.MetaRecord
	Pools         pools.Result
}

// importRun carries the state of one import attempt
type importRun struct {
	owner     *model.Owner
	overrides conflict.Overrides
	fileName  string
	dir       string
	meta      *codec.MetaRecord
}

// Import applies the archive at archivePath to the owner with ownerKey.
// Exactly one import record is written per attempt. Failed attempts leave
// no state behind apart from that record.
func (i *Importer) Import(
	ctx context.Context, ownerKey, archivePath string, overrides conflict.Overrides, uploadedFileName string,
) (*ImportResult, error) {
	owner, err := i.store.Backends().Owners.Get(ownerKey)
	if err != nil {
		return nil, err
	}
	if owner == nil {
		return nil, model.NotFoundErrorFmt("owner not found: %s", ownerKey)
	}
	run := &importRun{
		owner:     owner,
		overrides: overrides,
		fileName:  uploadedFileName,
	}
	if run.fileName == "" {
		run.fileName = filepath.Base(archivePath)
	}
	logger := log.WithFields(log.Fields{"owner": owner.Key, "file": run.fileName})

	res, err := i.run(ctx, run, archivePath)
	if err != nil {
		logger.WithError(err).Error("manifest import failed")
		i.recordFailure(run, err)
		return nil, err
	}
	logger.WithField("status", res.Record.Status).Info(res.Record.StatusMessage)
	return res, nil
}

func (i *Importer) run(ctx context.Context, run *importRun, archivePath string) (*ImportResult, error) {
	if _, err := os.Stat(archivePath); err != nil {
		return nil, &ImporterError{
			Message: "Uploaded manifest file does not exist.",
			Cause:   err,
		}
	}
	scratch, err := i.conf.scratchDir("import-")
	if err != nil {
		return nil, &ExtractionError{Message: msgExtractFailed, Cause: err}
	}
	defer func() {
		if err := os.RemoveAll(scratch); err != nil {
			log.WithError(err).WithField("dir", scratch).Warn("could not remove import scratch dir")
		}
	}()

	unpacked, err := archive.Open(archivePath, scratch, i.conf.MaxExtractedSize)
	if err != nil {
		return nil, err
	}
	if err = i.checkSignature(run, unpacked); err != nil {
		return nil, err
	}
	if run.dir, err = unpacked.ExtractInner(); err != nil {
		return nil, err
	}
	if err = i.checkRequiredFiles(run); err != nil {
		return nil, err
	}
	if run.meta, err = codec.Meta.Read(run.dir); err != nil {
		return nil, &ImporterError{Message: msgImportFailed, Cause: err}
	}

	var res *ImportResult
	err = i.store.Transaction(
		ctx, func(tx model.Backends) error {
			var err error
			res, err = i.apply(tx, run)
			return err
		},
	)
	if err != nil {
		return nil, classify(err, run.meta)
	}
	return res, nil
}

func (i *Importer) checkSignature(run *importRun, unpacked *archive.Unpacked) error {
	f, err := os.Open(unpacked.InnerPath)
	if err != nil {
		return &ExtractionError{Message: msgExtractFailed, Cause: err}
	}
	defer f.Close()
	ok, err := i.verifier.Verify(f, unpacked.Signature)
	if err != nil {
		return &ExtractionError{Message: msgExtractFailed, Cause: err}
	}
	if ok {
		return nil
	}
	if !run.overrides.IsForced(conflict.SignatureConflict) {
		return conflict.NewImportConflictError(msgSignatureCheckFailed, conflict.SignatureConflict)
	}
	log.WithField("owner", run.owner.Key).Warn("manifest signature check failed, continuing as forced")
	return nil
}

func (*Importer) checkRequiredFiles(run *importRun) error {
	missing := func(what, kind string) error {
		return &ImporterError{Message: fmt.Sprintf(msgMissingRequiredTemplate, what, kind)}
	}
	if !codec.Exists(run.dir, codec.SegmentMeta) {
		return missing(string(codec.SegmentMeta), "file")
	}
	if !codec.Exists(run.dir, codec.SegmentConsumerTypes) {
		return missing(string(codec.SegmentConsumerTypes), "directory")
	}
	if !codec.Exists(run.dir, codec.SegmentConsumer) {
		return missing(string(codec.SegmentConsumer), "file")
	}
	if codec.Exists(run.dir, codec.SegmentProducts) && !codec.Exists(run.dir, codec.SegmentEntitlements) {
		return missing(string(codec.SegmentEntitlements), "directory")
	}
	return nil
}

// apply runs inside the import transaction
func (i *Importer) apply(tx model.Backends, run *importRun) (*ImportResult, error) {
	if err := importRules(tx, run.dir); err != nil {
		return nil, err
	}
	if err := importCatalog(tx, run.dir); err != nil {
		return nil, err
	}

	var conflicts []*conflict.ImportConflictError
	metadata, metaConflict, err := i.validateMetadata(tx, run)
	if err != nil {
		return nil, err
	}
	conflicts = append(conflicts, metaConflict)
	upstream, consumerConflict, err := i.validateConsumer(tx, run)
	if err != nil {
		return nil, err
	}
	conflicts = append(conflicts, consumerConflict)
	if agg := conflict.Aggregate(conflicts...); agg != nil {
		return nil, agg
	}

	if err = tx.ExporterMetadata.Save(metadata); err != nil {
		return nil, err
	}
	if err = i.bindUpstreamConsumer(tx, run, upstream); err != nil {
		return nil, err
	}

	var subs []*model.Subscription
	if codec.Exists(run.dir, codec.SegmentProducts) {
		products, err := importProducts(tx, run.dir)
		if err != nil {
			return nil, err
		}
		if subs, err = i.importSubscriptions(tx, run, upstream, products); err != nil {
			return nil, err
		}
	} else {
		log.WithField("owner", run.owner.Key).
			Warn("manifest has no products, removing all imported subscriptions")
	}

	if err = reconcile.New(tx).Reconcile(run.owner.ID, subs); err != nil {
		return nil, err
	}
	refreshed, err := pools.Refresh(tx, run.owner.ID, subs)
	if err != nil {
		return nil, err
	}

	record := i.successRecord(run, upstream, subs)
	if err = tx.ImportRecords.Create(record); err != nil {
		return nil, err
	}
	return &ImportResult{
		Record:        record,
		Subscriptions: subs,
		Meta:          run.meta,
		Pools:         refreshed,
	}, nil
}

func importRules(tx model.Backends, dir string) error {
	source, found, err := codec.ReadRules(dir)
	if err != nil {
		return err
	}
	if !found {
		log.Debug("manifest carries no rules, skipping")
		return nil
	}
	incoming, err := rules.VersionFromSource(source)
	if err != nil {
		return dataFormatError("Unable to read rules version: %s", err)
	}
	current, err := tx.Rules.Current()
	if err != nil {
		return err
	}
	var currentVersion *rules.Version
	if current != nil {
		v, err := rules.ParseVersion(current.Version)
		if err == nil {
			currentVersion = &v
		}
	}
	if !rules.IsNewerOrCompatible(currentVersion, incoming) {
		log.WithFields(
			log.Fields{
				"current":  current.Version,
				"incoming": incoming.String(),
			},
		).Info("skipping rules import, incoming rules are older or incompatible")
		return nil
	}
	return tx.Rules.Save(
		&model.Rules{
			Version: incoming.String(),
			Source:  source,
		},
	)
}

func importCatalog(tx model.Backends, dir string) error {
	types, err := codec.ConsumerTypes.ReadAll(dir)
	if err != nil {
		return err
	}
	consumerTypes := make([]*model.ConsumerType, 0, len(types))
	for _, r := range types {
		consumerTypes = append(consumerTypes, r.Model())
	}
	if err = tx.ConsumerTypes.Upsert(consumerTypes); err != nil {
		return err
	}

	versions, err := codec.DistributorVersions.ReadAll(dir)
	if err != nil {
		return err
	}
	distributorVersions := make([]*model.DistributorVersion, 0, len(versions))
	for _, r := range versions {
		distributorVersions = append(distributorVersions, r.Model())
	}
	if err = tx.DistributorVersions.Upsert(distributorVersions); err != nil {
		return err
	}

	cdnRecords, err := codec.Cdns.ReadAll(dir)
	if err != nil {
		return err
	}
	cdns := make([]*model.Cdn, 0, len(cdnRecords))
	for _, r := range cdnRecords {
		cdns = append(cdns, r.Model())
	}
	return tx.Cdns.Upsert(cdns)
}

// validateMetadata compares the manifest creation time with the tracking
// record of the owner. Times are compared in whole seconds. The returned
// record is saved by the caller once all conflicts passed.
func (*Importer) validateMetadata(tx model.Backends, run *importRun) (
	*model.ExporterMetadata, *conflict.ImportConflictError, error,
) {
	lastRun, err := tx.ExporterMetadata.GetByTypeAndOwner(model.ExporterMetadataTypePerUser, run.owner.ID)
	if err != nil {
		return nil, nil, err
	}
	created := run.meta.Created
	if lastRun == nil {
		return &model.ExporterMetadata{
			Type:     model.ExporterMetadataTypePerUser,
			OwnerID:  run.owner.ID,
			Exported: created,
		}, nil, nil
	}

	var found *conflict.ImportConflictError
	stored, incoming := lastRun.Exported.Unix(), created.Unix()
	switch {
	case stored > incoming:
		found = forceable(run, msgManifestOld, conflict.ManifestOld)
	case stored == incoming:
		found = forceable(run, msgManifestSame, conflict.ManifestSame)
	}
	lastRun.Exported = created
	return lastRun, found, nil
}

func forceable(run *importRun, message string, c conflict.Conflict) *conflict.ImportConflictError {
	if run.overrides.IsForced(c) {
		log.WithFields(log.Fields{"owner": run.owner.Key, "conflict": c}).
			Warnf("%s, continuing as forced", message)
		return nil
	}
	return conflict.NewImportConflictError(message, c)
}

// validateConsumer reads the upstream consumer of the manifest and checks
// that it may be bound to the owner.
func (*Importer) validateConsumer(tx model.Backends, run *importRun) (
	*model.UpstreamConsumer, *conflict.ImportConflictError, error,
) {
	rec, err := codec.Consumer.Read(run.dir)
	if err != nil {
		return nil, nil, err
	}
	if rec.UUID == "" {
		return nil, nil, dataFormatError("No ID for upstream subscription management application")
	}
	boundTo, err := tx.Owners.GetByUpstreamUUID(rec.UUID)
	if err != nil {
		return nil, nil, err
	}
	if boundTo != nil && boundTo.Key != run.owner.Key {
		return nil, nil, &DuplicateUpstreamConsumerError{UUID: rec.UUID}
	}

	var found *conflict.ImportConflictError
	if current := run.owner.UpstreamUUID(); current != "" && current != rec.UUID {
		found = forceable(run, msgDistributorConflict, conflict.DistributorConflict)
	}
	return rec.UpstreamConsumer(run.meta), found, nil
}

// bindUpstreamConsumer stores the upstream consumer of the owner together
// with its identity certificate, which gets a fresh serial.
func (*Importer) bindUpstreamConsumer(tx model.Backends, run *importRun, uc *model.UpstreamConsumer) error {
	files, err := codec.JSONFiles(run.dir, codec.SegmentUpstreamConsumer)
	if err != nil {
		return err
	}
	if entries, err := os.ReadDir(codec.Path(run.dir, codec.SegmentUpstreamConsumer)); err == nil {
		for _, e := range entries {
			if !e.IsDir() && !strings.HasSuffix(e.Name(), ".json") {
				log.WithField("file", e.Name()).Warn("extra file found in upstream_consumer directory")
			}
		}
	}
	for _, f := range files {
		rec, err := codec.UpstreamIdentity.ReadFile(f)
		if err != nil {
			return err
		}
		serial := rec.NewSerial()
		if err = tx.Certificates.CreateSerial(serial); err != nil {
			return err
		}
		cert := &model.IdentityCertificate{
			Key:    rec.Key,
			Cert:   rec.Cert,
			Serial: serial,
		}
		if err = tx.Certificates.CreateIdentityCertificate(cert); err != nil {
			return err
		}
		uc.IdentityCertID = &cert.ID
		uc.IdentityCert = cert
	}
	if err = tx.Owners.SetUpstreamConsumer(run.owner.ID, uc); err != nil {
		return err
	}
	run.owner.UpstreamConsumer = uc
	log.WithFields(log.Fields{"owner": run.owner.Key, "upstream": uc.UUID}).Info("bound upstream consumer")
	return nil
}

// importProducts stores the products of the manifest and returns them by id
func importProducts(tx model.Backends, dir string) (map[string]*model.Product, error) {
	records, err := codec.Products.ReadAll(dir)
	if err != nil {
		return nil, err
	}
	products := make(map[string]*model.Product, len(records))
	list := make([]*model.Product, 0, len(records))
	var contents []*model.Content
	seen := make(map[string]bool)
	for _, r := range records {
		p, c := r.Model()
		products[p.ID] = p
		list = append(list, p)
		for _, content := range c {
			if !seen[content.ID] {
				seen[content.ID] = true
				contents = append(contents, content)
			}
		}
	}
	if err = tx.Contents.Upsert(contents); err != nil {
		return nil, err
	}
	if err = tx.Products.Upsert(list); err != nil {
		return nil, err
	}
	log.WithField("products", len(list)).Debug("imported products")
	return products, nil
}

// importSubscriptions builds one subscription per entitlement of the
// manifest. Referenced products must be part of the manifest.
func (*Importer) importSubscriptions(
	tx model.Backends, run *importRun, upstream *model.UpstreamConsumer, products map[string]*model.Product,
) ([]*model.Subscription, error) {
	records, err := codec.Entitlements.ReadAll(run.dir)
	if err != nil {
		return nil, err
	}
	var cdnLabel string
	if run.meta.CdnLabel != "" {
		cdn, err := tx.Cdns.GetByLabel(run.meta.CdnLabel)
		if err != nil {
			return nil, err
		}
		if cdn != nil {
			cdnLabel = cdn.Label
		} else {
			log.WithField("cdn", run.meta.CdnLabel).Warn("manifest references an unknown cdn")
		}
	}

	subs := make([]*model.Subscription, 0, len(records))
	for _, r := range records {
		if r.Pool == nil {
			return nil, dataFormatError("Entitlement %s has no pool", r.ID)
		}
		for _, id := range r.ProductIDs() {
			if _, ok := products[id]; !ok {
				return nil, dataFormatError("Unable to find product with ID: %s", id)
			}
		}
		sub := &model.Subscription{
			ID:                    uuid.NewString(),
			UpstreamPoolID:        r.Pool.ID,
			UpstreamEntitlementID: r.ID,
			UpstreamConsumerID:    upstream.UUID,
			OwnerID:               run.owner.ID,
			ProductID:             r.Pool.ProductID,
			DerivedProductID:      r.Pool.DerivedProductID,
			Quantity:              r.Quantity,
			StartDate:             r.StartDate,
			EndDate:               r.EndDate,
			AccountNumber:         r.Pool.AccountNumber,
			ContractNumber:        r.Pool.ContractNumber,
			OrderNumber:           r.Pool.OrderNumber,
			CdnLabel:              cdnLabel,
		}
		for _, pp := range r.Pool.ProvidedProducts {
			sub.ProvidedProductIDs = append(sub.ProvidedProductIDs, pp.ProductID)
		}
		for _, pp := range r.Pool.DerivedProvidedProducts {
			sub.DerivedProvidedProductIDs = append(sub.DerivedProvidedProductIDs, pp.ProductID)
		}
		for _, b := range r.Pool.Branding {
			sub.Branding = append(sub.Branding, model.Branding(b))
		}
		if len(r.Certificates) > 0 {
			c := r.Certificates[0]
			serial := c.NewSerial()
			if err = tx.Certificates.CreateSerial(serial); err != nil {
				return nil, err
			}
			sub.Certificate = &model.SubscriptionCertificate{
				Key:    c.Key,
				Cert:   c.Cert,
				Serial: serial,
			}
		}
		subs = append(subs, sub)
	}
	return subs, nil
}

func (i *Importer) successRecord(
	run *importRun, upstream *model.UpstreamConsumer, subs []*model.Subscription,
) *model.ImportRecord {
	now := nowOr(i.Now)
	active, expired := false, false
	for _, s := range subs {
		if s.ActiveAt(now) {
			active = true
		} else {
			expired = true
		}
	}

	msg := fmt.Sprintf("%s file imported successfully.", run.owner.Key)
	if !run.overrides.IsEmpty() {
		msg = fmt.Sprintf("%s file imported forcibly.", run.owner.Key)
	}
	record := &model.ImportRecord{
		OwnerID:  run.owner.ID,
		FileName: run.fileName,
	}
	switch {
	case !active:
		record.RecordStatus(model.ImportStatusSuccessWithWarning, msg+" "+msgNoActiveSubscriptions)
	case expired:
		record.RecordStatus(model.ImportStatusSuccessWithWarning, msg+" "+msgInactiveSubscriptions)
	default:
		record.RecordStatus(model.ImportStatusSuccess, msg)
	}
	setGenerated(record, run.meta)
	record.SetUpstreamConsumer(upstreamSnapshot(upstream))
	return record
}

func setGenerated(record *model.ImportRecord, meta *codec.MetaRecord) {
	if meta == nil {
		return
	}
	record.GeneratedBy = meta.PrincipalName
	created := meta.Created
	record.GeneratedDate = &created
}

// recordFailure writes the FAILURE record of an attempt. It runs outside
// the rolled back import transaction.
func (i *Importer) recordFailure(run *importRun, cause error) {
	b := i.store.Backends()
	record := &model.ImportRecord{
		OwnerID:  run.owner.ID,
		FileName: run.fileName,
	}
	record.RecordStatus(model.ImportStatusFailure, cause.Error())
	meta := run.meta
	var ie *ImporterError
	if errors.As(cause, &ie) && ie.Meta != nil {
		meta = ie.Meta
	}
	setGenerated(record, meta)
	if owner, err := b.Owners.GetByID(run.owner.ID); err == nil && owner != nil {
		record.SetUpstreamConsumer(upstreamSnapshot(owner.UpstreamConsumer))
	}
	if err := b.ImportRecords.Create(record); err != nil {
		log.WithError(err).WithField("owner", run.owner.Key).Error("could not record import failure")
	}
}

// classify maps errors from the import transaction onto the error kinds
// callers handle. Typed errors pass through; persistence errors become an
// ImporterError and file errors an ExtractionError.
func classify(err error, meta *codec.MetaRecord) error {
	var (
		conflictErr  *conflict.ImportConflictError
		formatErr    *DataFormatError
		duplicateErr *DuplicateUpstreamConsumerError
		extractErr   *ExtractionError
		importerErr  *ImporterError
		exists       model.AlreadyExistsError
		pathErr      *os.PathError
	)
	switch {
	case errors.As(err, &conflictErr), errors.As(err, &formatErr), errors.As(err, &extractErr):
		return err
	case errors.As(err, &duplicateErr):
		return err
	case errors.As(err, &importerErr):
		if importerErr.Meta == nil {
			importerErr.Meta = meta
		}
		return importerErr
	case errors.As(err, &exists):
		// a concurrent import bound the same upstream consumer first
		return &ImporterError{Message: msgImportFailed, Cause: err, Meta: meta}
	case errors.As(err, &pathErr):
		return &ExtractionError{Message: msgExtractFailed, Cause: err}
	}
	return &ImporterError{Message: msgImportFailed, Cause: err, Meta: meta}
}
