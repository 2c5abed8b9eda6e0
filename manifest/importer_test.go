package manifest

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/candlepin/candlepin-sub033/manifest/archive"
	"github.com/candlepin/candlepin-sub033/manifest/conflict"
	"github.com/candlepin/candlepin-sub033/storage/model"
)

func noOverrides() conflict.Overrides {
	return conflict.NewOverrides()
}

func poolQuantities(pools []model.Pool) map[string]int64 {
	out := make(map[string]int64, len(pools))
	for _, p := range pools {
		out[p.UpstreamPoolID] = p.Quantity
	}
	return out
}

func requireConflict(t *testing.T, err error, want ...conflict.Conflict) {
	t.Helper()
	var conflictErr *conflict.ImportConflictError
	require.ErrorAs(t, err, &conflictErr)
	for _, c := range want {
		assert.Truef(t, conflictErr.Has(c), "expected conflict %s in %v", c, conflictErr.Tokens())
	}
}

// rebuild extracts the archive at path, lets modify change the export
// directory and signs the result again.
func rebuild(t *testing.T, env *testEnv, path string, modify func(exportDir string)) string {
	t.Helper()
	dir := unpack(t, path)
	modify(dir)
	work := t.TempDir()
	out, err := archive.Build(work, dir, filepath.Base(path), "dist-1", env.signer)
	require.NoError(t, err)
	return out
}

func TestImportRoundTrip(t *testing.T) {
	env := newEnv(t)
	owner := env.createOwner("admin")

	res, err := env.importer.Import(t.Context(), "admin", env.export("dist-1"), noOverrides(), "upload.zip")
	require.NoError(t, err)
	assert.Equal(t, model.ImportStatusSuccess, res.Record.Status)
	assert.Equal(t, "admin file imported successfully.", res.Record.StatusMessage)
	assert.Equal(t, "upload.zip", res.Record.FileName)
	assert.Equal(t, "admin", res.Record.GeneratedBy)
	require.NotNil(t, res.Record.GeneratedDate)
	assert.True(t, res.Record.GeneratedDate.Equal(env.exportTime))
	require.NotNil(t, res.Record.UpstreamConsumer)
	assert.Equal(t, "dist-1", res.Record.UpstreamConsumer.Data().UUID)
	assert.Len(t, res.Subscriptions, 2)
	assert.Equal(t, 2, res.Pools.Created)

	pools := env.manifestPools(owner)
	assert.Equal(t, map[string]int64{"P1": 4, "P2": 2}, poolQuantities(pools))
	for _, p := range pools {
		assert.Equal(t, "MKT", p.ProductID)
		assert.Equal(t, "dist-1", p.UpstreamConsumerID)
		assert.Equal(t, "cdn-1", p.CdnLabel)
		assert.NotNil(t, p.CertificateID)
		assert.Equal(t, []string{"100"}, []string(p.ProvidedProductIDs))
	}

	b := env.downstream.Backends()
	bound, err := b.Owners.Get("admin")
	require.NoError(t, err)
	assert.Equal(t, "dist-1", bound.UpstreamUUID())
	require.NotNil(t, bound.UpstreamConsumer.IdentityCertID)

	product, err := b.Products.Get("MKT")
	require.NoError(t, err)
	require.NotNil(t, product)
	assert.Equal(t, []string{"100"}, []string(product.ProvidedProductIDs))
	consumerType, err := b.ConsumerTypes.GetByLabel("candlepin")
	require.NoError(t, err)
	require.NotNil(t, consumerType)
	assert.True(t, consumerType.Manifest)
	cdn, err := b.Cdns.GetByLabel("cdn-1")
	require.NoError(t, err)
	assert.NotNil(t, cdn)
	current, err := b.Rules.Current()
	require.NoError(t, err)
	require.NotNil(t, current)
	assert.Equal(t, "5.1", current.Version)

	records := env.records(owner)
	require.Len(t, records, 1)
	assert.Equal(t, model.ImportStatusSuccess, records[0].Status)
}

func TestImportReusesSubscriptionsOnReimport(t *testing.T) {
	env := newEnv(t)
	owner := env.createOwner("admin")

	first, err := env.importer.Import(t.Context(), "admin", env.export("dist-1"), noOverrides(), "")
	require.NoError(t, err)
	ids := make(map[string]string)
	for _, s := range first.Subscriptions {
		ids[s.UpstreamPoolID] = s.ID
	}

	env.exportTime = env.exportTime.Add(time.Hour)
	second, err := env.importer.Import(t.Context(), "admin", env.export("dist-1"), noOverrides(), "")
	require.NoError(t, err)
	for _, s := range second.Subscriptions {
		assert.Equal(t, ids[s.UpstreamPoolID], s.ID)
	}
	assert.Equal(t, 0, second.Pools.Created)
	assert.Equal(t, 2, second.Pools.Updated)
	assert.Len(t, env.manifestPools(owner), 2)
}

func TestImportSameManifest(t *testing.T) {
	env := newEnv(t)
	owner := env.createOwner("admin")
	path := env.export("dist-1")

	_, err := env.importer.Import(t.Context(), "admin", path, noOverrides(), "")
	require.NoError(t, err)

	_, err = env.importer.Import(t.Context(), "admin", path, noOverrides(), "")
	requireConflict(t, err, conflict.ManifestSame)
	records := env.records(owner)
	require.Len(t, records, 2)
	assert.Equal(t, model.ImportStatusFailure, records[0].Status)
	assert.Equal(t, "Import is the same as existing data", records[0].StatusMessage)

	res, err := env.importer.Import(
		t.Context(), "admin", path, conflict.NewOverrides(conflict.ManifestSame), "",
	)
	require.NoError(t, err)
	assert.Equal(t, "admin file imported forcibly.", res.Record.StatusMessage)
}

func TestImportOlderManifest(t *testing.T) {
	env := newEnv(t)
	env.createOwner("admin")

	_, err := env.importer.Import(t.Context(), "admin", env.export("dist-1"), noOverrides(), "")
	require.NoError(t, err)

	env.exportTime = env.exportTime.Add(-24 * time.Hour)
	older := env.export("dist-1")
	_, err = env.importer.Import(t.Context(), "admin", older, noOverrides(), "")
	requireConflict(t, err, conflict.ManifestOld)

	_, err = env.importer.Import(t.Context(), "admin", older, conflict.NewOverrides(conflict.ManifestOld), "")
	require.NoError(t, err)
}

func TestImportSubSecondDifferenceIsSame(t *testing.T) {
	env := newEnv(t)
	env.createOwner("admin")

	_, err := env.importer.Import(t.Context(), "admin", env.export("dist-1"), noOverrides(), "")
	require.NoError(t, err)

	env.exportTime = env.exportTime.Add(300 * time.Millisecond)
	_, err = env.importer.Import(t.Context(), "admin", env.export("dist-1"), noOverrides(), "")
	requireConflict(t, err, conflict.ManifestSame)
}

func TestImportUpstreamConsumerExclusive(t *testing.T) {
	env := newEnv(t)
	env.createOwner("owner-a")
	ownerB := env.createOwner("owner-b")
	path := env.export("dist-1")

	_, err := env.importer.Import(t.Context(), "owner-a", path, noOverrides(), "")
	require.NoError(t, err)

	_, err = env.importer.Import(t.Context(), "owner-b", path, conflict.NewOverrides(conflict.All()...), "")
	var duplicate *DuplicateUpstreamConsumerError
	require.ErrorAs(t, err, &duplicate)
	assert.Equal(t, "dist-1", duplicate.UUID)
	assert.Empty(t, env.manifestPools(ownerB))
	records := env.records(ownerB)
	require.Len(t, records, 1)
	assert.Equal(t, model.ImportStatusFailure, records[0].Status)

	undo, err := env.importer.UndoImport(t.Context(), "owner-a", "admin")
	require.NoError(t, err)
	assert.Equal(t, model.ImportStatusDelete, undo.Status)
	assert.Equal(t, "Subscriptions deleted by admin", undo.StatusMessage)
	require.NotNil(t, undo.UpstreamConsumer)
	assert.Equal(t, "dist-1", undo.UpstreamConsumer.Data().UUID)

	_, err = env.importer.Import(t.Context(), "owner-b", path, noOverrides(), "")
	require.NoError(t, err)
	assert.Len(t, env.manifestPools(ownerB), 2)
}

func TestUndoImport(t *testing.T) {
	env := newEnv(t)
	owner := env.createOwner("admin")
	path := env.export("dist-1")

	_, err := env.importer.Import(t.Context(), "admin", path, noOverrides(), "")
	require.NoError(t, err)
	_, err = env.importer.UndoImport(t.Context(), "admin", "operator")
	require.NoError(t, err)

	assert.Empty(t, env.manifestPools(owner))
	unbound, err := env.downstream.Backends().Owners.Get("admin")
	require.NoError(t, err)
	assert.Empty(t, unbound.UpstreamUUID())
	metadata, err := env.downstream.Backends().ExporterMetadata.GetByTypeAndOwner(
		model.ExporterMetadataTypePerUser, owner.ID,
	)
	require.NoError(t, err)
	assert.Nil(t, metadata)

	// without the tracking record the same manifest is accepted again
	_, err = env.importer.Import(t.Context(), "admin", path, noOverrides(), "")
	require.NoError(t, err)
}

func TestUndoImportWithoutImport(t *testing.T) {
	env := newEnv(t)
	env.createOwner("admin")

	_, err := env.importer.UndoImport(t.Context(), "admin", "operator")
	var notFound model.NotFoundError
	require.ErrorAs(t, err, &notFound)
	assert.Equal(t, "No import found for owner admin", notFound.Error())

	_, err = env.importer.UndoImport(t.Context(), "missing", "operator")
	assert.ErrorAs(t, err, &notFound)
}

func TestImportWithoutProductsRemovesSubscriptions(t *testing.T) {
	env := newEnv(t)
	owner := env.createOwner("admin")

	_, err := env.importer.Import(t.Context(), "admin", env.export("dist-1"), noOverrides(), "")
	require.NoError(t, err)
	require.Len(t, env.manifestPools(owner), 2)

	env.exportTime = env.exportTime.Add(time.Hour)
	path := env.export("dist-2")
	_, err = env.importer.Import(t.Context(), "admin", path, noOverrides(), "")
	requireConflict(t, err, conflict.DistributorConflict)

	res, err := env.importer.Import(
		t.Context(), "admin", path, conflict.NewOverrides(conflict.DistributorConflict), "",
	)
	require.NoError(t, err)
	assert.Equal(t, model.ImportStatusSuccessWithWarning, res.Record.Status)
	assert.Equal(
		t, "admin file imported forcibly. No active subscriptions found in the file.", res.Record.StatusMessage,
	)
	assert.Empty(t, env.manifestPools(owner))
	assert.Equal(t, int64(2), res.Pools.Deleted)

	bound, err := env.downstream.Backends().Owners.Get("admin")
	require.NoError(t, err)
	assert.Equal(t, "dist-2", bound.UpstreamUUID())
}

func TestImportSignature(t *testing.T) {
	env := newEnv(t)
	owner := env.createOwner("admin")
	tampered := rewriteInner(
		t, env.export("dist-1"), func(data []byte) []byte {
			out := append([]byte(nil), data...)
			// the last byte belongs to the archive comment
			out[len(out)-1] ^= 0x01
			return out
		},
	)

	_, err := env.importer.Import(t.Context(), "admin", tampered, noOverrides(), "")
	requireConflict(t, err, conflict.SignatureConflict)
	assert.Empty(t, env.manifestPools(owner))

	_, err = env.importer.Import(
		t.Context(), "admin", tampered, conflict.NewOverrides(conflict.SignatureConflict), "",
	)
	require.NoError(t, err)
	assert.Len(t, env.manifestPools(owner), 2)
}

func TestImportSubscriptionWarnings(t *testing.T) {
	for _, test := range []struct {
		name    string
		now     time.Time
		status  model.ImportStatus
		message string
	}{
		{
			name:    "all active",
			now:     importTime,
			status:  model.ImportStatusSuccess,
			message: "admin file imported successfully.",
		},
		{
			name:    "one expired",
			now:     time.Date(2028, 1, 1, 0, 0, 0, 0, time.UTC),
			status:  model.ImportStatusSuccessWithWarning,
			message: "admin file imported successfully. One or more inactive subscriptions found in the file.",
		},
		{
			name:    "all expired",
			now:     time.Date(2031, 1, 1, 0, 0, 0, 0, time.UTC),
			status:  model.ImportStatusSuccessWithWarning,
			message: "admin file imported successfully. No active subscriptions found in the file.",
		},
	} {
		t.Run(
			test.name, func(t *testing.T) {
				env := newEnv(t)
				env.createOwner("admin")
				env.importer.Now = func() time.Time { return test.now }

				res, err := env.importer.Import(t.Context(), "admin", env.export("dist-1"), noOverrides(), "")
				require.NoError(t, err)
				assert.Equal(t, test.status, res.Record.Status)
				assert.Equal(t, test.message, res.Record.StatusMessage)
			},
		)
	}
}

func TestImportMissingProductRollsBack(t *testing.T) {
	env := newEnv(t)
	owner := env.createOwner("admin")
	path := rebuild(
		t, env, env.export("dist-1"), func(dir string) {
			require.NoError(t, os.Remove(filepath.Join(dir, "products", "MKT.json")))
		},
	)

	_, err := env.importer.Import(t.Context(), "admin", path, noOverrides(), "")
	var formatErr *DataFormatError
	require.ErrorAs(t, err, &formatErr)
	assert.Equal(t, "Unable to find product with ID: MKT", formatErr.Message)

	records := env.records(owner)
	require.Len(t, records, 1)
	assert.Equal(t, model.ImportStatusFailure, records[0].Status)
	assert.Equal(t, "Unable to find product with ID: MKT", records[0].StatusMessage)
	assert.Equal(t, "admin", records[0].GeneratedBy)

	b := env.downstream.Backends()
	unbound, err := b.Owners.Get("admin")
	require.NoError(t, err)
	assert.Empty(t, unbound.UpstreamUUID())
	metadata, err := b.ExporterMetadata.GetByTypeAndOwner(model.ExporterMetadataTypePerUser, owner.ID)
	require.NoError(t, err)
	assert.Nil(t, metadata)
	product, err := b.Products.Get("100")
	require.NoError(t, err)
	assert.Nil(t, product)
}

func TestImportMissingConsumerTypes(t *testing.T) {
	env := newEnv(t)
	env.createOwner("admin")
	path := rebuild(
		t, env, env.export("dist-1"), func(dir string) {
			require.NoError(t, os.RemoveAll(filepath.Join(dir, "consumer_types")))
		},
	)

	_, err := env.importer.Import(t.Context(), "admin", path, noOverrides(), "")
	var importerErr *ImporterError
	require.ErrorAs(t, err, &importerErr)
	assert.Equal(t, "The archive does not contain the required consumer_types directory", importerErr.Message)
}

func TestImportInvalidArchives(t *testing.T) {
	env := newEnv(t)
	env.createOwner("admin")

	_, err := env.importer.Import(t.Context(), "admin", filepath.Join(t.TempDir(), "none.zip"), noOverrides(), "")
	var importerErr *ImporterError
	require.ErrorAs(t, err, &importerErr)
	assert.Equal(t, "Uploaded manifest file does not exist.", importerErr.Message)

	garbage := filepath.Join(t.TempDir(), "garbage.zip")
	require.NoError(t, os.WriteFile(garbage, []byte("not a zip"), 0o600))
	_, err = env.importer.Import(t.Context(), "admin", garbage, noOverrides(), "")
	var extractErr *ExtractionError
	assert.ErrorAs(t, err, &extractErr)

	_, err = env.importer.Import(t.Context(), "missing", garbage, noOverrides(), "")
	var notFound model.NotFoundError
	assert.ErrorAs(t, err, &notFound)
}

func TestImportRejectsUnsignedOuterEntries(t *testing.T) {
	env := newEnv(t)
	owner := env.createOwner("admin")
	path := addOuterEntry(t, env.export("dist-1"), "export/products/EVIL.json", `{"id":"EVIL"}`)

	_, err := env.importer.Import(t.Context(), "admin", path, noOverrides(), "")
	var extractErr *ExtractionError
	require.ErrorAs(t, err, &extractErr)

	product, err := env.downstream.Backends().Products.Get("EVIL")
	require.NoError(t, err)
	assert.Nil(t, product)
	assert.Empty(t, env.manifestPools(owner))
	records := env.records(owner)
	require.Len(t, records, 1)
	assert.Equal(t, model.ImportStatusFailure, records[0].Status)
}

func TestImportReportsAllConflictsTogether(t *testing.T) {
	env := newEnv(t)
	owner := env.createOwner("admin")

	_, err := env.importer.Import(t.Context(), "admin", env.export("dist-1"), noOverrides(), "")
	require.NoError(t, err)

	path := env.export("dist-2")
	_, err = env.importer.Import(t.Context(), "admin", path, noOverrides(), "")
	var conflictErr *conflict.ImportConflictError
	require.ErrorAs(t, err, &conflictErr)
	assert.ElementsMatch(
		t, []string{string(conflict.ManifestSame), string(conflict.DistributorConflict)}, conflictErr.Tokens(),
	)
	assert.Len(t, env.manifestPools(owner), 2)

	_, err = env.importer.Import(
		t.Context(), "admin", path, conflict.NewOverrides(conflict.ManifestSame), "",
	)
	requireConflict(t, err, conflict.DistributorConflict)

	_, err = env.importer.Import(
		t.Context(), "admin", path, conflict.NewOverrides(conflict.ManifestSame, conflict.DistributorConflict), "",
	)
	require.NoError(t, err)
	bound, err := env.downstream.Backends().Owners.Get("admin")
	require.NoError(t, err)
	assert.Equal(t, "dist-2", bound.UpstreamUUID())
}

func TestImportReplacesRulesOfSameVersion(t *testing.T) {
	env := newEnv(t)
	env.createOwner("admin")
	b := env.downstream.Backends()
	require.NoError(t, b.Rules.Save(&model.Rules{Version: "5.1", Source: "// Version: 5.1\n"}))

	_, err := env.importer.Import(t.Context(), "admin", env.export("dist-1"), noOverrides(), "")
	require.NoError(t, err)
	current, err := b.Rules.Current()
	require.NoError(t, err)
	require.NotNil(t, current)
	assert.Equal(t, "5.1", current.Version)
	assert.Equal(t, testRules, current.Source)
}
