package manifest

import (
	"crypto/rand"
	"crypto/rsa"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/klauspost/compress/zip"
	"github.com/stretchr/testify/require"

	"github.com/candlepin/candlepin-sub033/manifest/archive"
	"github.com/candlepin/candlepin-sub033/pki"
	"github.com/candlepin/candlepin-sub033/storage"
	"github.com/candlepin/candlepin-sub033/storage/model"
)

const testRules = "// Version: 5.1\nvar rules = {};\n"

var (
	startDate = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	longEnd   = time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)
	shortEnd  = time.Date(2027, 1, 1, 0, 0, 0, 0, time.UTC)
	// both test subscriptions are active at importTime
	importTime = time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
)

type testEnv struct {
	t          *testing.T
	upstream   *storage.Storage
	downstream *storage.Storage
	signer     *pki.Service
	exporter   *Exporter
	importer   *Importer
	exportTime time.Time
}

func newStorage(t *testing.T) *storage.Storage {
	t.Helper()
	s, err := storage.NewStorage(storage.Config{Driver: storage.DriverSQLite, DataDir: t.TempDir()})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func newEnv(t *testing.T) *testEnv {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	signer, err := pki.New(key)
	require.NoError(t, err)

	env := &testEnv{
		t:          t,
		upstream:   newStorage(t),
		downstream: newStorage(t),
		signer:     signer,
		exportTime: time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC),
	}
	conf := Config{
		WorkDir: t.TempDir(),
		WebURL:  "https://upstream.example.com/web",
		APIURL:  "https://upstream.example.com/api",
	}
	env.exporter = NewExporter(env.upstream, signer, conf)
	env.exporter.Now = func() time.Time { return env.exportTime }
	env.importer = NewImporter(env.downstream, signer, conf)
	env.importer.Now = func() time.Time { return importTime }
	seedUpstream(t, env.upstream.Backends())
	return env
}

func createCertSerial(t *testing.T, b model.Backends) *model.CertificateSerial {
	t.Helper()
	expiration := longEnd
	serial := &model.CertificateSerial{Expiration: &expiration}
	require.NoError(t, b.Certificates.CreateSerial(serial))
	return serial
}

// seedUpstream creates owner upstream-org with distributor consumer
// dist-1 holding entitlements E1 (pool P1) and E2 (pool P2), and consumer
// dist-2 without entitlements.
func seedUpstream(t *testing.T, b model.Backends) {
	t.Helper()
	require.NoError(t, b.Rules.Save(&model.Rules{Version: "5.1", Source: testRules}))
	require.NoError(
		t, b.ConsumerTypes.Upsert(
			[]*model.ConsumerType{
				{Label: "system"},
				{Label: "candlepin", Manifest: true},
			},
		),
	)
	require.NoError(t, b.Cdns.Upsert([]*model.Cdn{{Label: "cdn-1", Name: "CDN", URL: "https://cdn.example.com"}}))
	require.NoError(
		t, b.DistributorVersions.Upsert(
			[]*model.DistributorVersion{
				{Name: "sat-6.2", DisplayName: "Satellite 6.2", Capabilities: []string{"cert_v3", "ram"}},
			},
		),
	)
	owner := &model.Owner{Key: "upstream-org", DisplayName: "Upstream"}
	require.NoError(t, b.Owners.Create(owner))

	require.NoError(
		t, b.Contents.Upsert(
			[]*model.Content{
				{ID: "c1", Type: "yum", Label: "repo", Name: "Repo", Vendor: "vendor", ContentURL: "/content/repo"},
			},
		),
	)
	require.NoError(
		t, b.Products.Upsert(
			[]*model.Product{
				{
					ID:                 "MKT",
					Name:               "Marketing",
					Multiplier:         2,
					Attributes:         map[string]any{model.ProductAttributeMultiplier: "2"},
					ProvidedProductIDs: []string{"100"},
					Contents:           []model.ProductContent{{ContentID: "c1", Enabled: true}},
				},
				{ID: "100", Name: "Engineering"},
			},
		),
	)
	require.NoError(t, b.Certificates.SaveProductCertificate(&model.ProductCertificate{ProductID: "100", Cert: "PRODUCT CERT"}))

	for _, uuid := range []string{"dist-1", "dist-2"} {
		identity := &model.IdentityCertificate{Key: "ID KEY " + uuid, Cert: "ID CERT " + uuid, Serial: createCertSerial(t, b)}
		require.NoError(t, b.Certificates.CreateIdentityCertificate(identity))
		require.NoError(
			t, b.Consumers.Create(
				&model.Consumer{
					UUID:           uuid,
					Name:           "distributor " + uuid,
					TypeLabel:      "candlepin",
					OwnerID:        owner.ID,
					IdentityCertID: &identity.ID,
				},
			),
		)
	}

	for _, p := range []struct {
		poolID, entID string
		quantity      int64
		consumed      int64
		end           time.Time
	}{
		{"P1", "E1", 20, 4, longEnd},
		{"P2", "E2", 10, 2, shortEnd},
	} {
		end := p.end
		pool := &model.Pool{
			ID:                 p.poolID,
			OwnerID:            owner.ID,
			ProductID:          "MKT",
			ProvidedProductIDs: []string{"100"},
			Quantity:           p.quantity,
			StartDate:          startDate,
			EndDate:            &end,
			ContractNumber:     "contract-" + p.poolID,
			Branding:           []model.Branding{{ProductID: "100", Type: "OS", Name: "Branded OS"}},
		}
		require.NoError(t, b.Pools.Save(pool))
		ent := &model.Entitlement{ID: p.entID, ConsumerUUID: "dist-1", PoolID: pool.ID, Quantity: p.consumed}
		require.NoError(t, b.Entitlements.Create(ent))
		require.NoError(
			t, b.Certificates.CreateEntitlementCertificate(
				&model.EntitlementCertificate{
					Key:           "ENT KEY " + p.entID,
					Cert:          "ENT CERT " + p.entID,
					EntitlementID: ent.ID,
					Serial:        createCertSerial(t, b),
				},
			),
		)
	}
}

func (env *testEnv) export(consumerUUID string) string {
	env.t.Helper()
	a, err := env.exporter.Export(
		env.t.Context(), consumerUUID, ExportOptions{CdnLabel: "cdn-1", Principal: "admin"},
	)
	require.NoError(env.t, err)
	env.t.Cleanup(func() { _ = a.Cleanup() })
	return a.Path
}

func (env *testEnv) createOwner(key string) *model.Owner {
	env.t.Helper()
	owner := &model.Owner{Key: key, DisplayName: key}
	require.NoError(env.t, env.downstream.Backends().Owners.Create(owner))
	return owner
}

func (env *testEnv) records(owner *model.Owner) []model.ImportRecord {
	env.t.Helper()
	records, err := env.downstream.Backends().ImportRecords.ListByOwner(owner.ID)
	require.NoError(env.t, err)
	return records
}

func (env *testEnv) manifestPools(owner *model.Owner) []model.Pool {
	env.t.Helper()
	pools, err := env.downstream.Backends().Pools.ListFromManifest(owner.ID)
	require.NoError(env.t, err)
	return pools
}

// rewriteInner copies the outer archive at path, passing the inner
// archive through modify.
func rewriteInner(t *testing.T, path string, modify func([]byte) []byte) string {
	t.Helper()
	return copyOuter(t, path, modify, nil)
}

// addOuterEntry copies the outer archive at path and appends an entry that
// is not covered by the signature.
func addOuterEntry(t *testing.T, path, name, content string) string {
	t.Helper()
	return copyOuter(t, path, nil, map[string]string{name: content})
}

func copyOuter(t *testing.T, path string, modifyInner func([]byte) []byte, extra map[string]string) string {
	t.Helper()
	zr, err := zip.OpenReader(path)
	require.NoError(t, err)
	defer zr.Close()

	out := filepath.Join(t.TempDir(), filepath.Base(path))
	f, err := os.Create(out)
	require.NoError(t, err)
	zw := zip.NewWriter(f)
	write := func(name string, data []byte) {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = w.Write(data)
		require.NoError(t, err)
	}
	for _, entry := range zr.File {
		r, err := entry.Open()
		require.NoError(t, err)
		data, err := io.ReadAll(r)
		require.NoError(t, err)
		require.NoError(t, r.Close())
		if entry.Name == archive.InnerArchiveName && modifyInner != nil {
			data = modifyInner(data)
		}
		write(entry.Name, data)
	}
	for name, content := range extra {
		write(name, []byte(content))
	}
	require.NoError(t, zw.Close())
	require.NoError(t, f.Close())
	return out
}
