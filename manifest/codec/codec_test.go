package codec

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/candlepin/candlepin-sub033/storage/model"
)

func TestRegistry(t *testing.T) {
	d, ok := Lookup(SegmentConsumerTypes)
	require.True(t, ok)
	assert.True(t, d.Dir)
	assert.True(t, d.Required)

	d, ok = Lookup(SegmentMeta)
	require.True(t, ok)
	assert.False(t, d.Dir)

	_, ok = Lookup("unknown")
	assert.False(t, ok)

	var required []Segment
	for _, d := range Descriptors() {
		if d.Required {
			required = append(required, d.Segment)
		}
	}
	assert.Equal(t, []Segment{SegmentMeta, SegmentConsumer, SegmentConsumerTypes}, required)
}

func TestDirCodecWriteReadAll(t *testing.T) {
	root := t.TempDir()

	for _, label := range []string{"system", "candlepin"} {
		_, err := ConsumerTypes.Write(root, &ConsumerTypeRecord{Label: label, Manifest: label == "candlepin"})
		require.NoError(t, err)
	}
	// non json files are ignored
	require.NoError(
		t, os.WriteFile(filepath.Join(Path(root, SegmentConsumerTypes), "notes.txt"), []byte("x"), 0o640),
	)
	assert.True(t, Exists(root, SegmentConsumerTypes))
	assert.False(t, Exists(root, SegmentProducts))

	records, err := ConsumerTypes.ReadAll(root)
	require.NoError(t, err)
	expected := []*ConsumerTypeRecord{
		{Label: "candlepin", Manifest: true},
		{Label: "system"},
	}
	if diff := cmp.Diff(expected, records); diff != "" {
		t.Errorf("records mismatch (-want +got):\n%s", diff)
	}

	none, err := Products.ReadAll(root)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestWriteRejectsUnsafeNames(t *testing.T) {
	root := t.TempDir()
	_, err := Products.Write(root, &ProductRecord{ID: "../escape"})
	assert.Error(t, err)
	_, err = Products.Write(root, &ProductRecord{ID: ""})
	assert.Error(t, err)
	_, err = WritePEM(root, SegmentProducts, "a/b", "cert", "")
	assert.Error(t, err)
}

func TestFileCodec(t *testing.T) {
	root := t.TempDir()
	created := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	p, err := Meta.Write(root, &MetaRecord{Version: "4.4.10-1", Created: created, PrincipalName: "admin"})
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, "meta.json"), p)
	assert.True(t, Exists(root, SegmentMeta))

	meta, err := Meta.Read(root)
	require.NoError(t, err)
	assert.Equal(t, "4.4.10-1", meta.Version)
	assert.True(t, created.Equal(meta.Created))
}

func TestIdentityFileNamedBySerial(t *testing.T) {
	root := t.TempDir()
	rec := IdentityCertificateRecord(
		&model.IdentityCertificate{
			ID:     "cert-id",
			Cert:   "CERT",
			Key:    "KEY",
			Serial: &model.CertificateSerial{ID: 42},
		},
	)
	p, err := UpstreamIdentity.Write(root, rec)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, "upstream_consumer", "42.json"), p)
}

func TestRules(t *testing.T) {
	root := t.TempDir()
	_, found, err := ReadRules(root)
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, WriteRules(root, "// Version: 5.1\n"))
	assert.FileExists(t, LegacyRulesPath(root))
	src, found, err := ReadRules(root)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "// Version: 5.1\n", src)
}

func TestProductModelNormalizes(t *testing.T) {
	rec := &ProductRecord{
		ID:         "MKT",
		Name:       "Marketing",
		Multiplier: 10,
		Attributes: map[string]string{"multiplier": "10", "type": "MKT"},
		ProductContent: []ProductContentRecord{
			{Content: ContentRecord{UUID: "upstream-uuid", ID: "c1", Label: "repo"}, Enabled: true},
		},
	}
	p, contents := rec.Model()
	assert.Equal(t, int64(1), p.Multiplier)
	assert.Equal(t, "1", p.Attributes[model.ProductAttributeMultiplier])
	assert.Equal(t, "MKT", p.Attributes[model.ProductAttributeType])
	require.Len(t, contents, 1)
	assert.Empty(t, contents[0].UUID)
	assert.Equal(t, "c1", contents[0].ID)
	assert.Equal(t, []model.ProductContent{{ContentID: "c1", Enabled: true}}, []model.ProductContent(p.Contents))
}

func TestConsumerWebURLFallback(t *testing.T) {
	meta := &MetaRecord{WebAppPrefix: "https://upstream/web"}
	rec := &ConsumerRecord{UUID: "u", Name: "dist", Type: &ConsumerTypeRecord{Label: "candlepin"}}
	uc := rec.UpstreamConsumer(meta)
	assert.Equal(t, "https://upstream/web", uc.WebURL)
	assert.Equal(t, "candlepin", uc.TypeLabel)

	web := "https://own/web"
	rec.URLWeb = &web
	assert.Equal(t, web, rec.UpstreamConsumer(meta).WebURL)
}

func TestEntitlementProductIDs(t *testing.T) {
	rec := &EntitlementRecord{
		Pool: &PoolRecord{
			ProductID:               "MKT",
			DerivedProductID:        "DER",
			ProvidedProducts:        []ProvidedProductRecord{{ProductID: "100"}},
			DerivedProvidedProducts: []ProvidedProductRecord{{ProductID: "200"}},
		},
	}
	assert.Equal(t, []string{"MKT", "DER", "100", "200"}, rec.ProductIDs())
}
