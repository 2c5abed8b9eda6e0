package candlepin

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/candlepin/candlepin-sub033/api/adminapi"
	"github.com/candlepin/candlepin-sub033/internal/version"
	"github.com/candlepin/candlepin-sub033/manifest"
	"github.com/candlepin/candlepin-sub033/manifest/filestore"
	"github.com/candlepin/candlepin-sub033/pki"
	"github.com/candlepin/candlepin-sub033/storage"
)

func TestServerStatusAndAccessLog(t *testing.T) {
	store, err := storage.NewStorage(storage.Config{Driver: storage.DriverSQLite, DataDir: t.TempDir()})
	require.NoError(t, err)
	defer store.Close()
	signer, err := pki.Load(pki.Config{KeyFile: t.TempDir() + "/signing.pem", AutoGenerateKey: true})
	require.NoError(t, err)
	files, err := filestore.NewBadgerStore("", time.Hour)
	require.NoError(t, err)
	defer files.Close()
	conf := manifest.Config{WorkDir: t.TempDir()}
	m := manifest.NewManager(
		store, manifest.NewImporter(store, signer, conf), manifest.NewExporter(store, signer, conf), files,
		manifest.ManagerConfig{},
	)

	var access bytes.Buffer
	s := NewServer(ServerConf{}, store.Backends(), m, &adminapi.Options{}, &access)
	resp, err := s.server.Test(httptest.NewRequest(http.MethodGet, "/status", nil), -1)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var status struct {
		Version string `json:"version"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&status))
	assert.Equal(t, version.Full(), status.Version)
	assert.Contains(t, access.String(), "/status")
}
