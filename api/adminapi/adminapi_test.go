package adminapi

import (
	"crypto/rand"
	"crypto/rsa"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/candlepin/candlepin-sub033/manifest"
	"github.com/candlepin/candlepin-sub033/manifest/filestore"
	"github.com/candlepin/candlepin-sub033/pki"
	"github.com/candlepin/candlepin-sub033/storage"
	"github.com/candlepin/candlepin-sub033/storage/model"
)

type testServer struct {
	app      *fiber.App
	backends model.Backends
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	store, err := storage.NewStorage(storage.Config{Driver: storage.DriverSQLite, DataDir: t.TempDir()})
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	signer, err := pki.New(key)
	require.NoError(t, err)
	files, err := filestore.NewBadgerStore("", time.Hour)
	require.NoError(t, err)
	t.Cleanup(func() { _ = files.Close() })

	conf := manifest.Config{WorkDir: t.TempDir()}
	m := manifest.NewManager(
		store, manifest.NewImporter(store, signer, conf), manifest.NewExporter(store, signer, conf), files,
		manifest.ManagerConfig{WorkDir: conf.WorkDir},
	)

	app := fiber.New()
	Register(app.Group("/api/v1/admin"), store.Backends(), m, &Options{UsersEnabled: true, WorkDir: t.TempDir()})
	return &testServer{
		app:      app,
		backends: store.Backends(),
	}
}

func (s *testServer) do(t *testing.T, req *http.Request) (int, []byte) {
	t.Helper()
	resp, err := s.app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, body
}

func TestParseOverrides(t *testing.T) {
	app := fiber.New()
	app.Get(
		"/", func(c *fiber.Ctx) error {
			overrides, err := parseOverrides(c)
			if err != nil {
				return c.Status(fiber.StatusBadRequest).JSON(errorInvalidRequest(err.Error()))
			}
			return c.JSON(overrides.List())
		},
	)

	for _, test := range []struct {
		query  string
		status int
		want   []string
	}{
		{"", fiber.StatusOK, []string{}},
		{"?force=true", fiber.StatusOK, []string{"MANIFEST_OLD"}},
		{"?force=false", fiber.StatusOK, []string{}},
		{"?force=SIGNATURE_CONFLICT&force=manifest_same", fiber.StatusOK, []string{"MANIFEST_SAME", "SIGNATURE_CONFLICT"}},
		{"?force=DISTRIBUTOR_CONFLICT,MANIFEST_OLD", fiber.StatusOK, []string{"DISTRIBUTOR_CONFLICT", "MANIFEST_OLD"}},
		{"?force=bogus", fiber.StatusBadRequest, nil},
	} {
		t.Run(
			test.query, func(t *testing.T) {
				resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/"+test.query, nil), -1)
				require.NoError(t, err)
				defer resp.Body.Close()
				require.Equal(t, test.status, resp.StatusCode)
				if test.want == nil {
					return
				}
				var got []string
				require.NoError(t, json.NewDecoder(resp.Body).Decode(&got))
				assert.Equal(t, test.want, got)
			},
		)
	}
}

func TestImportRoutes(t *testing.T) {
	s := newTestServer(t)
	require.NoError(t, s.backends.Owners.Create(&model.Owner{Key: "admin"}))

	status, body := s.do(t, httptest.NewRequest(http.MethodGet, "/api/v1/admin/owners/admin/imports/", nil))
	assert.Equal(t, fiber.StatusOK, status)
	assert.JSONEq(t, `[]`, string(body))

	status, _ = s.do(t, httptest.NewRequest(http.MethodGet, "/api/v1/admin/owners/missing/imports/", nil))
	assert.Equal(t, fiber.StatusNotFound, status)

	status, body = s.do(t, httptest.NewRequest(http.MethodDelete, "/api/v1/admin/owners/admin/imports/", nil))
	assert.Equal(t, fiber.StatusNotFound, status)
	var errResp errorResponse
	require.NoError(t, json.Unmarshal(body, &errResp))
	assert.Equal(t, "No import found for owner admin", errResp.ErrorDescription)

	status, _ = s.do(t, httptest.NewRequest(http.MethodPost, "/api/v1/admin/owners/admin/imports/", nil))
	assert.Equal(t, fiber.StatusBadRequest, status)
}

func TestExportAndJobRoutes(t *testing.T) {
	s := newTestServer(t)

	status, _ := s.do(t, httptest.NewRequest(http.MethodGet, "/api/v1/admin/consumers/missing/export/", nil))
	assert.Equal(t, fiber.StatusNotFound, status)

	status, _ = s.do(
		t, httptest.NewRequest(http.MethodGet, "/api/v1/admin/consumers/missing/export/certificates?serials=x", nil),
	)
	assert.Equal(t, fiber.StatusBadRequest, status)

	status, _ = s.do(t, httptest.NewRequest(http.MethodGet, "/api/v1/admin/jobs/unknown", nil))
	assert.Equal(t, fiber.StatusNotFound, status)

	status, _ = s.do(t, httptest.NewRequest(http.MethodGet, "/api/v1/admin/manifests/unknown", nil))
	assert.Equal(t, fiber.StatusNotFound, status)
}

func TestAuthMiddleware(t *testing.T) {
	s := newTestServer(t)
	_, err := s.backends.Users.Create(model.NewUser{Username: "operator", Password: "secret", DisplayName: "Operator"})
	require.NoError(t, err)

	status, _ := s.do(t, httptest.NewRequest(http.MethodGet, "/api/v1/admin/users/", nil))
	assert.Equal(t, fiber.StatusUnauthorized, status)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/admin/users/", nil)
	req.SetBasicAuth("operator", "wrong")
	status, _ = s.do(t, req)
	assert.Equal(t, fiber.StatusUnauthorized, status)

	req = httptest.NewRequest(http.MethodGet, "/api/v1/admin/users/", nil)
	req.SetBasicAuth("operator", "secret")
	status, body := s.do(t, req)
	assert.Equal(t, fiber.StatusOK, status)
	var users []model.User
	require.NoError(t, json.Unmarshal(body, &users))
	require.Len(t, users, 1)
	assert.Equal(t, "operator", users[0].Username)

	req = httptest.NewRequest(http.MethodPut, "/api/v1/admin/users/operator", strings.NewReader(`{"disabled":true}`))
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	req.SetBasicAuth("operator", "secret")
	status, _ = s.do(t, req)
	require.Equal(t, fiber.StatusOK, status)

	req = httptest.NewRequest(http.MethodGet, "/api/v1/admin/users/", nil)
	req.SetBasicAuth("operator", "secret")
	status, _ = s.do(t, req)
	assert.Equal(t, fiber.StatusForbidden, status)
}

func TestUserRoutes(t *testing.T) {
	s := newTestServer(t)
	post := func(body string) int {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/admin/users/", strings.NewReader(body))
		req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
		req.SetBasicAuth("alice", "secret")
		status, _ := s.do(t, req)
		return status
	}
	// no users yet, so the credentials are not checked
	require.Equal(t, fiber.StatusCreated, post(`{"username":"alice","password":"secret"}`))
	assert.Equal(t, fiber.StatusBadRequest, post(`{"username":"bob"}`))
	assert.Equal(t, fiber.StatusConflict, post(`{"username":"alice","password":"x"}`))

	get := func(username string) int {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/admin/users/"+username, nil)
		req.SetBasicAuth("alice", "secret")
		status, _ := s.do(t, req)
		return status
	}
	assert.Equal(t, fiber.StatusOK, get("alice"))
	assert.Equal(t, fiber.StatusNotFound, get("bob"))

	req := httptest.NewRequest(http.MethodDelete, "/api/v1/admin/users/alice", nil)
	req.SetBasicAuth("alice", "secret")
	status, _ := s.do(t, req)
	assert.Equal(t, fiber.StatusNoContent, status)
	n, err := s.backends.Users.Count()
	require.NoError(t, err)
	assert.Zero(t, n)
}
