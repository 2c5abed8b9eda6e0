package manifest

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/candlepin/candlepin-sub033/manifest/conflict"
	"github.com/candlepin/candlepin-sub033/manifest/filestore"
	"github.com/candlepin/candlepin-sub033/storage/model"
)

func newManager(t *testing.T, store Store, env *testEnv, conf ManagerConfig) *Manager {
	t.Helper()
	files, err := filestore.NewBadgerStore("", time.Hour)
	require.NoError(t, err)
	t.Cleanup(func() { _ = files.Close() })
	conf.WorkDir = t.TempDir()
	return NewManager(store, env.importer, env.exporter, files, conf)
}

func waitForJob(t *testing.T, m *Manager, id string) *model.JobStatus {
	t.Helper()
	var job *model.JobStatus
	require.Eventually(
		t, func() bool {
			var err error
			job, err = m.Job(id)
			return err == nil && job != nil && job.Done()
		}, 10*time.Second, 20*time.Millisecond,
	)
	return job
}

func TestManagerImportAsync(t *testing.T) {
	env := newEnv(t)
	owner := env.createOwner("admin")
	m := newManager(t, env.downstream, env, ManagerConfig{Workers: 2})
	m.Start(context.Background())
	defer m.Stop()

	path := env.export("dist-1")
	job, err := m.ImportAsync(t.Context(), "admin", "upload.zip", path, noOverrides())
	require.NoError(t, err)
	assert.Equal(t, model.JobStateCreated, job.State)
	assert.Equal(t, model.JobKindImport, job.Kind)

	done := waitForJob(t, m, job.ID)
	assert.Equal(t, model.JobStateFinished, done.State)
	assert.Equal(t, "admin file imported successfully.", done.Result)
	assert.Len(t, env.manifestPools(owner), 2)

	// the stored upload is consumed by the import
	f, err := m.Files.Get(t.Context(), job.ManifestID)
	require.NoError(t, err)
	assert.Nil(t, f)

	records := env.records(owner)
	require.Len(t, records, 1)
	assert.Equal(t, "upload.zip", records[0].FileName)
}

func TestManagerImportAsyncConflict(t *testing.T) {
	env := newEnv(t)
	env.createOwner("admin")
	m := newManager(t, env.downstream, env, ManagerConfig{})
	m.Start(context.Background())
	defer m.Stop()

	path := env.export("dist-1")
	_, err := env.importer.Import(t.Context(), "admin", path, noOverrides(), "")
	require.NoError(t, err)

	job, err := m.ImportAsync(t.Context(), "admin", "again.zip", path, noOverrides())
	require.NoError(t, err)
	done := waitForJob(t, m, job.ID)
	assert.Equal(t, model.JobStateFailed, done.State)
	assert.Equal(t, []string{string(conflict.ManifestSame)}, []string(done.Conflicts))
}

func TestManagerImportAsyncUnknownOwner(t *testing.T) {
	env := newEnv(t)
	m := newManager(t, env.downstream, env, ManagerConfig{})

	_, err := m.ImportAsync(t.Context(), "missing", "x.zip", env.export("dist-1"), noOverrides())
	var notFound model.NotFoundError
	assert.ErrorAs(t, err, &notFound)
}

func TestManagerExportAsync(t *testing.T) {
	env := newEnv(t)
	m := newManager(t, env.upstream, env, ManagerConfig{})
	m.Start(context.Background())
	defer m.Stop()

	job, err := m.ExportAsync(t.Context(), "dist-1", ExportOptions{CdnLabel: "cdn-1", Principal: "admin"})
	require.NoError(t, err)
	done := waitForJob(t, m, job.ID)
	require.Equal(t, model.JobStateFinished, done.State)
	require.NotEmpty(t, done.ManifestID)

	f, err := m.Download(t.Context(), done.ManifestID)
	require.NoError(t, err)
	require.NotNil(t, f)
	assert.Equal(t, "dist-1-export.zip", f.FileName)
	assert.Equal(t, "admin", f.Principal)
	assert.NotEmpty(t, f.Data)

	p, err := f.WriteTemp(t.TempDir())
	require.NoError(t, err)
	env.createOwner("admin")
	_, err = env.importer.Import(t.Context(), "admin", p, noOverrides(), f.FileName)
	require.NoError(t, err)
}

func TestManagerDownloadIgnoresImports(t *testing.T) {
	env := newEnv(t)
	m := newManager(t, env.upstream, env, ManagerConfig{})

	f, err := m.StoreImport(t.Context(), "admin", "upload.zip", env.export("dist-1"))
	require.NoError(t, err)
	got, err := m.Download(t.Context(), f.ID)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestManagerQueueFull(t *testing.T) {
	env := newEnv(t)
	m := newManager(t, env.upstream, env, ManagerConfig{QueueSize: 1})
	// no workers are started, the queue is never drained

	_, err := m.ExportAsync(t.Context(), "dist-1", ExportOptions{})
	require.NoError(t, err)
	_, err = m.ExportAsync(t.Context(), "dist-1", ExportOptions{})
	assert.ErrorIs(t, err, ErrQueueFull)
}
