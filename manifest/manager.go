package manifest

import (
	"context"
	"os"
	"sync"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/candlepin/candlepin-sub033/manifest/conflict"
	"github.com/candlepin/candlepin-sub033/manifest/filestore"
	"github.com/candlepin/candlepin-sub033/storage/model"
)

// ErrQueueFull is returned when no more jobs can be accepted
var ErrQueueFull = errors.New("manifest: job queue is full")

type jobFunc func(ctx context.Context, job *model.JobStatus) (string, error)

// Manager runs imports and exports against stored manifest files, either
// directly or as jobs on a bounded worker pool.
type Manager struct {
	Importer *Importer
	Exporter *Exporter
	Files    filestore.Store

	store   Store
	workDir string
	workers int
	queue   chan func(context.Context)
	wg      sync.WaitGroup
	cancel  context.CancelFunc
}

// ManagerConfig configures the job worker pool
type ManagerConfig struct {
	Workers   int
	QueueSize int
	WorkDir   string
}

// NewManager returns a Manager; Start must be called before jobs are run
func NewManager(
	store Store, importer *Importer, exporter *Exporter, files filestore.Store, conf ManagerConfig,
) *Manager {
	if conf.Workers <= 0 {
		conf.Workers = 1
	}
	if conf.QueueSize <= 0 {
		conf.QueueSize = 16
	}
	return &Manager{
		Importer: importer,
		Exporter: exporter,
		Files:    files,
		store:    store,
		workDir:  conf.WorkDir,
		workers:  conf.Workers,
		queue:    make(chan func(context.Context), conf.QueueSize),
	}
}

// Start launches the workers. They stop when ctx is done or Stop is called.
func (m *Manager) Start(ctx context.Context) {
	ctx, m.cancel = context.WithCancel(ctx)
	for range m.workers {
		m.wg.Add(1)
		go func() {
			defer m.wg.Done()
			for {
				select {
				case <-ctx.Done():
					return
				case job := <-m.queue:
					job(ctx)
				}
			}
		}()
	}
}

// Stop stops the workers and waits for running jobs
func (m *Manager) Stop() {
	if m.cancel != nil {
		m.cancel()
	}
	m.wg.Wait()
}

// StoreImport saves an uploaded archive for a later import into ownerKey
func (m *Manager) StoreImport(ctx context.Context, ownerKey, fileName, path string) (*filestore.ManifestFile, error) {
	f, err := filestore.NewFile(filestore.KindImport, ownerKey, fileName, path)
	if err != nil {
		return nil, err
	}
	if err = m.Files.Put(ctx, f); err != nil {
		return nil, err
	}
	return f, nil
}

// ImportStored imports a stored archive. The stored file is removed once
// it was loaded, whatever the outcome of the import.
func (m *Manager) ImportStored(ctx context.Context, id string, overrides conflict.Overrides) (*ImportResult, error) {
	f, err := m.Files.Get(ctx, id)
	if err != nil {
		return nil, &ImporterError{Message: "Could not load stored manifest file for async import", Cause: err}
	}
	if f == nil || f.Kind != filestore.KindImport {
		return nil, model.NotFoundErrorFmt("stored manifest not found: %s", id)
	}
	p, err := f.WriteTemp(m.workDir)
	if err != nil {
		return nil, &ImporterError{Message: "Could not load stored manifest file for async import", Cause: err}
	}
	defer os.Remove(p)
	if err = m.Files.Delete(ctx, id); err != nil {
		log.WithError(err).WithField("manifest", id).Warn("could not delete stored manifest")
	}
	return m.Importer.Import(ctx, f.TargetKey, p, overrides, f.FileName)
}

// ExportStored exports a consumer and keeps the archive for download
func (m *Manager) ExportStored(ctx context.Context, consumerUUID string, opts ExportOptions) (
	*filestore.ManifestFile, error,
) {
	a, err := m.Exporter.Export(ctx, consumerUUID, opts)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := a.Cleanup(); err != nil {
			log.WithError(err).Warn("could not remove export scratch dir")
		}
	}()
	f, err := filestore.NewFile(filestore.KindExport, consumerUUID, a.FileName, a.Path)
	if err != nil {
		return nil, err
	}
	f.Principal = opts.Principal
	if err = m.Files.Put(ctx, f); err != nil {
		return nil, err
	}
	return f, nil
}

// Download returns a stored export, or (nil, nil)
func (m *Manager) Download(ctx context.Context, id string) (*filestore.ManifestFile, error) {
	f, err := m.Files.Get(ctx, id)
	if err != nil || f == nil {
		return nil, err
	}
	if f.Kind != filestore.KindExport {
		return nil, nil
	}
	return f, nil
}

// ImportAsync stores the archive at path and queues its import
func (m *Manager) ImportAsync(
	ctx context.Context, ownerKey, fileName, path string, overrides conflict.Overrides,
) (*model.JobStatus, error) {
	owner, err := m.store.Backends().Owners.Get(ownerKey)
	if err != nil {
		return nil, err
	}
	if owner == nil {
		return nil, model.NotFoundErrorFmt("owner not found: %s", ownerKey)
	}
	f, err := m.StoreImport(ctx, ownerKey, fileName, path)
	if err != nil {
		return nil, err
	}
	job := &model.JobStatus{
		Kind:       model.JobKindImport,
		TargetKey:  ownerKey,
		ManifestID: f.ID,
	}
	err = m.enqueue(
		job, func(ctx context.Context, _ *model.JobStatus) (string, error) {
			res, err := m.ImportStored(ctx, f.ID, overrides)
			if err != nil {
				return "", err
			}
			return res.Record.StatusMessage, nil
		},
	)
	if err != nil {
		_ = m.Files.Delete(ctx, f.ID)
		return nil, err
	}
	return job, nil
}

// ExportAsync queues an export; the finished job references the stored archive
func (m *Manager) ExportAsync(ctx context.Context, consumerUUID string, opts ExportOptions) (*model.JobStatus, error) {
	consumer, err := m.store.Backends().Consumers.Get(consumerUUID)
	if err != nil {
		return nil, err
	}
	if consumer == nil {
		return nil, model.NotFoundErrorFmt("consumer not found: %s", consumerUUID)
	}
	job := &model.JobStatus{
		Kind:      model.JobKindExport,
		TargetKey: consumerUUID,
	}
	err = m.enqueue(
		job, func(ctx context.Context, running *model.JobStatus) (string, error) {
			f, err := m.ExportStored(ctx, consumerUUID, opts)
			if err != nil {
				return "", err
			}
			running.ManifestID = f.ID
			return "Manifest " + f.FileName + " created", nil
		},
	)
	if err != nil {
		return nil, err
	}
	return job, nil
}

// Job returns the status of a job, or (nil, nil)
func (m *Manager) Job(id string) (*model.JobStatus, error) {
	return m.store.Backends().Jobs.Get(id)
}

func (m *Manager) enqueue(job *model.JobStatus, run jobFunc) error {
	jobs := m.store.Backends().Jobs
	job.State = model.JobStateCreated
	if err := jobs.Save(job); err != nil {
		return err
	}
	// the queued function owns a copy; callers keep the CREATED snapshot
	queued := *job
	select {
	case m.queue <- func(ctx context.Context) {
		m.runJob(ctx, &queued, run)
	}:
		return nil
	default:
		job.State = model.JobStateFailed
		job.Result = ErrQueueFull.Error()
		if err := jobs.Save(job); err != nil {
			log.WithError(err).Error("could not update job status")
		}
		return ErrQueueFull
	}
}

func (m *Manager) runJob(ctx context.Context, job *model.JobStatus, run jobFunc) {
	jobs := m.store.Backends().Jobs
	logger := log.WithFields(log.Fields{"job": job.ID, "kind": job.Kind, "target": job.TargetKey})
	job.State = model.JobStateRunning
	if err := jobs.Save(job); err != nil {
		logger.WithError(err).Error("could not update job status")
	}

	result, err := run(ctx, job)
	if err != nil {
		job.State = model.JobStateFailed
		job.Result = err.Error()
		var conflictErr *conflict.ImportConflictError
		if errors.As(err, &conflictErr) {
			job.Conflicts = conflictErr.Tokens()
		}
		logger.WithError(err).Warn("job failed")
	} else {
		job.State = model.JobStateFinished
		job.Result = result
		logger.Info("job finished")
	}
	if err = jobs.Save(job); err != nil {
		logger.WithError(err).Error("could not update job status")
	}
}
