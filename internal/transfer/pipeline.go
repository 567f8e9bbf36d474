// Package transfer moves one inbound file into the object store.
//
// A run is two sequential stages. The download stage streams the source
// into a transient local file; the upload stage sends that file to the
// store, either in one request or as a parallel multipart upload. After a
// successful upload the pipeline mints links and registers a callback
// token. The transient file is deleted on every exit path.
package transfer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/dmitrijs2005/filerelay/internal/common"
	"github.com/dmitrijs2005/filerelay/internal/config"
	"github.com/dmitrijs2005/filerelay/internal/filex"
	"github.com/dmitrijs2005/filerelay/internal/links"
	"github.com/dmitrijs2005/filerelay/internal/logging"
	"github.com/dmitrijs2005/filerelay/internal/metrics"
	"github.com/dmitrijs2005/filerelay/internal/progress"
	"github.com/dmitrijs2005/filerelay/internal/storage"
)

// ObjectStore is the part of the bucket API the upload stage needs.
type ObjectStore interface {
	PutObject(ctx context.Context, key string, body io.Reader, size int64, contentType string) error
	CreateMultipartUpload(ctx context.Context, key, contentType string) (string, error)
	UploadPart(ctx context.Context, key, uploadID string, partNumber int32, body io.Reader, size int64) (string, error)
	CompleteMultipartUpload(ctx context.Context, key, uploadID string, parts []storage.CompletedPart) error
	AbortMultipartUpload(ctx context.Context, key, uploadID string) error
}

type LinkMinter interface {
	Presign(ctx context.Context, key string, ttl time.Duration) (string, error)
	PlayerURL(key, presigned string) (string, bool)
}

type Registrar interface {
	Store(objectKey, ownerID, originalName string) (string, error)
}

type Options struct {
	DownloadDir        string
	MaxFileSize        int64
	MultipartThreshold int64
	PartSize           int64
	Workers            int
	StageTimeout       time.Duration
	PresignTTL         time.Duration
	ProgressInterval   time.Duration
	ProgressTimeout    time.Duration
	Now                func() time.Time
}

func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		DownloadDir:        cfg.DownloadDir,
		MaxFileSize:        cfg.MaxFileSize,
		MultipartThreshold: cfg.MultipartThreshold,
		PartSize:           cfg.PartSize,
		Workers:            cfg.UploadWorkers,
		StageTimeout:       cfg.StageTimeout,
		PresignTTL:         cfg.PresignTTL,
		ProgressInterval:   cfg.ProgressInterval,
		ProgressTimeout:    cfg.ProgressTimeout,
	}
}

// Result is what a successful run hands back. PresignedURL, PlayerURL and
// Token may be empty when the matching step failed after the upload; the
// failures are listed in Warnings.
type Result struct {
	JobID        string
	ObjectKey    string
	OriginalName string
	Size         int64
	ContentType  string
	MediaType    links.MediaType
	PresignedURL string
	PlayerURL    string
	Token        string
	Warnings     []error
}

// Degraded reports whether the object was stored but some link or token
// could not be produced.
func (r *Result) Degraded() bool {
	return len(r.Warnings) > 0
}

type Pipeline struct {
	store    ObjectStore
	links    LinkMinter
	registry Registrar
	log      logging.Logger
	opts     Options
}

func New(store ObjectStore, minter LinkMinter, registry Registrar, log logging.Logger, opts Options) *Pipeline {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Workers < 1 {
		opts.Workers = 1
	}
	if opts.StageTimeout <= 0 {
		opts.StageTimeout = 5 * time.Minute
	}
	if log == nil {
		log = logging.Discard()
	}
	return &Pipeline{store: store, links: minter, registry: registry, log: log, opts: opts}
}

// Run transfers src on behalf of owner. Progress of both stages goes to
// sink. Failures are returned as *Error; a nil error means the object is
// stored even if the result is degraded.
func (p *Pipeline) Run(ctx context.Context, src Source, owner string, sink progress.Sink) (res *Result, err error) {
	job := newJob(src, owner, p.opts.Now())
	log := p.log.With("job", job.ID, "owner", owner, "name", job.SourceName)

	defer func() {
		var terr *Error
		if errors.As(err, &terr) {
			metrics.TransfersTotal.WithLabelValues(outcome(terr)).Inc()
		}
	}()

	if job.DeclaredSize > p.opts.MaxFileSize {
		return nil, &Error{
			Phase: PhasePending,
			Kind:  common.ErrSizeLimitExceeded,
			Err:   fmt.Errorf("declared size %d exceeds limit %d", job.DeclaredSize, p.opts.MaxFileSize),
		}
	}

	job.ObjectKey = ObjectKey(owner, job.SourceName, job.StartedAt)
	log = log.With("key", job.ObjectKey)

	defer func() {
		if rmErr := filex.RemoveIfExists(job.LocalPath); rmErr != nil {
			log.Error(ctx, "failed to remove transient file", "path", job.LocalPath, "err", rmErr)
		}
	}()

	p.setPhase(ctx, log, job, PhaseDownloading)
	size, err := p.download(ctx, log, job, src, sink)
	if err != nil {
		p.fail(ctx, log, job, err)
		return nil, err
	}

	p.setPhase(ctx, log, job, PhaseUploading)
	if err := p.upload(ctx, log, job, size, sink); err != nil {
		p.fail(ctx, log, job, err)
		return nil, err
	}

	p.setPhase(ctx, log, job, PhaseCompleted)
	res = p.finish(ctx, log, job, size)
	if res.Degraded() {
		metrics.TransfersTotal.WithLabelValues("degraded").Inc()
	} else {
		metrics.TransfersTotal.WithLabelValues("completed").Inc()
	}
	return res, nil
}

func (p *Pipeline) download(ctx context.Context, log logging.Logger, job *Job, src Source, sink progress.Sink) (int64, error) {
	started := time.Now()
	defer func() { metrics.StageDuration.WithLabelValues("download").Observe(time.Since(started).Seconds()) }()

	dir, err := filex.EnsureDir(p.opts.DownloadDir)
	if err != nil {
		return 0, &Error{Phase: PhaseDownloading, Kind: common.ErrDownloadFailed, Err: err}
	}
	f, err := os.CreateTemp(dir, "relay-*.part")
	if err != nil {
		return 0, &Error{Phase: PhaseDownloading, Kind: common.ErrDownloadFailed, Err: err}
	}
	job.LocalPath = f.Name()

	stageCtx, cancel := context.WithTimeout(ctx, p.opts.StageTimeout)
	defer cancel()

	rep := p.reporter("Downloading", sink, log)
	// the declared size is untrusted, so the cap is enforced while writing
	lw := &limitWriter{w: f, limit: p.opts.MaxFileSize}
	err = bounded(stageCtx, func() error {
		return src.Download(stageCtx, lw, func(done, total int64) {
			rep.Report(stageCtx, done, total)
		})
	})
	if closeErr := f.Close(); err == nil && closeErr != nil {
		err = closeErr
	}
	if lw.exceeded.Load() {
		if err == nil {
			err = fmt.Errorf("more than %d bytes received", p.opts.MaxFileSize)
		}
		return 0, &Error{Phase: PhaseDownloading, Kind: common.ErrSizeLimitExceeded, Err: err}
	}
	if err != nil {
		return 0, stageError(stageCtx, PhaseDownloading, common.ErrDownloadFailed, err)
	}

	fi, err := os.Stat(job.LocalPath)
	if err != nil {
		return 0, &Error{Phase: PhaseDownloading, Kind: common.ErrDownloadFailed, Err: err}
	}
	size := fi.Size()
	metrics.TransferBytesTotal.WithLabelValues("download").Add(float64(size))

	if size == 0 && job.DeclaredSize > 0 {
		return 0, &Error{
			Phase: PhaseDownloading,
			Kind:  common.ErrDownloadFailed,
			Err:   fmt.Errorf("received 0 of %d declared bytes", job.DeclaredSize),
		}
	}
	if size > p.opts.MaxFileSize {
		return 0, &Error{
			Phase: PhaseDownloading,
			Kind:  common.ErrSizeLimitExceeded,
			Err:   fmt.Errorf("received %d bytes, limit %d", size, p.opts.MaxFileSize),
		}
	}
	if size != job.DeclaredSize {
		log.Warn(ctx, "downloaded size differs from declared", "declared", job.DeclaredSize, "actual", size)
	}

	rep.Report(ctx, size, size)
	return size, nil
}

func (p *Pipeline) upload(ctx context.Context, log logging.Logger, job *Job, size int64, sink progress.Sink) error {
	started := time.Now()
	defer func() { metrics.StageDuration.WithLabelValues("upload").Observe(time.Since(started).Seconds()) }()

	stageCtx, cancel := context.WithTimeout(ctx, p.opts.StageTimeout)
	defer cancel()

	rep := p.reporter("Uploading", sink, log)
	contentType := ContentType(job.SourceName)

	var err error
	if p.useMultipart(job.DeclaredSize, size) {
		err = p.uploadMultipart(stageCtx, log, job, size, contentType, rep)
	} else {
		err = p.uploadSingle(stageCtx, job, size, contentType, rep)
	}
	if err != nil {
		return stageError(stageCtx, PhaseUploading, common.ErrUploadFailed, err)
	}

	metrics.TransferBytesTotal.WithLabelValues("upload").Add(float64(size))
	rep.Report(ctx, size, size)
	return nil
}

// useMultipart: empty files never take the multipart path, and the actual
// size must also exceed the threshold since the declared one is untrusted.
func (p *Pipeline) useMultipart(declared, actual int64) bool {
	return declared > 0 && actual > p.opts.MultipartThreshold && p.opts.PartSize > 0
}

func (p *Pipeline) uploadSingle(ctx context.Context, job *Job, size int64, contentType string, rep *progress.Reporter) error {
	f, err := os.Open(job.LocalPath)
	if err != nil {
		return err
	}
	defer f.Close()

	body := newProgressReader(f, func(done int64) { rep.Report(ctx, done, size) })
	return bounded(ctx, func() error {
		return p.store.PutObject(ctx, job.ObjectKey, body, size, contentType)
	})
}

func (p *Pipeline) finish(ctx context.Context, log logging.Logger, job *Job, size int64) *Result {
	res := &Result{
		JobID:        job.ID,
		ObjectKey:    job.ObjectKey,
		OriginalName: job.SourceName,
		Size:         size,
		ContentType:  ContentType(job.SourceName),
		MediaType:    links.MediaTypeOf(job.ObjectKey),
	}

	u, err := p.links.Presign(ctx, job.ObjectKey, p.opts.PresignTTL)
	if err != nil {
		log.Warn(ctx, "presign failed, returning degraded result", "err", err)
		res.Warnings = append(res.Warnings, err)
	} else {
		res.PresignedURL = u
		if pu, ok := p.links.PlayerURL(job.ObjectKey, u); ok {
			res.PlayerURL = pu
		}
	}

	token, err := p.registry.Store(job.ObjectKey, job.Owner, job.SourceName)
	if err != nil {
		log.Warn(ctx, "callback registration failed", "err", err)
		res.Warnings = append(res.Warnings, fmt.Errorf("register callback: %w", err))
	} else {
		res.Token = token
	}
	return res
}

func (p *Pipeline) reporter(action string, sink progress.Sink, log logging.Logger) *progress.Reporter {
	return progress.NewReporter(action, sink, progress.Options{
		Interval: p.opts.ProgressInterval,
		Timeout:  p.opts.ProgressTimeout,
		Logger:   log,
	})
}

func (p *Pipeline) setPhase(ctx context.Context, log logging.Logger, job *Job, phase Phase) {
	log.Info(ctx, "transfer phase", "from", job.Phase.String(), "phase", phase.String())
	job.Phase = phase
}

func (p *Pipeline) fail(ctx context.Context, log logging.Logger, job *Job, err error) {
	from := job.Phase
	job.Phase = PhaseFailed
	log.Error(ctx, "transfer failed", "from", from.String(), "phase", PhaseFailed.String(), "err", err)
}

// bounded runs fn and waits for it no longer than ctx allows. A source or
// store that ignores cancellation is abandoned rather than waited for.
func bounded(ctx context.Context, fn func() error) error {
	done := make(chan error, 1)
	go func() { done <- fn() }()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func stageError(stageCtx context.Context, phase Phase, kind, err error) *Error {
	if errors.Is(stageCtx.Err(), context.DeadlineExceeded) {
		return &Error{Phase: phase, Kind: common.ErrTransferTimeout, Err: err}
	}
	var terr *Error
	if errors.As(err, &terr) {
		return terr
	}
	return &Error{Phase: phase, Kind: kind, Err: err}
}
