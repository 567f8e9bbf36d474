package transfer

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/dmitrijs2005/filerelay/internal/logging"
	"github.com/dmitrijs2005/filerelay/internal/metrics"
	"github.com/dmitrijs2005/filerelay/internal/progress"
	"github.com/dmitrijs2005/filerelay/internal/storage"
)

// abortTimeout bounds the best-effort abort after a failed or timed out
// multipart upload.
const abortTimeout = 30 * time.Second

// drainTimeout is how long parts still in flight after a timeout get to
// finish before the session is aborted. A part completing after the abort
// is kept by the store as an orphan.
const drainTimeout = 10 * time.Second

// part is the byte range [Start, End) of the file sent as PartNumber.
type part struct {
	Number int32
	Start  int64
	End    int64
}

func (p part) Size() int64 { return p.End - p.Start }

// planParts splits size bytes into contiguous parts of partSize, the last
// one holding the remainder.
func planParts(size, partSize int64) []part {
	if size <= 0 || partSize <= 0 {
		return nil
	}
	n := (size + partSize - 1) / partSize
	parts := make([]part, 0, n)
	for i := int64(0); i < n; i++ {
		start := i * partSize
		end := min(start+partSize, size)
		parts = append(parts, part{Number: int32(i + 1), Start: start, End: end})
	}
	return parts
}

func (p *Pipeline) uploadMultipart(ctx context.Context, log logging.Logger, job *Job, size int64, contentType string, rep *progress.Reporter) error {
	parts := planParts(size, p.opts.PartSize)

	uploadID, err := p.store.CreateMultipartUpload(ctx, job.ObjectKey, contentType)
	if err != nil {
		return err
	}
	log = log.With("upload_id", uploadID, "parts", len(parts))
	log.Debug(ctx, "multipart upload started")

	f, err := os.Open(job.LocalPath)
	if err != nil {
		p.abort(ctx, log, job.ObjectKey, uploadID)
		return err
	}
	defer f.Close()

	etags := make([]string, len(parts))
	var uploaded atomic.Int64

	workersDone := make(chan struct{})
	err = bounded(ctx, func() error {
		defer close(workersDone)
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(p.opts.Workers)

		for i, pt := range parts {
			if gctx.Err() != nil {
				break
			}
			g.Go(func() error {
				body := io.NewSectionReader(f, pt.Start, pt.Size())
				etag, err := p.store.UploadPart(gctx, job.ObjectKey, uploadID, pt.Number, body, pt.Size())
				if err != nil {
					metrics.MultipartPartsTotal.WithLabelValues("failed").Inc()
					return fmt.Errorf("part %d: %w", pt.Number, err)
				}
				metrics.MultipartPartsTotal.WithLabelValues("uploaded").Inc()
				etags[i] = etag
				rep.Report(ctx, uploaded.Add(pt.Size()), size)
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return err
		}
		// the loop stops scheduling once gctx is done, so a cancelled
		// parent can leave parts unsent without any part failing
		return ctx.Err()
	})
	if err != nil {
		drain(ctx, log, workersDone)
		p.abort(ctx, log, job.ObjectKey, uploadID)
		return err
	}

	completed := make([]storage.CompletedPart, len(parts))
	for i, pt := range parts {
		completed[i] = storage.CompletedPart{PartNumber: pt.Number, ETag: etags[i]}
	}

	err = bounded(ctx, func() error {
		return p.store.CompleteMultipartUpload(ctx, job.ObjectKey, uploadID, completed)
	})
	if err != nil {
		p.abort(ctx, log, job.ObjectKey, uploadID)
		return err
	}
	return nil
}

// drain waits for abandoned part uploads to return.
func drain(ctx context.Context, log logging.Logger, done <-chan struct{}) {
	t := time.NewTimer(drainTimeout)
	defer t.Stop()

	select {
	case <-done:
	case <-t.C:
		log.Warn(ctx, "parts still in flight at abort", "waited", drainTimeout.String())
	}
}

// abort uses its own deadline because ctx is usually already done here.
func (p *Pipeline) abort(ctx context.Context, log logging.Logger, key, uploadID string) {
	abortCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), abortTimeout)
	defer cancel()

	if err := p.store.AbortMultipartUpload(abortCtx, key, uploadID); err != nil {
		log.Error(ctx, "multipart abort failed", "err", err)
		return
	}
	log.Info(ctx, "multipart upload aborted")
}
