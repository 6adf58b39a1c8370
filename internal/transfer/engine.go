// Package transfer stages remote objects on local disk, retrying
// transient failures with bounded exponential backoff and surfacing
// everything else as classified store errors.
package transfer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/docpipe/docpipe/internal/store"
	"github.com/docpipe/docpipe/pkg/logger"
)

const copyBufferSize = 1 << 20 // 1 MiB reads

// Source is the slice of the store the engine needs.
type Source interface {
	Metadata(ctx context.Context, id string) (store.Object, error)
	Open(ctx context.Context, id, exportType string) (io.ReadCloser, error)
}

// Config bounds the three independent retry scopes: metadata lookup,
// stream open and per-chunk reads.
type Config struct {
	Metadata Policy
	Stream   Policy
	Chunk    Policy
}

// DefaultConfig mirrors the operational defaults: 3 metadata attempts
// backing off from 2s, 2 stream-open attempts backing off from 5s with
// a 30s cap, and short capped waits between chunk read retries.
func DefaultConfig() Config {
	return Config{
		Metadata: Policy{MaxAttempts: 3, BaseDelay: 2 * time.Second, MaxDelay: 10 * time.Second},
		Stream:   Policy{MaxAttempts: 2, BaseDelay: 5 * time.Second, MaxDelay: 30 * time.Second},
		Chunk:    Policy{MaxAttempts: 5, BaseDelay: time.Second, MaxDelay: 30 * time.Second},
	}
}

// Engine downloads or format-exports single objects.
type Engine struct {
	source Source
	cfg    Config
	log    zerolog.Logger
}

func NewEngine(source Source, cfg Config) *Engine {
	return &Engine{
		source: source,
		cfg:    cfg,
		log:    logger.Component("transfer"),
	}
}

// Resolve fetches the object's metadata (with retries) and decides
// whether the download needs a format export.
func (e *Engine) Resolve(ctx context.Context, id string) (Resolution, error) {
	obj, err := retryWithBackoff(ctx, e.cfg.Metadata, func() (store.Object, error) {
		return e.source.Metadata(ctx, id)
	})
	if err != nil {
		return Resolution{}, exhaust(err, "metadata", id)
	}

	res := resolveFormat(obj)
	if res.ExportType != "" {
		e.log.Debug().Str("id", id).Str("content_type", obj.ContentType).
			Str("export_type", res.ExportType).Str("final_name", res.FinalName).
			Msg("object requires format export")
	}
	return res, nil
}

// Transfer stages the object's bytes under destDir and returns the
// local path. The destination filename is prefixed with the object id
// so concurrent jobs never collide, and bytes land in a .part file that
// is renamed only on success, so a transfer finishing after its job's
// logical timeout cannot clobber a path another job reuses.
func (e *Engine) Transfer(ctx context.Context, res Resolution, destDir string) (string, error) {
	id := res.Object.ID

	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return "", store.NewError(store.KindUnexpected, "stage", id,
			fmt.Errorf("failed to create destination dir %s: %w", destDir, err))
	}

	destPath := filepath.Join(destDir, uniqueName(id, res.FinalName))

	body, err := retryWithBackoff(ctx, e.cfg.Stream, func() (io.ReadCloser, error) {
		return e.source.Open(ctx, id, res.ExportType)
	})
	if err != nil {
		return "", exhaust(err, "open", id)
	}
	defer body.Close()

	partPath := destPath + ".part"
	out, err := os.Create(partPath)
	if err != nil {
		return "", store.NewError(store.KindUnexpected, "stage", id,
			fmt.Errorf("failed to create %s: %w", partPath, err))
	}

	copied, err := e.copyChunks(ctx, out, body, id)
	if cerr := out.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(partPath)
		var serr *store.Error
		if errors.As(err, &serr) {
			return "", serr
		}
		return "", store.NewError(store.KindUnexpected, "copy", id, err)
	}

	if err := os.Rename(partPath, destPath); err != nil {
		os.Remove(partPath)
		return "", store.NewError(store.KindUnexpected, "stage", id,
			fmt.Errorf("failed to finalize %s: %w", destPath, err))
	}

	e.log.Info().Str("id", id).Str("path", destPath).Int64("bytes", copied).Msg("object staged")
	return destPath, nil
}

// copyChunks streams body to out in fixed-size reads. A failed read is
// retried a small bounded number of times with a short capped backoff;
// these retries belong to the current logical attempt, not the outer
// stream-open policy.
func (e *Engine) copyChunks(ctx context.Context, out *os.File, body io.Reader, id string) (int64, error) {
	buf := make([]byte, copyBufferSize)
	var total int64

	for {
		if err := ctx.Err(); err != nil {
			return total, store.NewError(store.KindTimeout, "copy", id, err)
		}

		n, readErr := e.readChunk(ctx, body, buf, id)
		if n > 0 {
			if _, werr := out.Write(buf[:n]); werr != nil {
				return total, fmt.Errorf("write failed after %d bytes: %w", total, werr)
			}
			total += int64(n)
		}
		if readErr == io.EOF {
			return total, nil
		}
		if readErr != nil {
			return total, readErr
		}
	}
}

func (e *Engine) readChunk(ctx context.Context, body io.Reader, buf []byte, id string) (int, error) {
	delay := e.cfg.Chunk.BaseDelay
	var lastErr error

	for attempt := 1; attempt <= e.cfg.Chunk.MaxAttempts; attempt++ {
		n, err := body.Read(buf)
		if n > 0 || err == nil || err == io.EOF {
			return n, err
		}
		lastErr = err
		if !store.Retryable(err) {
			return 0, err
		}

		e.log.Warn().Err(err).Str("id", id).Int("attempt", attempt).Msg("chunk read failed, retrying")
		select {
		case <-ctx.Done():
			return 0, store.NewError(store.KindTimeout, "copy", id, ctx.Err())
		case <-time.After(delay):
		}
		delay *= 2
		if e.cfg.Chunk.MaxDelay > 0 && delay > e.cfg.Chunk.MaxDelay {
			delay = e.cfg.Chunk.MaxDelay
		}
	}

	return 0, exhaust(lastErr, "copy", id)
}

// uniqueName derives a collision-free staging filename from the object
// id. S3 keys may contain separators, so the id is flattened first.
func uniqueName(id, finalName string) string {
	flat := strings.NewReplacer("/", "_", "\\", "_", ":", "_").Replace(id)
	return flat + "_" + finalName
}

// exhaust converts a still-retryable error left over after the retry
// budget into the terminal exhausted classification.
func exhaust(err error, op, id string) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return store.NewError(store.KindTimeout, op, id, err)
	}
	if store.Retryable(err) {
		return store.NewError(store.KindTransientExhausted, op, id, err)
	}
	var serr *store.Error
	if errors.As(err, &serr) {
		return serr
	}
	return store.NewError(store.KindOf(err), op, id, err)
}
