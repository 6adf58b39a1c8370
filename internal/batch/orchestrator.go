// Package batch runs the transfer-extract-analyze pipeline over fixed
// batches of remote objects: sequential across batches, bounded
// concurrency within one, failures contained at the job level.
package batch

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/docpipe/docpipe/internal/analysis"
	"github.com/docpipe/docpipe/internal/extract"
	"github.com/docpipe/docpipe/internal/report"
	"github.com/docpipe/docpipe/internal/store"
	"github.com/docpipe/docpipe/internal/tokenize"
	"github.com/docpipe/docpipe/internal/transfer"
	"github.com/docpipe/docpipe/pkg/logger"
)

// Transferrer is the transfer engine surface the orchestrator consumes.
type Transferrer interface {
	Resolve(ctx context.Context, id string) (transfer.Resolution, error)
	Transfer(ctx context.Context, res transfer.Resolution, destDir string) (string, error)
}

// Extractor turns a staged file into analyzable content.
type Extractor func(path string, maxChars int) (extract.Content, error)

// Options bound the orchestrator's behavior. All fields are externally
// supplied; Validate is called before any batch runs.
type Options struct {
	BatchSize     int
	Concurrency   int // max in-flight jobs per batch; 0 means BatchSize
	JobTimeout    time.Duration
	StagingDir    string
	MaxCharBudget int
	ChunkSize     int // tokens per chunk; 0 disables chunking
}

func (o Options) validate() error {
	if o.BatchSize <= 0 {
		return fmt.Errorf("batch size must be positive, got %d", o.BatchSize)
	}
	if o.JobTimeout <= 0 {
		return fmt.Errorf("job timeout must be positive, got %s", o.JobTimeout)
	}
	if o.StagingDir == "" {
		return fmt.Errorf("staging dir must be provided")
	}
	return nil
}

// Orchestrator wires the transfer engine to the analysis and reporting
// stages and owns batch lifecycle, including staged-file cleanup.
type Orchestrator struct {
	engine       Transferrer
	extractor    Extractor
	analyzer     analysis.Analyzer
	reporter     analysis.Reporter
	consolidator *report.Consolidator
	opts         Options
	log          zerolog.Logger
}

func NewOrchestrator(engine Transferrer, analyzer analysis.Analyzer, reporter analysis.Reporter, consolidator *report.Consolidator, opts Options) *Orchestrator {
	return &Orchestrator{
		engine:       engine,
		extractor:    extract.File,
		analyzer:     analyzer,
		reporter:     reporter,
		consolidator: consolidator,
		opts:         opts,
		log:          logger.Component("batch"),
	}
}

// Process partitions objects into batches and runs them in order. One
// job's failure never aborts its siblings, and one batch's failure
// never aborts later batches; the returned Run always carries one
// fragment per batch. The run's staging subtree is removed on every
// exit path.
func (o *Orchestrator) Process(ctx context.Context, objects []store.Object) (*Run, error) {
	if err := o.opts.validate(); err != nil {
		return nil, err
	}
	if len(objects) == 0 {
		return nil, fmt.Errorf("no objects to process")
	}

	runStaging := filepath.Join(o.opts.StagingDir, fmt.Sprintf("run_%s", time.Now().Format("20060102_150405")))
	if err := os.MkdirAll(runStaging, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create staging dir %s: %w", runStaging, err)
	}
	// A transfer finishing after its logical timeout may still drop a
	// file here; removing the whole run subtree keeps the cleanup
	// invariant regardless.
	defer func() {
		if err := os.RemoveAll(runStaging); err != nil {
			o.log.Warn().Err(err).Str("dir", runStaging).Msg("failed to remove staging dir")
		}
	}()

	totalBatches := (len(objects) + o.opts.BatchSize - 1) / o.opts.BatchSize
	run := &Run{Batches: make([]Result, 0, totalBatches)}

	for start := 0; start < len(objects); start += o.opts.BatchSize {
		end := start + o.opts.BatchSize
		if end > len(objects) {
			end = len(objects)
		}
		number := start/o.opts.BatchSize + 1

		o.log.Info().Int("batch", number).Int("of", totalBatches).
			Int("objects", end-start).Msg("starting batch")

		result := o.processBatch(ctx, number, objects[start:end], runStaging)
		run.Batches = append(run.Batches, result)

		o.log.Info().Int("batch", number).
			Int("succeeded", len(result.Succeeded)).
			Int("failed", len(result.Failed)).
			Msg("batch finished")
	}

	fragments := make([]report.Fragment, 0, len(run.Batches))
	for _, b := range run.Batches {
		fragments = append(fragments, b.Fragment)
	}
	path, err := o.consolidator.Consolidate(fragments)
	if err != nil {
		// Batch work is done and the fragments are in the Run; the
		// failed write is reported, not compounded.
		return run, fmt.Errorf("report consolidation failed: %w", err)
	}
	run.ReportPath = path

	return run, nil
}

// processBatch runs one batch's jobs concurrently, waits for all of
// them at the barrier, invokes the reporting stage, and removes the
// batch's staged files whatever else happened.
func (o *Orchestrator) processBatch(ctx context.Context, number int, objects []store.Object, runStaging string) Result {
	result := Result{Number: number}
	batchDir := filepath.Join(runStaging, fmt.Sprintf("batch_%d", number))

	defer func() {
		if err := os.RemoveAll(batchDir); err != nil {
			o.log.Warn().Err(err).Str("dir", batchDir).Msg("failed to clean up batch staging dir")
		}
	}()

	jobs := make([]*Job, len(objects))
	analyses := make([]analysis.Result, len(objects)) // index-aligned with jobs

	limit := o.opts.Concurrency
	if limit <= 0 {
		limit = o.opts.BatchSize
	}

	g := &errgroup.Group{}
	g.SetLimit(limit)
	for i, obj := range objects {
		job := &Job{Object: obj, BatchNumber: number, Status: StatusPending}
		jobs[i] = job

		idx := i
		g.Go(func() error {
			res, ok := o.runJob(ctx, job, batchDir)
			if ok {
				analyses[idx] = res
			}
			// Job failures are recorded on the job, never propagated,
			// so one object cannot abort its siblings.
			return nil
		})
	}
	_ = g.Wait() // jobs record failures on themselves and return nil

	for i, job := range jobs {
		if job.Status == StatusAnalyzed {
			result.Succeeded = append(result.Succeeded, job)
			result.Analyses = append(result.Analyses, analyses[i])
		} else {
			result.Failed = append(result.Failed, job)
		}
	}

	result.Fragment = o.buildFragment(ctx, number, result.Analyses, len(objects))
	return result
}

// runJob drives one object through the job state machine. The returned
// bool reports whether an analysis result was produced.
func (o *Orchestrator) runJob(ctx context.Context, job *Job, batchDir string) (res analysis.Result, ok bool) {
	job.StartedAt = time.Now()
	defer func() {
		job.FinishedAt = time.Now()
		if r := recover(); r != nil {
			job.Status = StatusFailed
			job.Err = fmt.Errorf("job panicked: %v", r)
			o.log.Error().Int("batch", job.BatchNumber).Str("object", job.Object.ID).
				Str("name", job.Object.Name).Interface("panic", r).Msg("job panicked")
			ok = false
		}
	}()

	jobCtx, cancel := context.WithTimeout(ctx, o.opts.JobTimeout)
	defer cancel()

	job.Status = StatusTransferring
	path, err := o.transferWithTimeout(jobCtx, job, batchDir)
	if err != nil {
		o.failJob(job, err)
		return analysis.Result{}, false
	}
	job.DestPath = path
	job.Status = StatusSucceeded

	content, err := o.extractor(path, o.opts.MaxCharBudget)
	if err != nil {
		o.failJob(job, fmt.Errorf("extraction failed: %w", err))
		return analysis.Result{}, false
	}
	if o.opts.ChunkSize > 0 {
		job.ChunkCount = len(tokenize.Chunks(tokenize.Words(content.Text), o.opts.ChunkSize))
	}

	job.Status = StatusAnalyzing
	res, err = o.analyzer.Analyze(jobCtx, analysis.Document{
		ObjectID:  job.Object.ID,
		Name:      filepath.Base(path),
		Text:      content.Text,
		Truncated: content.Truncated,
	})
	if err != nil {
		o.failJob(job, fmt.Errorf("analysis failed: %w", err))
		return analysis.Result{}, false
	}

	job.Status = StatusAnalyzed
	return res, true
}

// transferWithTimeout offloads the blocking transfer so the job can
// observe its deadline even if the engine call lingers. A late result
// is discarded; its staged bytes sit under the batch dir and are
// removed by batch cleanup.
func (o *Orchestrator) transferWithTimeout(ctx context.Context, job *Job, batchDir string) (string, error) {
	type outcome struct {
		path string
		err  error
	}
	done := make(chan outcome, 1)

	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- outcome{err: fmt.Errorf("transfer panicked: %v", r)}
			}
		}()
		res, err := o.engine.Resolve(ctx, job.Object.ID)
		if err != nil {
			done <- outcome{err: err}
			return
		}
		path, err := o.engine.Transfer(ctx, res, batchDir)
		done <- outcome{path: path, err: err}
	}()

	select {
	case out := <-done:
		return out.path, out.err
	case <-ctx.Done():
		return "", store.NewError(store.KindTimeout, "job", job.Object.ID, ctx.Err())
	}
}

func (o *Orchestrator) failJob(job *Job, err error) {
	if store.KindOf(err) == store.KindTimeout {
		job.Status = StatusTimedOut
	} else {
		job.Status = StatusFailed
	}
	job.Err = err
	o.log.Warn().Err(err).Int("batch", job.BatchNumber).
		Str("object", job.Object.ID).Str("name", job.Object.Name).
		Str("status", job.Status.String()).Msg("job did not complete")
}

// buildFragment invokes the reporting stage when the batch produced at
// least one analysis, and records a placeholder otherwise so the report
// always carries one fragment per batch.
func (o *Orchestrator) buildFragment(ctx context.Context, number int, results []analysis.Result, total int) report.Fragment {
	if len(results) == 0 {
		return report.Placeholder(number, fmt.Sprintf("all %d jobs failed or timed out", total))
	}

	content, err := o.reporter.Fragment(ctx, number, results)
	if err != nil {
		o.log.Error().Err(err).Int("batch", number).Msg("reporting stage failed")
		return report.Placeholder(number, fmt.Sprintf("reporting stage failed: %v", err))
	}
	return report.Fragment{BatchNumber: number, Content: content}
}
