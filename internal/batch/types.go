package batch

import (
	"time"

	"github.com/docpipe/docpipe/internal/analysis"
	"github.com/docpipe/docpipe/internal/report"
	"github.com/docpipe/docpipe/internal/store"
)

// Status tracks a job through its lifecycle. Analyzed, Failed and
// TimedOut are terminal.
type Status int

const (
	StatusPending Status = iota
	StatusTransferring
	StatusSucceeded
	StatusAnalyzing
	StatusAnalyzed
	StatusFailed
	StatusTimedOut
)

func (s Status) String() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusTransferring:
		return "transferring"
	case StatusSucceeded:
		return "succeeded"
	case StatusAnalyzing:
		return "analyzing"
	case StatusAnalyzed:
		return "analyzed"
	case StatusFailed:
		return "failed"
	case StatusTimedOut:
		return "timed_out"
	default:
		return "unknown"
	}
}

// Terminal reports whether the job can make no further progress.
func (s Status) Terminal() bool {
	return s == StatusAnalyzed || s == StatusFailed || s == StatusTimedOut
}

// Job is one object's transfer-and-analyze unit of work within a batch.
// A job is owned by a single goroutine while it runs; the orchestrator
// reads it only after the batch barrier.
type Job struct {
	Object      store.Object
	BatchNumber int
	DestPath    string
	Status      Status
	ChunkCount  int // token chunks produced from the extracted text
	Err         error
	StartedAt   time.Time
	FinishedAt  time.Time
}

// Result is everything one batch produced: the partitioned job
// outcomes, the analysis results from succeeded jobs, and the batch's
// report fragment (a placeholder when nothing succeeded).
type Result struct {
	Number    int
	Succeeded []*Job
	Failed    []*Job
	Analyses  []analysis.Result
	Fragment  report.Fragment
}

// Run is the outcome of processing every batch.
type Run struct {
	Batches    []Result
	ReportPath string
}

// TotalFailed counts terminally failed jobs across all batches.
func (r *Run) TotalFailed() int {
	n := 0
	for _, b := range r.Batches {
		n += len(b.Failed)
	}
	return n
}

// TotalChunks sums the token chunks produced by succeeded jobs.
func (r *Run) TotalChunks() int {
	n := 0
	for _, b := range r.Batches {
		for _, j := range b.Succeeded {
			n += j.ChunkCount
		}
	}
	return n
}
