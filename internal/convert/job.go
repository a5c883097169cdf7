package convert

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/okunev/bookshelf-bot/pkg/file"
	"github.com/okunev/bookshelf-bot/pkg/log"
)

// Request describes one conversion. Immutable once constructed.
type Request struct {
	SourcePath   string
	SourceFormat string
	TargetFormat string
	DestDir      string
}

// Result is the successful outcome of a conversion.
type Result struct {
	OutputPath string
}

// Status is the observable state of a Job.
type Status string

const (
	StatusPending    Status = "pending"
	StatusLocating   Status = "locating"
	StatusExtracting Status = "extracting"
	StatusInvoking   Status = "invoking"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

const defaultTimeout = 60 * time.Second

// Job turns a Request into a Result by running the external converter as a
// subprocess. Each job owns its own scratch subdirectory, so jobs can run
// fully in parallel; scratch artifacts are removed on every exit path.
type Job struct {
	req         Request
	locator     *Locator
	extractor   *Extractor
	scratchRoot string
	timeout     time.Duration

	mu     sync.Mutex
	status Status
}

// Option configures a Job.
type Option func(*Job)

// WithTimeout overrides the base subprocess timeout.
func WithTimeout(d time.Duration) Option {
	return func(j *Job) {
		if d > 0 {
			j.timeout = d
		}
	}
}

// WithScratchRoot places per-job scratch directories under dir.
func WithScratchRoot(dir string) Option {
	return func(j *Job) {
		if dir != "" {
			j.scratchRoot = dir
		}
	}
}

func NewJob(req Request, locator *Locator, extractor *Extractor, opts ...Option) *Job {
	j := &Job{
		req:         req,
		locator:     locator,
		extractor:   extractor,
		scratchRoot: os.TempDir(),
		timeout:     defaultTimeout,
		status:      StatusPending,
	}
	for _, opt := range opts {
		opt(j)
	}
	return j
}

// Status returns the job's current state. Safe for concurrent use.
func (j *Job) Status() Status {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.status
}

func (j *Job) setStatus(s Status) {
	j.mu.Lock()
	j.status = s
	j.mu.Unlock()
}

func (j *Job) fail(err *Error) (Result, error) {
	j.setStatus(StatusFailed)
	return Result{}, err
}

// Run executes the conversion end to end: locate the converter, extract
// the source if it is archived, invoke the subprocess, verify the output.
// Cancelling ctx kills the subprocess; cleanup still runs.
func (j *Job) Run(ctx context.Context) (Result, error) {
	j.setStatus(StatusLocating)
	converter, err := j.locator.Locate()
	if err != nil {
		// No subprocess spawned, no scratch created.
		var cerr *Error
		if e, ok := err.(*Error); ok {
			cerr = e
		} else {
			cerr = wrapError(KindConverterUnavailable, "converter resolution failed", err)
		}
		return j.fail(cerr)
	}

	source := j.req.SourcePath
	if isArchive(source) {
		j.setStatus(StatusExtracting)
		scratch := filepath.Join(j.scratchRoot, "job-"+uuid.NewString())
		defer func() {
			if err := os.RemoveAll(scratch); err != nil {
				log.Warn("Failed to clean scratch directory %s: %v", scratch, err)
			}
		}()

		extracted, err := j.extractor.Extract(source, scratch)
		if err != nil {
			return j.fail(wrapError(KindSourceUnreadable,
				fmt.Sprintf("cannot materialize source from %s", source), err))
		}
		source = extracted
	}

	j.setStatus(StatusInvoking)
	output := filepath.Join(j.req.DestDir,
		file.ReplaceExt(filepath.Base(source), "."+strings.TrimPrefix(j.req.TargetFormat, ".")))
	if err := os.MkdirAll(j.req.DestDir, 0755); err != nil {
		return j.fail(wrapError(KindConversionFailed,
			fmt.Sprintf("cannot create destination directory %s", j.req.DestDir), err))
	}

	invokeCtx, cancel := context.WithTimeout(ctx, j.effectiveTimeout(source))
	defer cancel()

	var stderr bytes.Buffer
	cmd := exec.CommandContext(invokeCtx, converter, source, output)
	cmd.Stderr = &stderr

	runErr := cmd.Run()
	if kind, failed := classifyInvocation(runErr, invokeCtx.Err()); failed {
		var cerr *Error
		if kind == KindConversionTimedOut {
			cerr = wrapError(kind,
				fmt.Sprintf("converter killed after %s", j.effectiveTimeout(source)), invokeCtx.Err())
		} else {
			cerr = wrapError(kind,
				fmt.Sprintf("converter exited with an error for %s", source), runErr)
		}
		cerr.Stderr = stderr.String()
		return j.fail(cerr)
	}

	info, err := os.Stat(output)
	if err != nil || info.Size() == 0 {
		cerr := newError(KindConversionFailed,
			fmt.Sprintf("converter exited cleanly but produced no output at %s", output))
		cerr.Stderr = stderr.String()
		return j.fail(cerr)
	}

	j.setStatus(StatusCompleted)
	return Result{OutputPath: output}, nil
}

// classifyInvocation maps a finished subprocess run to a failure kind. A
// clean exit is never a failure, even when the deadline fires just as the
// process finishes; the timeout kind is reported only when the context
// actually killed the run.
func classifyInvocation(runErr, ctxErr error) (Kind, bool) {
	if runErr == nil {
		return 0, false
	}
	if ctxErr != nil {
		return KindConversionTimedOut, true
	}
	return KindConversionFailed, true
}

// effectiveTimeout scales the base timeout with the source size when it is
// known: one extra second per MiB keeps large books from tripping the
// deadline meant for small ones.
func (j *Job) effectiveTimeout(source string) time.Duration {
	timeout := j.timeout
	if info, err := os.Stat(source); err == nil {
		timeout += time.Duration(info.Size()/(1<<20)) * time.Second
	}
	return timeout
}

func isArchive(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".zip")
}
