package upload

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"lexdesk/internal/logging"
	"lexdesk/internal/metrics"
	"lexdesk/internal/model"
)

// closeDiscardTimeout bounds the transport cleanup done by Close.
const closeDiscardTimeout = 10 * time.Second

// ErrClosed is returned by Admit after Close.
var ErrClosed = errors.New("upload queue is closed")

// Admission reports what happened to one candidate file.
// File is set only when the candidate was accepted.
type Admission struct {
	Descriptor model.FileDescriptor    `json:"file"`
	Outcome    model.ValidationOutcome `json:"outcome"`
	File       *model.UploadedFile     `json:"entry,omitempty"`
}

// Stats counts queue entries by status.
type Stats struct {
	Total     int `json:"total"`
	Uploading int `json:"uploading"`
	Completed int `json:"completed"`
	Error     int `json:"error"`
}

type entry struct {
	file   model.UploadedFile
	desc   model.FileDescriptor
	cancel context.CancelFunc
	done   chan struct{}
}

// Queue is the ordered set of files being uploaded.
//
// The queue is the only writer of entries. Each accepted file gets one task
// goroutine with its own context; every progress report is applied under the
// queue lock and dropped once that context is cancelled or the entry is gone.
type Queue struct {
	validator *Validator
	transport Transport
	metrics   *metrics.Metrics
	logger    *log.Logger
	observe   func(model.UploadedFile)

	base   context.Context
	stop   context.CancelFunc
	mu     sync.Mutex
	order  []string
	items  map[string]*entry
	closed bool
}

// QueueOption configures a Queue.
type QueueOption func(*Queue)

// WithMetrics records admissions and finished tasks.
func WithMetrics(m *metrics.Metrics) QueueOption {
	return func(q *Queue) { q.metrics = m }
}

// WithLogger sets the queue logger.
func WithLogger(l *log.Logger) QueueOption {
	return func(q *Queue) { q.logger = l }
}

// WithObserver registers a callback invoked with every entry mutation, in order.
// It runs under the queue lock and must not call back into the queue.
func WithObserver(fn func(model.UploadedFile)) QueueOption {
	return func(q *Queue) { q.observe = fn }
}

// NewQueue creates an empty queue.
func NewQueue(v *Validator, t Transport, opts ...QueueOption) *Queue {
	base, stop := context.WithCancel(context.Background())
	q := &Queue{
		validator: v,
		transport: t,
		logger:    logging.Discard(),
		observe:   func(model.UploadedFile) {},
		base:      base,
		stop:      stop,
		items:     make(map[string]*entry),
	}
	for _, opt := range opts {
		opt(q)
	}
	q.logger = q.logger.With("component", "upload_queue")
	return q
}

// Admit validates files in order, appends the accepted ones with status
// uploading and progress 0, and starts a task for each.
func (q *Queue) Admit(files []model.FileDescriptor) ([]Admission, error) {
	out := make([]Admission, 0, len(files))
	var started []*entry

	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return nil, ErrClosed
	}
	for _, f := range files {
		outcome := q.validator.Validate(f)
		adm := Admission{Descriptor: f, Outcome: outcome}
		if !outcome.Accepted {
			q.metrics.UploadAdmission(string(outcome.Reason))
			q.logger.Info("upload_rejected", "name", f.Name, "reason", outcome.Reason)
			out = append(out, adm)
			continue
		}

		ctx, cancel := context.WithCancel(q.base)
		e := &entry{
			file: model.UploadedFile{
				ID:           uuid.NewString(),
				Name:         f.Name,
				SizeBytes:    f.SizeBytes,
				DeclaredType: f.DeclaredType,
				Progress:     0,
				Status:       model.StatusUploading,
			},
			desc:   f,
			cancel: cancel,
			done:   make(chan struct{}),
		}
		q.items[e.file.ID] = e
		q.order = append(q.order, e.file.ID)
		q.observe(e.file)

		file := e.file
		adm.File = &file
		out = append(out, adm)
		started = append(started, e)

		q.metrics.UploadAdmission("accepted")
		q.logger.Info("upload_admitted", "id", file.ID, "name", file.Name, "size_bytes", file.SizeBytes)

		go q.run(ctx, e)
	}
	q.mu.Unlock()

	return out, nil
}

func (q *Queue) run(ctx context.Context, e *entry) {
	defer close(e.done)
	id := e.file.ID
	err := q.transport.Send(ctx, Job{ID: id, File: e.desc}, func(p int) {
		q.advance(ctx, id, p)
	})
	q.finish(ctx, id, err)
}

// live returns the entry of a running task, or nil once the task was cancelled
// or its entry removed. Callers hold q.mu.
func (q *Queue) live(ctx context.Context, id string) *entry {
	if ctx.Err() != nil {
		return nil
	}
	e, ok := q.items[id]
	if !ok || e.file.Status != model.StatusUploading {
		return nil
	}
	return e
}

func (q *Queue) advance(ctx context.Context, id string, progress int) {
	q.mu.Lock()
	defer q.mu.Unlock()

	e := q.live(ctx, id)
	if e == nil {
		return
	}
	progress = min(progress, 100)
	if progress <= e.file.Progress {
		return
	}
	e.file.Progress = progress
	if progress == 100 {
		e.file.Status = model.StatusCompleted
	}
	q.observe(e.file)
}

func (q *Queue) finish(ctx context.Context, id string, err error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if ctx.Err() != nil {
		q.metrics.UploadFinished("cancelled")
		return
	}
	e, ok := q.items[id]
	if !ok {
		return
	}

	if e.file.Status == model.StatusUploading {
		if err != nil {
			e.file.Status = model.StatusError
			q.logger.Error("upload_failed", "id", id, "name", e.file.Name, "error", err)
		} else {
			e.file.Progress = 100
			e.file.Status = model.StatusCompleted
		}
		q.observe(e.file)
	}
	if e.file.Status == model.StatusCompleted {
		q.logger.Info("upload_completed", "id", id, "name", e.file.Name)
	}
	q.metrics.UploadFinished(string(e.file.Status))
}

// Remove deletes the entry with id and stops its task. It returns false when
// there is no such entry. Once Remove returns the task has exited, so no
// further change to the entry can happen.
func (q *Queue) Remove(ctx context.Context, id string) bool {
	q.mu.Lock()
	e, ok := q.items[id]
	if !ok {
		q.mu.Unlock()
		return false
	}
	delete(q.items, id)
	for i, oid := range q.order {
		if oid == id {
			q.order = append(q.order[:i], q.order[i+1:]...)
			break
		}
	}
	e.cancel()
	q.mu.Unlock()

	<-e.done
	q.logger.Info("upload_removed", "id", id, "name", e.file.Name)

	q.discard(ctx, id, e.desc)
	return true
}

func (q *Queue) discard(ctx context.Context, id string, desc model.FileDescriptor) {
	d, ok := q.transport.(Discarder)
	if !ok {
		return
	}
	if err := d.Discard(ctx, Job{ID: id, File: desc}); err != nil {
		q.logger.Warn("upload_discard_failed", "id", id, "error", err)
	}
}

// Files returns a copy of the entries in admission order.
func (q *Queue) Files() []model.UploadedFile {
	q.mu.Lock()
	defer q.mu.Unlock()

	out := make([]model.UploadedFile, 0, len(q.order))
	for _, id := range q.order {
		out = append(out, q.items[id].file)
	}
	return out
}

// Get returns a copy of one entry.
func (q *Queue) Get(id string) (model.UploadedFile, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	e, ok := q.items[id]
	if !ok {
		return model.UploadedFile{}, false
	}
	return e.file, true
}

// Stats counts the current entries by status.
func (q *Queue) Stats() Stats {
	q.mu.Lock()
	defer q.mu.Unlock()

	s := Stats{Total: len(q.order)}
	for _, e := range q.items {
		switch e.file.Status {
		case model.StatusUploading:
			s.Uploading++
		case model.StatusCompleted:
			s.Completed++
		case model.StatusError:
			s.Error++
		}
	}
	return s
}

// Close stops every task, waits for them and empties the queue. Entries that
// were still uploading are discarded from the transport; completed uploads are
// kept. Later calls are no-ops.
func (q *Queue) Close() {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true
	q.stop()
	// status is final here: every mutation checks the cancelled ctx under mu
	pending := make([]*entry, 0, len(q.items))
	var cancelled []*entry
	for _, id := range q.order {
		e := q.items[id]
		pending = append(pending, e)
		if e.file.Status == model.StatusUploading {
			cancelled = append(cancelled, e)
		}
	}
	q.items = make(map[string]*entry)
	q.order = nil
	q.mu.Unlock()

	for _, e := range pending {
		<-e.done
	}

	ctx, cancel := context.WithTimeout(context.Background(), closeDiscardTimeout)
	defer cancel()
	for _, e := range cancelled {
		q.discard(ctx, e.file.ID, e.desc)
	}
	q.logger.Info("upload_queue_closed", "stopped", len(pending), "discarded", len(cancelled))
}

// MaxBytes is the size ceiling enforced on admission.
func (q *Queue) MaxBytes() int64 {
	return q.validator.MaxBytes()
}
