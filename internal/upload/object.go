package upload

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"path/filepath"
	"strings"

	"lexdesk/internal/storage"
)

// ErrNoContent is returned when a job carries no way to read the file.
var ErrNoContent = errors.New("file content is not readable")

const objectPrefix = "uploads"

// ObjectTransport streams files into object storage and reports byte progress.
type ObjectTransport struct {
	store storage.Storage
}

// NewObjectTransport returns a transport writing to store.
func NewObjectTransport(store storage.Storage) *ObjectTransport {
	return &ObjectTransport{store: store}
}

// Key is the object key of a job: uploads/<id><ext>.
func (t *ObjectTransport) Key(job Job) string {
	return path.Join(objectPrefix, job.ID+strings.ToLower(filepath.Ext(job.File.Name)))
}

// Send uploads the file. Progress stays below 100 until the store acknowledged the object.
func (t *ObjectTransport) Send(ctx context.Context, job Job, report func(int)) error {
	if job.File.Open == nil {
		return ErrNoContent
	}
	rc, err := job.File.Open()
	if err != nil {
		return fmt.Errorf("open %s: %w", job.File.Name, err)
	}
	defer rc.Close()

	r := &progressReader{r: rc, total: job.File.SizeBytes, report: report}
	_, err = t.store.Put(ctx, t.Key(job), r, storage.PutObjectOptions{
		Size:        job.File.SizeBytes,
		ContentType: job.File.DeclaredType,
		Metadata: map[string]string{
			"original-filename": job.File.Name,
		},
	})
	if err != nil {
		return fmt.Errorf("upload to storage: %w", err)
	}
	report(100)
	return nil
}

// Discard deletes the stored object of job.
func (t *ObjectTransport) Discard(ctx context.Context, job Job) error {
	return t.store.Delete(ctx, t.Key(job))
}

type progressReader struct {
	r      io.Reader
	total  int64
	read   int64
	last   int
	report func(int)
}

func (p *progressReader) Read(b []byte) (int, error) {
	n, err := p.r.Read(b)
	p.read += int64(n)
	if p.total > 0 {
		pct := min(int(p.read*100/p.total), 99)
		if pct > p.last {
			p.last = pct
			p.report(pct)
		}
	}
	return n, err
}
