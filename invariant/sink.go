package invariant

import (
	"errors"
	"os"
	"sync"

	"github.com/dialfleet/dispatch-core/filer"
)

// FileSink appends every violation to a JSON array on disk via
// filer.JsonFiler, for a deployment that wants a durable violation
// trail without standing up a metrics backend. Prometheus counters
// from Monitor cover the alerting path; this is for post-hoc review.
type FileSink struct {
	mu    sync.Mutex
	path  string
	filer filer.JsonFiler
}

func NewFileSink(path string) *FileSink {
	return &FileSink{path: path, filer: filer.NewJsonLoader()}
}

func (s *FileSink) Record(v Violation) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var existing []Violation
	if err := s.filer.Load(s.path, &existing); err != nil && !errors.Is(err, os.ErrNotExist) {
		existing = nil
	}
	existing = append(existing, v)
	return s.filer.Save(s.path, existing)
}
