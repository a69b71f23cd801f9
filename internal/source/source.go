// Package source fetches job snapshots from the scheduler.
package source

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/s22625/sqwatch/internal/logging"
	"github.com/s22625/sqwatch/internal/model"
)

// ErrSourceUnavailable wraps every fetch failure. Callers keep the previous
// snapshot and show the source as unavailable.
var ErrSourceUnavailable = errors.New("job source unavailable")

// JobSource produces full job listings.
type JobSource interface {
	FetchSnapshot(ctx context.Context) (model.Snapshot, error)
}

// Options configures the scheduler-backed source.
type Options struct {
	User          string
	Partition     string
	HistoryWindow time.Duration
	Logger        *zerolog.Logger
}

func (o Options) logger() zerolog.Logger {
	if o.Logger != nil {
		return *o.Logger
	}
	return logging.Component("source")
}

// New selects a source from its spec: "squeue" (or empty) for the live
// scheduler, "file:<path>" for a YAML snapshot on disk.
func New(spec string, opts Options) (JobSource, error) {
	spec = strings.TrimSpace(spec)
	switch {
	case spec == "" || spec == "squeue" || spec == "slurm":
		return NewSqueue(opts), nil
	case strings.HasPrefix(spec, "file:"):
		path := strings.TrimPrefix(spec, "file:")
		if path == "" {
			return nil, fmt.Errorf("source %q: missing path", spec)
		}
		return NewFile(path), nil
	default:
		return nil, fmt.Errorf("unknown source %q (valid: squeue, file:<path>)", spec)
	}
}
