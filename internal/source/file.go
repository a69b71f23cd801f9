package source

import (
	"context"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/s22625/sqwatch/internal/model"
)

// File reads a snapshot from a YAML (or JSON) document on every fetch.
//
//	jobs:
//	  - id: "1"
//	    name: train
//	    status: R
type File struct {
	Path string
}

// NewFile creates a file-backed source.
func NewFile(path string) *File {
	return &File{Path: path}
}

type fileJob struct {
	ID        string `yaml:"id"`
	Name      string `yaml:"name"`
	Status    string `yaml:"status"`
	NodeList  string `yaml:"nodes"`
	Elapsed   string `yaml:"elapsed"`
	Partition string `yaml:"partition"`
	User      string `yaml:"user"`
}

type fileDoc struct {
	Jobs []fileJob `yaml:"jobs"`
}

// FetchSnapshot reads and parses the file.
func (f *File) FetchSnapshot(ctx context.Context) (model.Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(f.Path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSourceUnavailable, err)
	}
	var doc fileDoc
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: parse %s: %w", ErrSourceUnavailable, f.Path, err)
	}
	snap := make(model.Snapshot, 0, len(doc.Jobs))
	for _, job := range doc.Jobs {
		if job.ID == "" {
			continue
		}
		snap = append(snap, model.Job{
			ID:        job.ID,
			Name:      job.Name,
			Status:    model.ParseStatus(job.Status),
			NodeList:  cleanNodeList(job.NodeList),
			Elapsed:   job.Elapsed,
			Partition: job.Partition,
			User:      job.User,
		})
	}
	return snap, nil
}
