// Package worker drains the backup and restore job queues. A worker run
// claims a bounded batch, processes the jobs sequentially, and completes
// every claimed job with its accumulated log. Failures are log lines, not
// job states; the queue never holds a poison job.
package worker

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/rs/zerolog"

	"github.com/coursearc/coursearc/internal/config"
	"github.com/coursearc/coursearc/internal/lms"
	"github.com/coursearc/coursearc/internal/transfer"
)

// ArchiveExt is the artifact extension restores accept and backups produce.
const ArchiveExt = ".mbz"

// MinArtifactSize is the smallest remote file treated as a real archive.
const MinArtifactSize = 10

// Exporter packs courses into backup artifacts.
type Exporter interface {
	Export(ctx context.Context, courseID int64, opts lms.ExportOptions) (*lms.ArtifactRef, error)
	DeleteArtifact(ctx context.Context, ref *lms.ArtifactRef) error
}

// Importer unpacks and imports backup artifacts.
type Importer interface {
	Extract(ctx context.Context, archivePath, destDir string) error
	Precheck(ctx context.Context, plan lms.RestorePlan) (bool, error)
	Execute(ctx context.Context, plan lms.RestorePlan) error
}

// RemoteConn is a session against the remote artifact storage.
type RemoteConn interface {
	EnsureDir(path string) []string
	Upload(remotePath string, r io.Reader) error
	Download(remotePath string, w io.Writer) (int64, error)
	Size(remotePath string) (int64, error)
	Close()
}

// DialFunc opens a remote storage session. Swapped for a fake in tests.
type DialFunc func(ctx context.Context, cfg config.TransferConfig) (RemoteConn, error)

// Result is the outcome of one processed job, returned from Run for the
// synchronous manual triggers.
type Result struct {
	JobID int64
	Logs  string
}

// jobLog accumulates the per-job log text stored on completion.
type jobLog struct {
	b strings.Builder
}

func (l *jobLog) Line(s string) {
	l.b.WriteString(s)
	l.b.WriteByte('\n')
}

func (l *jobLog) Linef(format string, args ...any) {
	l.Line(fmt.Sprintf(format, args...))
}

func (l *jobLog) String() string { return l.b.String() }

// hasArchiveExt reports whether the file name carries the artifact
// extension, case-insensitively.
func hasArchiveExt(name string) bool {
	return strings.HasSuffix(strings.ToLower(name), ArchiveExt)
}

// NewDialFunc builds the production DialFunc over the FTP client.
func NewDialFunc(logger zerolog.Logger) DialFunc {
	return func(ctx context.Context, cfg config.TransferConfig) (RemoteConn, error) {
		conn, err := transfer.Dial(ctx, cfg, logger)
		if err != nil {
			return nil, err
		}
		return conn, nil
	}
}
