package backup

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pierrec/lz4/v4"
	"golang.org/x/sync/errgroup"
)

// ArchiveExtension is appended to the table file name of every archive
const ArchiveExtension = ".lz4"

// Result describes one finished backup
type Result struct {
	Source      string
	Destination string
	Bytes       int64
	Took        time.Duration
}

// Backuper copies a table file somewhere safe
type Backuper interface {
	Backup(ctx context.Context, path string) (Result, error)
}

// Local writes LZ4-compressed copies of table files into a directory
type Local struct {
	dir    string
	now    func() time.Time
	logger *slog.Logger
}

// NewLocal creates a backuper writing into dir
func NewLocal(dir string, logger *slog.Logger) *Local {
	if logger == nil {
		logger = slog.Default()
	}
	return &Local{dir: dir, now: time.Now, logger: logger}
}

// Backup compresses the file at path into <dir>/<name>-<timestamp><ext>.lz4
func (l *Local) Backup(ctx context.Context, path string) (Result, error) {
	start := time.Now()
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}

	src, err := os.Open(path)
	if err != nil {
		return Result{}, fmt.Errorf("failed to open %s for backup: %w", path, err)
	}
	defer src.Close()

	if err := os.MkdirAll(l.dir, 0755); err != nil {
		return Result{}, fmt.Errorf("failed to create backup directory: %w", err)
	}

	dest := filepath.Join(l.dir, archiveName(path, l.now()))
	tmpPath := dest + ".tmp"
	out, err := os.Create(tmpPath)
	if err != nil {
		return Result{}, fmt.Errorf("failed to create archive: %w", err)
	}

	n, err := compress(ctx, out, src)
	if closeErr := out.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		os.Remove(tmpPath)
		return Result{}, fmt.Errorf("failed to write archive for %s: %w", path, err)
	}

	if err := os.Rename(tmpPath, dest); err != nil {
		os.Remove(tmpPath)
		return Result{}, fmt.Errorf("failed to rename temp → %s: %w", dest, err)
	}

	res := Result{Source: path, Destination: dest, Bytes: n, Took: time.Since(start)}
	l.logger.Info("table backed up",
		slog.String("source", path),
		slog.String("destination", dest),
		slog.Int64("bytes", n),
		slog.Duration("took", res.Took),
	)
	return res, nil
}

// All backs up every path, at most parallelism at a time.
// Results keep the order of paths; the first error cancels the rest.
func All(ctx context.Context, b Backuper, paths []string, parallelism int) ([]Result, error) {
	results := make([]Result, len(paths))

	g, ctx := errgroup.WithContext(ctx)
	if parallelism > 0 {
		g.SetLimit(parallelism)
	}
	for i, path := range paths {
		g.Go(func() error {
			res, err := b.Backup(ctx, path)
			if err != nil {
				return err
			}
			results[i] = res
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// Restore decompresses an archive into dest, replacing it
func Restore(archive, dest string) error {
	in, err := os.Open(archive)
	if err != nil {
		return fmt.Errorf("failed to open archive: %w", err)
	}
	defer in.Close()

	tmpPath := dest + ".restore.tmp"
	out, err := os.Create(tmpPath)
	if err != nil {
		return fmt.Errorf("failed to create restore target: %w", err)
	}

	_, err = io.Copy(out, lz4.NewReader(in))
	if closeErr := out.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to decompress %s: %w", archive, err)
	}

	if err := os.Rename(tmpPath, dest); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to rename temp → %s: %w", dest, err)
	}
	return nil
}

func compress(ctx context.Context, w io.Writer, r io.Reader) (int64, error) {
	zw := lz4.NewWriter(w)

	n, err := io.Copy(zw, ctxReader{ctx: ctx, r: r})
	if err != nil {
		return n, err
	}
	if err := zw.Flush(); err != nil {
		return n, err
	}
	return n, zw.Close()
}

// archiveName turns data/orders.csv into orders-20260102T150405.000Z.csv.lz4
func archiveName(path string, at time.Time) string {
	base := filepath.Base(path)
	ext := filepath.Ext(base)
	stem := strings.TrimSuffix(base, ext)
	return stem + "-" + at.UTC().Format("20060102T150405.000Z") + ext + ArchiveExtension
}

// ctxReader stops a copy once the context is done
type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func (c ctxReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}
