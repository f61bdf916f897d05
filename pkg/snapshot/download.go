// Package snapshot implements the downloader orchestrator (C6): the public
// entry point that sequences listing, output preparation, the worker pool,
// and completion checking.
package snapshot

import (
	"context"
	"fmt"
	"path/filepath"
	"regexp"

	"github.com/RhinoSecurityLabs/dsnap/internal/logger"
	"github.com/RhinoSecurityLabs/dsnap/internal/retry"
	"github.com/RhinoSecurityLabs/dsnap/pkg/blockqueue"
	"github.com/RhinoSecurityLabs/dsnap/pkg/dsnaperr"
	"github.com/RhinoSecurityLabs/dsnap/pkg/fetchpool"
	"github.com/RhinoSecurityLabs/dsnap/pkg/sparsefile"
)

// snapshotIDPattern matches the snap-[0-9a-f]+ identity format from
// spec.md §3.
var snapshotIDPattern = regexp.MustCompile(`^snap-[0-9a-f]+$`)

// ValidSnapshotID reports whether id matches the expected snapshot id
// shape.
func ValidSnapshotID(id string) bool {
	return snapshotIDPattern.MatchString(id)
}

// Lister enumerates a snapshot's blocks. pkg/ebs.Client does not implement
// it directly; ClientAdapter adapts it.
type Lister interface {
	ListBlocks(ctx context.Context, snapshotID string) (blockSizeBytes, volumeSizeBytes int64, descriptors []blockqueue.Descriptor, err error)
}

// Params are the inputs to Download, per spec.md §6.
type Params struct {
	SnapshotID  string
	OutputPath  string
	Force       bool
	NumWorkers  int
	RetryPolicy retry.Policy
}

// Result is returned on success.
type Result struct {
	OutputPath    string
	BlocksWritten int64
	TotalBlocks   int64
	VolumeSize    int64
}

// Download runs the full pipeline: list -> prepare -> pool -> join ->
// verify completion, per spec.md §4.6.
func Download(ctx context.Context, lister Lister, fetcher fetchpool.Fetcher, p Params) (Result, error) {
	if !ValidSnapshotID(p.SnapshotID) {
		return Result{}, dsnaperr.New(dsnaperr.KindNotFound, fmt.Errorf("invalid snapshot id %q", p.SnapshotID))
	}

	numWorkers := p.NumWorkers
	if numWorkers <= 0 {
		numWorkers = 30
	}
	retryPolicy := p.RetryPolicy
	if retryPolicy.MaxAttempts == 0 {
		retryPolicy = retry.DefaultPolicy
	}

	outPath, err := filepath.Abs(p.OutputPath)
	if err != nil {
		return Result{}, dsnaperr.New(dsnaperr.KindIO, fmt.Errorf("resolve output path: %w", err))
	}

	logger.Info("listing snapshot blocks", logger.SnapshotID(p.SnapshotID))
	blockSize, volumeSize, descriptors, err := lister.ListBlocks(ctx, p.SnapshotID)
	if err != nil {
		return Result{}, err
	}
	total := int64(len(descriptors))
	logger.Info("listed snapshot",
		logger.SnapshotID(p.SnapshotID),
		logger.TotalBlocks(total),
	)

	// prepare() is called before any worker starts so an OutputExists
	// failure never touches an existing file (spec.md §4.6 step 2).
	if err := sparsefile.Prepare(outPath, volumeSize, p.Force); err != nil {
		return Result{}, err
	}

	q := blockqueue.New(2 * numWorkers)
	go func() {
		for _, d := range descriptors {
			if !q.Put(d) {
				// The pool aborted the queue after a fatal error; stop
				// feeding instead of blocking on a full queue forever.
				return
			}
		}
		q.Close()
	}()

	poolResult, err := fetchpool.Run(ctx, fetcher, q, total, fetchpool.Params{
		SnapshotID:  p.SnapshotID,
		OutputPath:  outPath,
		BlockSize:   blockSize,
		NumWorkers:  numWorkers,
		RetryPolicy: retryPolicy,
	})
	if err != nil {
		return Result{}, err
	}

	if poolResult.BlocksWritten != total {
		return Result{}, dsnaperr.New(dsnaperr.KindIO, fmt.Errorf("expected %d blocks written, got %d", total, poolResult.BlocksWritten))
	}

	logger.Info("download complete",
		logger.SnapshotID(p.SnapshotID),
		logger.OutputPath(outPath),
		logger.BlocksDone(poolResult.BlocksWritten),
	)

	return Result{
		OutputPath:    outPath,
		BlocksWritten: poolResult.BlocksWritten,
		TotalBlocks:   total,
		VolumeSize:    volumeSize,
	}, nil
}
