package logger

import (
	"log/slog"
)

// Standard field keys for structured logging.
// Use these keys consistently across all log statements so downloaded logs
// can be filtered and aggregated by snapshot, block, or worker.
const (
	// ========================================================================
	// Snapshot identity
	// ========================================================================
	KeySnapshotID = "snapshot_id" // EBS snapshot id (snap-...)
	KeyVolumeID   = "volume_id"   // EBS volume id (vol-...)
	KeyInstanceID = "instance_id" // EC2 instance id (i-...)
	KeyRegion     = "region"      // AWS region
	KeyOutputPath = "output_path" // Local image file path
	KeyRunID      = "run_id"      // correlation id for a single CLI invocation

	// ========================================================================
	// Block-level fields
	// ========================================================================
	KeyBlockIndex   = "block_index"   // 0-based block ordinal
	KeyBlockOffset  = "block_offset"  // byte offset of the block in the image
	KeyBlockSize    = "block_size"    // server-advertised block size in bytes
	KeyTotalBlocks  = "total_blocks"  // total present blocks in the snapshot
	KeyBlocksDone   = "blocks_done"   // blocks written so far
	KeyBytesWritten = "bytes_written" // bytes written by a single write_at call

	// ========================================================================
	// Worker pool & retry
	// ========================================================================
	KeyWorkerID   = "worker_id"   // worker goroutine ordinal
	KeyAttempt    = "attempt"     // retry attempt number (1-based)
	KeyMaxRetries = "max_retries" // configured max retry attempts
	KeyNextToken  = "next_token"  // pagination continuation token

	// ========================================================================
	// Operation metadata
	// ========================================================================
	KeyDurationMs = "duration_ms" // operation duration in milliseconds
	KeyError      = "error"       // error message
	KeyErrorKind  = "error_kind"  // dsnaperr.Kind string
)

// SnapshotID returns a slog.Attr for the EBS snapshot id.
func SnapshotID(id string) slog.Attr {
	return slog.String(KeySnapshotID, id)
}

// VolumeID returns a slog.Attr for the EBS volume id.
func VolumeID(id string) slog.Attr {
	return slog.String(KeyVolumeID, id)
}

// InstanceID returns a slog.Attr for the EC2 instance id.
func InstanceID(id string) slog.Attr {
	return slog.String(KeyInstanceID, id)
}

// Region returns a slog.Attr for the AWS region.
func Region(r string) slog.Attr {
	return slog.String(KeyRegion, r)
}

// OutputPath returns a slog.Attr for the local image path.
func OutputPath(p string) slog.Attr {
	return slog.String(KeyOutputPath, p)
}

// RunID returns a slog.Attr correlating every log line emitted by a single
// CLI invocation.
func RunID(id string) slog.Attr {
	return slog.String(KeyRunID, id)
}

// BlockIndex returns a slog.Attr for a block's 0-based ordinal.
func BlockIndex(i int64) slog.Attr {
	return slog.Int64(KeyBlockIndex, i)
}

// BlockOffset returns a slog.Attr for a block's byte offset.
func BlockOffset(off int64) slog.Attr {
	return slog.Int64(KeyBlockOffset, off)
}

// BlockSize returns a slog.Attr for the snapshot's block size.
func BlockSize(n int32) slog.Attr {
	return slog.Int(KeyBlockSize, int(n))
}

// TotalBlocks returns a slog.Attr for the total present block count.
func TotalBlocks(n int64) slog.Attr {
	return slog.Int64(KeyTotalBlocks, n)
}

// BlocksDone returns a slog.Attr for blocks written so far.
func BlocksDone(n int64) slog.Attr {
	return slog.Int64(KeyBlocksDone, n)
}

// BytesWritten returns a slog.Attr for bytes written in a single call.
func BytesWritten(n int) slog.Attr {
	return slog.Int(KeyBytesWritten, n)
}

// WorkerID returns a slog.Attr for a worker goroutine's ordinal.
func WorkerID(id int) slog.Attr {
	return slog.Int(KeyWorkerID, id)
}

// Attempt returns a slog.Attr for the current retry attempt number.
func Attempt(n int) slog.Attr {
	return slog.Int(KeyAttempt, n)
}

// MaxRetries returns a slog.Attr for the configured max retry attempts.
func MaxRetries(n int) slog.Attr {
	return slog.Int(KeyMaxRetries, n)
}

// NextToken returns a slog.Attr for a pagination continuation token.
func NextToken(token string) slog.Attr {
	return slog.String(KeyNextToken, token)
}

// DurationMs returns a slog.Attr for an operation's duration in milliseconds.
func DurationMs(ms float64) slog.Attr {
	return slog.Float64(KeyDurationMs, ms)
}

// Err returns a slog.Attr for an error.
func Err(err error) slog.Attr {
	if err == nil {
		return slog.Attr{}
	}
	return slog.String(KeyError, err.Error())
}

// ErrorKind returns a slog.Attr for a dsnaperr.Kind string value.
func ErrorKind(kind string) slog.Attr {
	return slog.String(KeyErrorKind, kind)
}
