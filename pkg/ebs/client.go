// Package ebs is the block-API client (C1): a thin facade over EBS direct
// APIs' two block operations, list (paginated) and fetch (single block +
// digest). It classifies every SDK error into a retryable
// dsnaperr.KindTransient or a non-retryable kind, and owns connection-pool
// sizing so N_workers can all have an in-flight request at once.
package ebs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ebs"
	"github.com/aws/aws-sdk-go-v2/service/ebs/types"
	"github.com/aws/smithy-go"

	"github.com/RhinoSecurityLabs/dsnap/internal/logger"
	"github.com/RhinoSecurityLabs/dsnap/internal/retry"
	"github.com/RhinoSecurityLabs/dsnap/pkg/dsnaperr"
)

const (
	// GibibyteBytes is 2^30, the unit VolumeSize is reported in.
	GibibyteBytes int64 = 1 << 30
)

// Descriptor mirrors blockqueue.Descriptor without importing it, keeping C1
// free of a dependency on C4; pkg/snapshot adapts between the two.
type Descriptor struct {
	Index int64
	Token string
}

// Metadata is the snapshot-wide information produced by the first page of
// ListSnapshotBlocks: block size and volume size are authoritative there and
// must not change across subsequent pages.
type Metadata struct {
	BlockSizeBytes  int64
	VolumeSizeBytes int64
}

// Block is one fully-fetched block: its bytes and the server's digest.
type Block struct {
	Data     []byte
	Checksum string
}

// API is the subset of the EBS direct API the client needs; satisfied by
// *ebs.Client and by fakes in tests.
type API interface {
	ListSnapshotBlocks(ctx context.Context, in *ebs.ListSnapshotBlocksInput, optFns ...func(*ebs.Options)) (*ebs.ListSnapshotBlocksOutput, error)
	GetSnapshotBlock(ctx context.Context, in *ebs.GetSnapshotBlockInput, optFns ...func(*ebs.Options)) (*ebs.GetSnapshotBlockOutput, error)
}

// Config configures Client construction via NewFromConfig.
type Config struct {
	Region  string // optional, overrides the SDK default chain
	Profile string // optional named credentials profile

	// Workers sizes the HTTP transport's connection pool: the client must
	// permit at least this many concurrent in-flight calls, or workers
	// serialize on a starved pool (spec.md §4.1 connection-pooling contract).
	Workers int

	// RequestTimeout bounds a single list/get call. Default 30s.
	RequestTimeout time.Duration
}

// Client is the C1 facade.
type Client struct {
	api            API
	requestTimeout time.Duration
}

// NewFromConfig builds a Client from cfg, loading AWS credentials and region
// via the standard SDK resolution chain (env vars, shared config, IMDS),
// overridden by cfg.Region / cfg.Profile when set.
func NewFromConfig(ctx context.Context, cfg Config) (*Client, error) {
	var opts []func(*awsconfig.LoadOptions) error
	if cfg.Region != "" {
		opts = append(opts, awsconfig.WithRegion(cfg.Region))
	}
	if cfg.Profile != "" {
		opts = append(opts, awsconfig.WithSharedConfigProfile(cfg.Profile))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, dsnaperr.New(dsnaperr.KindUnauthorized, fmt.Errorf("load AWS config: %w", err))
	}

	workers := cfg.Workers
	if workers <= 0 {
		workers = 30
	}
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.MaxIdleConnsPerHost = workers
	transport.MaxConnsPerHost = 0 // unbounded: never serialize workers behind a pool cap
	awsCfg.HTTPClient = &http.Client{Transport: transport}

	client := ebs.NewFromConfig(awsCfg)

	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	return &Client{api: client, requestTimeout: timeout}, nil
}

// New wraps an existing API implementation (production client or test
// fake) without going through NewFromConfig's credential resolution.
func New(api API, requestTimeout time.Duration) *Client {
	if requestTimeout <= 0 {
		requestTimeout = 30 * time.Second
	}
	return &Client{api: api, requestTimeout: requestTimeout}
}

// ListBlocks enumerates every present block of snapshotID, paginating until
// exhausted, and returns the snapshot metadata plus the full descriptor
// list. spec.md requires consuming the iterator to exhaustion before
// starting workers, so this returns a slice rather than a lazy iterator.
func (c *Client) ListBlocks(ctx context.Context, snapshotID string) (Metadata, []Descriptor, error) {
	var meta Metadata
	var descriptors []Descriptor
	var nextToken *string

	for page := 0; ; page++ {
		in := &ebs.ListSnapshotBlocksInput{SnapshotId: aws.String(snapshotID)}
		if nextToken != nil {
			in.NextToken = nextToken
		}

		var out *ebs.ListSnapshotBlocksOutput
		label := fmt.Sprintf("list_snapshot_blocks(%s, page %d)", snapshotID, page)
		err := retry.Do(ctx, retry.DefaultPolicy, label, func(ctx context.Context) error {
			reqCtx, cancel := context.WithTimeout(ctx, c.requestTimeout)
			defer cancel()

			var innerErr error
			out, innerErr = c.api.ListSnapshotBlocks(reqCtx, in)
			if innerErr != nil {
				return classify(innerErr)
			}
			return nil
		})
		if err != nil {
			return Metadata{}, nil, err
		}

		if page == 0 {
			if out.BlockSize == nil || out.VolumeSize == nil {
				return Metadata{}, nil, dsnaperr.New(dsnaperr.KindUnknown, errors.New("list_snapshot_blocks: missing BlockSize/VolumeSize on first page"))
			}
			meta = Metadata{
				BlockSizeBytes:  int64(*out.BlockSize),
				VolumeSizeBytes: int64(*out.VolumeSize) * GibibyteBytes,
			}
			logger.Debug("listed snapshot metadata",
				logger.SnapshotID(snapshotID),
				logger.BlockSize(*out.BlockSize),
			)
		}

		for _, b := range out.Blocks {
			if b.BlockIndex == nil || b.BlockToken == nil {
				continue
			}
			descriptors = append(descriptors, Descriptor{Index: int64(*b.BlockIndex), Token: *b.BlockToken})
		}

		logger.Debug("listed snapshot blocks page",
			logger.SnapshotID(snapshotID),
			logger.TotalBlocks(int64(len(descriptors))),
		)

		if out.NextToken == nil || *out.NextToken == "" {
			break
		}
		nextToken = out.NextToken
	}

	return meta, descriptors, nil
}

// GetBlock fetches one block's bytes and digest, asserting the server's
// checksum algorithm is SHA-256 per spec.md §6.
func (c *Client) GetBlock(ctx context.Context, snapshotID string, index int64, token string) (Block, error) {
	reqCtx, cancel := context.WithTimeout(ctx, c.requestTimeout)
	defer cancel()

	out, err := c.api.GetSnapshotBlock(reqCtx, &ebs.GetSnapshotBlockInput{
		SnapshotId: aws.String(snapshotID),
		BlockIndex: aws.Int32(int32(index)),
		BlockToken: aws.String(token),
	})
	if err != nil {
		return Block{}, dsnaperr.NewBlock(dsnaperr.KindOf(classify(err)), err, index)
	}
	defer out.BlockData.Close()

	if out.ChecksumAlgorithm != types.ChecksumAlgorithmSha256 {
		return Block{}, dsnaperr.NewBlock(dsnaperr.KindUnknown, fmt.Errorf("unexpected checksum algorithm %q", out.ChecksumAlgorithm), index)
	}

	data, err := io.ReadAll(out.BlockData)
	if err != nil {
		return Block{}, dsnaperr.NewBlock(dsnaperr.KindTransient, fmt.Errorf("read block data: %w", err), index)
	}

	checksum := ""
	if out.Checksum != nil {
		checksum = *out.Checksum
	}
	return Block{Data: data, Checksum: checksum}, nil
}

// classify maps an AWS SDK error to a *dsnaperr.Error of the appropriate
// Kind, in the style of the teacher's isRetryableError/isNotFoundError.
func classify(err error) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return dsnaperr.New(dsnaperr.KindCancelled, err)
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return dsnaperr.New(dsnaperr.KindTransient, err)
	}

	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		code := apiErr.ErrorCode()
		switch code {
		case "Throttling", "ThrottlingException", "RequestThrottled", "RequestLimitExceeded", "SlowDown":
			return dsnaperr.New(dsnaperr.KindTransient, err)
		case "InternalError", "InternalServerError", "ServiceUnavailable", "ServiceException":
			return dsnaperr.New(dsnaperr.KindTransient, err)
		case "AccessDenied", "AccessDeniedException", "UnauthorizedOperation", "AuthFailure":
			return dsnaperr.New(dsnaperr.KindUnauthorized, err)
		case "ResourceNotFoundException", "InvalidSnapshot.NotFound", "InvalidParameterValue":
			return dsnaperr.New(dsnaperr.KindNotFound, err)
		}
	}

	errStr := err.Error()
	if strings.Contains(errStr, "connection reset") ||
		strings.Contains(errStr, "connection refused") ||
		strings.Contains(errStr, "i/o timeout") ||
		strings.Contains(errStr, "EOF") ||
		strings.Contains(errStr, "503") ||
		strings.Contains(errStr, "500") {
		return dsnaperr.New(dsnaperr.KindTransient, err)
	}
	if strings.Contains(errStr, "NotFound") || strings.Contains(errStr, "does not exist") {
		return dsnaperr.New(dsnaperr.KindNotFound, err)
	}

	return dsnaperr.New(dsnaperr.KindUnknown, err)
}
