package ebs

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsebs "github.com/aws/aws-sdk-go-v2/service/ebs"
	"github.com/aws/aws-sdk-go-v2/service/ebs/types"
	"github.com/aws/smithy-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/RhinoSecurityLabs/dsnap/pkg/dsnaperr"
)

type fakeAPI struct {
	listPages   []*awsebs.ListSnapshotBlocksOutput
	listErr     error
	listCalls   int
	getResponse *awsebs.GetSnapshotBlockOutput
	getErr      error
	getCalls    int
}

func (f *fakeAPI) ListSnapshotBlocks(ctx context.Context, in *awsebs.ListSnapshotBlocksInput, optFns ...func(*awsebs.Options)) (*awsebs.ListSnapshotBlocksOutput, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	page := f.listPages[f.listCalls]
	f.listCalls++
	return page, nil
}

func (f *fakeAPI) GetSnapshotBlock(ctx context.Context, in *awsebs.GetSnapshotBlockInput, optFns ...func(*awsebs.Options)) (*awsebs.GetSnapshotBlockOutput, error) {
	f.getCalls++
	if f.getErr != nil {
		return nil, f.getErr
	}
	return f.getResponse, nil
}

func TestListBlocksSinglePage(t *testing.T) {
	fake := &fakeAPI{
		listPages: []*awsebs.ListSnapshotBlocksOutput{
			{
				BlockSize:  aws.Int32(524288),
				VolumeSize: aws.Int32(1),
				Blocks: []types.Block{
					{BlockIndex: aws.Int32(0), BlockToken: aws.String("t0")},
					{BlockIndex: aws.Int32(2), BlockToken: aws.String("t2")},
				},
			},
		},
	}

	c := New(fake, 0)
	meta, descriptors, err := c.ListBlocks(context.Background(), "snap-1234")
	require.NoError(t, err)

	assert.Equal(t, int64(524288), meta.BlockSizeBytes)
	assert.Equal(t, GibibyteBytes, meta.VolumeSizeBytes)
	require.Len(t, descriptors, 2)
	assert.Equal(t, Descriptor{Index: 0, Token: "t0"}, descriptors[0])
	assert.Equal(t, Descriptor{Index: 2, Token: "t2"}, descriptors[1])
	assert.Equal(t, 1, fake.listCalls)
}

func TestListBlocksPaginates(t *testing.T) {
	fake := &fakeAPI{
		listPages: []*awsebs.ListSnapshotBlocksOutput{
			{
				BlockSize:  aws.Int32(524288),
				VolumeSize: aws.Int32(1),
				Blocks:     []types.Block{{BlockIndex: aws.Int32(0), BlockToken: aws.String("t0")}},
				NextToken:  aws.String("page2"),
			},
			{
				Blocks: []types.Block{{BlockIndex: aws.Int32(1), BlockToken: aws.String("t1")}},
			},
		},
	}

	c := New(fake, 0)
	_, descriptors, err := c.ListBlocks(context.Background(), "snap-1234")
	require.NoError(t, err)
	assert.Len(t, descriptors, 2)
	assert.Equal(t, 2, fake.listCalls)
}

func TestListBlocksEmptyIsValidZeroFile(t *testing.T) {
	fake := &fakeAPI{
		listPages: []*awsebs.ListSnapshotBlocksOutput{
			{BlockSize: aws.Int32(524288), VolumeSize: aws.Int32(1), Blocks: nil},
		},
	}

	c := New(fake, 0)
	meta, descriptors, err := c.ListBlocks(context.Background(), "snap-empty")
	require.NoError(t, err)
	assert.Empty(t, descriptors)
	assert.Equal(t, GibibyteBytes, meta.VolumeSizeBytes)
}

func TestGetBlockReturnsDataAndChecksum(t *testing.T) {
	fake := &fakeAPI{
		getResponse: &awsebs.GetSnapshotBlockOutput{
			BlockData:         io.NopCloser(newReader("hello world")),
			Checksum:          aws.String("abc123=="),
			ChecksumAlgorithm: types.ChecksumAlgorithmSha256,
		},
	}

	c := New(fake, 0)
	block, err := c.GetBlock(context.Background(), "snap-1234", 7, "tok7")
	require.NoError(t, err)
	assert.Equal(t, "hello world", string(block.Data))
	assert.Equal(t, "abc123==", block.Checksum)
	assert.Equal(t, 1, fake.getCalls)
}

func TestGetBlockRejectsWrongAlgorithm(t *testing.T) {
	fake := &fakeAPI{
		getResponse: &awsebs.GetSnapshotBlockOutput{
			BlockData:         io.NopCloser(newReader("x")),
			ChecksumAlgorithm: "MD5",
		},
	}

	c := New(fake, 0)
	_, err := c.GetBlock(context.Background(), "snap-1234", 0, "t0")
	require.Error(t, err)
}

func TestGetBlockClassifiesThrottlingAsTransient(t *testing.T) {
	fake := &fakeAPI{getErr: &fakeAPIError{code: "ThrottlingException"}}

	c := New(fake, 0)
	_, err := c.GetBlock(context.Background(), "snap-1234", 3, "t3")
	require.Error(t, err)
	assert.True(t, dsnaperr.IsTransient(err))

	var de *dsnaperr.Error
	require.True(t, errors.As(err, &de))
	assert.Equal(t, int64(3), de.Index)
}

func TestGetBlockClassifiesAccessDeniedAsUnauthorized(t *testing.T) {
	fake := &fakeAPI{getErr: &fakeAPIError{code: "AccessDenied"}}

	c := New(fake, 0)
	_, err := c.GetBlock(context.Background(), "snap-1234", 0, "t0")
	require.Error(t, err)
	assert.Equal(t, dsnaperr.KindUnauthorized, dsnaperr.KindOf(err))
}

func TestListBlocksClassifiesNotFound(t *testing.T) {
	fake := &fakeAPI{listErr: &fakeAPIError{code: "InvalidSnapshot.NotFound"}}

	c := New(fake, 0)
	_, _, err := c.ListBlocks(context.Background(), "snap-missing")
	require.Error(t, err)
	assert.Equal(t, dsnaperr.KindNotFound, dsnaperr.KindOf(err))
}

// TestListBlocksRetriesTransientPageError exercises spec.md §4.7's "list
// pagination calls use the same retry policy" requirement: a transient
// error on a page after the first must be retried, not abort the download.
func TestListBlocksRetriesTransientPageError(t *testing.T) {
	fake := &flakyListAPI{
		failUntilCall: 2,
		transientErr:  &fakeAPIError{code: "ThrottlingException"},
		pages: []*awsebs.ListSnapshotBlocksOutput{
			{
				BlockSize:  aws.Int32(524288),
				VolumeSize: aws.Int32(1),
				Blocks:     []types.Block{{BlockIndex: aws.Int32(0), BlockToken: aws.String("t0")}},
				NextToken:  aws.String("page2"),
			},
			{
				Blocks: []types.Block{{BlockIndex: aws.Int32(1), BlockToken: aws.String("t1")}},
			},
		},
	}

	c := New(fake, 0)
	_, descriptors, err := c.ListBlocks(context.Background(), "snap-1234")
	require.NoError(t, err)
	assert.Len(t, descriptors, 2)
	assert.Greater(t, fake.calls, 2, "expected the second page to be retried after a transient error")
}

// flakyListAPI fails every call to the second page with transientErr until
// failUntilCall has been reached, then serves it normally. Exercises the
// retry wrapping around ListBlocks' per-page call independent of GetBlock's.
type flakyListAPI struct {
	pages         []*awsebs.ListSnapshotBlocksOutput
	transientErr  error
	failUntilCall int
	calls         int
	pageIndex     int
}

func (f *flakyListAPI) ListSnapshotBlocks(ctx context.Context, in *awsebs.ListSnapshotBlocksInput, optFns ...func(*awsebs.Options)) (*awsebs.ListSnapshotBlocksOutput, error) {
	f.calls++
	if f.pageIndex == 1 && f.calls <= f.failUntilCall {
		return nil, f.transientErr
	}
	page := f.pages[f.pageIndex]
	f.pageIndex++
	return page, nil
}

func (f *flakyListAPI) GetSnapshotBlock(ctx context.Context, in *awsebs.GetSnapshotBlockInput, optFns ...func(*awsebs.Options)) (*awsebs.GetSnapshotBlockOutput, error) {
	return nil, errors.New("not implemented")
}

// fakeAPIError implements smithy.APIError for classification tests.
type fakeAPIError struct {
	code string
}

func (e *fakeAPIError) Error() string                  { return "api error: " + e.code }
func (e *fakeAPIError) ErrorCode() string              { return e.code }
func (e *fakeAPIError) ErrorMessage() string           { return e.code }
func (e *fakeAPIError) ErrorFault() smithy.ErrorFault { return smithy.FaultUnknown }

func newReader(s string) *stringReaderCloser {
	return &stringReaderCloser{s: s}
}

type stringReaderCloser struct {
	s   string
	pos int
}

func (r *stringReaderCloser) Read(p []byte) (int, error) {
	if r.pos >= len(r.s) {
		return 0, io.EOF
	}
	n := copy(p, r.s[r.pos:])
	r.pos += n
	return n, nil
}
