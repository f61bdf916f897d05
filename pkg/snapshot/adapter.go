package snapshot

import (
	"context"

	"github.com/RhinoSecurityLabs/dsnap/pkg/blockqueue"
	"github.com/RhinoSecurityLabs/dsnap/pkg/ebs"
)

// ebsAPI is the subset of *ebs.Client the adapter needs, satisfied by the
// production client and by fakes in tests.
type ebsAPI interface {
	ListBlocks(ctx context.Context, snapshotID string) (ebs.Metadata, []ebs.Descriptor, error)
	GetBlock(ctx context.Context, snapshotID string, index int64, token string) (ebs.Block, error)
}

// ClientAdapter adapts a *ebs.Client (or compatible fake) to the narrower
// Lister and fetchpool.Fetcher interfaces the orchestrator and pool depend
// on. This file is the only place in pkg/snapshot that imports pkg/ebs;
// Download and pkg/fetchpool see only those interfaces.
type ClientAdapter struct {
	client ebsAPI
}

// NewClientAdapter wraps client for use as both a Lister and a
// fetchpool.Fetcher.
func NewClientAdapter(client ebsAPI) *ClientAdapter {
	return &ClientAdapter{client: client}
}

// ListBlocks implements Lister.
func (a *ClientAdapter) ListBlocks(ctx context.Context, snapshotID string) (int64, int64, []blockqueue.Descriptor, error) {
	meta, descriptors, err := a.client.ListBlocks(ctx, snapshotID)
	if err != nil {
		return 0, 0, nil, err
	}

	out := make([]blockqueue.Descriptor, len(descriptors))
	for i, d := range descriptors {
		out[i] = blockqueue.Descriptor{Index: d.Index, Token: d.Token}
	}
	return meta.BlockSizeBytes, meta.VolumeSizeBytes, out, nil
}

// GetBlock implements fetchpool.Fetcher.
func (a *ClientAdapter) GetBlock(ctx context.Context, snapshotID string, index int64, token string) ([]byte, string, error) {
	block, err := a.client.GetBlock(ctx, snapshotID, index, token)
	if err != nil {
		return nil, "", err
	}
	return block.Data, block.Checksum, nil
}
