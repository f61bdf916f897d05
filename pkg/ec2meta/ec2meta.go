// Package ec2meta is a thin facade over aws-sdk-go-v2/service/ec2,
// supplying the instance/volume/snapshot discovery and temporary-snapshot
// creation that sit outside the core block-fetch pipeline (spec.md's
// core contract proper is pkg/ebs/pkg/snapshot). It exists to give
// dsnap's interactive "get" flow and "create"/"list" subcommands
// something to call.
package ec2meta

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	"github.com/aws/aws-sdk-go-v2/service/ec2/types"

	"github.com/RhinoSecurityLabs/dsnap/internal/logger"
	"github.com/RhinoSecurityLabs/dsnap/pkg/dsnaperr"
)

// Instance is the subset of instance metadata the prompt chain and list
// output need.
type Instance struct {
	ID       string
	Name     string
	State    string
	VpcID    string
	SubnetID string
}

// Volume is the subset of volume metadata needed for selection.
type Volume struct {
	ID          string
	Devices     []string
	InstanceIDs []string
}

// Snapshot is the subset of snapshot metadata needed for selection and
// listing.
type Snapshot struct {
	ID          string
	VolumeID    string
	VolumeSize  int32 // GiB, as reported by DescribeSnapshots
	StartTime   time.Time
	State       string
	Description string
	OwnerID     string
}

// API is the subset of the EC2 SDK client ec2meta needs; satisfied by
// *ec2.Client and by fakes in tests.
type API interface {
	DescribeInstances(ctx context.Context, in *ec2.DescribeInstancesInput, optFns ...func(*ec2.Options)) (*ec2.DescribeInstancesOutput, error)
	DescribeVolumes(ctx context.Context, in *ec2.DescribeVolumesInput, optFns ...func(*ec2.Options)) (*ec2.DescribeVolumesOutput, error)
	DescribeSnapshots(ctx context.Context, in *ec2.DescribeSnapshotsInput, optFns ...func(*ec2.Options)) (*ec2.DescribeSnapshotsOutput, error)
	CreateSnapshot(ctx context.Context, in *ec2.CreateSnapshotInput, optFns ...func(*ec2.Options)) (*ec2.CreateSnapshotOutput, error)
	DeleteSnapshot(ctx context.Context, in *ec2.DeleteSnapshotInput, optFns ...func(*ec2.Options)) (*ec2.DeleteSnapshotOutput, error)
}

// snapshotWaiter is satisfied by ec2.NewSnapshotCompletedWaiter(client);
// narrowed to an interface so tests can substitute a fake that returns
// immediately.
type snapshotWaiter interface {
	Wait(ctx context.Context, in *ec2.DescribeSnapshotsInput, maxWait time.Duration, optFns ...func(*ec2.SnapshotCompletedWaiterOptions)) error
}

// Config configures Client construction via NewFromConfig.
type Config struct {
	Region  string
	Profile string
}

// Client is the ec2meta facade.
type Client struct {
	api    API
	waiter snapshotWaiter
}

// NewFromConfig builds a Client, resolving AWS credentials the same way
// pkg/ebs.NewFromConfig does.
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

	client := ec2.NewFromConfig(awsCfg)
	return &Client{api: client, waiter: ec2.NewSnapshotCompletedWaiter(client)}, nil
}

// New wraps an existing API implementation (production client or test
// fake).
func New(api API, waiter snapshotWaiter) *Client {
	return &Client{api: api, waiter: waiter}
}

// ListInstances paginates DescribeInstances to exhaustion and flattens
// reservations into a single Instance slice, grounded on the teacher's
// s3.NewListObjectsV2Paginator pagination idiom.
func (c *Client) ListInstances(ctx context.Context) ([]Instance, error) {
	var out []Instance
	paginator := ec2.NewDescribeInstancesPaginator(c.api, &ec2.DescribeInstancesInput{})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, dsnaperr.New(dsnaperr.KindUnknown, fmt.Errorf("describe instances: %w", err))
		}
		for _, res := range page.Reservations {
			for _, inst := range res.Instances {
				out = append(out, Instance{
					ID:       aws.ToString(inst.InstanceId),
					Name:     nameTag(inst.Tags),
					State:    string(inst.State.Name),
					VpcID:    aws.ToString(inst.VpcId),
					SubnetID: aws.ToString(inst.SubnetId),
				})
			}
		}
	}
	return out, nil
}

// ListVolumesForInstance returns the volumes attached to instanceID.
func (c *Client) ListVolumesForInstance(ctx context.Context, instanceID string) ([]Volume, error) {
	return c.listVolumes(ctx, &ec2.DescribeVolumesInput{
		Filters: []types.Filter{{
			Name:   aws.String("attachment.instance-id"),
			Values: []string{instanceID},
		}},
	})
}

func (c *Client) listVolumes(ctx context.Context, in *ec2.DescribeVolumesInput) ([]Volume, error) {
	var out []Volume
	paginator := ec2.NewDescribeVolumesPaginator(c.api, in)
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, dsnaperr.New(dsnaperr.KindUnknown, fmt.Errorf("describe volumes: %w", err))
		}
		for _, vol := range page.Volumes {
			v := Volume{ID: aws.ToString(vol.VolumeId)}
			for _, a := range vol.Attachments {
				v.Devices = append(v.Devices, aws.ToString(a.Device))
				v.InstanceIDs = append(v.InstanceIDs, aws.ToString(a.InstanceId))
			}
			out = append(out, v)
		}
	}
	return out, nil
}

// ListSnapshotsForVolume returns the snapshots of volumeID owned by the
// caller.
func (c *Client) ListSnapshotsForVolume(ctx context.Context, volumeID string) ([]Snapshot, error) {
	return c.listSnapshots(ctx, &ec2.DescribeSnapshotsInput{
		OwnerIds: []string{"self"},
		Filters: []types.Filter{{
			Name:   aws.String("volume-id"),
			Values: []string{volumeID},
		}},
	})
}

// ListOwnSnapshots returns every snapshot owned by the caller, for
// `dsnap list`.
func (c *Client) ListOwnSnapshots(ctx context.Context) ([]Snapshot, error) {
	return c.listSnapshots(ctx, &ec2.DescribeSnapshotsInput{OwnerIds: []string{"self"}})
}

func (c *Client) listSnapshots(ctx context.Context, in *ec2.DescribeSnapshotsInput) ([]Snapshot, error) {
	var out []Snapshot
	paginator := ec2.NewDescribeSnapshotsPaginator(c.api, in)
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, dsnaperr.New(dsnaperr.KindUnknown, fmt.Errorf("describe snapshots: %w", err))
		}
		for _, snap := range page.Snapshots {
			var start time.Time
			if snap.StartTime != nil {
				start = *snap.StartTime
			}
			out = append(out, Snapshot{
				ID:          aws.ToString(snap.SnapshotId),
				VolumeID:    aws.ToString(snap.VolumeId),
				VolumeSize:  aws.ToInt32(snap.VolumeSize),
				StartTime:   start,
				State:       string(snap.State),
				Description: aws.ToString(snap.Description),
				OwnerID:     aws.ToString(snap.OwnerId),
			})
		}
	}
	return out, nil
}

// CreateTemporarySnapshot takes a snapshot of volumeID, blocks until it
// reaches the "completed" state, and returns its id along with a Release
// function that deletes it. The caller is responsible for invoking
// Release exactly once, whether by defer or by a signal handler — this
// replaces the original implementation's atexit-hook cleanup with an
// explicit, scoped acquisition.
func (c *Client) CreateTemporarySnapshot(ctx context.Context, volumeID string) (id string, release func(), err error) {
	out, err := c.api.CreateSnapshot(ctx, &ec2.CreateSnapshotInput{
		VolumeId:    aws.String(volumeID),
		Description: aws.String(fmt.Sprintf("dsnap temporary snapshot of %s", volumeID)),
		TagSpecifications: []types.TagSpecification{{
			ResourceType: types.ResourceTypeSnapshot,
			Tags:         []types.Tag{{Key: aws.String("dsnap"), Value: aws.String("true")}},
		}},
	})
	if err != nil {
		return "", nil, dsnaperr.New(dsnaperr.KindUnknown, fmt.Errorf("create snapshot: %w", err))
	}
	snapID := aws.ToString(out.SnapshotId)

	logger.Info("waiting for temporary snapshot to complete", logger.SnapshotID(snapID))
	if err := c.waiter.Wait(ctx, &ec2.DescribeSnapshotsInput{SnapshotIds: []string{snapID}}, 10*time.Minute); err != nil {
		return "", nil, dsnaperr.New(dsnaperr.KindUnknown, fmt.Errorf("wait for snapshot completion: %w", err))
	}

	release = func() {
		_, delErr := c.api.DeleteSnapshot(context.Background(), &ec2.DeleteSnapshotInput{SnapshotId: aws.String(snapID)})
		if delErr != nil {
			logger.Warn("failed to delete temporary snapshot", logger.SnapshotID(snapID), logger.Err(delErr))
			return
		}
		logger.Info("deleted temporary snapshot", logger.SnapshotID(snapID))
	}

	return snapID, release, nil
}

func nameTag(tags []types.Tag) string {
	for _, t := range tags {
		if aws.ToString(t.Key) == "Name" {
			return aws.ToString(t.Value)
		}
	}
	return ""
}
