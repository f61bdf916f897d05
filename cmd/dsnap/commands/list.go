package commands

import (
	"github.com/spf13/cobra"

	"github.com/RhinoSecurityLabs/dsnap/internal/bytesize"
	"github.com/RhinoSecurityLabs/dsnap/internal/cliout"
	"github.com/RhinoSecurityLabs/dsnap/pkg/ec2meta"
	"github.com/RhinoSecurityLabs/dsnap/pkg/ebs"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List EBS snapshots owned by the caller",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		ctx := cmd.Context()
		meta, err := ec2meta.NewFromConfig(ctx, ec2meta.Config{Region: cfg.Region, Profile: cfg.Profile})
		if err != nil {
			return err
		}

		snaps, err := meta.ListOwnSnapshots(ctx)
		if err != nil {
			return err
		}

		p, err := printer()
		if err != nil {
			return err
		}
		return p.Print(snapshotTable(snaps))
	},
}

// snapshotTable renders []ec2meta.Snapshot as a cliout.TableRenderer.
type snapshotTable []ec2meta.Snapshot

func (s snapshotTable) Headers() []string {
	return []string{"ID", "VOLUME", "SIZE", "STATE", "STARTED", "DESCRIPTION"}
}

func (s snapshotTable) Rows() [][]string {
	rows := make([][]string, len(s))
	for i, snap := range s {
		size := bytesize.ByteSize(int64(snap.VolumeSize) * ebs.GibibyteBytes)
		rows[i] = []string{snap.ID, snap.VolumeID, size.String(), snap.State, snap.StartTime.Format("2006-01-02T15:04:05Z"), snap.Description}
	}
	return rows
}
