package commands

import (
	"context"
	"fmt"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/RhinoSecurityLabs/dsnap/internal/bytesize"
	"github.com/RhinoSecurityLabs/dsnap/internal/cliprompt"
	"github.com/RhinoSecurityLabs/dsnap/internal/logger"
	"github.com/RhinoSecurityLabs/dsnap/pkg/dsnaperr"
	"github.com/RhinoSecurityLabs/dsnap/pkg/ebs"
	"github.com/RhinoSecurityLabs/dsnap/pkg/ec2meta"
	"github.com/RhinoSecurityLabs/dsnap/pkg/snapshot"
)

var (
	getOutput string
	getForce  bool
)

var getCmd = &cobra.Command{
	Use:   "get [snapshot-id|instance-id]",
	Short: "Download an EBS snapshot to a local sparse image file",
	Long: `Downloads the given snapshot (snap-...) to a local image file.

If the argument is an instance id (i-...), prompts for which of its
volumes' snapshots to download, offering to create a temporary one if
none exist. With no argument at all, prompts for an instance first.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var arg string
		if len(args) == 1 {
			arg = args[0]
		}

		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		runID := uuid.New().String()
		logger.Info("starting get", logger.RunID(runID))

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		meta, err := ec2meta.NewFromConfig(ctx, ec2meta.Config{Region: cfg.Region, Profile: cfg.Profile})
		if err != nil {
			return err
		}

		snapshotID, release, err := resolveSnapshotID(ctx, meta, arg)
		if err != nil {
			return err
		}
		if release != nil {
			defer release()
		}

		requestTimeout, err := time.ParseDuration(cfg.RequestTimeout)
		if err != nil {
			requestTimeout = 30 * time.Second
		}

		client, err := ebs.NewFromConfig(ctx, ebs.Config{
			Region:         cfg.Region,
			Profile:        cfg.Profile,
			Workers:        cfg.Workers,
			RequestTimeout: requestTimeout,
		})
		if err != nil {
			return err
		}
		adapter := snapshot.NewClientAdapter(client)

		output := snapshotID + ".img"
		if getOutput != "" {
			output = filepath.Join(getOutput, output)
		}

		force := getForce
		fmt.Fprintf(cmd.OutOrStdout(), "Downloading %s to %s\n", snapshotID, output)
		result, err := snapshot.Download(ctx, adapter, adapter, snapshot.Params{
			SnapshotID: snapshotID,
			OutputPath: output,
			Force:      force,
			NumWorkers: cfg.Workers,
		})
		if dsnaperr.IsOutputExists(err) {
			overwrite, promptErr := cliprompt.ConfirmWithForce(fmt.Sprintf("%s already exists, overwrite?", output), force)
			if promptErr != nil {
				return promptErr
			}
			if !overwrite {
				return err
			}
			result, err = snapshot.Download(ctx, adapter, adapter, snapshot.Params{
				SnapshotID: snapshotID,
				OutputPath: output,
				Force:      true,
				NumWorkers: cfg.Workers,
			})
		}
		if err != nil {
			return err
		}

		logger.Info("get complete", logger.RunID(runID), logger.SnapshotID(snapshotID), logger.BlocksDone(result.BlocksWritten))
		fmt.Fprintf(cmd.OutOrStdout(), "\nWrote %s (%d of %d blocks, %s)\n",
			result.OutputPath, result.BlocksWritten, result.TotalBlocks, bytesize.ByteSize(result.VolumeSize))
		return nil
	},
}

func init() {
	getCmd.Flags().StringVarP(&getOutput, "output", "O", "", "directory to write <snapshot-id>.img into (default: current directory)")
	getCmd.Flags().BoolVarP(&getForce, "force", "f", false, "overwrite the output file if it already exists")
}

// resolveSnapshotID implements the instance -> volume -> snapshot
// resolution chain, grounded on the original implementation's
// prompt.snap_from_input. It returns a release function when a
// temporary snapshot was created on the user's behalf.
func resolveSnapshotID(ctx context.Context, meta *ec2meta.Client, arg string) (string, func(), error) {
	switch {
	case arg == "":
		instanceID, err := promptForInstance(ctx, meta)
		if err != nil {
			return "", nil, err
		}
		return resolveFromInstance(ctx, meta, instanceID)
	case strings.HasPrefix(arg, "snap-"):
		return arg, nil, nil
	case strings.HasPrefix(arg, "i-"):
		return resolveFromInstance(ctx, meta, arg)
	default:
		return "", nil, dsnaperr.New(dsnaperr.KindNotFound, fmt.Errorf("unrecognized argument %q: expected a snapshot id (snap-...) or instance id (i-...)", arg))
	}
}

func resolveFromInstance(ctx context.Context, meta *ec2meta.Client, instanceID string) (string, func(), error) {
	volumeID, err := promptForVolume(ctx, meta, instanceID)
	if err != nil {
		return "", nil, err
	}

	snaps, err := meta.ListSnapshotsForVolume(ctx, volumeID)
	if err != nil {
		return "", nil, err
	}
	if len(snaps) == 0 {
		ok, err := cliprompt.Confirm("No snapshots found for this volume, create a temporary one?", true)
		if err != nil {
			return "", nil, err
		}
		if !ok {
			return "", nil, fmt.Errorf("no snapshot selected")
		}
		return meta.CreateTemporarySnapshot(ctx, volumeID)
	}
	if len(snaps) == 1 {
		return snaps[0].ID, nil, nil
	}

	options := make([]cliprompt.SelectOption, len(snaps))
	for i, s := range snaps {
		options[i] = cliprompt.SelectOption{
			Label:       s.ID,
			Value:       s.ID,
			Description: fmt.Sprintf("started %s, %s", s.StartTime.Format(time.RFC3339), s.Description),
		}
	}
	id, err := cliprompt.Select("Select a snapshot", options)
	return id, nil, err
}

func promptForInstance(ctx context.Context, meta *ec2meta.Client) (string, error) {
	instances, err := meta.ListInstances(ctx)
	if err != nil {
		return "", err
	}
	if len(instances) == 0 {
		return "", fmt.Errorf("no instances found")
	}

	options := make([]cliprompt.SelectOption, len(instances))
	for i, inst := range instances {
		options[i] = cliprompt.SelectOption{
			Label:       fmt.Sprintf("%s (%s)", inst.ID, inst.Name),
			Value:       inst.ID,
			Description: fmt.Sprintf("vpc=%s subnet=%s state=%s", inst.VpcID, inst.SubnetID, inst.State),
		}
	}
	return cliprompt.Select("Select an instance", options)
}

func promptForVolume(ctx context.Context, meta *ec2meta.Client, instanceID string) (string, error) {
	volumes, err := meta.ListVolumesForInstance(ctx, instanceID)
	if err != nil {
		return "", err
	}
	if len(volumes) == 0 {
		return "", fmt.Errorf("no volumes attached to %s", instanceID)
	}
	if len(volumes) == 1 {
		logger.Debug("single volume attached, skipping prompt", logger.VolumeID(volumes[0].ID))
		return volumes[0].ID, nil
	}

	options := make([]cliprompt.SelectOption, len(volumes))
	for i, v := range volumes {
		options[i] = cliprompt.SelectOption{
			Label:       v.ID,
			Value:       v.ID,
			Description: strings.Join(v.Devices, ", "),
		}
	}
	return cliprompt.Select("Select a volume", options)
}
