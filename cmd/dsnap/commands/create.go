package commands

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/RhinoSecurityLabs/dsnap/internal/cliprompt"
	"github.com/RhinoSecurityLabs/dsnap/pkg/ec2meta"
)

var createCmd = &cobra.Command{
	Use:   "create [volume-id]",
	Short: "Create a snapshot of a volume and print its id",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		meta, err := ec2meta.NewFromConfig(ctx, ec2meta.Config{Region: cfg.Region, Profile: cfg.Profile})
		if err != nil {
			return err
		}

		volumeID := ""
		if len(args) == 1 {
			volumeID = args[0]
		} else {
			volumeID, err = cliprompt.InputRequired("Volume id (vol-...)")
			if err != nil {
				return err
			}
		}

		// release is intentionally discarded: unlike the one `get` creates
		// implicitly while prompting, a snapshot created explicitly via
		// `create` is meant to outlive this process.
		id, _, err := meta.CreateTemporarySnapshot(ctx, volumeID)
		if err != nil {
			return err
		}

		fmt.Fprintln(cmd.OutOrStdout(), id)
		return nil
	},
}
