package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/RhinoSecurityLabs/dsnap/internal/vagrant"
)

var initForce bool

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a Vagrantfile into the current directory for mounting downloaded images",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		path, err := vagrant.Init(".", initForce)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", path)
		return nil
	},
}

func init() {
	initCmd.Flags().BoolVar(&initForce, "force", false, "overwrite an existing Vagrantfile")
}
