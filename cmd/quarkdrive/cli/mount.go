package cli

import (
	"errors"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/quarkdrive/quarkdrive/core"
	"github.com/quarkdrive/quarkdrive/vfs"
)

var mountCmd = &cobra.Command{
	Use:   "mount [MOUNT_POINT]",
	Short: "Mount the engine as a virtual volume",
	Long: `Present the engine's files as a virtual volume at the given mount
point through the native mount driver.

The mount point may also be set via the config file (mount.mount_point) or
QUARKDRIVE_MOUNT_MOUNT_POINT. The command blocks until interrupted.

A build without a native mount driver reports the volume as unavailable.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runMount,
}

func init() {
	rootCmd.AddCommand(mountCmd)
}

func runMount(cmd *cobra.Command, args []string) error {
	mountPoint := viper.GetString("mount.mount_point")
	if len(args) == 1 {
		mountPoint = args[0]
	}
	if mountPoint == "" {
		return fmt.Errorf("no mount point configured")
	}

	eng, err := openEngine()
	if err != nil {
		return err
	}
	defer eng.Close()

	adapter, err := vfs.NewAdapter(eng,
		vfs.WithMountHost(newMountHost()),
		vfs.WithLogger(newLogger()),
	)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := adapter.Mount(ctx, mountPoint); err != nil {
		if errors.Is(err, core.ErrMountUnavailable) {
			return fmt.Errorf("this build has no native mount driver: %w", err)
		}
		return err
	}
	return nil
}

// newMountHost returns the native mount capability for this build, or nil
// when none was compiled in.
func newMountHost() vfs.MountHost {
	return nil
}
