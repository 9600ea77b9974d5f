package cli

import (
	"github.com/spf13/cobra"

	"github.com/roach88/knotter/internal/globeid"
)

// NewGlobeIDCommand creates the globe-id command.
func NewGlobeIDCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "globe-id",
		Short: "Allocate an unused globe id",
		Long: `Print a fresh globe id that has no events in the log.

Examples:
  knotter globe-id --db ./knotter.db`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := openRuntime(rootOpts, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer rt.Close()

			id, err := globeid.NewAllocator(rt.log).Allocate(cmd.Context())
			if err != nil {
				return WrapExitError(ExitFailure, "failed to allocate globe id", err)
			}

			out := newFormatter(cmd, rootOpts)
			if rootOpts.Format == "json" {
				return out.Success(map[string]string{"new_globe_id": id})
			}
			return out.Success(id)
		},
	}
}
