package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/knotter/internal/config"
)

// CodeInvalidConfig marks a configuration that failed to load or validate.
const CodeInvalidConfig = "E_INVALID_CONFIG"

// ValidationResult is the JSON data of a successful validate run.
type ValidationResult struct {
	Valid  bool           `json:"valid"`
	Config *config.Config `json:"config"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate the configuration without opening the log",
		Long: `Load the configuration the way serve does (defaults, YAML file,
KNOTTER_* environment, --driver/--db flags), check it against the embedded
schema and print the effective settings.

Exit codes:
  0 - Configuration is valid
  1 - Configuration is invalid

Examples:
  knotter validate --config ./knotter.yaml
  KNOTTER_STORAGE_DRIVER=bolt knotter validate --format json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, cmd)
		},
	}

	return cmd
}

func runValidate(opts *RootOptions, cmd *cobra.Command) error {
	out := newFormatter(cmd, opts)
	out.VerboseLog("Loading configuration from %q", opts.Config)

	cfg, err := loadConfig(opts)
	if err != nil {
		msg := err.Error()
		var exitErr *ExitError
		if errors.As(err, &exitErr) && exitErr.Err != nil {
			msg = exitErr.Err.Error()
		}
		if err := out.Error(CodeInvalidConfig, msg, nil); err != nil {
			return err
		}
		return WrapExitError(ExitFailure, "invalid configuration", err)
	}

	if opts.Format == "json" {
		return out.Success(ValidationResult{Valid: true, Config: cfg})
	}

	w := cmd.OutOrStdout()
	fmt.Fprintln(w, "✓ Configuration valid")
	fmt.Fprintf(w, "  Server: %s (page size %d, rate limit %.0f/s burst %d)\n",
		cfg.Server.Addr, cfg.Server.PageSize, cfg.Server.RateLimit, cfg.Server.RateBurst)
	fmt.Fprintf(w, "  Storage: %s %s\n", cfg.Storage.Driver, cfg.Storage.Path)
	fmt.Fprintf(w, "  Geometry: sphere radius %g, min separation %g, impulse [%g, %g]\n",
		cfg.Geometry.SphereRadius, cfg.Geometry.MinSeparation,
		cfg.Geometry.MinImpulse, cfg.Geometry.MaxImpulse)
	fmt.Fprintf(w, "  Projection cache: %v\n", cfg.Projection.Cache)
	return nil
}
