package record

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/tphakala/rawrecord/internal/conf"
)

// Command creates the record command.
func Command() *cobra.Command {
	var interactive bool

	cmd := &cobra.Command{
		Use:   "record [file]",
		Short: "Record from a capture device into a raw file",
		Long: `Record interleaved float64 samples from a capture device.

Without --interactive the file is opened, recording starts at once and stops
on SIGINT/SIGTERM or after --duration. With --interactive the session is
driven by commands on stdin: "open [file]", "start", "stop", "1", "0",
"status" and "quit".`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			settings := conf.GetSettings()
			if settings == nil {
				return fmt.Errorf("settings not loaded")
			}

			opts := Options{
				Interactive: interactive,
				In:          cmd.InOrStdin(),
				Out:         cmd.OutOrStdout(),
			}
			switch {
			case len(args) == 1:
				opts.Name = args[0]
			case !settings.Record.Prompt:
				opts.Name = settings.Record.FileName
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return Run(ctx, settings, opts)
		},
	}

	if err := setupFlags(cmd, &interactive); err != nil {
		panic(err)
	}
	return cmd
}

// setupFlags configures flags specific to the record command and binds them
// to their configuration keys.
func setupFlags(cmd *cobra.Command, interactive *bool) error {
	flags := cmd.Flags()
	flags.BoolVarP(interactive, "interactive", "i", false, "Read control commands from stdin")
	flags.String("device", "", "Capture device ID or name fragment (\"sysdefault\", \"USB Audio\", \"hw:1,0\")")
	flags.Int("channels", 0, "Channels to record")
	flags.Int("samplerate", 0, "Device sample rate in Hz")
	flags.String("outputdir", "", "Directory for relative file names")
	flags.Bool("prompt", false, "Ask for the file name with a save dialog")
	flags.Duration("duration", 0, "Stop after this long (0 records until interrupted)")
	flags.Bool("metrics", false, "Serve Prometheus metrics")
	flags.String("listen", "", "Listen address of the metrics endpoint")

	bindings := map[string]string{
		"record.device":     "device",
		"record.channels":   "channels",
		"record.samplerate": "samplerate",
		"record.outputdir":  "outputdir",
		"record.prompt":     "prompt",
		"record.duration":   "duration",
		"metrics.enabled":   "metrics",
		"metrics.listen":    "listen",
	}
	for key, flag := range bindings {
		if err := viper.BindPFlag(key, flags.Lookup(flag)); err != nil {
			return fmt.Errorf("error binding flag %s: %w", flag, err)
		}
	}
	return nil
}
