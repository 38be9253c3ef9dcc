package inspect

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/tphakala/rawrecord/internal/errors"
	"github.com/tphakala/rawrecord/internal/rawfile"
)

const chunkFrames = 4096

// Command creates the inspect command.
func Command() *cobra.Command {
	var channels, sampleRate int

	cmd := &cobra.Command{
		Use:   "inspect <file>",
		Short: "Summarize a raw capture file",
		Long:  "Print the length and per-channel peak, RMS and clipping of a raw float64 capture.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !cmd.Flags().Changed("channels") {
				channels = viper.GetInt("record.channels")
			}
			if !cmd.Flags().Changed("samplerate") {
				sampleRate = viper.GetInt("record.samplerate")
			}
			return run(afero.NewOsFs(), args[0], channels, sampleRate, cmd.OutOrStdout())
		},
	}

	cmd.Flags().IntVar(&channels, "channels", 0, "Channels per frame (default from config)")
	cmd.Flags().IntVar(&sampleRate, "samplerate", 0, "Sample rate in Hz (default from config)")
	return cmd
}

func run(fs afero.Fs, path string, channels, sampleRate int, out io.Writer) error {
	if channels < 1 {
		return errors.ValidationError(fmt.Sprintf("channels must be at least 1, got %d", channels))
	}

	f, err := fs.Open(path)
	if err != nil {
		return errors.New(err).
			Component("inspect").
			Category(errors.CategoryFileIO).
			FileContext(path, 0).
			Build()
	}
	defer f.Close()

	summary, err := rawfile.Analyze(rawfile.NewReader(f, channels, sampleRate), chunkFrames)
	if err != nil {
		return err
	}
	return printSummary(out, path, summary)
}

func printSummary(w io.Writer, path string, s rawfile.Summary) error {
	fmt.Fprintf(w, "File:     %s\n", path)
	fmt.Fprintf(w, "Channels: %d\n", s.Channels)
	fmt.Fprintf(w, "Frames:   %d\n", s.Frames)
	fmt.Fprintf(w, "Duration: %s\n\n", s.Duration)

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(tw, "CH\tPEAK dBFS\tRMS dBFS\tCLIPPED\t")
	for ch := range s.Channels {
		fmt.Fprintf(tw, "%d\t%.1f\t%.1f\t%d\t\n", ch+1, rawfile.DBFS(s.Peak[ch]), rawfile.DBFS(s.RMS[ch]), s.Clipped[ch])
	}
	return tw.Flush()
}
