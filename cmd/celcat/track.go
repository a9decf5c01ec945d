package main

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/signalsfoundry/celestial-catalog/ephem"
	"github.com/signalsfoundry/celestial-catalog/timectrl"
	"github.com/spf13/cobra"
)

var trackCmd = &cobra.Command{
	Use:   "track <object>",
	Short: "Sample the state of an object over a span of time",
	Long: `track steps from --start to --end in --step seconds of ephemeris time
and prints the state of the object at every step, in the session frame,
relative to --relative-to (default the frame center).`,
	Args: cobra.ExactArgs(1),
	RunE: runTrack,
}

func init() {
	trackCmd.Flags().String("start", "", "first epoch, UTC or \"ET <seconds>\" (default now)")
	trackCmd.Flags().String("end", "", "last epoch (default --start plus one day)")
	trackCmd.Flags().Float64("step", 3600, "step in seconds")
	trackCmd.Flags().String("relative-to", "", "observer object")
	trackCmd.Flags().String("format", "text", "output format: text or json")
	rootCmd.AddCommand(trackCmd)
}

// trackSample is one row of track output.
type trackSample struct {
	Epoch    timectrl.Epoch `json:"epoch"`
	EpochUTC string         `json:"epoch_utc"`
	ephem.State
}

func runTrack(cmd *cobra.Command, args []string) error {
	cfg, log, err := loadConfig()
	if err != nil {
		return err
	}
	ctx := cmd.Context()

	start, err := epochFlag(cmd, "start")
	if err != nil {
		return err
	}
	end := start.Add(timectrl.Day)
	if raw, _ := cmd.Flags().GetString("end"); raw != "" {
		if end, err = timectrl.ParseEpoch(raw); err != nil {
			return fmt.Errorf("--end: %w", err)
		}
	}
	step, _ := cmd.Flags().GetFloat64("step")
	relativeTo, _ := cmd.Flags().GetString("relative-to")
	format, _ := cmd.Flags().GetString("format")
	out, err := newSampleWriter(cmd.OutOrStdout(), format)
	if err != nil {
		return err
	}

	tc, err := timectrl.NewTimeController(start, end, step, timectrl.Accelerated)
	if err != nil {
		return err
	}

	sess, err := openSession(ctx, cfg, log, nil)
	if err != nil {
		return err
	}
	defer sess.Close()

	ref := args[0]
	if _, _, err := sess.Add(ctx, ref, false); err != nil {
		return err
	}
	if relativeTo != "" {
		if _, _, err := sess.Add(ctx, relativeTo, false); err != nil {
			return err
		}
	}

	tc.AddListener(func(et timectrl.Epoch) error {
		st, err := sess.State(ctx, ref, et, relativeTo)
		if err != nil {
			return err
		}
		return out.write(trackSample{Epoch: et, EpochUTC: et.String(), State: st})
	})
	if err := tc.Run(ctx); err != nil {
		return err
	}
	return out.flush()
}

type sampleWriter struct {
	write func(trackSample) error
	flush func() error
}

func newSampleWriter(w io.Writer, format string) (sampleWriter, error) {
	switch format {
	case "json":
		enc := json.NewEncoder(w)
		return sampleWriter{
			write: func(s trackSample) error { return enc.Encode(s) },
			flush: func() error { return nil },
		}, nil
	case "text", "":
		tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "EPOCH\tX (m)\tY (m)\tZ (m)\tVX (m/s)\tVY (m/s)\tVZ (m/s)")
		return sampleWriter{
			write: func(s trackSample) error {
				p, v := s.Position, s.Velocity
				_, err := fmt.Fprintf(tw, "%s\t%.3f\t%.3f\t%.3f\t%.6f\t%.6f\t%.6f\n",
					s.EpochUTC, p[0], p[1], p[2], v[0], v[1], v[2])
				return err
			},
			flush: tw.Flush,
		}, nil
	default:
		return sampleWriter{}, fmt.Errorf("unknown --format %q: want text or json", format)
	}
}
