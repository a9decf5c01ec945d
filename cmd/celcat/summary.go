package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/signalsfoundry/celestial-catalog/coverage"
	"github.com/signalsfoundry/celestial-catalog/internal/session"
	"github.com/signalsfoundry/celestial-catalog/timectrl"
	"github.com/spf13/cobra"
)

var summaryCmd = &cobra.Command{
	Use:   "summary",
	Short: "Print parameters, coverage, state and orientation of tracked objects",
	Long: `summary tracks the objects named with --object as bodies, then the
solar system tree (or only its planets), and prints a report for every
tracked object at --epoch.`,
	RunE: runSummary,
}

func init() {
	summaryCmd.Flags().StringSlice("object", nil, "object to track as a body before the solar system; repeatable")
	summaryCmd.Flags().Bool("only-planets", false, "track only the barycenters, the Sun and the planets")
	summaryCmd.Flags().Bool("no-solar-system", false, "track only the objects named with --object")
	summaryCmd.Flags().String("epoch", "", "report epoch, UTC or \"ET <seconds>\" (default now)")
	rootCmd.AddCommand(summaryCmd)
}

func runSummary(cmd *cobra.Command, args []string) error {
	cfg, log, err := loadConfig()
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	et, err := epochFlag(cmd, "epoch")
	if err != nil {
		return err
	}

	sess, err := openSession(ctx, cfg, log, nil)
	if err != nil {
		return err
	}
	defer sess.Close()

	objects, _ := cmd.Flags().GetStringSlice("object")
	for _, ref := range objects {
		if _, _, err := sess.Add(ctx, ref, true); err != nil {
			return fmt.Errorf("track %q: %w", ref, err)
		}
	}
	if skip, _ := cmd.Flags().GetBool("no-solar-system"); !skip {
		onlyPlanets, _ := cmd.Flags().GetBool("only-planets")
		if err := sess.LoadSolarSystem(ctx, onlyPlanets); err != nil {
			return err
		}
	}

	objs, err := sess.Objects(ctx, session.FilterAll)
	if err != nil {
		return err
	}
	reports := make([]session.Report, 0, len(objs))
	for _, obj := range objs {
		rep, err := sess.Describe(ctx, fmt.Sprint(int(obj.ID())), et)
		if err != nil {
			return fmt.Errorf("describe %s: %w", obj, err)
		}
		reports = append(reports, rep)
	}
	return writeSummary(cmd.OutOrStdout(), sess.Kernels(), reports)
}

// epochFlag parses the named flag, defaulting to the current time.
func epochFlag(cmd *cobra.Command, name string) (timectrl.Epoch, error) {
	raw, _ := cmd.Flags().GetString(name)
	if raw == "" {
		return timectrl.EpochFromTime(timeNow()), nil
	}
	et, err := timectrl.ParseEpoch(raw)
	if err != nil {
		return 0, fmt.Errorf("--%s: %w", name, err)
	}
	return et, nil
}

func writeSummary(w io.Writer, kernels []string, reports []session.Report) error {
	var b strings.Builder
	b.WriteString("Loaded kernels:\n")
	for _, k := range kernels {
		fmt.Fprintf(&b, "\t%s\n", k)
	}
	b.WriteString("\n")
	for _, rep := range reports {
		writeReport(&b, rep)
	}
	_, err := io.WriteString(w, b.String())
	return err
}

func writeReport(b *strings.Builder, rep session.Report) {
	fmt.Fprintf(b, "%s (%d, %s) summary:\n", rep.Name, rep.ID, rep.Class)

	if rep.Parameters != nil {
		b.WriteString("Bulk parameters:\n")
		if len(rep.Parameters) == 0 {
			b.WriteString("\tNone available\n")
		}
		for _, p := range rep.Parameters {
			writeParameter(b, p)
		}
		b.WriteString("\n")
	}

	b.WriteString("State:\n\tCoverage:\n")
	writeIntervals(b, rep.Coverage, "Object does not contain any state data")
	b.WriteString("\n")
	fmt.Fprintf(b, "\t%s relative to %s:\n", rep.EpochUTC, rep.Frame)
	if st := rep.State; st != nil {
		fmt.Fprintf(b, "\t\tPos: %g %s m\n", st.Position.Norm(), st.Position)
		fmt.Fprintf(b, "\t\tVel: %g %s m/s\n", st.Velocity.Norm(), st.Velocity)
	} else {
		b.WriteString("\t\tNo state data on this epoch\n")
	}
	b.WriteString("\n")

	if o := rep.Orientation; o != nil {
		writeOrientation(b, rep, o)
	}
}

func writeParameter(b *strings.Builder, p session.ParameterValue) {
	switch {
	case p.Name == "radius" && len(p.Values) == 4:
		fmt.Fprintf(b, "\tradius: %g (%g, %g, %g) %s\n", p.Values[0], p.Values[1], p.Values[2], p.Values[3], p.Unit)
	case len(p.Values) == 1:
		fmt.Fprintf(b, "\t%s: %g %s\n", p.Name, p.Values[0], p.Unit)
	default:
		vals := make([]string, len(p.Values))
		for i, v := range p.Values {
			vals[i] = fmt.Sprintf("%g", v)
		}
		fmt.Fprintf(b, "\t%s: (%s) %s\n", p.Name, strings.Join(vals, ", "), p.Unit)
	}
}

func writeIntervals(b *strings.Builder, ivs []coverage.Interval, empty string) {
	if len(ivs) == 0 {
		fmt.Fprintf(b, "\t\t%s\n", empty)
		return
	}
	for _, iv := range ivs {
		fmt.Fprintf(b, "\t\t%s - %s\n", iv.Begin, iv.End)
	}
}

func writeOrientation(b *strings.Builder, rep session.Report, o *session.OrientationReport) {
	b.WriteString("Orientation:\n")
	defer b.WriteString("\n")
	if o.Frame == "" {
		b.WriteString("\tBody has no default frame\n")
		return
	}
	fmt.Fprintf(b, "(using frame %s)\n", o.Frame)
	if !o.HasData {
		b.WriteString("\tNo orientation data for this frame\n")
		return
	}
	b.WriteString("\tCoverage:\n")
	if o.Limited {
		writeIntervals(b, o.Coverage, "Object does not contain any orientation data")
	} else {
		b.WriteString("\t\tUnlimited\n")
	}
	fmt.Fprintf(b, "\t%s in %s:\n", rep.EpochUTC, rep.Frame)
	att := o.Attitude
	if att == nil {
		b.WriteString("\t\tNo orientation data available on this epoch\n")
		return
	}
	fmt.Fprintf(b, "\t\tX axis: %s\n", att.X)
	fmt.Fprintf(b, "\t\tY axis: %s\n", att.Y)
	fmt.Fprintf(b, "\t\tZ axis: %s\n", att.Z)
	b.WriteString("\t\tTransformation matrix:\n")
	for _, row := range att.Matrix {
		fmt.Fprintf(b, "\t\t\t%11.6f %11.6f %11.6f\n", row[0], row[1], row[2])
	}
}
