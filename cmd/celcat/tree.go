package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/signalsfoundry/celestial-catalog/celestial"
	"github.com/signalsfoundry/celestial-catalog/internal/session"
	"github.com/signalsfoundry/celestial-catalog/naif"
	"github.com/spf13/cobra"
)

var treeCmd = &cobra.Command{
	Use:   "tree [object]",
	Short: "Track an object and its descendants and print the hierarchy",
	Long: `tree tracks the object (default the solar system barycenter) together
with its children, recursively unless --shallow is set, and prints the
resulting parent/child hierarchy.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runTree,
}

func init() {
	treeCmd.Flags().Bool("shallow", false, "track only the direct children")
	rootCmd.AddCommand(treeCmd)
}

func runTree(cmd *cobra.Command, args []string) error {
	cfg, log, err := loadConfig()
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	ref := "0"
	if len(args) == 1 {
		ref = args[0]
	}
	shallow, _ := cmd.Flags().GetBool("shallow")

	sess, err := openSession(ctx, cfg, log, nil)
	if err != nil {
		return err
	}
	defer sess.Close()

	if _, err := sess.LoadChildren(ctx, ref, true, !shallow); err != nil {
		return err
	}
	root, err := sess.Lookup(ref)
	if err != nil {
		return err
	}
	objs, err := sess.Objects(ctx, session.FilterAll)
	if err != nil {
		return err
	}
	return writeTree(cmd.OutOrStdout(), sess.Validator(), root, objs)
}

// writeTree prints root and its tracked descendants, children in tracking
// order.
func writeTree(w io.Writer, v naif.Validator, root celestial.Object, objs []celestial.Object) error {
	children := make(map[naif.ID][]celestial.Object)
	for _, obj := range objs {
		parent := naif.Parent(v, obj.ID())
		if parent == obj.ID() || obj.Same(root) {
			continue
		}
		children[parent] = append(children[parent], obj)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s (%d)\n", root.Name(), root.ID())
	var walk func(id naif.ID, prefix string)
	walk = func(id naif.ID, prefix string) {
		kids := children[id]
		for i, kid := range kids {
			branch, next := "├── ", "│   "
			if i == len(kids)-1 {
				branch, next = "└── ", "    "
			}
			fmt.Fprintf(&b, "%s%s%s (%d)\n", prefix, branch, kid.Name(), kid.ID())
			walk(kid.ID(), prefix+next)
		}
	}
	walk(root.ID(), "")
	_, err := io.WriteString(w, b.String())
	return err
}
