package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	assist "ur_assist"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List programs and gestures and check their targets against the scene",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		cat, st, err := openStation(cfg, newLogger())
		if err != nil {
			return err
		}

		listCatalogue(cmd.OutOrStdout(), cat, st)
		return nil
	},
}

var previewCmd = &cobra.Command{
	Use:   "preview <gesture>",
	Short: "Print the URScript a gesture would send",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		logger := newLogger()
		cat, st, err := openStation(cfg, logger)
		if err != nil {
			return err
		}
		lines, err := assist.NewChoreographer(st, nil, nil, cat, logger).Preview(args[0])
		if err != nil {
			return err
		}
		for _, l := range lines {
			fmt.Fprintln(cmd.OutOrStdout(), l)
		}
		return nil
	},
}

// listCatalogue prints the programs and, per gesture, the scene targets it
// would be skipped for.
func listCatalogue(w io.Writer, cat *assist.Catalogue, sim assist.Simulator) {
	fmt.Fprintln(w, "programs:")
	for _, name := range cat.ProgramNames() {
		seq, _ := cat.Program(name)
		fmt.Fprintf(w, "  %-12s %s\n", name, strings.Join(seq, " → "))
	}
	fmt.Fprintln(w, "gestures:")
	for _, g := range cat.Gestures {
		status := "ok"
		if missing := missingTargets(g, sim); len(missing) > 0 {
			status = "missing " + strings.Join(missing, ", ")
		}
		fmt.Fprintf(w, "  %-16s %-4d sim / %-3d robot steps  %s\n", g.Name, len(g.Sim), len(g.Robot), status)
	}
}

// missingTargets applies the same rule as a run: every target must resolve
// and movej targets must carry joints.
func missingTargets(g assist.Gesture, sim assist.Simulator) []string {
	names, needJoints := g.RequiredTargets()
	var missing []string
	for _, n := range names {
		t := sim.Item(n)
		if !t.Valid() || (needJoints[n] && !t.HasJoints()) {
			missing = append(missing, n)
		}
	}
	return missing
}

func init() {
	addSceneFlags(listCmd)
	addSceneFlags(previewCmd)
	rootCmd.AddCommand(listCmd, previewCmd)
}
