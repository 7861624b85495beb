package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	assist "ur_assist"
)

var decodeCmd = &cobra.Command{
	Use:   "decode [line]",
	Short: "Decode URScript lines into their parameters",
	Long:  `Decodes the given line, or every line on stdin when none is given.`,
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(args) == 1 {
			return decodeLine(cmd.OutOrStdout(), args[0])
		}
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			line := strings.TrimSpace(scanner.Text())
			if line == "" {
				continue
			}
			if err := decodeLine(cmd.OutOrStdout(), line); err != nil {
				return err
			}
		}
		return scanner.Err()
	},
}

func init() {
	rootCmd.AddCommand(decodeCmd)
}

func decodeLine(w io.Writer, line string) error {
	c, err := assist.ParseCommand(line)
	if err != nil {
		return err
	}
	switch {
	case c.Kind == assist.KindSetTCP:
		fmt.Fprintf(w, "%s offset=%v\n", c.Kind, c.Pose)
	case c.IsPose:
		fmt.Fprintf(w, "%s pose=%v a=%g v=%g t=%g r=%g\n", c.Kind, c.Pose, c.Accel, c.Speed, c.Duration, c.Blend)
	default:
		fmt.Fprintf(w, "%s joints=%v a=%g v=%g t=%g r=%g\n", c.Kind, c.Joints, c.Accel, c.Speed, c.Duration, c.Blend)
	}
	return nil
}
