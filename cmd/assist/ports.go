package main

import (
	"fmt"

	"github.com/spf13/cobra"

	assist "ur_assist"
)

var portsCmd = &cobra.Command{
	Use:   "ports",
	Short: "List serial ports, marking those a hand servo could be on",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ports, err := assist.ListSerialPorts()
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		if len(ports) == 0 {
			fmt.Fprintln(out, "no serial ports found")
			return nil
		}
		for _, p := range ports {
			mark := " "
			if p.Candidate {
				mark = "*"
			}
			usb := ""
			if p.IsUSB {
				usb = fmt.Sprintf("usb %s:%s %s", p.VID, p.PID, p.Serial)
			}
			fmt.Fprintf(out, "%s %-28s %s\n", mark, p.Name, usb)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(portsCmd)
}
