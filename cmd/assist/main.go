package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.viam.com/rdk/logging"
)

var (
	configPath string
	debug      bool
)

var rootCmd = &cobra.Command{
	Use:   "assist",
	Short: "Run assistive UR5e gestures in simulation and on the controller",
	Long: `assist loads a scene and a gesture catalogue, plays a program of gestures on
the simulated station and, when the controller answers on its command port,
sends the same motions to it as URScript.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "JSON config file")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "log at debug level")
}

func main() {
	if err := realMain(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "assist: %v\n", err)
		os.Exit(1)
	}
}

func realMain(args []string) error {
	rootCmd.SetArgs(args)
	return rootCmd.Execute()
}

func newLogger() logging.Logger {
	logger := logging.NewLogger("ur-assist")
	if debug {
		logger.SetLevel(logging.DEBUG)
	}
	return logger
}
