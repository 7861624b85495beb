package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"go.uber.org/multierr"
	"go.viam.com/rdk/logging"

	assist "ur_assist"
)

const defaultScene = "scenes/assistive_ur5e.json"

var runFlags struct {
	host      string
	port      int
	timeout   float64
	scene     string
	catalogue string
	offline   bool
	realtime  bool
	paceScale float64
}

var runCmd = &cobra.Command{
	Use:   "run [program]",
	Short: "Play a program of gestures",
	Long: `Loads the scene, probes the controller once and plays every gesture of the
program in order. Gestures whose targets are missing from the scene are
skipped. Without a controller only the simulation runs.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		if len(args) == 1 {
			cfg.Program = args[0]
		}
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return runProgram(ctx, cfg, newLogger(), cmd.OutOrStdout())
	},
}

func init() {
	f := runCmd.Flags()
	f.StringVar(&runFlags.host, "host", assist.DefaultHost, "controller address")
	f.IntVar(&runFlags.port, "port", assist.DefaultPort, "controller command port")
	f.Float64Var(&runFlags.timeout, "timeout", assist.DefaultConnectTimeout.Seconds(), "probe timeout in seconds")
	f.BoolVar(&runFlags.offline, "offline", false, "skip the controller probe and run the simulation only")
	f.BoolVar(&runFlags.realtime, "realtime", false, "let simulated moves take their estimated time")
	f.Float64Var(&runFlags.paceScale, "pace-scale", 1, "multiplier for waits after controller commands")
	addSceneFlags(runCmd)
	rootCmd.AddCommand(runCmd)
}

func addSceneFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&runFlags.scene, "scene", defaultScene, "scene file")
	cmd.Flags().StringVar(&runFlags.catalogue, "catalogue", "", "gesture catalogue file (built-in when empty)")
}

// loadConfig reads --config when given and lets explicitly set flags override it.
func loadConfig(cmd *cobra.Command) (*assist.Config, error) {
	cfg := &assist.Config{Scene: defaultScene}
	if configPath != "" {
		var err error
		if cfg, err = assist.LoadConfig(configPath); err != nil {
			return nil, err
		}
	}

	flags := cmd.Flags()
	changed := func(name string) bool {
		return flags.Lookup(name) != nil && flags.Changed(name)
	}
	if changed("host") {
		cfg.Host = runFlags.host
	}
	if changed("port") {
		cfg.Port = runFlags.port
	}
	if changed("timeout") {
		cfg.ConnectTimeoutSec = runFlags.timeout
	}
	if changed("scene") {
		cfg.Scene = runFlags.scene
	}
	if changed("catalogue") {
		cfg.Catalogue = runFlags.catalogue
	}
	if changed("offline") {
		cfg.Offline = runFlags.offline
	}
	if changed("realtime") {
		cfg.Realtime = runFlags.realtime
	}
	if changed("pace-scale") {
		scale := runFlags.paceScale
		cfg.PaceScale = &scale
	}

	if err := cfg.Validate("flags"); err != nil {
		return nil, err
	}
	return cfg, nil
}

// openStation loads the catalogue and the scene it will run against.
func openStation(cfg *assist.Config, logger logging.Logger) (*assist.Catalogue, *assist.Station, error) {
	cat, err := assist.LoadCatalogue(cfg.Catalogue)
	if err != nil {
		return nil, nil, err
	}
	speed := cfg.SimSpeed
	if speed == 0 {
		speed = cat.Defaults.SimSpeed
	}
	st, err := assist.LoadStation(cfg.Scene, assist.StationOptions{Realtime: cfg.Realtime, Speed: speed}, logger)
	if err != nil {
		return nil, nil, err
	}
	return cat, st, nil
}

func runProgram(ctx context.Context, cfg *assist.Config, logger logging.Logger, out io.Writer) (err error) {
	cat, st, err := openStation(cfg, logger)
	if err != nil {
		return err
	}
	if _, err := cat.Program(cfg.Program); err != nil {
		return errors.Wrapf(err, "available programs: %v", cat.ProgramNames())
	}

	var link *assist.Link
	if cfg.Offline {
		logger.Info("offline: controller probe skipped")
	} else {
		var ok bool
		link, ok = assist.Probe(ctx, cfg.Host, cfg.Port, cfg.ConnectTimeout(), logger)
		if !ok {
			logger.Warnf("controller at %s:%d not reachable, running simulation only", cfg.Host, cfg.Port)
		} else {
			defer func() {
				err = multierr.Combine(err, link.Close())
			}()
		}
	}

	var hand assist.Hand
	if cfg.Hand != nil && link != nil {
		h, herr := assist.NewFeetechHand(ctx, *cfg.Hand, logger)
		if herr != nil {
			return errors.Wrap(herr, "failed to open hand")
		}
		hand = h
		defer func() {
			err = multierr.Combine(err, h.Close())
		}()
	}

	ch := assist.NewChoreographer(st, link, hand, cat, logger)
	ch.SetPaceScale(*cfg.PaceScale)

	report, err := ch.RunProgram(ctx, cfg.Program)
	for _, r := range report.Results {
		line := fmt.Sprintf("%-16s %-9s %v", r.Name, r.Outcome, r.Duration.Round(time.Millisecond))
		if r.Reason != "" {
			line += "  " + r.Reason
		}
		fmt.Fprintln(out, line)
	}
	logger.Infof("station %s", st.State())
	return err
}
