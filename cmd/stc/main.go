// Package main is the entry point for the Super Timecode Converter CLI.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/fiverecords/SuperTimecodeConverter/internal/engine"
	"github.com/fiverecords/SuperTimecodeConverter/internal/handler"
	"github.com/fiverecords/SuperTimecodeConverter/internal/host"
	"github.com/fiverecords/SuperTimecodeConverter/pkg/api"
	"github.com/fiverecords/SuperTimecodeConverter/pkg/tui"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

var (
	configPath      string
	debug           bool
	serverPort      int
	showProfilePath string
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "stc",
	Short: "Route and convert MTC, Art-Net, system-clock and LTC timecode",
	Long: `stc routes timecode between MIDI Timecode, Art-Net Timecode, the
host system clock and Linear Timecode over audio, across up to eight
independent engines.

Examples:
  stc run
  stc serve --port 8080
  stc tui`,
	Version: fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the REST status/control server",
	RunE:  runServe,
}

var tuiCmd = &cobra.Command{
	Use:   "tui",
	Short: "Launch the terminal dashboard",
	RunE:  runTUI,
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start the host and block, routing timecode with no UI",
	RunE:  runHeadless,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", defaultConfigPath(), "Settings file path")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "Enable verbose logging")
	rootCmd.PersistentFlags().StringVar(&showProfilePath, "show-profile", "", "Show-profile YAML to preset device names on startup")

	serveCmd.Flags().IntVarP(&serverPort, "port", "p", 8080, "Server port")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(tuiCmd)
	rootCmd.AddCommand(runCmd)
}

func newLogger() (*zap.Logger, error) {
	if debug {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

func installLoggers(l *zap.Logger) {
	handler.SetLogger(l)
	engine.SetLogger(l)
	host.SetLogger(l)
}

func runServe(cmd *cobra.Command, args []string) error {
	b, err := bootstrap()
	if err != nil {
		return err
	}
	defer b.close()

	stopTicking := b.startTicking()
	defer stopTicking()

	b.logger.Info("starting REST server", zap.Int("port", serverPort))
	srv := api.New(b.host, b.logger)
	return srv.Run(serverPort)
}

func runTUI(cmd *cobra.Command, args []string) error {
	b, err := bootstrap()
	if err != nil {
		return err
	}
	defer b.close()

	err = tui.Run(b.host)
	if saveErr := b.save(); saveErr != nil {
		b.logger.Warn("failed to save settings on exit", zap.Error(saveErr))
	}
	return err
}

func runHeadless(cmd *cobra.Command, args []string) error {
	b, err := bootstrap()
	if err != nil {
		return err
	}
	defer b.close()

	b.logger.Info("host running, press ctrl-c to stop")
	return b.runUntilInterrupted()
}
