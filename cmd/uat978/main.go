package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"uat978/internal/app"
	"uat978/internal/uaterr"
)

func main() {
	var config app.Config

	rootCmd := &cobra.Command{
		Use:   "uat978",
		Short: "UAT 978 MHz ADS-B receiver",
		Long: `A 978 MHz Universal Access Transceiver (UAT) receiver.

Demodulates UAT downlink and uplink frames from an RTL-SDR dongle, a
Stratux v3 serial dongle, a recorded IQ file, or stdin, corrects them
with Reed-Solomon FEC, decodes the DO-282B payload, and serves the
result over raw-line and JSON TCP listeners.

Example usage:
  uat978 --sdr 0 --raw-port 30978 --json-port 30979
  uat978 --file capture.cu8 --format cu8 --raw-stdout`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if config.ShowVersion {
				app.ShowVersion()
				return nil
			}

			if config.ConfigFile != "" {
				if err := config.LoadFile(config.ConfigFile, cmd.Flags().Changed); err != nil {
					return err
				}
			}
			if err := config.Validate(); err != nil {
				return err
			}

			application := app.NewApplication(config)
			return application.Start()
		},
	}

	flags := rootCmd.Flags()
	flags.BoolVar(&config.Stdin, "stdin", false, "read raw IQ samples from stdin")
	flags.StringVar(&config.File, "file", "", "read raw IQ samples from a file")
	flags.StringVar(&config.SDR, "sdr", "", "capture from an RTL-SDR device (index or serial)")
	flags.StringVar(&config.StratuxV3, "stratuxv3", "", "read from a Stratux v3 serial dongle at this device path")
	flags.StringVar(&config.Format, "format", "", "sample format for --stdin/--file: cu8, cs8, cs16h, cf32h")

	flags.IntVar(&config.SDRGain, "sdr-gain", 0, "RTL-SDR tuner gain in tenths of a dB")
	flags.BoolVar(&config.SDRAutoGain, "sdr-auto-gain", false, "enable RTL-SDR automatic gain control")
	flags.IntVar(&config.SDRPPM, "sdr-ppm", 0, "RTL-SDR frequency correction in PPM")
	flags.StringVar(&config.SDRAntenna, "sdr-antenna", "", "RTL-SDR antenna port selection")
	flags.StringVar(&config.SDRStreamSettings, "sdr-stream-settings", "", "driver-specific stream settings (key=value,key=value)")
	flags.StringVar(&config.SDRDeviceSettings, "sdr-device-settings", "", "driver-specific device settings (key=value,key=value)")

	flags.StringArrayVar(&config.RawPorts, "raw-port", nil, "listen address for the raw-port output (repeatable)")
	flags.StringArrayVar(&config.RawLegacyPorts, "raw-legacy-port", nil, "listen address for the raw-legacy-port output (repeatable)")
	flags.StringArrayVar(&config.JSONPorts, "json-port", nil, "listen address for the json-port output (repeatable)")

	flags.BoolVar(&config.RawStdout, "raw-stdout", false, "duplicate raw lines to stdout")
	flags.BoolVar(&config.JSONStdout, "json-stdout", false, "duplicate decoded JSON lines to stdout")

	flags.StringVar(&config.MetricsPort, "metrics-port", "", "listen address for the Prometheus /metrics endpoint")
	flags.StringVar(&config.ConfigFile, "config", "", "optional YAML config file, overridden by any flag set on the command line")
	flags.BoolVarP(&config.Verbose, "verbose", "v", false, "verbose logging")
	flags.BoolVar(&config.ShowVersion, "version", false, "show version information")

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(uaterr.ExitCode(err))
	}
}
