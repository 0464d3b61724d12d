/* SPDX-License-Identifier: MIT
 *
 * Copyright (C) 2017-2025 WireGuard LLC. All Rights Reserved.
 */

// Package cli is the luminetctl command-line front end. It is purely an
// operator convenience wrapped around the luminet package's public API
// (spec.md lists "user-facing command-line interaction" as an external
// collaborator, specified at interface level only) — every subcommand
// is a thin shell around luminet.Client, cache.Store and cloud.Client.
package cli

import (
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"hermannm.dev/devlog"

	"github.com/luminet/luminet-go/cache"
)

var (
	debug     bool
	cachePath string
	cloudURL  string
	logLevel  slog.LevelVar
	cfg       LuminetCtlConfig
)

var rootCmd = &cobra.Command{
	CompletionOptions: cobra.CompletionOptions{
		DisableDefaultCmd: true,
	},
	Use:   "luminetctl",
	Short: "Command-line client for a mesh lighting network",
	Long: `luminetctl is an operator shell around the mesh lighting client
library: network discovery and login against the cloud, fixture-type
resolution, and a simulated handshake and dimmer command against an
in-memory peripheral.`,
}

// Execute adds all child commands to the root command and runs it.
// Called by main.main(); only needs to happen once.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	slog.SetDefault(slog.New(devlog.NewHandler(os.Stdout, &devlog.Options{
		Level: &logLevel,
	})))

	rootCmd.PersistentFlags().Bool("debug", false, "Print debug-level protocol logs")
	rootCmd.PersistentFlags().String("cache", "", "Path to the on-disk cache database (':memory:' for a transient cache)")
	rootCmd.PersistentFlags().String("cloud-url", "https://api.example-mesh.invalid", "Base URL of the cloud HTTPS collaborator")
	rootCmd.PersistentFlags().String("config", "", "Pathname of a configuration file")
	viper.BindPFlags(rootCmd.PersistentFlags())
}

// rootCmdLoadConfig reads the optional config file, then validates and
// stashes the flags every subcommand shares, mirroring the teacher's
// rootCmdLoadConfig/subcommand-specific-load split.
func rootCmdLoadConfig(cmd *cobra.Command) error {
	if err := viper.BindPFlags(cmd.Flags()); err != nil {
		return err
	}

	if path := viper.GetString("config"); path != "" {
		slog.Debug("loading configuration file", "path", path)
		viper.SetConfigFile(path)
		if err := viper.ReadInConfig(); err != nil {
			return fmt.Errorf("configuration file read failed: %w", err)
		}
	}

	debug = viper.GetBool("debug")
	if debug {
		logLevel.Set(slog.LevelDebug)
	}

	cloudURL = viper.GetString("cloud-url")
	cfg.Cloud.BaseURL = cloudURL
	if err := cfg.Cloud.validate(); err != nil {
		return err
	}

	cachePath = viper.GetString("cache")
	if cachePath == "" {
		return errors.New("missing required cache path (--cache); use ':memory:' for a transient cache")
	}
	cfg.Cache.Path = cachePath

	return nil
}

// openCache opens the configured cache store. Callers must Close it.
func openCache() (*cache.Store, error) {
	store, err := cache.Open(cachePath)
	if err != nil {
		return nil, fmt.Errorf("open cache %q: %w", cachePath, err)
	}
	return store, nil
}
