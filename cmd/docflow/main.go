// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package main is the entry point for the docflow CLI.
package main

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pdiddy/docflow/internal/logging"
	"github.com/pdiddy/docflow/internal/secrets"
)

// version is set at build time via ldflags.
var version = "dev"

var (
	// loadedSecrets holds API keys loaded from .secrets/ at startup.
	loadedSecrets map[string]string

	// logger is built once the configuration is known.
	logger   log.Logger = logging.Nop()
	closeLog            = func() error { return nil }
)

// rootCmd is the base command for the docflow CLI.
var rootCmd = &cobra.Command{
	Use:   "docflow",
	Short: "Batch OCR of documents into Markdown, with optional workflow forwarding",
	Long: `docflow sends documents to a remote OCR service, writes the returned pages
as Markdown with the embedded images saved next to it, and optionally forwards
each Markdown file to a workflow service whose result lands in a shared
directory. Every stage is recorded in a per-document processing table.

Credentials come from the environment (MISTRAL_API_KEY, DIFY_API_KEY), a .env
file, docflow.yaml, or files in .secrets/.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		s, err := secrets.Load(".secrets/")
		if err != nil {
			return err
		}
		loadedSecrets = s
		if len(s) > 0 {
			keys := make([]string, 0, len(s))
			for k := range s {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			fmt.Fprintf(os.Stderr, "Loaded secrets: %v\n", keys)
		}

		l, c, err := logging.New(os.Stderr, logging.Options{
			Level: viper.GetString("log.level"),
			File:  viper.GetString("log.file"),
		})
		if err != nil {
			return err
		}
		logger, closeLog = l, c
		level.Debug(logger).Log("msg", "logger ready", "command", cmd.CommandPath())
		return nil
	},
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		return closeLog()
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().String("config", "", "config file (default: ./docflow.yaml or ~/.config/docflow/docflow.yaml)")
	rootCmd.PersistentFlags().String("log-level", "info", "log level: debug, info, warn, error")
	rootCmd.PersistentFlags().String("log-file", defaultLogFile, "additional log file (empty disables)")
	viper.BindPFlag("log.level", rootCmd.PersistentFlags().Lookup("log-level"))
	viper.BindPFlag("log.file", rootCmd.PersistentFlags().Lookup("log-file"))

	setDefaults(viper.GetViper())
	bindEnv(viper.GetViper())
}

func initConfig() {
	// A missing .env is normal; the environment may already be set.
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		fmt.Fprintln(os.Stderr, "Ignoring .env:", err)
	}

	cfgFile, _ := rootCmd.PersistentFlags().GetString("config")
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("docflow")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")

		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(filepath.Join(home, ".config", "docflow"))
		}
	}

	viper.SetEnvPrefix("DOCFLOW")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
