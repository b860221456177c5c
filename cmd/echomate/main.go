// Package main is the entry point for the echomate CLI.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/echomate/echomate/internal/config"
	"github.com/echomate/echomate/internal/core"
	"github.com/echomate/echomate/pkg/app"
	"github.com/spf13/cobra"
)

// Set by goreleaser ldflags.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "echomate",
		Short:         "A speech-in, speech-out conversation server for desk robots",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(versionCmd(), startCmd(), configCmd(), initCmd(), serviceCmd())
	return root
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version and compiled modules",
		Run: func(cmd *cobra.Command, _ []string) {
			printVersion(cmd.OutOrStdout())
		},
	}
}

func printVersion(w io.Writer) {
	fmt.Fprintf(w, "echomate %s (commit: %s, built: %s)\n", version, commit, date)
	namespaces := core.Namespaces()
	if len(namespaces) == 0 {
		fmt.Fprintln(w, "\nNo compiled modules.")
		return
	}
	fmt.Fprintln(w, "\nCompiled modules:")
	for _, ns := range namespaces {
		mods := core.GetModulesByNamespace(ns)
		ids := make([]string, len(mods))
		for i, mod := range mods {
			ids[i] = string(mod.ID)
		}
		fmt.Fprintf(w, "  %-9s %s\n", ns, strings.Join(ids, ", "))
	}
}

// runParams merges the --config flag with the ECHOMATE_* environment.
func runParams(cmd *cobra.Command) (app.RunParams, error) {
	env, err := config.LoadEnv()
	if err != nil {
		return app.RunParams{}, err
	}
	cfgPath, _ := cmd.Flags().GetString("config")
	if cfgPath == "" {
		cfgPath = env.ConfigPath
	}
	return app.RunParams{
		ConfigPath: cfgPath,
		DataDir:    env.DataDir,
		LogLevel:   env.Level(),
		LogFormat:  env.LogFormat,
		Version:    version,
		Commit:     commit,
		Date:       date,
	}, nil
}

func startCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "start",
		Short: "Start echomate with all configured modules",
		RunE: func(cmd *cobra.Command, _ []string) error {
			params, err := runParams(cmd)
			if err != nil {
				return err
			}
			return app.Run(params)
		},
	}
	cmd.Flags().StringP("config", "c", "", "Path to configuration file")
	return cmd
}

func configCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration management",
	}
	cmd.AddCommand(configCheckCmd(), configSchemaCmd())
	return cmd
}

func configCheckCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check <path>",
		Short: "Validate configuration and wire the pipeline without starting it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			params, err := runParams(cmd)
			if err != nil {
				return err
			}
			params.ConfigPath = args[0]
			params.LogOutput = io.Discard

			inst, err := app.Build(context.Background(), params)
			if err != nil {
				return err
			}
			defer inst.App.Discard()

			out := cmd.OutOrStdout()
			ids := inst.App.Modules()
			fmt.Fprintf(out, "Configuration OK (%d modules)\n", len(ids))
			for _, id := range ids {
				fmt.Fprintf(out, "  %s\n", id)
			}
			fmt.Fprintln(out, "\nPipeline:")
			for _, ns := range []string{"audio", "stt", "provider", "tts"} {
				fmt.Fprintf(out, "  %-8s %s\n", ns, inst.Engines[ns])
			}
			return nil
		},
	}
}

func configSchemaCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "schema",
		Short: "Print the JSON Schema of the configuration file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			schema, err := config.JSONSchema()
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), string(schema))
			return err
		},
	}
}
