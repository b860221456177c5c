package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/kardianos/service"
	"github.com/spf13/cobra"

	"github.com/echomate/echomate/pkg/app"
)

// program adapts the application to the service manager.
type program struct {
	params app.RunParams
	inst   *app.Instance
}

// Start must not block.
func (p *program) Start(_ service.Service) error {
	inst, err := app.Build(context.Background(), p.params)
	if err != nil {
		return err
	}
	if err := inst.Start(); err != nil {
		return err
	}
	p.inst = inst
	inst.Logger.Info("echomate service started", "config", inst.ConfigPath)
	return nil
}

func (p *program) Stop(_ service.Service) error {
	if p.inst != nil {
		p.inst.Stop()
	}
	return nil
}

func serviceConfig(configPath string) *service.Config {
	cfg := &service.Config{
		Name:        "echomate",
		DisplayName: "echomate",
		Description: "Speech-in, speech-out conversation server for desk robots.",
		Arguments:   []string{"service", "run"},
		Option: service.KeyValue{
			"Restart":     "on-failure",
			"UserService": !isRoot(),
		},
	}
	if configPath != "" {
		cfg.Arguments = append(cfg.Arguments, "--config", configPath)
	}
	return cfg
}

func isRoot() bool {
	return os.Geteuid() == 0
}

func serviceCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "service",
		Short: "Manage echomate as a system service",
	}
	cmd.PersistentFlags().StringP("config", "c", "", "Path to configuration file")

	cmd.AddCommand(&cobra.Command{
		Use:    "run",
		Short:  "Run under the service manager",
		Hidden: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			params, err := runParams(cmd)
			if err != nil {
				return err
			}
			s, err := service.New(&program{params: params}, serviceConfig(params.ConfigPath))
			if err != nil {
				return err
			}
			return s.Run()
		},
	})

	for _, action := range []string{"install", "uninstall", "start", "stop", "restart"} {
		cmd.AddCommand(&cobra.Command{
			Use:   action,
			Short: fmt.Sprintf("%s the echomate service", action),
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				s, err := newControlService(cmd)
				if err != nil {
					return err
				}
				if err := service.Control(s, action); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "service %s: ok\n", action)
				return nil
			},
		})
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "Show the echomate service status",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := newControlService(cmd)
			if err != nil {
				return err
			}
			st, err := s.Status()
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "echomate: %s\n", statusText(st))
			return nil
		},
	})
	return cmd
}

// newControlService builds a handle for install/start/stop. The config
// path is made absolute because the service manager runs from another
// working directory.
func newControlService(cmd *cobra.Command) (service.Service, error) {
	cfgPath, _ := cmd.Flags().GetString("config")
	if cfgPath != "" {
		abs, err := filepath.Abs(cfgPath)
		if err != nil {
			return nil, err
		}
		cfgPath = abs
	}
	return service.New(&program{}, serviceConfig(cfgPath))
}

func statusText(st service.Status) string {
	switch st {
	case service.StatusRunning:
		return "running"
	case service.StatusStopped:
		return "stopped"
	default:
		return "unknown"
	}
}
