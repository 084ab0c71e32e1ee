// Copyright (c) 2025 Nishisan. All rights reserved.
// Use of this source code is governed by the N-Backup License (Non-Commercial Evaluation)
// that can be found in the LICENSE file.

package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/nishisan-dev/rediscoro"
	"github.com/nishisan-dev/rediscoro/internal/config"
	"github.com/nishisan-dev/rediscoro/internal/logging"
)

var connectConfigPath string

var connectCmd = &cobra.Command{
	Use:     "connect",
	Short:   "Load a YAML config, connect, and drop into a command REPL",
	Example: "# rediscoro-cli connect --config rediscoro.yaml",
	RunE: func(cmd *cobra.Command, args []string) error {
		cliCfg, err := config.LoadCLIConfig(connectConfigPath)
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}

		logger, logCloser := logging.NewLogger(cliCfg.Logging.Level, cliCfg.Logging.Format, cliCfg.Logging.File)
		defer logCloser.Close()

		client, err := rediscoro.NewClient(cliConfigToRediscoro(cliCfg, logger))
		if err != nil {
			return fmt.Errorf("building client: %w", err)
		}

		ctx := context.Background()
		if err := client.Connect(ctx); err != nil {
			return fmt.Errorf("connecting: %w", err)
		}
		defer client.Close()

		fmt.Fprintf(os.Stdout, "connected to %s:%d, state=%s\n", cliCfg.Redis.Host, cliCfg.Redis.Port, client.State())
		return repl(ctx, client)
	},
}

func repl(ctx context.Context, client *rediscoro.Client) error {
	scanner := bufio.NewScanner(os.Stdin)
	fmt.Fprint(os.Stdout, "> ")
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			fmt.Fprint(os.Stdout, "> ")
			continue
		}
		if line == "quit" || line == "exit" {
			return nil
		}

		fields := strings.Fields(line)
		req := rediscoro.NewRequest()
		args := make([]any, len(fields)-1)
		for i, f := range fields[1:] {
			args[i] = f
		}
		req.Push(fields[0], args...)

		reply, err := rediscoro.ExecRaw(ctx, client, req)
		if err != nil {
			fmt.Fprintf(os.Stdout, "(error) %v\n", err)
		} else {
			fmt.Fprintln(os.Stdout, reply.String())
		}
		fmt.Fprint(os.Stdout, "> ")
	}
	return scanner.Err()
}

func init() {
	connectCmd.Flags().StringVar(&connectConfigPath, "config", "rediscoro.yaml", "path to CLI config file")
	rootCmd.AddCommand(connectCmd)
}
