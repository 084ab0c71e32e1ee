// Copyright (c) 2025 Nishisan. All rights reserved.
// Use of this source code is governed by the N-Backup License (Non-Commercial Evaluation)
// that can be found in the LICENSE file.

package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nishisan-dev/rediscoro"
)

var (
	pingHost string
	pingPort uint16
)

var pingCmd = &cobra.Command{
	Use:     "ping",
	Short:   "Connect, send PING, print the reply, and disconnect",
	Example: "# rediscoro-cli ping --host localhost --port 6379",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := rediscoro.NewConfig()
		cfg.Host = pingHost
		cfg.Port = pingPort

		client, err := rediscoro.NewClient(cfg)
		if err != nil {
			return fmt.Errorf("building client: %w", err)
		}

		ctx := context.Background()
		if err := client.Connect(ctx); err != nil {
			return fmt.Errorf("connecting: %w", err)
		}
		defer client.Close()

		reply, err := rediscoro.Exec[string](ctx, client, "PING")
		if err != nil {
			return fmt.Errorf("ping: %w", err)
		}
		fmt.Println(reply)
		return nil
	},
}

func init() {
	pingCmd.Flags().StringVar(&pingHost, "host", "localhost", "redis host")
	pingCmd.Flags().Uint16Var(&pingPort, "port", 6379, "redis port")
	rootCmd.AddCommand(pingCmd)
}
