// Copyright (c) 2025 Nishisan. All rights reserved.
// Use of this source code is governed by the N-Backup License (Non-Commercial Evaluation)
// that can be found in the LICENSE file.

package main

import "github.com/spf13/cobra"

var rootCmd = &cobra.Command{
	Use:   "rediscoro-cli",
	Short: "A minimal RESP3 client for exercising the rediscoro connection engine",
}
