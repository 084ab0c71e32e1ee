// Copyright (c) 2025 Nishisan. All rights reserved.
// Use of this source code is governed by the N-Backup License (Non-Commercial Evaluation)
// that can be found in the LICENSE file.

// Command rediscoro-cli is a minimal demo consumer of package rediscoro: it
// is not part of the library's contract, the way cmd/nbackup-agent sits
// outside internal/agent in the teacher repository.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
