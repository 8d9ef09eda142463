// © 2025 Evidence Lab
//
// SPDX-License-Identifier: Apache-2.0

// cloudcopy acquires forensic disk copies and analysis VMs on Google
// Cloud and Azure.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
