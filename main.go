// SPDX-License-Identifier: MIT
package main

import (
	"spectro/cmd"
	"spectro/internal/log"
	"spectro/pkg/build"
)

func main() {
	// Development builds carry no ldflags and report "unknown".
	if err := build.Initialize(); err != nil {
		log.Debugf("Build information incomplete: %v", err)
	}

	if err := cmd.Execute(); err != nil {
		log.Fatalf("%v", err)
	}
}
