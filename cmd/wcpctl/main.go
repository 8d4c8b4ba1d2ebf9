// Package main provides the wcpctl command line tool.
package main

import (
	"os"

	"github.com/wcap/wcplib/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
