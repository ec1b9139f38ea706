package main

import (
	"fmt"
	"os"

	"github.com/coffersTech/ftfcut/internal/cli"
)

func main() {
	if err := cli.NewRoot(os.Stdout, os.Stderr, os.Getenv).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "ftfcut:", err)
		os.Exit(1)
	}
}
