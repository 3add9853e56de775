package main

import (
	"fmt"
	"os"

	"github.com/aidanlsb/kmd/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		if !cli.IsSilent(err) {
			fmt.Fprintln(os.Stderr, "Error:", err)
		}
		os.Exit(1)
	}
}
