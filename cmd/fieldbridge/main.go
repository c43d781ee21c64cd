package main

import (
	"os"

	"github.com/solatis/fieldbridge/cmd/fieldbridge/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
