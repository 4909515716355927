package main

import (
	"os"

	"skillcred/cmd/skillcred/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
