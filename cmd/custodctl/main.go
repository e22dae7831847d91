package main

import (
	"os"

	"github.com/custodian-sh/custodian/cmd/custodctl/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
