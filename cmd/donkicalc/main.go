package main

import (
	"fmt"
	"os"

	"github.com/noah-isme/donkicalc-api/internal/cli"
)

func main() {
	if err := cli.NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "donkicalc:", err)
		os.Exit(1)
	}
}
