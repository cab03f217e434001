package main

import (
	"os"

	"github.com/freekieb7/storefront/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
