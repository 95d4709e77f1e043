package main

import (
	"os"

	"github.com/AnyUserName/tgimg-render/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
