package main

import (
	"os"

	"github.com/hitoshi/bgmx/internal/cli"
)

var version = "dev"

func main() {
	os.Exit(cli.Execute(version))
}
