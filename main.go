package main

import (
	"github.com/encurtaweb/encurtador/cmd"

	// Subcommands register themselves with the root command via init().
	_ "github.com/encurtaweb/encurtador/cmd/cli"
	_ "github.com/encurtaweb/encurtador/cmd/server"
	_ "github.com/encurtaweb/encurtador/cmd/worker"
)

func main() {
	cmd.Execute()
}
