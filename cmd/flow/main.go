package main

import (
	"github.com/heimdex/heimdex-flow/internal/cli"
	"github.com/heimdex/heimdex-flow/internal/config"
)

func main() {
	cli.Main(config.Version)
}
