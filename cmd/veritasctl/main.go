package main

import (
	"github.com/RishiKendai/veritas/internal/cli"
)

func main() {
	cli.Execute()
}
