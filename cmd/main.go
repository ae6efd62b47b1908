package main

import (
	"os"

	"github.com/flowshot-io/zipdir/pkg/cli"
)

func main() {
	os.Exit(cli.Execute())
}
