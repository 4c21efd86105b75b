package main

import (
	"context"
	"os"

	"txview/internal/cli"
)

func main() {
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		cli.Fail(os.Stderr, err)
		os.Exit(1)
	}
}
