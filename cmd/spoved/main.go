package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/team-spoved/spoved/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		if !errors.Is(err, context.Canceled) {
			fmt.Fprintln(os.Stderr, err)
		}
		os.Exit(1)
	}
}
