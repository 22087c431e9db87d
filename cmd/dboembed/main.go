package main

import (
	"context"
	"fmt"
	"os"

	"github.com/fiam/dboembed/internal/app"
)

func main() {
	ctx := context.Background()
	if err := app.Run(ctx, os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, "dboembed:", err)
		os.Exit(1)
	}
}
