// Command ffmsindex builds ffms index files.
//
// Usage:
//
//	ffmsindex [flags] inputfile [outputfile]
//	ffmsindex info indexfile
package main

import (
	"context"
	"os"
	"os/signal"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	if err := newRootCommand().ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}
