// Command timerload drives a metrics.Timer from concurrent workers doing
// synthetic work and logs its snapshots.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
)

func main() {
	os.Exit(run())
}

func run() int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	p := &program{}
	defer p.sync()

	if err := newRootCommand(p).ExecuteContext(ctx); err != nil {
		return 1
	}
	return 0
}
