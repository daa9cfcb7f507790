// Command automl fits image classification and object detection models and
// runs the task conformance scenarios.
//
//	automl synth classification shopee-iet.zip
//	automl fit classification shopee-iet.zip --num-trials 4 --save model.json
//	automl conformance
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := newRootCommand().ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(exitCode(err))
	}
}
