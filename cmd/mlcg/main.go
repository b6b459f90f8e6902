// Command mlcg lowers operation graphs through retargetable code-generation
// tables.
package main

import (
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/tebeka/atexit"

	"github.com/roach88/mlcg/internal/cli"
)

func main() {
	// Run databases opened by commands register their closing with atexit.
	interrupts := make(chan os.Signal, 1)
	signal.Notify(interrupts, os.Interrupt, syscall.SIGTERM)
	go func() {
		sig := <-interrupts
		fmt.Fprintln(os.Stderr, "Interrupted:", sig)
		atexit.Exit(cli.ExitInterrupted)
	}()

	err := cli.NewRootCommand().Execute()
	code := cli.GetExitCode(err)
	var exitErr *cli.ExitError
	// Check failures (exit 1) are already part of the command's report.
	if err != nil && (!errors.As(err, &exitErr) || code != cli.ExitFailure) {
		fmt.Fprintln(os.Stderr, "Error:", err)
	}
	atexit.Exit(code)
}
