package cli

import (
	"fmt"
	"os"

	"github.com/tebeka/atexit"

	"github.com/roach88/mlcg/internal/store"
)

// runLog is an open run database. Closing it is also registered as an
// atexit handler, so a command interrupted before Close still closes the
// database when the process exits through atexit.Exit.
type runLog struct {
	*store.Store
	exit atexit.HandlerID
}

// openRunLog opens or creates the run database at path.
func openRunLog(path string) (*runLog, error) {
	st, err := store.Open(path)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to open database", err)
	}
	l := &runLog{Store: st}
	l.exit = atexit.Register(l.closeOnExit)
	return l, nil
}

// openExistingRunLog opens a run database that must already exist.
func openExistingRunLog(path string) (*runLog, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, NewExitError(ExitCommandError, fmt.Sprintf("database not found: %s", path))
	}
	return openRunLog(path)
}

func (l *runLog) closeOnExit() {
	if err := l.Store.Close(); err != nil {
		fmt.Fprintln(os.Stderr, "Error: closing database:", err)
	}
}

// Close closes the database and drops the exit handler.
func (l *runLog) Close() error {
	_ = l.exit.Cancel()
	return l.Store.Close()
}
