package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/planner/internal/remote/file"
	"github.com/mesh-intelligence/planner/pkg/types"
)

var errWatchBackend = errors.New("watch needs the file backend")

func newWatchCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:       "watch [guests|tasks]",
		Short:     "Print a summary each time a table changes on disk",
		Long:      "Watch follows the data directory of the file backend and prints a summary\nwhenever another editor saves a table. Stop it with Ctrl-C.",
		Args:      cobra.MatchAll(cobra.MaximumNArgs(1), cobra.OnlyValidArgs),
		ValidArgs: types.StandardTableNames,
		RunE: func(cmd *cobra.Command, args []string) error {
			names := types.StandardTableNames
			if len(args) == 1 {
				names = args
			}

			if err := a.attach(cmd); err != nil {
				return err
			}
			defer a.detach()

			remote, err := a.session.Remote()
			if err != nil {
				return sysErr(err)
			}
			fs, ok := remote.(*file.Store)
			if !ok {
				return errWatchBackend
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return a.watch(ctx, fs, names, cmd.OutOrStdout())
		},
	}
}

// watch follows every named table until ctx is done or a watcher fails.
func (a *app) watch(ctx context.Context, fs *file.Store, names []string, w io.Writer) error {
	var (
		mu       sync.Mutex
		wg       sync.WaitGroup
		firstErr error
	)
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	for _, name := range names {
		c, err := a.table(ctx, name)
		if err != nil {
			return err
		}
		path, err := a.cfg.TablePath(name)
		if err != nil {
			return err
		}

		mu.Lock()
		fmt.Fprintf(w, "Watching %s (%s)\n", name, summarize(c.Table()))
		mu.Unlock()

		wg.Add(1)
		go func() {
			defer wg.Done()
			err := fs.Watch(ctx, path, func(rev types.Revision) {
				mu.Lock()
				defer mu.Unlock()
				if err := c.Load(ctx); err != nil {
					fmt.Fprintf(w, "%s changed but could not be loaded: %v\n", name, err)
					return
				}
				fmt.Fprintf(w, "%s changed at %s: %s\n", name, rev, summarize(c.Table()))
			})
			if err != nil {
				mu.Lock()
				if firstErr == nil {
					firstErr = sysErr(err)
				}
				mu.Unlock()
				cancel()
			}
		}()
	}
	wg.Wait()
	return firstErr
}

// summarize describes a table in one line.
func summarize(t *types.Table) string {
	switch t.Schema().Name {
	case types.GuestsTable:
		h := summarizeGuests(t)
		return fmt.Sprintf("%d guests, %d confirmed of %d invited", h.Guests, h.Confirmed, h.Invited)
	case types.TasksTable:
		b := summarizeTasks(t)
		done := b.Counts[types.StatusCompleted]
		return fmt.Sprintf("%d items, %d completed, total %.2f", t.Len(), done, b.Total)
	default:
		return fmt.Sprintf("%d records", t.Len())
	}
}
