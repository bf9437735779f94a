package cli

import (
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/arthur-debert/kvsync/pkg/logging"
	"github.com/arthur-debert/kvsync/pkg/storage"
)

func newWatchCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "watch [ITEM]",
		Short: "Print changes made by other processes",
		Long: `Watch prints every change other processes make to the store until it is
interrupted. With ITEM only changes to that item are printed.`,
		Args: cobra.MaximumNArgs(1),
		Example: `  # In one terminal
  kvsync watch

  # In another
  kvsync set message "Hello, World!"`,
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := opts.renderer(cmd)
			if err != nil {
				return err
			}
			s, err := opts.open()
			if err != nil {
				return err
			}
			defer s.Close()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			// Events arrive on the watcher goroutine.
			var mu sync.Mutex
			handler := func(ev storage.Event) {
				mu.Lock()
				defer mu.Unlock()
				if err := r.RenderEvent(ev); err != nil {
					s.log.Warn().Err(err).Msg("Failed to render event")
				}
			}

			if len(args) == 1 {
				s.sync.RegisterItem(args[0], handler)
			} else {
				s.sync.Register(handler)
			}

			done := logging.LogOperationStart(s.log, "watch")
			defer done()

			s.log.Info().Msg("Watching for changes")
			<-ctx.Done()
			return nil
		},
	}
}
