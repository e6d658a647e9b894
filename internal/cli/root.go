// Package cli реализует feedctl — консольный клиент API лент.
package cli

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"creator-feed/internal/adapters/feedclient"
)

type options struct {
	server  string
	timeout time.Duration
	client  *feedclient.Client
}

func defaultServer() string {
	if s := os.Getenv("FEED_API_URL"); s != "" {
		return s
	}
	return "http://localhost:8080"
}

// NewRootCmd собирает дерево команд feedctl.
func NewRootCmd() *cobra.Command {
	opts := &options{}
	root := &cobra.Command{
		Use:   "feedctl",
		Short: "Управление лентами авторов",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			client, err := feedclient.New(opts.server, feedclient.WithTimeout(opts.timeout))
			if err != nil {
				return err
			}
			opts.client = client
			return nil
		},
		SilenceUsage: true,
	}

	root.PersistentFlags().StringVar(&opts.server, "server", defaultServer(), "адрес API лент (или FEED_API_URL)")
	root.PersistentFlags().DurationVar(&opts.timeout, "timeout", 10*time.Second, "таймаут запроса")

	root.AddCommand(
		newIngestCmd(opts),
		newQueueCmd(opts),
		newNextCmd(opts),
		newPlayCmd(opts),
		newStopCmd(opts),
		newRefreshCmd(opts),
		newResetCmd(opts),
		newStatsCmd(opts),
		newRemoveCmd(opts),
		newClearCmd(opts),
		newRecentCmd(opts),
	)
	return root
}

func printf(w io.Writer, format string, args ...any) {
	_, _ = fmt.Fprintf(w, format, args...)
}
