package cli

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"creator-feed/internal/domain"
	"creator-feed/internal/usecase/feed"
	"creator-feed/internal/usecase/playback"
)

func newQueueCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "queue <creator>",
		Short: "Показать ближайшие ролики автора",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			resp, err := opts.client.Queue(cmd.Context(), args[0])
			if err != nil {
				return fmt.Errorf("queue: %w", err)
			}
			out := cmd.OutOrStdout()
			printf(out, "%s: %s, в очереди %d\n", args[0], resp.State, resp.QueueLength)
			printSlots(out, resp.Slots)
			return nil
		},
	}
}

func newNextCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "next <creator>",
		Short: "Снять следующий ролик с очереди",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			resp, ok, err := opts.client.Next(cmd.Context(), args[0])
			if err != nil {
				return fmt.Errorf("next: %w", err)
			}
			out := cmd.OutOrStdout()
			if !ok {
				printf(out, "Очередь пуста\n")
				return nil
			}
			printf(out, "%s\t%s\t%s\n", resp.Video.ID, resp.Video.Category, resp.Video.Title)
			return nil
		},
	}
}

func newPlayCmd(opts *options) *cobra.Command {
	var surface string
	cmd := &cobra.Command{
		Use:   "play <creator>",
		Short: "Запустить автопроигрывание",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := opts.client.Play(cmd.Context(), args[0], playback.ParseSurface(surface))
			if errors.Is(err, playback.ErrNothingToPlay) {
				printf(cmd.OutOrStdout(), "Очередь пуста\n")
				return nil
			}
			if err != nil {
				return fmt.Errorf("play: %w", err)
			}
			printSlots(cmd.OutOrStdout(), p.Slots)
			return nil
		},
	}
	cmd.Flags().StringVar(&surface, "surface", string(playback.SurfaceWeb), "клиент: web или mobile")
	return cmd
}

func newStopCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "stop <creator>",
		Short: "Остановить автопроигрывание",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.client.Stop(cmd.Context(), args[0])
		},
	}
}

func newRefreshCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "refresh <creator>",
		Short: "Перестроить очередь, не трогая историю",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			snapshot, err := opts.client.Refresh(cmd.Context(), args[0])
			if err != nil {
				return fmt.Errorf("refresh: %w", err)
			}
			printFeed(cmd.OutOrStdout(), snapshot)
			return nil
		},
	}
}

func newResetCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "reset <creator>",
		Short: "Очистить историю и собрать очередь заново",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			snapshot, err := opts.client.Reset(cmd.Context(), args[0])
			if err != nil {
				return fmt.Errorf("reset: %w", err)
			}
			printFeed(cmd.OutOrStdout(), snapshot)
			return nil
		},
	}
}

func newStatsCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "stats <creator>",
		Short: "Отладочная статистика ленты",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			stats, err := opts.client.Stats(cmd.Context(), args[0])
			if errors.Is(err, domain.ErrFeedNotFound) {
				return fmt.Errorf("лента %s не найдена", args[0])
			}
			if err != nil {
				return fmt.Errorf("stats: %w", err)
			}
			out := cmd.OutOrStdout()
			printf(out, "Автор:       %s\n", stats.CreatorName)
			printf(out, "Состояние:   %s\n", stats.State)
			printf(out, "Очередь:     %d\n", stats.TotalQueueLength)
			printf(out, "Пул:         %d\n", stats.TotalVideosAvailable)
			printf(out, "Просмотрено: %d\n", stats.PlayedVideosCount)
			for _, b := range stats.Blocks {
				printf(out, "  блок %d %-7s %2d/%-2d", b.Index, b.Category, b.CurrentSize, b.TargetSize)
				for _, v := range b.Head {
					printf(out, " %s", v.ID)
				}
				printf(out, "\n")
			}
			return nil
		},
	}
}

func newRemoveCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "remove <creator>",
		Short: "Удалить ленту автора",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.client.RemoveFeed(cmd.Context(), args[0])
		},
	}
}

func newClearCmd(opts *options) *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Удалить все ленты",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !yes {
				return errors.New("добавьте --yes, чтобы удалить все ленты")
			}
			return opts.client.ClearFeeds(cmd.Context())
		},
	}
	cmd.Flags().BoolVar(&yes, "yes", false, "подтвердить удаление")
	return cmd
}

func newRecentCmd(opts *options) *cobra.Command {
	var wipe bool
	cmd := &cobra.Command{
		Use:   "recent",
		Short: "Недавно открытые авторы",
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			if wipe {
				if err := opts.client.ClearRecent(cmd.Context()); err != nil {
					return fmt.Errorf("recent: %w", err)
				}
				printf(out, "Список недавних очищен\n")
				return nil
			}
			list, err := opts.client.Recent(cmd.Context())
			if err != nil {
				return fmt.Errorf("recent: %w", err)
			}
			if len(list) == 0 {
				printf(out, "Пусто\n")
				return nil
			}
			for _, c := range list {
				printf(out, "%s\t%s\n", c.ID, c.Name)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&wipe, "clear", false, "очистить список")
	return cmd
}

func printSlots(out io.Writer, slots []playback.Slot) {
	for _, s := range slots {
		printf(out, "%d. %-28s %-8s %s\n", s.Position+1, s.Label, s.Video.Category, s.Video.ID)
	}
}

func printFeed(out io.Writer, f feed.Feed) {
	ids := make([]string, 0, f.Len())
	for _, v := range f.Queue() {
		ids = append(ids, v.ID)
	}
	printf(out, "%s: %s, в очереди %d, просмотрено %d\n", f.CreatorID, f.State, f.Len(), f.Played)
	if len(ids) > 0 {
		printf(out, "%s\n", strings.Join(ids, " "))
	}
}
