package cli

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"creator-feed/internal/adapters/youtuberss"
	"creator-feed/internal/domain"
)

// creatorFile — описание автора в YAML или JSON.
type creatorFile struct {
	Creator struct {
		ID   string `yaml:"id"`
		Name string `yaml:"name"`
	} `yaml:"creator"`
	Shorts []videoEntry `yaml:"shorts"`
	Videos []videoEntry `yaml:"videos"`
	VODs   []videoEntry `yaml:"vods"`
}

type videoEntry struct {
	ID          string    `yaml:"id"`
	Title       string    `yaml:"title"`
	Thumbnail   string    `yaml:"thumbnail_url"`
	PublishedAt time.Time `yaml:"published_at"`
}

func loadCreatorFile(raw []byte) (domain.CreatorData, error) {
	var f creatorFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return domain.CreatorData{}, fmt.Errorf("разбор файла: %w", err)
	}
	data := domain.CreatorData{Creator: domain.Creator{ID: f.Creator.ID, Name: f.Creator.Name}}
	data.Shorts = f.toVideos(f.Shorts, domain.CategoryShorts)
	data.Videos = f.toVideos(f.Videos, domain.CategoryVideos)
	data.VODs = f.toVideos(f.VODs, domain.CategoryVODs)
	return data, nil
}

func (creatorFile) toVideos(entries []videoEntry, c domain.Category) []domain.Video {
	out := make([]domain.Video, 0, len(entries))
	for _, e := range entries {
		out = append(out, domain.Video{
			ID:           e.ID,
			Title:        e.Title,
			ThumbnailURL: e.Thumbnail,
			PublishedAt:  e.PublishedAt,
			Category:     c,
		})
	}
	return out
}

func newIngestCmd(opts *options) *cobra.Command {
	var (
		rss       bool
		creatorID string
	)
	cmd := &cobra.Command{
		Use:   "ingest <file>",
		Short: "Передать ролики автора из YAML/JSON-файла или Atom-ленты YouTube",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var data domain.CreatorData
			if rss {
				f, err := os.Open(args[0])
				if err != nil {
					return err
				}
				defer f.Close()
				if data, err = youtuberss.Parse(f); err != nil {
					return err
				}
			} else {
				raw, err := os.ReadFile(args[0])
				if err != nil {
					return err
				}
				if data, err = loadCreatorFile(raw); err != nil {
					return err
				}
			}
			if creatorID != "" {
				data.Creator.ID = creatorID
			}
			if data.Creator.ID == "" {
				return fmt.Errorf("не указан id автора: задайте creator.id в файле или --creator")
			}
			if err := opts.client.Ingest(cmd.Context(), data); err != nil {
				return fmt.Errorf("ingest: %w", err)
			}
			printf(cmd.OutOrStdout(), "%s: передано %d роликов (shorts %d, videos %d, vods %d)\n",
				data.Creator.ID, data.Total(), len(data.Shorts), len(data.Videos), len(data.VODs))
			return nil
		},
	}
	cmd.Flags().BoolVar(&rss, "rss", false, "файл — Atom-лента канала YouTube")
	cmd.Flags().StringVar(&creatorID, "creator", "", "id автора вместо указанного в файле")
	return cmd
}
