package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/narwhalmedia/simulcast/pkg/models"
)

func newGroupsCommand(ctx *commandContext) *cobra.Command {
	var (
		country  string
		from, to string
		asJSON   bool
	)
	cmd := &cobra.Command{
		Use:   "groups",
		Short: "Show grouped episodes of a country",
		Long:  "Show grouped episodes of a country. Without --from the current reporting window is used.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := ctx.ensureApp(cmd.Context())
			if err != nil {
				return err
			}
			if country == "" {
				country = a.cfg.Catalog.DefaultCountry
			}
			country = strings.ToUpper(country)

			var groups []models.GroupedEpisode
			if from == "" {
				groups, err = a.query.CurrentGroups(cmd.Context(), country)
			} else {
				var start, end time.Time
				if start, err = time.Parse(time.DateOnly, from); err != nil {
					return fmt.Errorf("invalid --from: %w", err)
				}
				end = time.Now().UTC()
				if to != "" {
					if end, err = time.Parse(time.DateOnly, to); err != nil {
						return fmt.Errorf("invalid --to: %w", err)
					}
				}
				groups, err = a.query.GroupedEpisodes(cmd.Context(), country, start, end)
			}
			if err != nil {
				return err
			}

			if asJSON {
				return writeJSON(cmd, groups)
			}
			rows := make([][]string, 0, len(groups))
			for _, g := range groups {
				rows = append(rows, []string{
					g.ReleaseDateTime.Format(time.DateTime),
					g.AnimeName,
					fmt.Sprintf("S%d", g.Season),
					string(g.EpisodeType),
					numberRange(g.MinNumber, g.MaxNumber),
					joinPlatforms(g.Platforms),
					strings.Join(g.AudioLocales, ","),
				})
			}
			renderTable(cmd, []string{"Released", "Anime", "Season", "Type", "Episodes", "Platforms", "Audio"}, rows)
			return nil
		},
	}
	cmd.Flags().StringVar(&country, "country", "", "Country code (defaults to catalog.default_country)")
	cmd.Flags().StringVar(&from, "from", "", "Window start, YYYY-MM-DD")
	cmd.Flags().StringVar(&to, "to", "", "Window end, YYYY-MM-DD")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output JSON")
	return cmd
}

func newSimulcastsCommand(ctx *commandContext) *cobra.Command {
	var country string
	cmd := &cobra.Command{
		Use:   "simulcasts [simulcast-id]",
		Short: "List simulcast seasons, or the animes of one season",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := ctx.ensureApp(cmd.Context())
			if err != nil {
				return err
			}
			if country == "" {
				country = a.cfg.Catalog.DefaultCountry
			}
			country = strings.ToUpper(country)

			if len(args) == 1 {
				id, err := uuid.Parse(args[0])
				if err != nil {
					return fmt.Errorf("invalid simulcast id: %w", err)
				}
				animes, err := a.query.ListAnimesBySimulcast(cmd.Context(), country, id)
				if err != nil {
					return err
				}
				rows := make([][]string, 0, len(animes))
				for _, anime := range animes {
					rows = append(rows, []string{anime.ID.String(), anime.Slug, anime.Name})
				}
				renderTable(cmd, []string{"ID", "Slug", "Name"}, rows)
				return nil
			}

			simulcasts, err := a.query.ListSimulcasts(cmd.Context(), country)
			if err != nil {
				return err
			}
			rows := make([][]string, 0, len(simulcasts))
			for _, s := range simulcasts {
				rows = append(rows, []string{s.ID.String(), string(s.Season), fmt.Sprintf("%d", s.Year)})
			}
			renderTable(cmd, []string{"ID", "Season", "Year"}, rows)
			return nil
		},
	}
	cmd.Flags().StringVar(&country, "country", "", "Country code (defaults to catalog.default_country)")
	return cmd
}

func numberRange(lo, hi int) string {
	if lo == hi {
		return fmt.Sprintf("%d", lo)
	}
	return fmt.Sprintf("%d-%d", lo, hi)
}

func joinPlatforms(platforms []models.Platform) string {
	names := make([]string, len(platforms))
	for i, p := range platforms {
		names[i] = p.Name()
	}
	return strings.Join(names, ",")
}
