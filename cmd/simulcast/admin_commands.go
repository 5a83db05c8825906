package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/narwhalmedia/simulcast/internal/ingestion"
	"github.com/narwhalmedia/simulcast/pkg/models"
)

func newAdminCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "admin",
		Short: "Correct the catalog by hand",
	}
	cmd.AddCommand(
		newMergeCommand(ctx),
		newCandidatesCommand(ctx),
		newReKeyCommand(ctx),
		newSplitCommand(ctx),
		newDeleteMappingCommand(ctx),
		newReclassifyCommand(ctx),
		newRuleCommand(ctx),
		newRunsCommand(ctx),
		newTraceCommand(ctx),
		newFollowCommand(ctx),
	)
	return cmd
}

func parseIDs(args ...string) ([]uuid.UUID, error) {
	ids := make([]uuid.UUID, len(args))
	for i, arg := range args {
		id, err := uuid.Parse(arg)
		if err != nil {
			return nil, fmt.Errorf("invalid id %q: %w", arg, err)
		}
		ids[i] = id
	}
	return ids, nil
}

type slotFlags struct {
	season      int
	episodeType string
	number      int
}

func (f *slotFlags) register(cmd *cobra.Command) {
	cmd.Flags().IntVar(&f.season, "season", 1, "Target season")
	cmd.Flags().StringVar(&f.episodeType, "type", string(models.EpisodeTypeEpisode), "Target episode type")
	cmd.Flags().IntVar(&f.number, "number", 0, "Target episode number")
	_ = cmd.MarkFlagRequired("number")
}

func (f *slotFlags) slot() (models.Slot, error) {
	t, err := models.ParseEpisodeType(f.episodeType)
	if err != nil {
		return models.Slot{}, err
	}
	if f.season < 1 {
		return models.Slot{}, fmt.Errorf("season must be positive")
	}
	return models.Slot{Season: f.season, EpisodeType: t, Number: f.number}, nil
}

func newMergeCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "merge <source-anime> <target-anime>",
		Short: "Fold one anime into another",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ids, err := parseIDs(args...)
			if err != nil {
				return err
			}
			a, err := ctx.ensureApp(cmd.Context())
			if err != nil {
				return err
			}
			result, err := a.admin.MergeAnimes(cmd.Context(), ids[0], ids[1])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Merged into %s: %d mappings moved, %d absorbed\n",
				result.Target.Slug, result.Moved, result.Absorbed)
			return nil
		},
	}
}

func newCandidatesCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "candidates <anime>",
		Short: "List animes that look like duplicates",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ids, err := parseIDs(args...)
			if err != nil {
				return err
			}
			a, err := ctx.ensureApp(cmd.Context())
			if err != nil {
				return err
			}
			animes, err := a.admin.MergeCandidates(cmd.Context(), ids[0])
			if err != nil {
				return err
			}
			rows := make([][]string, 0, len(animes))
			for _, anime := range animes {
				rows = append(rows, []string{anime.ID.String(), anime.CountryCode, anime.Slug, anime.Name})
			}
			renderTable(cmd, []string{"ID", "Country", "Slug", "Name"}, rows)
			return nil
		},
	}
}

func newReKeyCommand(ctx *commandContext) *cobra.Command {
	var flags slotFlags
	cmd := &cobra.Command{
		Use:   "rekey <mapping>",
		Short: "Move a mapping to another slot",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ids, err := parseIDs(args...)
			if err != nil {
				return err
			}
			slot, err := flags.slot()
			if err != nil {
				return err
			}
			a, err := ctx.ensureApp(cmd.Context())
			if err != nil {
				return err
			}
			result, err := a.admin.ReKeyMapping(cmd.Context(), ids[0], slot)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: mapping %s now at %s\n", result.Transition, result.Mapping.ID, slot)
			return nil
		},
	}
	flags.register(cmd)
	return cmd
}

func newSplitCommand(ctx *commandContext) *cobra.Command {
	var flags slotFlags
	cmd := &cobra.Command{
		Use:   "split <variant>",
		Short: "Detach a variant into another slot",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ids, err := parseIDs(args...)
			if err != nil {
				return err
			}
			slot, err := flags.slot()
			if err != nil {
				return err
			}
			a, err := ctx.ensureApp(cmd.Context())
			if err != nil {
				return err
			}
			result, err := a.admin.SplitVariant(cmd.Context(), ids[0], slot)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Variant %s moved to mapping %s\n", result.Variant.Identifier, result.Target.ID)
			return nil
		},
	}
	flags.register(cmd)
	return cmd
}

func newDeleteMappingCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "delete-mapping <mapping>",
		Short: "Delete a mapping and its variants",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ids, err := parseIDs(args...)
			if err != nil {
				return err
			}
			a, err := ctx.ensureApp(cmd.Context())
			if err != nil {
				return err
			}
			animeDeleted, err := a.admin.DeleteMapping(cmd.Context(), ids[0])
			if err != nil {
				return err
			}
			if animeDeleted {
				fmt.Fprintln(cmd.OutOrStdout(), "Mapping deleted, anime had no mappings left and was deleted")
				return nil
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Mapping deleted")
			return nil
		},
	}
}

func newReclassifyCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "reclassify <anime>",
		Short: "Recompute the simulcast seasons of an anime",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ids, err := parseIDs(args...)
			if err != nil {
				return err
			}
			a, err := ctx.ensureApp(cmd.Context())
			if err != nil {
				return err
			}
			assigned, err := a.admin.Reclassify(cmd.Context(), ids[0])
			if err != nil {
				return err
			}
			names := make([]string, len(assigned))
			for i, s := range assigned {
				names[i] = s.String()
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Simulcasts: %s\n", strings.Join(names, ", "))
			return nil
		},
	}
}

func newRuleCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rule",
		Short: "Manage platform override rules",
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List rules",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := ctx.ensureApp(cmd.Context())
			if err != nil {
				return err
			}
			rules, err := a.admin.ListRules(cmd.Context())
			if err != nil {
				return err
			}
			rows := make([][]string, 0, len(rules))
			for _, r := range rules {
				lastUsed := "never"
				if r.LastUsageDateTime != nil {
					lastUsed = r.LastUsageDateTime.Format(time.DateTime)
				}
				rows = append(rows, []string{r.ID.String(), string(r.Platform), r.SeriesID, r.SeasonID, string(r.Action), r.ActionValue, lastUsed})
			}
			renderTable(cmd, []string{"ID", "Platform", "Series", "Season", "Action", "Value", "Last used"}, rows)
			return nil
		},
	}

	add := &cobra.Command{
		Use:   "add <platform> <series-id> <season-id> <action> <value>",
		Short: "Create a rule",
		Args:  cobra.ExactArgs(5),
		RunE: func(cmd *cobra.Command, args []string) error {
			platform, err := models.ParsePlatform(args[0])
			if err != nil {
				return err
			}
			a, err := ctx.ensureApp(cmd.Context())
			if err != nil {
				return err
			}
			rule := &models.Rule{
				Platform:    platform,
				SeriesID:    args[1],
				SeasonID:    args[2],
				Action:      models.RuleAction(strings.ToUpper(args[3])),
				ActionValue: args[4],
			}
			if err := a.admin.CreateRule(cmd.Context(), rule); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Rule %s created\n", rule.ID)
			return nil
		},
	}

	update := &cobra.Command{
		Use:   "update <rule> <value>",
		Short: "Change the value of a rule",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ids, err := parseIDs(args[0])
			if err != nil {
				return err
			}
			a, err := ctx.ensureApp(cmd.Context())
			if err != nil {
				return err
			}
			rule, err := a.admin.UpdateRule(cmd.Context(), ids[0], args[1])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Rule %s now %s=%q\n", rule.ID, rule.Action, rule.ActionValue)
			return nil
		},
	}

	remove := &cobra.Command{
		Use:   "delete <rule>",
		Short: "Delete a rule",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ids, err := parseIDs(args...)
			if err != nil {
				return err
			}
			a, err := ctx.ensureApp(cmd.Context())
			if err != nil {
				return err
			}
			if err := a.admin.DeleteRule(cmd.Context(), ids[0]); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Rule deleted")
			return nil
		},
	}

	cmd.AddCommand(list, add, update, remove)
	return cmd
}

func newRunsCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "runs",
		Short: "Show the last successful and failed ingestion runs",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := ctx.ensureApp(cmd.Context())
			if err != nil {
				return err
			}
			summary, err := a.admin.LastRuns(cmd.Context(), ingestion.JobName)
			if err != nil {
				return err
			}
			return writeJSON(cmd, summary)
		},
	}
}

func newTraceCommand(ctx *commandContext) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "trace [entity]",
		Short: "Show recent trace actions",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			entityID := uuid.Nil
			if len(args) == 1 {
				ids, err := parseIDs(args...)
				if err != nil {
					return err
				}
				entityID = ids[0]
			}
			a, err := ctx.ensureApp(cmd.Context())
			if err != nil {
				return err
			}
			actions, err := a.admin.TraceActions(cmd.Context(), entityID, limit)
			if err != nil {
				return err
			}
			rows := make([][]string, 0, len(actions))
			for _, t := range actions {
				rows = append(rows, []string{t.ActionDateTime.Format(time.DateTime), t.EntityType, t.EntityID.String(), t.Action, t.Detail})
			}
			renderTable(cmd, []string{"At", "Entity", "ID", "Action", "Detail"}, rows)
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 50, "Maximum number of actions")
	return cmd
}

func newFollowCommand(ctx *commandContext) *cobra.Command {
	var episode bool
	cmd := &cobra.Command{
		Use:   "follow <member> <anime-or-mapping>",
		Short: "Record that a member follows an anime or an episode",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ids, err := parseIDs(args...)
			if err != nil {
				return err
			}
			a, err := ctx.ensureApp(cmd.Context())
			if err != nil {
				return err
			}
			if episode {
				return a.admin.FollowEpisode(cmd.Context(), ids[0], ids[1])
			}
			return a.admin.FollowAnime(cmd.Context(), ids[0], ids[1])
		},
	}
	cmd.Flags().BoolVar(&episode, "episode", false, "Follow an episode mapping instead of an anime")
	return cmd
}
