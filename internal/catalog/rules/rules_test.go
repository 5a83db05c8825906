package rules_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/narwhalmedia/simulcast/internal/catalog/rules"
	apperrors "github.com/narwhalmedia/simulcast/pkg/errors"
	"github.com/narwhalmedia/simulcast/pkg/logger"
	"github.com/narwhalmedia/simulcast/pkg/models"
)

func newRule(action models.RuleAction, value string) *models.Rule {
	return &models.Rule{
		ID:          uuid.New(),
		Platform:    models.PlatformCrunchyroll,
		SeriesID:    "X",
		SeasonID:    "Y",
		Action:      action,
		ActionValue: value,
	}
}

func rawEpisode(season, number string) models.RawEpisode {
	return models.RawEpisode{
		CountryCode: "FR",
		Platform:    models.PlatformCrunchyroll,
		PlatformID:  "G4VUQ1ZKW",
		SeriesID:    "X",
		SeasonID:    "Y",
		AnimeName:   "Dandadan",
		EpisodeType: models.EpisodeTypeEpisode,
		RawSeason:   season,
		RawNumber:   number,
	}
}

func TestApplicable_OrderIndependentOfStorage(t *testing.T) {
	season := newRule(models.RuleReplaceSeasonNumber, "1")
	episodeType := newRule(models.RuleReplaceEpisodeType, "SPECIAL")
	shift := newRule(models.RuleAddToNumber, "2")
	name := newRule(models.RuleReplaceAnimeName, "Dan Da Dan")

	orders := [][]*models.Rule{
		{season, episodeType, shift, name},
		{shift, name, season, episodeType},
		{episodeType, season, name, shift},
	}

	for _, stored := range orders {
		snapshot, err := rules.NewSnapshot(stored)
		require.NoError(t, err)

		applicable := snapshot.Applicable(models.PlatformCrunchyroll, "X", "Y")
		require.Len(t, applicable, 4)
		assert.Equal(t, models.RuleReplaceAnimeName, applicable[0].Action)
		assert.Equal(t, models.RuleReplaceEpisodeType, applicable[1].Action)
		assert.Equal(t, models.RuleReplaceSeasonNumber, applicable[2].Action)
		assert.Equal(t, models.RuleAddToNumber, applicable[3].Action)
	}
}

func TestApply_SeasonAndTypeOverrides(t *testing.T) {
	for _, stored := range [][]*models.Rule{
		{newRule(models.RuleReplaceSeasonNumber, "1"), newRule(models.RuleReplaceEpisodeType, "SPECIAL")},
		{newRule(models.RuleReplaceEpisodeType, "SPECIAL"), newRule(models.RuleReplaceSeasonNumber, "1")},
	} {
		snapshot, err := rules.NewSnapshot(stored)
		require.NoError(t, err)

		out, err := rules.Apply(rawEpisode("2", "4"), snapshot.Applicable(models.PlatformCrunchyroll, "X", "Y"))
		require.NoError(t, err)

		assert.Equal(t, 1, out.Season)
		assert.Equal(t, models.EpisodeTypeSpecial, out.EpisodeType)
		assert.Equal(t, 4, out.Number)
		assert.Len(t, out.AppliedRules, 2)
	}
}

func TestApply_AddToNumber(t *testing.T) {
	snapshot, err := rules.NewSnapshot([]*models.Rule{newRule(models.RuleAddToNumber, "11")})
	require.NoError(t, err)

	out, err := rules.Apply(rawEpisode("1", "1"), snapshot.Applicable(models.PlatformCrunchyroll, "X", "Y"))
	require.NoError(t, err)
	assert.Equal(t, 12, out.Number)
}

func TestApply_NoRulesPassesThrough(t *testing.T) {
	out, err := rules.Apply(rawEpisode("", "7"), rules.Empty().Applicable(models.PlatformCrunchyroll, "X", "Y"))
	require.NoError(t, err)

	assert.Equal(t, "Dandadan", out.AnimeName)
	assert.Equal(t, 1, out.Season)
	assert.Equal(t, 7, out.Number)
	assert.Empty(t, out.AppliedRules)
}

func TestApply_OtherSeasonIsNotMatched(t *testing.T) {
	snapshot, err := rules.NewSnapshot([]*models.Rule{newRule(models.RuleAddToNumber, "11")})
	require.NoError(t, err)

	assert.Empty(t, snapshot.Applicable(models.PlatformCrunchyroll, "X", "Z"))
	assert.Empty(t, snapshot.Applicable(models.PlatformADN, "X", "Y"))
}

func TestApply_UnparseableNumberIsSkip(t *testing.T) {
	_, err := rules.Apply(rawEpisode("1", "SP"), nil)
	assert.True(t, apperrors.IsSkip(err))
}

func TestNewSnapshot_InvalidPayloadIsConfigurationError(t *testing.T) {
	tests := []*models.Rule{
		newRule(models.RuleReplaceAnimeName, " "),
		newRule(models.RuleReplaceSeasonNumber, "one"),
		newRule(models.RuleReplaceSeasonNumber, "0"),
		newRule(models.RuleReplaceEpisodeType, "OVA"),
		newRule(models.RuleAddToNumber, ""),
		newRule("RENAME", "x"),
	}

	for _, rule := range tests {
		_, err := rules.NewSnapshot([]*models.Rule{rule})
		assert.True(t, apperrors.IsConfiguration(err), "action %s value %q", rule.Action, rule.ActionValue)
	}
}

type mockRuleRepository struct {
	mock.Mock
}

func (m *mockRuleRepository) ListRules(ctx context.Context) ([]*models.Rule, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Rule), args.Error(1)
}

func (m *mockRuleRepository) TouchRules(ctx context.Context, ids []uuid.UUID, at time.Time) error {
	args := m.Called(ctx, ids, at)
	return args.Error(0)
}

func TestStore_SnapshotAndMarkUsed(t *testing.T) {
	ctx := context.Background()
	repo := new(mockRuleRepository)
	rule := newRule(models.RuleAddToNumber, "11")
	repo.On("ListRules", ctx).Return([]*models.Rule{rule}, nil)
	at := time.Date(2025, 1, 10, 18, 0, 0, 0, time.UTC)
	repo.On("TouchRules", ctx, []uuid.UUID{rule.ID}, at).Return(errors.New("locked"))

	store := rules.NewStore(repo, logger.NewNoop())

	snapshot, err := store.Snapshot(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, snapshot.Len())

	store.MarkUsed(ctx, []uuid.UUID{rule.ID}, at)
	store.MarkUsed(ctx, nil, at)
	repo.AssertExpectations(t)
	repo.AssertNumberOfCalls(t, "TouchRules", 1)
}

func TestStore_SnapshotRejectsCorruptRule(t *testing.T) {
	ctx := context.Background()
	repo := new(mockRuleRepository)
	repo.On("ListRules", ctx).Return([]*models.Rule{newRule(models.RuleAddToNumber, "eleven")}, nil)

	_, err := rules.NewStore(repo, logger.NewNoop()).Snapshot(ctx)
	assert.True(t, apperrors.IsConfiguration(err))
}
