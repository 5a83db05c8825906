package service_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/suite"

	"github.com/narwhalmedia/simulcast/internal/catalog/grouping"
	"github.com/narwhalmedia/simulcast/internal/catalog/repository"
	"github.com/narwhalmedia/simulcast/internal/catalog/rules"
	"github.com/narwhalmedia/simulcast/internal/catalog/service"
	"github.com/narwhalmedia/simulcast/internal/catalog/simulcast"
	"github.com/narwhalmedia/simulcast/pkg/config"
	"github.com/narwhalmedia/simulcast/pkg/errors"
	"github.com/narwhalmedia/simulcast/pkg/events"
	"github.com/narwhalmedia/simulcast/pkg/logger"
	"github.com/narwhalmedia/simulcast/pkg/models"
	"github.com/narwhalmedia/simulcast/pkg/utils"
	"github.com/narwhalmedia/simulcast/test/testutil"
)

// MockArchiver is a mock for the raw payload archive
type MockArchiver struct {
	mock.Mock
}

func (m *MockArchiver) Archive(ctx context.Context, raw models.RawEpisode, identifier string) error {
	args := m.Called(ctx, raw, identifier)
	return args.Error(0)
}

type clock struct {
	now time.Time
}

func (c *clock) Now() time.Time { return c.now }

func (c *clock) Advance(d time.Duration) { c.now = c.now.Add(d) }

type CatalogServiceTestSuite struct {
	suite.Suite

	ctx      context.Context
	repo     repository.Repository
	cache    *utils.InMemoryCache
	archiver *MockArchiver
	clock    *clock
	ingest   *service.IngestService
	admin    *service.AdminService
	query    *service.QueryService
}

func TestCatalogServiceSuite(t *testing.T) {
	suite.Run(t, new(CatalogServiceTestSuite))
}

func (suite *CatalogServiceTestSuite) SetupTest() {
	suite.ctx = context.Background()
	log := logger.NewNoop()
	suite.repo = repository.NewGormRepository(testutil.NewTestDB(suite.T()))
	suite.cache = utils.NewInMemoryCache()
	suite.clock = &clock{now: testutil.Release.Add(time.Hour)}

	bus := events.NewInMemoryEventBus(log)
	suite.Require().NoError(bus.Subscribe(events.CatalogChangedEventType, service.NewCacheInvalidator(suite.cache, log)))

	suite.archiver = new(MockArchiver)
	suite.archiver.On("Archive", mock.Anything, mock.Anything, mock.Anything).Return(nil)

	cfg := config.CatalogConfig{Blacklist: []string{"CRUN:BLACKLISTED", "forbidden-title"}}
	suite.ingest = service.NewIngestService(suite.repo, rules.NewStore(suite.repo, log), suite.archiver, bus, cfg, log).
		WithClock(suite.clock.Now)
	classifier := simulcast.NewClassifier(suite.repo, 35*24*time.Hour, log)
	suite.admin = service.NewAdminService(suite.repo, classifier, bus, log).WithClock(suite.clock.Now)
	suite.query = service.NewQueryService(suite.repo, grouping.NewBuilder(suite.repo, 2*time.Hour, log), suite.cache, time.Minute, log).
		WithClock(suite.clock.Now)
}

func (suite *CatalogServiceTestSuite) ingestOne(raw models.RawEpisode) *service.IngestResult {
	snapshot, err := rules.NewStore(suite.repo, logger.NewNoop()).Snapshot(suite.ctx)
	suite.Require().NoError(err)
	result, err := suite.ingest.Ingest(suite.ctx, snapshot, raw)
	suite.Require().NoError(err)
	return result
}

// assertDerivedTimestamps checks that a mapping's release bounds match its variants.
func (suite *CatalogServiceTestSuite) assertDerivedTimestamps(mappingID uuid.UUID) {
	mapping, err := suite.repo.GetMapping(suite.ctx, mappingID)
	suite.Require().NoError(err)
	variants, err := suite.repo.ListVariantsByMapping(suite.ctx, mappingID)
	suite.Require().NoError(err)
	suite.Require().NotEmpty(variants)

	first, last := variants[0].ReleaseDateTime, variants[0].ReleaseDateTime
	for _, v := range variants {
		if v.ReleaseDateTime.Before(first) {
			first = v.ReleaseDateTime
		}
		if v.ReleaseDateTime.After(last) {
			last = v.ReleaseDateTime
		}
	}
	suite.True(mapping.ReleaseDateTime.Equal(first), "release %s != min %s", mapping.ReleaseDateTime, first)
	suite.True(mapping.LastReleaseDateTime.Equal(last), "last release %s != max %s", mapping.LastReleaseDateTime, last)
	suite.False(mapping.ReleaseDateTime.After(mapping.LastReleaseDateTime))
}

func (suite *CatalogServiceTestSuite) TestIngest_Idempotent() {
	// Arrange
	raw := testutil.CreateTestRawEpisode("Dandadan", "G4VUQ1ZKW", 1, testutil.Release)
	first := suite.ingestOne(raw)
	suite.clock.Advance(time.Hour)

	// Act
	second := suite.ingestOne(raw)

	// Assert
	suite.True(first.NewVariant)
	suite.False(second.NewVariant)
	suite.Equal("FR-CRUN-G4VUQ1ZKW-ja-JP", first.Identifier)
	suite.Equal(first.VariantID, second.VariantID)
	suite.True(second.Changes.Empty())

	variants, err := suite.repo.ListVariantsByMapping(suite.ctx, first.MappingID)
	suite.Require().NoError(err)
	suite.Len(variants, 1)

	mapping, err := suite.repo.GetMapping(suite.ctx, first.MappingID)
	suite.Require().NoError(err)
	suite.True(mapping.LastUpdateDateTime.Equal(testutil.Release.Add(time.Hour)))
	suite.archiver.AssertNumberOfCalls(suite.T(), "Archive", 1)
}

func (suite *CatalogServiceTestSuite) TestIngest_IdempotentAtMicrosecondPrecision() {
	// Arrange
	raw := testutil.CreateTestRawEpisode("Dandadan", "G4VUQ1ZKW", 1, testutil.Release.Add(1234567*time.Nanosecond))
	first := suite.ingestOne(raw)

	// Store the row the way a microsecond-precision column would hand it back.
	variant, err := suite.repo.GetVariant(suite.ctx, first.VariantID)
	suite.Require().NoError(err)
	variant.ReleaseDateTime = variant.ReleaseDateTime.Truncate(time.Microsecond)
	suite.Require().NoError(suite.repo.UpdateVariant(suite.ctx, variant))
	suite.clock.Advance(time.Hour)

	// Act
	second := suite.ingestOne(raw)

	// Assert
	suite.True(second.Changes.Empty())
	stored, err := suite.repo.GetVariant(suite.ctx, first.VariantID)
	suite.Require().NoError(err)
	suite.True(stored.ReleaseDateTime.Equal(testutil.Release.Add(1234 * time.Microsecond)))

	mapping, err := suite.repo.GetMapping(suite.ctx, first.MappingID)
	suite.Require().NoError(err)
	suite.True(mapping.LastUpdateDateTime.Equal(testutil.Release.Add(time.Hour)))
}

func (suite *CatalogServiceTestSuite) TestIngest_DubJoinsExistingMapping() {
	// Arrange
	sub := testutil.CreateTestRawEpisode("Dandadan", "G4VUQ1ZKW", 1, testutil.Release)
	dub := testutil.CreateTestRawEpisode("Dandadan", "GJWU2WNE7", 1, testutil.Release.Add(3*time.Hour))
	dub.AudioLocale = "fr-FR"

	// Act
	first := suite.ingestOne(sub)
	second := suite.ingestOne(dub)

	// Assert
	suite.Equal(first.AnimeID, second.AnimeID)
	suite.Equal(first.MappingID, second.MappingID)
	suite.NotEqual(first.VariantID, second.VariantID)

	count, err := suite.repo.CountMappingsByAnime(suite.ctx, first.AnimeID)
	suite.Require().NoError(err)
	suite.Equal(int64(1), count)
	suite.assertDerivedTimestamps(first.MappingID)
}

func (suite *CatalogServiceTestSuite) TestIngest_UncensoredIsDistinctVariant() {
	censored := testutil.CreateTestRawEpisode("Dandadan", "21465", 1, testutil.Release)
	censored.Platform = models.PlatformADN
	censored.AudioLocale = "fr-FR"
	uncensored := censored
	uncensored.Uncensored = true

	first := suite.ingestOne(censored)
	second := suite.ingestOne(uncensored)

	suite.Equal("FR-ANIM-21465-fr-FR", first.Identifier)
	suite.Equal("FR-ANIM-21465-fr-FR-UNC", second.Identifier)
	suite.Equal(first.MappingID, second.MappingID)
}

func (suite *CatalogServiceTestSuite) TestIngest_CorrectedReleaseRecomputesMapping() {
	// Arrange
	sub := testutil.CreateTestRawEpisode("Dandadan", "G4VUQ1ZKW", 1, testutil.Release)
	dub := testutil.CreateTestRawEpisode("Dandadan", "GJWU2WNE7", 1, testutil.Release.Add(2*time.Hour))
	dub.AudioLocale = "fr-FR"
	first := suite.ingestOne(sub)
	suite.ingestOne(dub)
	suite.clock.Advance(time.Hour)

	// Act
	sub.ReleaseDateTime = testutil.Release.Add(-30 * time.Minute)
	corrected := suite.ingestOne(sub)

	// Assert
	suite.False(corrected.NewVariant)
	suite.Contains(corrected.Changes, events.EntityMapping)
	suite.assertDerivedTimestamps(first.MappingID)

	mapping, err := suite.repo.GetMapping(suite.ctx, first.MappingID)
	suite.Require().NoError(err)
	suite.True(mapping.ReleaseDateTime.Equal(testutil.Release.Add(-30 * time.Minute)))
	suite.True(mapping.LastReleaseDateTime.Equal(testutil.Release.Add(2 * time.Hour)))
	suite.True(mapping.NeedsClassification)
}

func (suite *CatalogServiceTestSuite) TestIngest_RuleOrderingThroughPipeline() {
	// Arrange
	suite.Require().NoError(suite.admin.CreateRule(suite.ctx, testutil.CreateTestRule(models.RuleReplaceSeasonNumber, "1")))
	suite.Require().NoError(suite.admin.CreateRule(suite.ctx, testutil.CreateTestRule(models.RuleReplaceEpisodeType, "SPECIAL")))
	raw := testutil.CreateTestRawEpisode("Dandadan", "G4VUQ1ZKW", 4, testutil.Release)
	raw.RawSeason = "2"

	// Act
	result := suite.ingestOne(raw)

	// Assert
	mapping, err := suite.repo.GetMapping(suite.ctx, result.MappingID)
	suite.Require().NoError(err)
	suite.Equal(1, mapping.Season)
	suite.Equal(models.EpisodeTypeSpecial, mapping.EpisodeType)
	suite.Equal(4, mapping.Number)
	suite.Len(result.AppliedRules, 2)

	stored, err := suite.repo.ListRules(suite.ctx)
	suite.Require().NoError(err)
	for _, rule := range stored {
		suite.Require().NotNil(rule.LastUsageDateTime)
		suite.True(rule.LastUsageDateTime.Equal(suite.clock.Now()))
	}
}

func (suite *CatalogServiceTestSuite) TestIngest_AddToNumber() {
	suite.Require().NoError(suite.admin.CreateRule(suite.ctx, testutil.CreateTestRule(models.RuleAddToNumber, "11")))

	result := suite.ingestOne(testutil.CreateTestRawEpisode("Dandadan", "G4VUQ1ZKW", 1, testutil.Release))

	mapping, err := suite.repo.GetMapping(suite.ctx, result.MappingID)
	suite.Require().NoError(err)
	suite.Equal(12, mapping.Number)
}

func (suite *CatalogServiceTestSuite) TestIngest_RenameRuleResolvesOtherAnime() {
	suite.Require().NoError(suite.admin.CreateRule(suite.ctx, testutil.CreateTestRule(models.RuleReplaceAnimeName, "DAN DA DAN")))

	result := suite.ingestOne(testutil.CreateTestRawEpisode("Dandadan", "G4VUQ1ZKW", 1, testutil.Release))

	anime, err := suite.repo.GetAnime(suite.ctx, result.AnimeID)
	suite.Require().NoError(err)
	suite.Equal("dan-da-dan", anime.Slug)
	suite.Equal("DAN DA DAN", anime.Name)
}

func (suite *CatalogServiceTestSuite) TestIngestBatch_SkipsDoNotBlockBatch() {
	// Arrange
	valid := testutil.CreateTestRawEpisode("Dandadan", "G4VUQ1ZKW", 1, testutil.Release)
	trailer := testutil.CreateTestRawEpisode("Dandadan", "TRAILER01", 0, testutil.Release)
	trailer.Trailer = true
	noLocale := testutil.CreateTestRawEpisode("Dandadan", "G4VUQ1ZK2", 2, testutil.Release)
	noLocale.AudioLocale = ""
	blacklistedSeries := testutil.CreateTestRawEpisode("Dandadan", "G4VUQ1ZK3", 3, testutil.Release)
	blacklistedSeries.SeriesID = "BLACKLISTED"
	blacklistedTitle := testutil.CreateTestRawEpisode("Forbidden Title", "G4VUQ1ZK4", 1, testutil.Release)
	recap := testutil.CreateTestRawEpisode("Dandadan", "G4VUQ1ZK5", 0, testutil.Release)
	recap.RawNumber = "12.5"
	anotherValid := testutil.CreateTestRawEpisode("Dandadan", "G4VUQ1ZK6", 2, testutil.Release.AddDate(0, 0, 7))

	// Act
	result, err := suite.ingest.IngestBatch(suite.ctx, []models.RawEpisode{
		valid, trailer, noLocale, blacklistedSeries, blacklistedTitle, recap, anotherValid,
	})

	// Assert
	suite.Require().NoError(err)
	suite.Equal(7, result.Fetched)
	suite.Equal(2, result.Ingested)
	suite.Equal(5, result.Skipped)
	suite.Equal(0, result.Failed)
	suite.Len(result.NewVariantIDs, 2)
	suite.Contains(result.Changes, events.EntityVariant)
}

func (suite *CatalogServiceTestSuite) TestIngestBatch_CorruptRuleFailsBatch() {
	rule := testutil.CreateTestRule(models.RuleAddToNumber, "11")
	suite.Require().NoError(suite.repo.CreateRule(suite.ctx, rule))
	rule.ActionValue = "eleven"
	suite.Require().NoError(suite.repo.UpdateRule(suite.ctx, rule))

	_, err := suite.ingest.IngestBatch(suite.ctx, []models.RawEpisode{
		testutil.CreateTestRawEpisode("Dandadan", "G4VUQ1ZKW", 1, testutil.Release),
	})

	suite.True(errors.IsConfiguration(err))
}

func (suite *CatalogServiceTestSuite) TestIngestBatch_InvalidatesCaches() {
	suite.Require().NoError(suite.cache.Set(suite.ctx, "simulcasts:FR", []*models.Simulcast{}, time.Minute))

	_, err := suite.ingest.IngestBatch(suite.ctx, []models.RawEpisode{
		testutil.CreateTestRawEpisode("Dandadan", "G4VUQ1ZKW", 1, testutil.Release),
	})

	suite.Require().NoError(err)
	suite.Equal(0, suite.cache.Len())
}

func (suite *CatalogServiceTestSuite) TestMergeAnimes() {
	// Arrange
	a3 := suite.ingestOne(testutil.CreateTestRawEpisode("Dandadan", "A3", 3, testutil.Release))
	a4 := suite.ingestOne(testutil.CreateTestRawEpisode("Dandadan", "A4", 4, testutil.Release.AddDate(0, 0, 7)))
	bRaw := testutil.CreateTestRawEpisode("Dan Da Dan", "B3", 3, testutil.Release.Add(time.Hour))
	bRaw.AudioLocale = "fr-FR"
	b3 := suite.ingestOne(bRaw)
	suite.Require().NotEqual(a3.AnimeID, b3.AnimeID)

	member, other := uuid.New(), uuid.New()
	suite.Require().NoError(suite.admin.FollowAnime(suite.ctx, member, a3.AnimeID))
	suite.Require().NoError(suite.admin.FollowAnime(suite.ctx, member, b3.AnimeID))
	suite.Require().NoError(suite.admin.FollowEpisode(suite.ctx, other, a3.MappingID))

	// Act
	result, err := suite.admin.MergeAnimes(suite.ctx, a3.AnimeID, b3.AnimeID)

	// Assert
	suite.Require().NoError(err)
	suite.Equal(1, result.Absorbed)
	suite.Equal(1, result.Moved)

	_, err = suite.repo.GetAnime(suite.ctx, a3.AnimeID)
	suite.True(errors.IsNotFound(err))
	_, err = suite.repo.GetMapping(suite.ctx, a3.MappingID)
	suite.True(errors.IsNotFound(err))

	mappings, err := suite.repo.ListMappingsByAnime(suite.ctx, b3.AnimeID)
	suite.Require().NoError(err)
	suite.Require().Len(mappings, 2)
	suite.Equal(3, mappings[0].Number)
	suite.Equal(b3.MappingID, mappings[0].ID)
	suite.Equal(a4.MappingID, mappings[1].ID)

	variants, err := suite.repo.ListVariantsByMapping(suite.ctx, b3.MappingID)
	suite.Require().NoError(err)
	suite.Len(variants, 2)
	suite.assertDerivedTimestamps(b3.MappingID)

	follows, err := suite.repo.ListAnimeFollows(suite.ctx, b3.AnimeID)
	suite.Require().NoError(err)
	suite.Len(follows, 1)
	episodeFollows, err := suite.repo.ListEpisodeFollows(suite.ctx, b3.MappingID)
	suite.Require().NoError(err)
	suite.Len(episodeFollows, 1)

	trace, err := suite.admin.TraceActions(suite.ctx, b3.AnimeID, 10)
	suite.Require().NoError(err)
	suite.Require().Len(trace, 1)
	suite.Equal(models.TraceMerge, trace[0].Action)
}

func (suite *CatalogServiceTestSuite) TestMergeAnimes_RejectsSelfMerge() {
	a := suite.ingestOne(testutil.CreateTestRawEpisode("Dandadan", "A3", 3, testutil.Release))

	_, err := suite.admin.MergeAnimes(suite.ctx, a.AnimeID, a.AnimeID)

	suite.True(errors.IsBadRequest(err))
}

func (suite *CatalogServiceTestSuite) TestMergeCandidates() {
	short := suite.ingestOne(testutil.CreateTestRawEpisode("Frieren", "F1", 1, testutil.Release))
	suite.ingestOne(testutil.CreateTestRawEpisode("Frieren Beyond Journey's End", "F2", 1, testutil.Release))

	candidates, err := suite.admin.MergeCandidates(suite.ctx, short.AnimeID)

	suite.Require().NoError(err)
	suite.Require().Len(candidates, 1)
	suite.Equal("frieren-beyond-journey-s-end", candidates[0].Slug)
}

func (suite *CatalogServiceTestSuite) TestReKeyMapping_CollisionTransplantsVariants() {
	// Arrange
	three := suite.ingestOne(testutil.CreateTestRawEpisode("Dandadan", "E3", 3, testutil.Release))
	wrong := suite.ingestOne(testutil.CreateTestRawEpisode("Dandadan", "X3", 13, testutil.Release.Add(time.Hour)))

	// Act
	result, err := suite.admin.ReKeyMapping(suite.ctx, wrong.MappingID,
		models.Slot{Season: 1, EpisodeType: models.EpisodeTypeEpisode, Number: 3})

	// Assert
	suite.Require().NoError(err)
	suite.Equal(service.TransitionMerge, result.Transition)
	suite.Equal(three.MappingID, result.Mapping.ID)
	_, err = suite.repo.GetMapping(suite.ctx, wrong.MappingID)
	suite.True(errors.IsNotFound(err))

	variants, err := suite.repo.ListVariantsByMapping(suite.ctx, three.MappingID)
	suite.Require().NoError(err)
	suite.Len(variants, 2)
	suite.assertDerivedTimestamps(three.MappingID)
}

func (suite *CatalogServiceTestSuite) TestReKeyMapping_InPlace() {
	wrong := suite.ingestOne(testutil.CreateTestRawEpisode("Dandadan", "X3", 13, testutil.Release))

	result, err := suite.admin.ReKeyMapping(suite.ctx, wrong.MappingID,
		models.Slot{Season: 1, EpisodeType: models.EpisodeTypeFilm, Number: 1})

	suite.Require().NoError(err)
	suite.Equal(service.TransitionReuse, result.Transition)
	suite.Equal(wrong.MappingID, result.Mapping.ID)
	suite.Equal(models.EpisodeTypeFilm, result.Mapping.EpisodeType)
}

func (suite *CatalogServiceTestSuite) TestSplitVariant() {
	// Arrange
	sub := suite.ingestOne(testutil.CreateTestRawEpisode("Dandadan", "E1", 1, testutil.Release))
	mislabelled := suite.ingestOne(testutil.CreateTestRawEpisode("Dandadan", "E2", 1, testutil.Release.AddDate(0, 0, 7)))
	suite.Require().Equal(sub.MappingID, mislabelled.MappingID)

	// Act
	result, err := suite.admin.SplitVariant(suite.ctx, mislabelled.VariantID,
		models.Slot{Season: 1, EpisodeType: models.EpisodeTypeEpisode, Number: 2})

	// Assert
	suite.Require().NoError(err)
	suite.NotContains(result.Changes, events.EntityAnime)
	suite.NotEqual(sub.MappingID, result.Target.ID)
	suite.assertDerivedTimestamps(sub.MappingID)
	suite.assertDerivedTimestamps(result.Target.ID)

	source, err := suite.repo.GetMapping(suite.ctx, sub.MappingID)
	suite.Require().NoError(err)
	suite.True(source.LastReleaseDateTime.Equal(testutil.Release))
}

func (suite *CatalogServiceTestSuite) TestSplitVariant_LastVariantKeepsAnime() {
	// Arrange
	only := suite.ingestOne(testutil.CreateTestRawEpisode("Dandadan", "E1", 1, testutil.Release))

	// Act
	result, err := suite.admin.SplitVariant(suite.ctx, only.VariantID,
		models.Slot{Season: 1, EpisodeType: models.EpisodeTypeEpisode, Number: 2})

	// Assert
	suite.Require().NoError(err)
	_, err = suite.repo.GetMapping(suite.ctx, only.MappingID)
	suite.True(errors.IsNotFound(err))
	anime, err := suite.repo.GetAnime(suite.ctx, only.AnimeID)
	suite.Require().NoError(err)
	suite.Equal(anime.ID, result.Target.AnimeID)
	suite.assertDerivedTimestamps(result.Target.ID)
}

func (suite *CatalogServiceTestSuite) TestDeleteMapping_CascadesToAnime() {
	// Arrange
	result := suite.ingestOne(testutil.CreateTestRawEpisode("Dandadan", "E1", 1, testutil.Release))
	suite.Require().NoError(suite.admin.FollowAnime(suite.ctx, uuid.New(), result.AnimeID))

	// Act
	animeDeleted, err := suite.admin.DeleteMapping(suite.ctx, result.MappingID)

	// Assert
	suite.Require().NoError(err)
	suite.True(animeDeleted)
	_, err = suite.repo.GetAnime(suite.ctx, result.AnimeID)
	suite.True(errors.IsNotFound(err))
	_, err = suite.repo.GetVariant(suite.ctx, result.VariantID)
	suite.True(errors.IsNotFound(err))
	follows, err := suite.repo.ListAnimeFollows(suite.ctx, result.AnimeID)
	suite.Require().NoError(err)
	suite.Empty(follows)
}

func (suite *CatalogServiceTestSuite) TestReclassify() {
	result := suite.ingestOne(testutil.CreateTestRawEpisode("Dandadan", "E1", 1, testutil.Release))

	assigned, err := suite.admin.Reclassify(suite.ctx, result.AnimeID)

	suite.Require().NoError(err)
	suite.Require().Len(assigned, 1)
	suite.Equal(models.SeasonWinter, assigned[0].Season)
	suite.Equal(2025, assigned[0].Year)

	simulcasts, err := suite.query.ListSimulcasts(suite.ctx, "FR")
	suite.Require().NoError(err)
	suite.Len(simulcasts, 1)
	animes, err := suite.query.ListAnimesBySimulcast(suite.ctx, "FR", simulcasts[0].ID)
	suite.Require().NoError(err)
	suite.Len(animes, 1)
}

func (suite *CatalogServiceTestSuite) TestRuleAdmin() {
	// Arrange
	rule := testutil.CreateTestRule(models.RuleAddToNumber, "11")

	// Act & Assert
	suite.Require().NoError(suite.admin.CreateRule(suite.ctx, rule))

	invalid := testutil.CreateTestRule(models.RuleReplaceSeasonNumber, "")
	suite.True(errors.IsConfiguration(suite.admin.CreateRule(suite.ctx, invalid)))

	_, err := suite.admin.UpdateRule(suite.ctx, rule.ID, "twelve")
	suite.True(errors.IsConfiguration(err))

	updated, err := suite.admin.UpdateRule(suite.ctx, rule.ID, "12")
	suite.Require().NoError(err)
	suite.Equal("12", updated.ActionValue)

	suite.Require().NoError(suite.admin.DeleteRule(suite.ctx, rule.ID))
	listed, err := suite.admin.ListRules(suite.ctx)
	suite.Require().NoError(err)
	suite.Empty(listed)

	trace, err := suite.admin.TraceActions(suite.ctx, rule.ID, 0)
	suite.Require().NoError(err)
	suite.Len(trace, 3)
}

func (suite *CatalogServiceTestSuite) TestLastRuns() {
	started := testutil.Release
	suite.Require().NoError(suite.repo.CreateJobRun(suite.ctx, &models.JobRun{Job: "ingest", Status: models.JobSucceeded, StartedAt: started}))

	summary, err := suite.admin.LastRuns(suite.ctx, "ingest")

	suite.Require().NoError(err)
	suite.Require().NotNil(summary.LastSuccess)
	suite.Nil(summary.LastFailure)
}

func (suite *CatalogServiceTestSuite) TestCurrentGroups() {
	// Arrange
	five := testutil.CreateTestRawEpisode("Dandadan", "E5", 5, testutil.Release)
	six := testutil.CreateTestRawEpisode("Dandadan", "E6", 6, testutil.Release.Add(10*time.Minute))
	_, err := suite.ingest.IngestBatch(suite.ctx, []models.RawEpisode{five, six})
	suite.Require().NoError(err)

	// Act
	groups, err := suite.query.CurrentGroups(suite.ctx, "FR")

	// Assert
	suite.Require().NoError(err)
	suite.Require().Len(groups, 1)
	suite.Equal(5, groups[0].MinNumber)
	suite.Equal(6, groups[0].MaxNumber)
	suite.Equal(1, suite.cache.Len())
}
