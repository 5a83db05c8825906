package ingestion_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/narwhalmedia/simulcast/internal/catalog/grouping"
	"github.com/narwhalmedia/simulcast/internal/catalog/repository"
	"github.com/narwhalmedia/simulcast/internal/catalog/rules"
	"github.com/narwhalmedia/simulcast/internal/catalog/service"
	"github.com/narwhalmedia/simulcast/internal/catalog/simulcast"
	"github.com/narwhalmedia/simulcast/internal/ingestion"
	"github.com/narwhalmedia/simulcast/internal/notify"
	"github.com/narwhalmedia/simulcast/internal/platform"
	"github.com/narwhalmedia/simulcast/pkg/config"
	"github.com/narwhalmedia/simulcast/pkg/errors"
	"github.com/narwhalmedia/simulcast/pkg/events"
	"github.com/narwhalmedia/simulcast/pkg/logger"
	"github.com/narwhalmedia/simulcast/pkg/models"
	"github.com/narwhalmedia/simulcast/test/testutil"
)

type fakeFetcher struct {
	platform models.Platform
	raws     []models.RawEpisode
	err      error
}

func (f *fakeFetcher) Platform() models.Platform { return f.platform }

func (f *fakeFetcher) Fetch(ctx context.Context, countryCode string, asOf time.Time) ([]models.RawEpisode, error) {
	if f.err != nil {
		return nil, f.err
	}
	var out []models.RawEpisode
	for _, raw := range f.raws {
		if raw.CountryCode == countryCode {
			out = append(out, raw)
		}
	}
	return out, nil
}

type recordingPublisher struct {
	mu      sync.Mutex
	batches []*notify.Batch
}

func (p *recordingPublisher) Publish(ctx context.Context, batch *notify.Batch) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.batches = append(p.batches, batch)
	return nil
}

func (p *recordingPublisher) Close() error { return nil }

type noopArchiver struct{}

func (noopArchiver) Archive(ctx context.Context, raw models.RawEpisode, identifier string) error {
	return nil
}

type JobTestSuite struct {
	suite.Suite

	ctx       context.Context
	repo      repository.Repository
	registry  *platform.Registry
	publisher *recordingPublisher
	job       *ingestion.Job
}

func TestJobSuite(t *testing.T) {
	suite.Run(t, new(JobTestSuite))
}

func (suite *JobTestSuite) SetupTest() {
	suite.ctx = context.Background()
	log := logger.NewNoop()
	now := func() time.Time { return testutil.Release.Add(time.Hour) }

	suite.repo = repository.NewGormRepository(testutil.NewTestDB(suite.T()))
	registry, err := platform.NewRegistry(nil, platform.DefaultRetryPolicy(), log)
	suite.Require().NoError(err)
	suite.registry = registry
	suite.publisher = &recordingPublisher{}

	catalogCfg := config.CatalogConfig{ClassifierBatch: 100}
	ingest := service.NewIngestService(suite.repo, rules.NewStore(suite.repo, log), noopArchiver{},
		events.NewInMemoryEventBus(log), catalogCfg, log).WithClock(now)

	suite.job = ingestion.NewJob(
		suite.repo,
		suite.registry,
		ingest,
		simulcast.NewClassifier(suite.repo, 35*24*time.Hour, log),
		grouping.NewBuilder(suite.repo, 2*time.Hour, log),
		notify.NewService(suite.publisher, log),
		config.IngestionConfig{Workers: 1, FetchTimeout: time.Second, Countries: []string{"fr"}},
		catalogCfg,
		log,
	).WithClock(now)
}

func (suite *JobTestSuite) TestRun_IngestsClassifiesAndNotifies() {
	// Arrange
	suite.registry.Register(&fakeFetcher{
		platform: models.PlatformCrunchyroll,
		raws: []models.RawEpisode{
			testutil.CreateTestRawEpisode("Dandadan", "G4VUQ1ZKW", 1, testutil.Release),
			testutil.CreateTestRawEpisode("Dandadan", "GJWU2VKK3", 2, testutil.Release),
		},
	})

	// Act
	report, err := suite.job.Run(suite.ctx)

	// Assert
	suite.Require().NoError(err)
	suite.Equal(models.JobSucceeded, report.Run.Status)
	suite.Equal(2, report.Run.Fetched)
	suite.Equal(2, report.Run.Ingested)
	suite.Equal(2, report.Classified)
	suite.Require().Len(suite.publisher.batches, 1)
	suite.Equal("FR", suite.publisher.batches[0].CountryCode)
	suite.NotEmpty(suite.publisher.batches[0].Groups)

	last, err := suite.repo.LastJobRun(suite.ctx, ingestion.JobName, models.JobSucceeded)
	suite.Require().NoError(err)
	suite.Equal(report.Run.ID, last.ID)
	suite.NotNil(last.FinishedAt)
}

func (suite *JobTestSuite) TestRun_SecondCycleAnnouncesNothing() {
	suite.registry.Register(&fakeFetcher{
		platform: models.PlatformCrunchyroll,
		raws:     []models.RawEpisode{testutil.CreateTestRawEpisode("Dandadan", "G4VUQ1ZKW", 1, testutil.Release)},
	})

	_, err := suite.job.Run(suite.ctx)
	suite.Require().NoError(err)
	report, err := suite.job.Run(suite.ctx)

	suite.Require().NoError(err)
	suite.Equal(1, report.Run.Ingested)
	suite.Len(suite.publisher.batches, 1)
}

func (suite *JobTestSuite) TestRun_PlatformFailureDegrades() {
	// Arrange
	suite.registry.Register(&fakeFetcher{
		platform: models.PlatformNetflix,
		err:      errors.Transient("netflix unavailable", context.DeadlineExceeded),
	})
	suite.registry.Register(&fakeFetcher{
		platform: models.PlatformCrunchyroll,
		raws:     []models.RawEpisode{testutil.CreateTestRawEpisode("Dandadan", "G4VUQ1ZKW", 1, testutil.Release)},
	})

	// Act
	report, err := suite.job.Run(suite.ctx)

	// Assert
	suite.Require().NoError(err)
	suite.Equal(1, report.Run.Ingested)
	suite.Require().Contains(report.FetchErrors, "NETF/FR")
	suite.True(errors.IsTransient(report.FetchErrors["NETF/FR"]))
}

func (suite *JobTestSuite) TestRun_CorruptRuleFailsRun() {
	// Arrange
	rule := testutil.CreateTestRule(models.RuleAddToNumber, "11")
	suite.Require().NoError(suite.repo.CreateRule(suite.ctx, rule))
	rule.ActionValue = "eleven"
	suite.Require().NoError(suite.repo.UpdateRule(suite.ctx, rule))
	suite.registry.Register(&fakeFetcher{
		platform: models.PlatformCrunchyroll,
		raws:     []models.RawEpisode{testutil.CreateTestRawEpisode("Dandadan", "G4VUQ1ZKW", 1, testutil.Release)},
	})

	// Act
	report, err := suite.job.Run(suite.ctx)

	// Assert
	suite.Require().Error(err)
	suite.True(errors.IsConfiguration(err))
	suite.Equal(models.JobFailed, report.Run.Status)
	suite.NotEmpty(report.Run.Error)
	suite.Empty(suite.publisher.batches)

	last, err := suite.repo.LastJobRun(suite.ctx, ingestion.JobName, models.JobFailed)
	suite.Require().NoError(err)
	suite.Equal(report.Run.ID, last.ID)
}

type blockingRunner struct {
	calls   atomic.Int32
	release chan struct{}
	started chan struct{}
}

func (r *blockingRunner) Run(ctx context.Context) (*ingestion.Report, error) {
	r.calls.Add(1)
	r.started <- struct{}{}
	<-r.release
	return &ingestion.Report{}, nil
}

func TestScheduler_DropsOverlappingTrigger(t *testing.T) {
	// Arrange
	runner := &blockingRunner{release: make(chan struct{}), started: make(chan struct{}, 1)}
	s := ingestion.NewScheduler(runner, time.Hour, logger.NewNoop())

	done := make(chan bool)
	go func() { done <- s.Trigger(context.Background()) }()
	<-runner.started

	// Act
	ran := s.Trigger(context.Background())
	close(runner.release)

	// Assert
	assert.False(t, ran)
	assert.True(t, <-done)
	assert.Equal(t, int32(1), runner.calls.Load())
	assert.False(t, s.Running())
}

type countingRunner struct {
	calls atomic.Int32
}

func (r *countingRunner) Run(ctx context.Context) (*ingestion.Report, error) {
	r.calls.Add(1)
	return &ingestion.Report{}, errors.Internal("boom")
}

func TestScheduler_RunsImmediatelyAndStopsOnCancel(t *testing.T) {
	runner := &countingRunner{}
	s := ingestion.NewScheduler(runner, time.Hour, logger.NewNoop())
	ctx, cancel := context.WithCancel(context.Background())

	errCh := make(chan error)
	go func() { errCh <- s.Run(ctx) }()
	require.Eventually(t, func() bool { return runner.calls.Load() == 1 }, time.Second, 10*time.Millisecond)
	cancel()

	assert.ErrorIs(t, <-errCh, context.Canceled)
}

// slowStopRunner returns at once on the first call; later calls block until ctx
// is done and then keep working briefly, like persisting the final run status.
type slowStopRunner struct {
	calls    atomic.Int32
	started  chan struct{}
	inFlight atomic.Bool
}

func (r *slowStopRunner) Run(ctx context.Context) (*ingestion.Report, error) {
	if r.calls.Add(1) == 1 {
		return &ingestion.Report{}, nil
	}
	r.inFlight.Store(true)
	defer r.inFlight.Store(false)
	r.started <- struct{}{}
	<-ctx.Done()
	time.Sleep(100 * time.Millisecond)
	return &ingestion.Report{}, nil
}

func TestScheduler_RunWaitsForTickCycleOnCancel(t *testing.T) {
	runner := &slowStopRunner{started: make(chan struct{}, 1)}
	s := ingestion.NewScheduler(runner, 10*time.Millisecond, logger.NewNoop())
	ctx, cancel := context.WithCancel(context.Background())

	errCh := make(chan error)
	go func() { errCh <- s.Run(ctx) }()
	<-runner.started
	cancel()

	assert.ErrorIs(t, <-errCh, context.Canceled)
	assert.False(t, runner.inFlight.Load())
	assert.False(t, s.Running())
}
