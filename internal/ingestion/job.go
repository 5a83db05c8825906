// Package ingestion runs the scheduled fetch, reconcile, classify and notify cycle.
package ingestion

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/narwhalmedia/simulcast/internal/catalog/grouping"
	"github.com/narwhalmedia/simulcast/internal/catalog/repository"
	"github.com/narwhalmedia/simulcast/internal/catalog/service"
	"github.com/narwhalmedia/simulcast/internal/catalog/simulcast"
	"github.com/narwhalmedia/simulcast/internal/notify"
	"github.com/narwhalmedia/simulcast/internal/platform"
	"github.com/narwhalmedia/simulcast/pkg/config"
	"github.com/narwhalmedia/simulcast/pkg/errors"
	"github.com/narwhalmedia/simulcast/pkg/interfaces"
	"github.com/narwhalmedia/simulcast/pkg/models"
)

// JobName identifies ingestion runs in the job run history.
const JobName = "ingest"

// Report summarizes one ingestion cycle.
type Report struct {
	Run         *models.JobRun
	Classified  int
	FetchErrors map[string]error
	Batches     []*notify.Batch
}

// Job fetches every enabled platform for every configured country, reconciles the
// raw episodes, classifies new mappings and announces the new releases.
type Job struct {
	repo       repository.Repository
	registry   *platform.Registry
	ingest     *service.IngestService
	classifier *simulcast.Classifier
	builder    *grouping.Builder
	notifier   *notify.Service
	cfg        config.IngestionConfig
	batchSize  int
	logger     interfaces.Logger
	now        func() time.Time
}

// NewJob creates a new ingestion job
func NewJob(
	repo repository.Repository,
	registry *platform.Registry,
	ingest *service.IngestService,
	classifier *simulcast.Classifier,
	builder *grouping.Builder,
	notifier *notify.Service,
	cfg config.IngestionConfig,
	catalog config.CatalogConfig,
	logger interfaces.Logger,
) *Job {
	return &Job{
		repo:       repo,
		registry:   registry,
		ingest:     ingest,
		classifier: classifier,
		builder:    builder,
		notifier:   notifier,
		cfg:        cfg,
		batchSize:  catalog.ClassifierBatch,
		logger:     logger.WithFields(interfaces.String("job", JobName)),
		now:        time.Now,
	}
}

// WithClock replaces the time source.
func (j *Job) WithClock(now func() time.Time) *Job {
	j.now = now
	return j
}

type fetchResult struct {
	country string
	batch   *service.BatchResult
}

// Run executes one cycle. Platform failures are logged and degrade to an empty
// fetch; only an unusable rule set or a storage failure fails the run.
func (j *Job) Run(ctx context.Context) (*Report, error) {
	startedAt := j.now().UTC()
	run := &models.JobRun{Job: JobName, Status: models.JobRunning, StartedAt: startedAt}
	if err := j.repo.CreateJobRun(ctx, run); err != nil {
		return nil, fmt.Errorf("failed to record job run: %w", err)
	}

	report := &Report{Run: run, FetchErrors: make(map[string]error)}
	err := j.run(ctx, startedAt, report)

	finishedAt := j.now().UTC()
	run.FinishedAt = &finishedAt
	run.Status = models.JobSucceeded
	if err != nil {
		run.Status = models.JobFailed
		run.Error = err.Error()
	}
	// The run record is written even when ctx was cancelled mid-cycle.
	if uerr := j.repo.UpdateJobRun(context.WithoutCancel(ctx), run); uerr != nil {
		j.logger.Error("Failed to update job run", interfaces.Error(uerr))
	}

	fields := []interfaces.Field{
		interfaces.String("status", string(run.Status)),
		interfaces.Int("fetched", run.Fetched),
		interfaces.Int("ingested", run.Ingested),
		interfaces.Int("skipped", run.Skipped),
		interfaces.Int("failed", run.Failed),
		interfaces.Int("classified", report.Classified),
		interfaces.Int("fetch_errors", len(report.FetchErrors)),
		interfaces.Duration("elapsed", finishedAt.Sub(startedAt)),
	}
	if err != nil {
		j.logger.Error("Ingestion run failed", append(fields, interfaces.Error(err))...)
		return report, err
	}
	j.logger.Info("Ingestion run finished", fields...)
	return report, nil
}

func (j *Job) run(ctx context.Context, asOf time.Time, report *Report) error {
	results, err := j.fetchAll(ctx, asOf, report)
	if err != nil {
		return err
	}

	newVariants := make(map[string][]uuid.UUID)
	for _, r := range results {
		report.Run.Fetched += r.batch.Fetched
		report.Run.Ingested += r.batch.Ingested
		report.Run.Skipped += r.batch.Skipped
		report.Run.Failed += r.batch.Failed
		newVariants[r.country] = append(newVariants[r.country], r.batch.NewVariantIDs...)
	}

	classified, err := j.classifier.ClassifyPending(ctx, j.batchSize)
	report.Classified = classified
	if err != nil {
		return fmt.Errorf("failed to classify mappings: %w", err)
	}

	return j.announce(ctx, asOf, newVariants, report)
}

// fetchAll runs one bounded-parallel task per platform and country. Records of one
// task are reconciled sequentially.
func (j *Job) fetchAll(ctx context.Context, asOf time.Time, report *Report) ([]fetchResult, error) {
	workers := j.cfg.Workers
	if workers <= 0 {
		workers = config.DefaultIngestWorkers
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	var mu sync.Mutex
	var results []fetchResult
	for _, country := range j.cfg.Countries {
		country := strings.ToUpper(country)
		for _, fetcher := range j.registry.Fetchers() {
			fetcher := fetcher
			g.Go(func() error {
				raws, err := j.fetch(gctx, fetcher, country, asOf)
				if err != nil {
					key := fmt.Sprintf("%s/%s", fetcher.Platform(), country)
					mu.Lock()
					report.FetchErrors[key] = err
					mu.Unlock()
					return nil
				}

				batch, err := j.ingest.IngestBatch(gctx, raws)
				if err != nil {
					return fmt.Errorf("%s/%s: %w", fetcher.Platform(), country, err)
				}
				mu.Lock()
				results = append(results, fetchResult{country: country, batch: batch})
				mu.Unlock()
				return nil
			})
		}
	}

	err := g.Wait()
	return results, err
}

func (j *Job) fetch(ctx context.Context, fetcher platform.Fetcher, country string, asOf time.Time) ([]models.RawEpisode, error) {
	timeout := j.cfg.FetchTimeout
	if timeout <= 0 {
		timeout = config.DefaultFetchTimeout
	}
	fctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	log := j.logger.WithFields(
		interfaces.String("platform", string(fetcher.Platform())),
		interfaces.String("country", country))

	started := time.Now()
	raws, err := fetcher.Fetch(fctx, country, asOf)
	switch {
	case err == nil:
		log.Info("Platform fetched",
			interfaces.Int("episodes", len(raws)),
			interfaces.Duration("elapsed", time.Since(started)))
		return raws, nil
	case errors.IsSkip(err):
		log.Info("Platform skipped", interfaces.String("reason", err.Error()))
	case errors.IsTransient(err):
		log.Warn("Platform unavailable, retrying next cycle", interfaces.Error(err))
	default:
		log.Error("Platform fetch failed", interfaces.Error(err))
	}
	return nil, err
}

func (j *Job) announce(ctx context.Context, asOf time.Time, newVariants map[string][]uuid.UUID, report *Report) error {
	if j.notifier == nil {
		return nil
	}
	pending := false
	for _, ids := range newVariants {
		if len(ids) > 0 {
			pending = true
			break
		}
	}
	if !pending {
		return nil
	}

	from, to := grouping.ReportingWindow(asOf)
	to = to.Add(time.Minute)
	index, err := j.builder.Build(ctx, from, to)
	if err != nil {
		return fmt.Errorf("failed to build grouping index: %w", err)
	}

	for _, country := range j.cfg.Countries {
		country := strings.ToUpper(country)
		ids := newVariants[country]
		if len(ids) == 0 {
			continue
		}
		batch, err := j.notifier.Notify(ctx, country, index.Groups(country, from, to), ids)
		if err != nil {
			// Delivery failures do not undo ingestion.
			j.logger.Warn("Notification failed", interfaces.String("country", country), interfaces.Error(err))
			continue
		}
		if batch != nil {
			report.Batches = append(report.Batches, batch)
		}
	}
	return nil
}
