package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/couchcryptid/emissions-regrid/internal/domain"
	"github.com/couchcryptid/emissions-regrid/internal/observability"
)

// UnitLoader reads the full-day source dataset for one unit, merging the
// half-day files.
type UnitLoader interface {
	LoadFullDay(ctx context.Context, year int, month time.Month, dayType domain.DayType, sector string) (*domain.Dataset, error)
}

// Regridder remaps a dataset from its native grid onto the output grid.
type Regridder interface {
	Regrid(ds *domain.Dataset) (*domain.Dataset, error)
}

// UnitWriter persists a regridded dataset and returns the path it wrote.
type UnitWriter interface {
	Write(ds *domain.Dataset) (string, error)
}

// CompletionPublisher announces a finished unit to downstream consumers.
type CompletionPublisher interface {
	PublishCompletion(ctx context.Context, c Completion) error
}

// Pipeline orchestrates the load-regrid-write cycle over all units.
type Pipeline struct {
	loader    UnitLoader
	regridder Regridder
	writer    UnitWriter
	publisher CompletionPublisher // nil when publishing is disabled
	logger    *slog.Logger
	metrics   *observability.Metrics

	units      []Unit
	workers    int
	sumZLevels bool
	clipExtent *domain.Extent // nil disables post-regrid clipping

	outputPath   string
	minFreeSpace string

	ready atomic.Bool
	done  atomic.Int64
}

// New creates a Pipeline. publisher and clipExtent may be nil.
func New(loader UnitLoader, regridder Regridder, writer UnitWriter, publisher CompletionPublisher,
	logger *slog.Logger, metrics *observability.Metrics,
	units []Unit, workers int, sumZLevels bool, clipExtent *domain.Extent,
	outputPath, minFreeSpace string) *Pipeline {
	if workers < 1 {
		workers = 1
	}
	return &Pipeline{
		loader:       loader,
		regridder:    regridder,
		writer:       writer,
		publisher:    publisher,
		logger:       logger,
		metrics:      metrics,
		units:        units,
		workers:      workers,
		sumZLevels:   sumZLevels,
		clipExtent:   clipExtent,
		outputPath:   outputPath,
		minFreeSpace: minFreeSpace,
	}
}

// CheckReadiness returns nil once the pipeline has completed at least one
// unit, meaning the regrid weights exist and the output tree is writable.
func (p *Pipeline) CheckReadiness(_ context.Context) error {
	if !p.ready.Load() {
		return errors.New("pipeline has not completed any units yet")
	}
	return nil
}

// Progress reports how many units have completed out of the total.
func (p *Pipeline) Progress() (done, total int) {
	return int(p.done.Load()), len(p.units)
}

// Run processes every unit. The first unit runs alone so the regrid weight
// matrix is computed exactly once; the remainder fan out across workers.
// The first failure cancels the batch.
func (p *Pipeline) Run(ctx context.Context) error {
	free, err := checkSpace(p.outputPath, p.minFreeSpace)
	if err != nil {
		return err
	}
	if len(p.units) == 0 {
		return errors.New("no units to process")
	}

	p.logger.Info("pipeline started",
		"units", len(p.units), "workers", p.workers, "free_space", bytesToHuman(free))
	p.metrics.PipelineRunning.Set(1)
	defer p.metrics.PipelineRunning.Set(0)

	if err := p.processUnit(ctx, p.units[0]); err != nil {
		return fmt.Errorf("unit %s: %w", p.units[0], err)
	}
	p.ready.Store(true)

	rest := p.units[1:]
	if len(rest) == 0 {
		p.logger.Info("pipeline finished", "units", len(p.units))
		return nil
	}

	workCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	work := make(chan Unit)
	errs := make(chan error, p.workers)
	var wg sync.WaitGroup
	for i := 0; i < p.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for u := range work {
				if workCtx.Err() != nil {
					return
				}
				if err := p.processUnit(workCtx, u); err != nil {
					errs <- fmt.Errorf("unit %s: %w", u, err)
					cancel()
					return
				}
			}
		}()
	}

	for _, u := range rest {
		select {
		case work <- u:
		case <-workCtx.Done():
		}
		if workCtx.Err() != nil {
			break
		}
	}
	close(work)
	wg.Wait()
	close(errs)

	if err := <-errs; err != nil {
		return err
	}
	if ctx.Err() != nil {
		p.logger.Info("pipeline stopping", "reason", ctx.Err())
		return ctx.Err()
	}
	p.logger.Info("pipeline finished", "units", len(p.units))
	return nil
}

// processUnit runs one load-regrid-write cycle.
func (p *Pipeline) processUnit(ctx context.Context, u Unit) error {
	start := time.Now()
	p.logger.Info("processing unit", "unit", u.String())

	ds, err := p.loader.LoadFullDay(ctx, u.Year, u.Month, u.DayType, u.Sector)
	if err != nil {
		p.metrics.UnitFailures.Inc()
		return fmt.Errorf("load: %w", err)
	}

	if p.sumZLevels {
		if err := domain.SumZLevels(ds); err != nil {
			p.metrics.UnitFailures.Inc()
			return err
		}
	}

	out, err := p.regridder.Regrid(ds)
	if err != nil {
		p.metrics.UnitFailures.Inc()
		return fmt.Errorf("regrid: %w", err)
	}
	p.metrics.FieldsRegridded.Add(float64(len(out.Fields)))

	if e := p.clipExtent; e != nil {
		if err := domain.SliceExtent(out, e.LatMin, e.LatMax, e.LonMin, e.LonMax); err != nil {
			p.metrics.UnitFailures.Inc()
			return fmt.Errorf("clip: %w", err)
		}
	}

	path, err := p.writer.Write(out)
	if err != nil {
		p.metrics.UnitFailures.Inc()
		return fmt.Errorf("write: %w", err)
	}

	if p.publisher != nil {
		c := Completion{
			Year:        u.Year,
			Month:       int(u.Month),
			DayType:     u.DayType,
			Sector:      u.Sector,
			Path:        path,
			Fields:      len(out.Fields),
			CompletedAt: domain.Now().UTC(),
		}
		if err := p.publisher.PublishCompletion(ctx, c); err != nil {
			// Publishing is advisory; the unit is already on disk.
			p.logger.Warn("publish completion failed", "unit", u.String(), "error", err)
		} else {
			p.metrics.EventsPublished.Inc()
		}
	}

	p.done.Add(1)
	p.metrics.UnitsProcessed.Inc()
	p.metrics.UnitDuration.Observe(time.Since(start).Seconds())
	p.logger.Info("unit complete", "unit", u.String(), "path", path, "duration", time.Since(start))
	return nil
}
