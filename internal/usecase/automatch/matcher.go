package automatch

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/kailas-cloud/petmatch/internal/db"
	"github.com/kailas-cloud/petmatch/internal/domain"
	"github.com/kailas-cloud/petmatch/internal/domain/candidate"
	"github.com/kailas-cloud/petmatch/internal/domain/pet"
	"github.com/kailas-cloud/petmatch/internal/domain/sweep"
	"github.com/kailas-cloud/petmatch/internal/logger"
	"github.com/kailas-cloud/petmatch/internal/metrics"
)

// Defaults for a sweep.
const (
	DefaultMaxDays                = 7
	DefaultMaxPets                = 500
	DefaultMaxConsecutiveFailures = 5
)

// Settings bound every sweep run.
type Settings struct {
	MaxDays                int
	MaxPets                int
	RunTimeout             time.Duration
	MaxConsecutiveFailures int
}

// Options override Settings for a single run. Zero fields keep the setting.
type Options struct {
	MaxDays int
	MaxPets int
}

// Matcher sweeps recently reported pets and creates matches for them. A run cut
// short by the pet cap or the time budget leaves a resume position, so the next
// run continues with newer pets instead of starting over.
type Matcher struct {
	pets     RecentPets
	matcher  PetMatcher
	settings Settings
	logger   *zap.Logger
	now      func() time.Time
	newID    func() string

	mu     sync.Mutex
	resume *pet.Position
}

// NewMatcher creates a sweep matcher.
func NewMatcher(pets RecentPets, matcher PetMatcher, settings Settings, logger *zap.Logger) *Matcher {
	if settings.MaxDays <= 0 {
		settings.MaxDays = DefaultMaxDays
	}
	if settings.MaxPets <= 0 {
		settings.MaxPets = DefaultMaxPets
	}
	if settings.MaxConsecutiveFailures <= 0 {
		settings.MaxConsecutiveFailures = DefaultMaxConsecutiveFailures
	}
	return &Matcher{
		pets:     pets,
		matcher:  matcher,
		settings: settings,
		logger:   logger,
		now:      time.Now,
		newID:    uuid.NewString,
	}
}

// Run performs one sweep. Per-pet failures are recorded in the summary and the
// sweep continues; a storage outage aborts it with domain.ErrStoreUnavailable.
// The summary is returned even when the run aborts.
func (m *Matcher) Run(ctx context.Context, opts Options) (*sweep.Summary, error) {
	maxDays := m.settings.MaxDays
	if opts.MaxDays > 0 {
		maxDays = opts.MaxDays
	}
	maxPets := m.settings.MaxPets
	if opts.MaxPets > 0 {
		maxPets = opts.MaxPets
	}
	if m.settings.RunTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, m.settings.RunTimeout)
		defer cancel()
	}

	start := m.now().UTC()
	summary := sweep.NewSummary(m.newID(), start)
	ctx, log := logger.With(logger.ContextWithLogger(ctx, m.logger), zap.String("run_id", summary.RunID))
	log.Info("Sweep started", zap.Int("max_days", maxDays), zap.Int("max_pets", maxPets))

	q := pet.RecentQuery{Since: start.AddDate(0, 0, -maxDays), After: m.resumePosition(), Limit: maxPets + 1}
	if q.After != nil {
		log.Info("Sweep resuming", zap.String("after_pet_id", q.After.ID), zap.Time("after_created_at", q.After.CreatedAt))
	}
	err := m.run(ctx, summary, q, maxPets, log)
	summary.Finish(m.now().UTC())
	m.observe(summary, err)

	fields := []zap.Field{
		zap.Int("pets_processed", summary.PetsProcessed),
		zap.Int("matches_created", summary.MatchesCreated),
		zap.Int("duplicates", summary.Duplicates),
		zap.Int("errors", len(summary.Errors)),
		zap.Bool("truncated", summary.Truncated),
		zap.Duration("duration", summary.Duration()),
	}
	if err != nil {
		log.Error("Sweep aborted", append(fields, zap.Error(err))...)
		return summary, err
	}
	log.Info("Sweep finished", fields...)
	return summary, nil
}

func (m *Matcher) run(ctx context.Context, summary *sweep.Summary, q pet.RecentQuery, maxPets int, log *zap.Logger) error {
	pets, err := m.pets.ListRecent(ctx, q)
	if err != nil {
		return fmt.Errorf("%w: list recent pets: %w", domain.ErrStoreUnavailable, err)
	}
	if len(pets) > maxPets {
		pets = pets[:maxPets]
		summary.Truncated = true
	}

	// A run that reaches the end of the window starts the next one from the top.
	var last *pet.Position
	complete := false
	defer func() {
		switch {
		case complete:
			m.setResume(nil)
		case last != nil:
			m.setResume(last)
		}
	}()

	consecutive := 0
	for _, p := range pets {
		if ctx.Err() != nil {
			summary.Truncated = true
			log.Warn("Sweep stopped on its time budget", zap.Int("remaining", len(pets)-summary.PetsProcessed))
			return nil
		}

		created, dups, err := m.matcher.MatchPet(ctx, p, candidate.Options{}, metrics.SourceSweep)
		if err != nil && ctx.Err() != nil && !errors.Is(err, domain.ErrFeatureProvider) {
			// Cut short by the run deadline rather than by the pet itself.
			summary.Truncated = true
			return nil
		}
		if err == nil {
			summary.Record(sweep.NewOK(p.ID, created, dups))
			last = positionOf(p)
			consecutive = 0
			continue
		}

		summary.Record(sweep.NewError(p.ID, created, dups, err))
		log.Warn("Sweep failed for pet", zap.String("pet_id", p.ID), zap.Error(err))

		if !isStoreFailure(err) {
			last = positionOf(p)
			consecutive = 0
			continue
		}
		consecutive++
		if errors.Is(err, domain.ErrStoreUnavailable) || consecutive >= m.settings.MaxConsecutiveFailures {
			return fmt.Errorf("%w: %d consecutive storage failures, last: %w",
				domain.ErrStoreUnavailable, consecutive, err)
		}
	}
	complete = !summary.Truncated
	return nil
}

func positionOf(p pet.Pet) *pet.Position {
	pos := pet.PositionOf(p)
	return &pos
}

func (m *Matcher) resumePosition() *pet.Position {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.resume
}

func (m *Matcher) setResume(pos *pet.Position) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.resume = pos
}

// isStoreFailure reports errors raised by the storage layer, as opposed to
// per-pet conditions such as a feature provider timeout.
func isStoreFailure(err error) bool {
	if errors.Is(err, domain.ErrStoreUnavailable) {
		return true
	}
	var dbErr *db.Error
	return errors.As(err, &dbErr)
}

func (m *Matcher) observe(s *sweep.Summary, err error) {
	result := "ok"
	switch {
	case err != nil:
		result = "aborted"
	case len(s.Errors) > 0 || s.Truncated:
		result = "partial"
	}
	metrics.SweepRunsTotal.WithLabelValues(result).Inc()
	metrics.SweepDuration.Observe(s.Duration().Seconds())
	metrics.SweepPetsProcessedTotal.Add(float64(s.PetsProcessed))
	metrics.SweepPetErrorsTotal.Add(float64(len(s.Errors)))
}
