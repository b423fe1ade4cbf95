package matching

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/kailas-cloud/petmatch/internal/domain"
	"github.com/kailas-cloud/petmatch/internal/domain/candidate"
	"github.com/kailas-cloud/petmatch/internal/domain/match"
	"github.com/kailas-cloud/petmatch/internal/domain/pet"
	"github.com/kailas-cloud/petmatch/internal/domain/similarity"
	"github.com/kailas-cloud/petmatch/internal/logger"
	"github.com/kailas-cloud/petmatch/internal/metrics"
)

// Settings tune the matching engine.
type Settings struct {
	MinSimilarity     float64
	DefaultPageLimit  int
	CandidatePageSize int
}

// DefaultSettings returns the engine defaults.
func DefaultSettings() Settings {
	return Settings{
		MinSimilarity:     candidate.DefaultMinSimilarity,
		DefaultPageLimit:  match.DefaultPageLimit,
		CandidatePageSize: 500,
	}
}

// CreateMatchInput requests a match between a lost and a found pet.
// RequestedBy, when set, must own one of the two pets.
type CreateMatchInput struct {
	LostPetID   string
	FoundPetID  string
	RequestedBy string
}

// Service is the pet matching engine.
type Service struct {
	pets     PetRepository
	matches  MatchRepository
	features FeatureEnsurer
	notifier Notifier
	settings Settings
	now      func() time.Time
	newID    func() string
}

// New creates a matching service. features and notifier may be nil.
func New(pets PetRepository, matches MatchRepository, features FeatureEnsurer, notifier Notifier, settings Settings) *Service {
	def := DefaultSettings()
	if settings.MinSimilarity <= 0 {
		settings.MinSimilarity = def.MinSimilarity
	}
	if settings.DefaultPageLimit <= 0 {
		settings.DefaultPageLimit = def.DefaultPageLimit
	}
	if settings.CandidatePageSize <= 0 {
		settings.CandidatePageSize = def.CandidatePageSize
	}
	return &Service{
		pets:     pets,
		matches:  matches,
		features: features,
		notifier: notifier,
		settings: settings,
		now:      time.Now,
		newID:    uuid.NewString,
	}
}

// FindPotentialMatches ranks counterpart pets for petID. Nothing is persisted.
func (s *Service) FindPotentialMatches(
	ctx context.Context, petID string, opts candidate.Options,
) ([]candidate.Candidate, error) {
	opts.ApplyDefaults(s.settings.MinSimilarity, candidate.DefaultLimit)
	if err := opts.Validate(); err != nil {
		return nil, err
	}

	subject, err := s.pets.GetByID(ctx, petID)
	if err != nil {
		return nil, fmt.Errorf("get pet: %w", err)
	}
	return s.rank(ctx, subject, opts)
}

func (s *Service) rank(ctx context.Context, subject pet.Pet, opts candidate.Options) ([]candidate.Candidate, error) {
	q, err := candidate.BuildQuery(subject, opts, s.settings.CandidatePageSize)
	if err != nil {
		return nil, err
	}
	subject, err = s.ensure(ctx, subject)
	if err != nil {
		return nil, err
	}

	var ranked []candidate.Candidate
	for {
		page, err := s.pets.FindCandidates(ctx, q)
		if err != nil {
			return nil, fmt.Errorf("find candidates: %w", err)
		}
		scored, skipped := candidate.Rank(subject, page, opts)
		if len(skipped) > 0 {
			logger.FromContext(ctx).Warn("Skipping candidates with incomparable vectors",
				zap.String("pet_id", subject.ID), zap.Strings("candidate_ids", skipped))
		}
		ranked = candidate.Merge(ranked, scored, opts.Limit)

		next, more := q.Next(page)
		if !more {
			return ranked, nil
		}
		q = next
	}
}

// CreateMatch scores and stores a match for an explicit (lost, found) pair.
// A second request for the same pair fails with domain.ErrDuplicateMatch.
func (s *Service) CreateMatch(ctx context.Context, in CreateMatchInput) (match.Details, error) {
	if in.LostPetID == "" || in.FoundPetID == "" {
		return match.Details{}, domain.Validationf("lostPetId and foundPetId are required")
	}

	lost, err := s.pets.GetByID(ctx, in.LostPetID)
	if err != nil {
		return match.Details{}, fmt.Errorf("get lost pet: %w", err)
	}
	found, err := s.pets.GetByID(ctx, in.FoundPetID)
	if err != nil {
		return match.Details{}, fmt.Errorf("get found pet: %w", err)
	}
	if lost.Status != pet.StatusLost || found.Status != pet.StatusFound {
		return match.Details{}, fmt.Errorf("%w: lost side is %s, found side is %s",
			domain.ErrInvalidPetState, lost.Status, found.Status)
	}
	if in.RequestedBy != "" {
		if err := match.Authorize(in.RequestedBy, lost, found); err != nil {
			return match.Details{}, err
		}
	}

	if lost, err = s.ensure(ctx, lost); err != nil {
		return match.Details{}, err
	}
	if found, err = s.ensure(ctx, found); err != nil {
		return match.Details{}, err
	}
	if !lost.Scoreable() || !found.Scoreable() {
		return match.Details{}, fmt.Errorf("%w: both pets need a feature record", domain.ErrInvalidPetState)
	}

	score, err := similarity.Cosine(lost.Features.Vector, found.Features.Vector)
	if err != nil {
		return match.Details{}, fmt.Errorf("score pair: %w", err)
	}
	return s.store(ctx, lost, found, score, metrics.SourceInteractive)
}

// MatchPet runs candidate search for subject and stores a match for every candidate
// at or above the threshold. Pairs that already have a match are counted as duplicates.
func (s *Service) MatchPet(
	ctx context.Context, subject pet.Pet, opts candidate.Options, source string,
) (created, duplicates int, err error) {
	opts.ApplyDefaults(s.settings.MinSimilarity, 0)
	ranked, err := s.rank(ctx, subject, opts)
	if err != nil {
		return 0, 0, err
	}

	for _, c := range ranked {
		lost, found, err := candidate.Pair(subject, c.Pet)
		if err != nil {
			return created, duplicates, err
		}
		_, err = s.store(ctx, lost, found, c.Similarity, source)
		switch {
		case err == nil:
			created++
		case errors.Is(err, domain.ErrDuplicateMatch):
			duplicates++
		default:
			return created, duplicates, err
		}
	}
	return created, duplicates, nil
}

func (s *Service) store(ctx context.Context, lost, found pet.Pet, score float64, source string) (match.Details, error) {
	m, err := match.New(s.newID(), lost, found, score, s.now().UTC())
	if err != nil {
		return match.Details{}, err
	}
	if err := s.matches.Create(ctx, m); err != nil {
		if errors.Is(err, domain.ErrDuplicateMatch) {
			metrics.MatchDuplicatesTotal.WithLabelValues(source).Inc()
		}
		return match.Details{}, fmt.Errorf("create match: %w", err)
	}
	metrics.MatchesCreatedTotal.WithLabelValues(source, string(m.Confidence())).Inc()

	logger.FromContext(ctx).Info("Match created",
		zap.String("match_id", m.ID()),
		zap.String("lost_pet_id", lost.ID),
		zap.String("found_pet_id", found.ID),
		zap.Float64("similarity", m.Similarity()),
		zap.String("confidence", string(m.Confidence())),
		zap.String("source", source),
	)

	d := match.Details{Match: m, Lost: lost, Found: found}
	if s.notifier != nil {
		s.notifier.Enqueue(d)
	}
	return d, nil
}

func (s *Service) ensure(ctx context.Context, p pet.Pet) (pet.Pet, error) {
	if s.features == nil {
		return p, nil
	}
	out, err := s.features.EnsureFeatures(ctx, p)
	if err != nil {
		return p, fmt.Errorf("features for pet %s: %w", p.ID, err)
	}
	return out, nil
}

// GetMatchByID returns a match with both pets resolved. A non-empty actor must own
// one of the pets.
func (s *Service) GetMatchByID(ctx context.Context, id, actor string) (match.Details, error) {
	m, err := s.matches.GetByID(ctx, id)
	if err != nil {
		return match.Details{}, fmt.Errorf("get match: %w", err)
	}
	d, err := s.resolve(ctx, m)
	if err != nil {
		return match.Details{}, err
	}
	if actor != "" {
		if err := match.Authorize(actor, d.Lost, d.Found); err != nil {
			return match.Details{}, err
		}
	}
	return d, nil
}

// UpdateMatchStatus confirms or rejects a pending match on behalf of actor, who must
// own the lost or the found pet. Terminal matches fail with domain.ErrAlreadyProcessed.
func (s *Service) UpdateMatchStatus(
	ctx context.Context, id, actor string, target match.Status, notes string,
) (match.Details, error) {
	d, err := s.updateStatus(ctx, id, actor, target, notes)
	result := "ok"
	switch {
	case err == nil:
	case errors.Is(err, domain.ErrAlreadyProcessed):
		result = "already_processed"
	case errors.Is(err, domain.ErrUnauthorized):
		result = "unauthorized"
	default:
		result = "error"
	}
	metrics.MatchTransitionsTotal.WithLabelValues(string(target), result).Inc()
	return d, err
}

func (s *Service) updateStatus(
	ctx context.Context, id, actor string, target match.Status, notes string,
) (match.Details, error) {
	if actor == "" {
		return match.Details{}, fmt.Errorf("%w: acting user is required", domain.ErrUnauthorized)
	}
	if target != match.StatusConfirmed && target != match.StatusRejected {
		return match.Details{}, domain.Validationf("status must be confirmed or rejected, got %q", target)
	}

	d, err := s.GetMatchByID(ctx, id, actor)
	if err != nil {
		return match.Details{}, err
	}
	next, err := d.Match.Transition(actor, target, notes, s.now().UTC())
	if err != nil {
		return match.Details{}, err
	}
	if err := s.matches.UpdateStatus(ctx, next); err != nil {
		return match.Details{}, fmt.Errorf("update match status: %w", err)
	}

	logger.FromContext(ctx).Info("Match status changed",
		zap.String("match_id", id),
		zap.String("status", string(target)),
		zap.String("actor", actor),
	)
	d.Match = next
	return d, nil
}

// GetUserMatches lists matches involving any pet owned by q.UserID.
func (s *Service) GetUserMatches(ctx context.Context, q match.ListQuery) (match.Page, error) {
	q.ApplyDefaults(s.settings.DefaultPageLimit)
	if err := q.Validate(); err != nil {
		return match.Page{}, err
	}

	petIDs, err := s.pets.IDsByOwner(ctx, q.UserID)
	if err != nil {
		return match.Page{}, fmt.Errorf("list owner pets: %w", err)
	}
	return s.list(ctx, petIDs, q)
}

// GetPetMatches lists matches involving petID. Only the pet's owner may see them.
func (s *Service) GetPetMatches(ctx context.Context, petID, actor string, q match.ListQuery) (match.Page, error) {
	q.UserID = actor
	q.ApplyDefaults(s.settings.DefaultPageLimit)
	if err := q.Validate(); err != nil {
		return match.Page{}, err
	}

	p, err := s.pets.GetByID(ctx, petID)
	if err != nil {
		return match.Page{}, fmt.Errorf("get pet: %w", err)
	}
	if p.Owner.ID != actor {
		return match.Page{}, fmt.Errorf("%w: user %s does not own pet %s", domain.ErrUnauthorized, actor, petID)
	}
	return s.list(ctx, []string{petID}, q)
}

func (s *Service) list(ctx context.Context, petIDs []string, q match.ListQuery) (match.Page, error) {
	if len(petIDs) == 0 {
		return match.NewPage([]match.Details{}, 0, q), nil
	}

	ms, total, err := s.matches.ListByPets(ctx, petIDs, q)
	if err != nil {
		return match.Page{}, fmt.Errorf("list matches: %w", err)
	}

	ids := make([]string, 0, 2*len(ms))
	for _, m := range ms {
		ids = append(ids, m.LostPetID(), m.FoundPetID())
	}
	pets, err := s.pets.GetMany(ctx, ids)
	if err != nil {
		return match.Page{}, fmt.Errorf("resolve pets: %w", err)
	}

	items := make([]match.Details, 0, len(ms))
	for _, m := range ms {
		items = append(items, match.Details{
			Match: m,
			Lost:  lookup(pets, m.LostPetID()),
			Found: lookup(pets, m.FoundPetID()),
		})
	}
	return match.NewPage(items, total, q), nil
}

func (s *Service) resolve(ctx context.Context, m match.Match) (match.Details, error) {
	pets, err := s.pets.GetMany(ctx, []string{m.LostPetID(), m.FoundPetID()})
	if err != nil {
		return match.Details{}, fmt.Errorf("resolve pets: %w", err)
	}
	return match.Details{
		Match: m,
		Lost:  lookup(pets, m.LostPetID()),
		Found: lookup(pets, m.FoundPetID()),
	}, nil
}

// lookup tolerates pets removed after the match was stored.
func lookup(pets map[string]pet.Pet, id string) pet.Pet {
	if p, ok := pets[id]; ok {
		return p
	}
	return pet.Pet{ID: id}
}

// GetMatchStatistics aggregates matches created within w.
func (s *Service) GetMatchStatistics(ctx context.Context, w match.Window) (match.Stats, error) {
	if err := w.Validate(); err != nil {
		return match.Stats{}, err
	}
	st, err := s.matches.Stats(ctx, w)
	if err != nil {
		return match.Stats{}, fmt.Errorf("match statistics: %w", err)
	}
	return st, nil
}
