package chi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	gochi "github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/kailas-cloud/petmatch/internal/domain"
	"github.com/kailas-cloud/petmatch/internal/domain/match"
	"github.com/kailas-cloud/petmatch/internal/domain/sweep"
	"github.com/kailas-cloud/petmatch/internal/usecase/automatch"
	healthuc "github.com/kailas-cloud/petmatch/internal/usecase/health"
	"github.com/kailas-cloud/petmatch/internal/usecase/matching"
)

const maxBodyBytes = 1 << 20

// SweepRunner runs one automatic matching sweep.
type SweepRunner interface {
	Run(ctx context.Context, opts automatch.Options) (*sweep.Summary, error)
}

// Server serves the matching HTTP API.
type Server struct {
	matching      *matching.Service
	sweeps        SweepRunner
	health        *healthuc.Service
	adminKeys     []string
	logger        *zap.Logger
	errorHandlers []errorHandler
}

// NewServer creates an HTTP API server. adminKeys gate the /admin routes.
func NewServer(
	matchingSvc *matching.Service,
	sweeps SweepRunner,
	health *healthuc.Service,
	adminKeys []string,
	logger *zap.Logger,
) *Server {
	return &Server{
		matching:      matchingSvc,
		sweeps:        sweeps,
		health:        health,
		adminKeys:     adminKeys,
		logger:        logger,
		errorHandlers: defaultErrorHandlers(),
	}
}

// Routes mounts the API on r.
func (s *Server) Routes(r gochi.Router) {
	r.Get("/health", s.HealthCheck)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Get("/pets/{petID}/potential-matches", s.FindPotentialMatches)
	r.Post("/matches", s.CreateMatch)

	r.Group(func(r gochi.Router) {
		r.Use(RequireUser)
		r.Get("/pets/{petID}/matches", s.GetPetMatches)
		r.Get("/matches/{matchID}", s.GetMatch)
		r.Patch("/matches/{matchID}/status", s.UpdateMatchStatus)
		r.Get("/me/matches", s.GetUserMatches)
	})

	r.Route("/admin/matching", func(r gochi.Router) {
		r.Use(AdminOnly(s.adminKeys))
		r.Post("/run", s.RunSweep)
		r.Get("/stats", s.GetStatistics)
	})
}

// FindPotentialMatches handles GET /pets/{petID}/potential-matches.
func (s *Server) FindPotentialMatches(w http.ResponseWriter, r *http.Request) {
	opts, err := candidateOptions(r.URL.Query())
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	cands, err := s.matching.FindPotentialMatches(r.Context(), gochi.URLParam(r, "petID"), opts)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, candidatesToDTO(cands))
}

// CreateMatch handles POST /matches. The acting user, when present, must own one of the pets.
func (s *Server) CreateMatch(w http.ResponseWriter, r *http.Request) {
	var req CreateMatchRequest
	if !s.decode(w, r, &req, false) {
		return
	}
	d, err := s.matching.CreateMatch(r.Context(), matching.CreateMatchInput{
		LostPetID:   req.LostPetID,
		FoundPetID:  req.FoundPetID,
		RequestedBy: optionalUser(r),
	})
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, matchToDTO(d))
}

// GetMatch handles GET /matches/{matchID}.
func (s *Server) GetMatch(w http.ResponseWriter, r *http.Request) {
	d, err := s.matching.GetMatchByID(r.Context(), gochi.URLParam(r, "matchID"), UserFromContext(r.Context()))
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, matchToDTO(d))
}

// UpdateMatchStatus handles PATCH /matches/{matchID}/status.
func (s *Server) UpdateMatchStatus(w http.ResponseWriter, r *http.Request) {
	var req UpdateStatusRequest
	if !s.decode(w, r, &req, false) {
		return
	}
	target, err := match.ParseStatus(req.Status)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	d, err := s.matching.UpdateMatchStatus(
		r.Context(), gochi.URLParam(r, "matchID"), UserFromContext(r.Context()), target, req.Notes)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, matchToDTO(d))
}

// GetUserMatches handles GET /me/matches.
func (s *Server) GetUserMatches(w http.ResponseWriter, r *http.Request) {
	q, err := listQuery(r.URL.Query(), UserFromContext(r.Context()))
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	page, err := s.matching.GetUserMatches(r.Context(), q)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, pageToDTO(page))
}

// GetPetMatches handles GET /pets/{petID}/matches.
func (s *Server) GetPetMatches(w http.ResponseWriter, r *http.Request) {
	actor := UserFromContext(r.Context())
	q, err := listQuery(r.URL.Query(), actor)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	page, err := s.matching.GetPetMatches(r.Context(), gochi.URLParam(r, "petID"), actor, q)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, pageToDTO(page))
}

// RunSweep handles POST /admin/matching/run. The sweep outlives a dropped client connection.
func (s *Server) RunSweep(w http.ResponseWriter, r *http.Request) {
	var req RunSweepRequest
	if !s.decode(w, r, &req, true) {
		return
	}
	if req.MaxDays < 0 || req.MaxPets < 0 {
		s.handleDomainError(w, domain.Validationf("maxDays and maxPets must not be negative"))
		return
	}
	summary, err := s.sweeps.Run(context.WithoutCancel(r.Context()), automatch.Options{
		MaxDays: req.MaxDays,
		MaxPets: req.MaxPets,
	})
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

// GetStatistics handles GET /admin/matching/stats.
func (s *Server) GetStatistics(w http.ResponseWriter, r *http.Request) {
	win, err := statsWindow(r.URL.Query())
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	stats, err := s.matching.GetMatchStatistics(r.Context(), win)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, statsToDTO(stats))
}

// HealthCheck handles GET /health.
func (s *Server) HealthCheck(w http.ResponseWriter, r *http.Request) {
	report := s.health.Check(r.Context())

	httpStatus := http.StatusOK
	if report.Status != healthuc.Healthy {
		httpStatus = http.StatusServiceUnavailable
	}
	writeJSON(w, httpStatus, healthToDTO(report))
}

// decode reads a JSON body into dst. With optional set, an empty body is accepted.
func (s *Server) decode(w http.ResponseWriter, r *http.Request, dst any, optional bool) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if optional && errors.Is(err, io.EOF) {
			return true
		}
		writeError(w, http.StatusBadRequest, CodeBadRequest, "invalid JSON body")
		return false
	}
	return true
}
