package automation

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/pathwise/mri-engine/internal/alignment"
	"github.com/pathwise/mri-engine/internal/metrics"
	"github.com/pathwise/mri-engine/internal/skills"
)

const defaultInterval = 6 * time.Hour

// Pathway is one learning pathway whose market demand is tracked.
type Pathway struct {
	ID          string   `json:"id"`
	RoleFamily  string   `json:"role_family"`
	RoleQueries []string `json:"role_queries"`
	Location    string   `json:"location"`
	Active      bool     `json:"active"`
}

// PathwaySource lists the pathways a cycle should consider.
type PathwaySource interface {
	ActivePathways(ctx context.Context) ([]Pathway, error)
}

// StaticPathways serves a fixed pathway list, filtered to active ones.
type StaticPathways []Pathway

func (s StaticPathways) ActivePathways(_ context.Context) ([]Pathway, error) {
	var active []Pathway
	for _, p := range s {
		if p.Active {
			active = append(active, p)
		}
	}
	return active, nil
}

// Sink receives the signals a cycle produces. *alignment.FileSignalStore
// satisfies it.
type Sink interface {
	Append(ctx context.Context, signals []alignment.Signal) error
}

// Summary describes one completed ingestion cycle.
type Summary struct {
	RunID              string    `json:"run_id"`
	Trigger            string    `json:"trigger"`
	StartedAt          time.Time `json:"started_at"`
	FinishedAt         time.Time `json:"finished_at"`
	ProvidersUsed      []string  `json:"providers_used"`
	PathwaysConsidered int       `json:"pathways_considered"`
	Ingestions         int       `json:"ingestions"`
	SignalsCreated     int       `json:"signals_created"`
	Warnings           []string  `json:"warnings"`
	Errors             []string  `json:"errors"`
}

// Status is a point-in-time view of the scheduler.
type Status struct {
	Running     bool      `json:"running"`
	InFlight    bool      `json:"in_flight"`
	LastSummary *Summary  `json:"last_summary,omitempty"`
	LastError   string    `json:"last_error,omitempty"`
	NextRunAt   time.Time `json:"next_run_at,omitzero"`
}

// Service runs ingestion cycles, either on demand or on a ticker.
type Service struct {
	connectors []Connector
	pathways   PathwaySource
	sink       Sink
	logger     *zap.Logger
	interval   time.Duration
	runOnStart bool
	now        func() time.Time

	runMu sync.Mutex // held for the duration of a cycle, TryLock only

	mu          sync.Mutex
	running     bool
	inFlight    bool
	stopCh      chan struct{}
	doneCh      chan struct{}
	lastSummary *Summary
	lastErr     error
	nextRunAt   time.Time
}

type ServiceOption func(*Service)

func WithInterval(interval time.Duration) ServiceOption {
	return func(s *Service) {
		if interval > 0 {
			s.interval = interval
		}
	}
}

// WithRunOnStart makes Start kick off a cycle immediately instead of
// waiting for the first tick.
func WithRunOnStart() ServiceOption {
	return func(s *Service) { s.runOnStart = true }
}

func WithClock(now func() time.Time) ServiceOption {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

func NewService(connectors []Connector, pathways PathwaySource, sink Sink, logger *zap.Logger, opts ...ServiceOption) *Service {
	s := &Service{
		connectors: connectors,
		pathways:   pathways,
		sink:       sink,
		logger:     logger,
		interval:   defaultInterval,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// RunCycle runs one ingestion cycle. A call while another cycle is in
// flight fails immediately with ErrConcurrentRunRejected.
func (s *Service) RunCycle(ctx context.Context) (*Summary, error) {
	return s.runCycle(ctx, "manual")
}

func (s *Service) runCycle(ctx context.Context, trigger string) (*Summary, error) {
	if !s.runMu.TryLock() {
		metrics.AutomationRun("rejected")
		return nil, ErrConcurrentRunRejected
	}
	defer s.runMu.Unlock()

	s.setInFlight(true)
	defer s.setInFlight(false)

	summary := &Summary{
		RunID:     uuid.NewString(),
		Trigger:   trigger,
		StartedAt: s.now(),
		Warnings:  []string{},
		Errors:    []string{},
	}
	for _, c := range s.connectors {
		summary.ProvidersUsed = append(summary.ProvidersUsed, c.Name())
	}

	s.logger.Info("ingestion cycle started",
		zap.String("run_id", summary.RunID),
		zap.String("trigger", trigger),
	)

	pathways, err := s.pathways.ActivePathways(ctx)
	if err != nil {
		metrics.AutomationRun("failed")
		s.recordOutcome(summary, err)
		return nil, fmt.Errorf("listing pathways: %w", err)
	}
	summary.PathwaysConsidered = len(pathways)

	for _, pathway := range pathways {
		for _, roleQuery := range pathway.RoleQueries {
			for _, connector := range s.connectors {
				s.ingest(ctx, summary, connector, pathway, roleQuery)
			}
		}
	}

	summary.FinishedAt = s.now()
	metrics.AutomationRun("completed")
	s.recordOutcome(summary, nil)

	s.logger.Info("ingestion cycle finished",
		zap.String("run_id", summary.RunID),
		zap.Int("ingestions", summary.Ingestions),
		zap.Int("signals", summary.SignalsCreated),
		zap.Int("errors", len(summary.Errors)),
	)
	return summary, nil
}

func (s *Service) ingest(ctx context.Context, summary *Summary, connector Connector, pathway Pathway, roleQuery string) {
	rows, err := connector.Fetch(ctx, roleQuery, pathway.Location)
	if err != nil {
		summary.Errors = append(summary.Errors,
			fmt.Sprintf("%s: %q: %v", connector.Name(), roleQuery, err))
		s.logger.Warn("connector fetch failed",
			zap.String("connector", connector.Name()),
			zap.String("role_query", roleQuery),
			zap.Error(err),
		)
		return
	}
	summary.Ingestions++
	if len(rows) == 0 {
		summary.Warnings = append(summary.Warnings,
			fmt.Sprintf("%s: %q: no signals extracted", connector.Name(), roleQuery))
		return
	}

	windowEnd := s.now()
	signals := make([]alignment.Signal, 0, len(rows))
	for _, row := range rows {
		signals = append(signals, alignment.Signal{
			PathwayID:   pathway.ID,
			SkillID:     skills.Canonical(row.SkillName),
			SkillName:   row.SkillName,
			RoleFamily:  pathway.RoleFamily,
			Frequency:   row.Frequency,
			SourceCount: row.SourceCount,
			WindowEnd:   windowEnd,
		})
	}
	if err := s.sink.Append(ctx, signals); err != nil {
		summary.Errors = append(summary.Errors,
			fmt.Sprintf("%s: %q: storing signals: %v", connector.Name(), roleQuery, err))
		return
	}
	summary.SignalsCreated += len(signals)
}

// Start launches the ticker loop. It returns an error if the service is
// already running.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return fmt.Errorf("automation: scheduler already running")
	}
	s.running = true
	s.stopCh = make(chan struct{})
	s.doneCh = make(chan struct{})
	s.nextRunAt = s.now().Add(s.interval)
	stopCh, doneCh := s.stopCh, s.doneCh
	s.mu.Unlock()

	go s.loop(ctx, stopCh, doneCh)
	return nil
}

func (s *Service) loop(ctx context.Context, stopCh, doneCh chan struct{}) {
	defer close(doneCh)

	if s.runOnStart {
		s.scheduledRun(ctx)
	}

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.scheduledRun(ctx)
			s.mu.Lock()
			s.nextRunAt = s.now().Add(s.interval)
			s.mu.Unlock()
		case <-stopCh:
			return
		case <-ctx.Done():
			return
		}
	}
}

func (s *Service) scheduledRun(ctx context.Context) {
	if _, err := s.runCycle(ctx, "scheduled"); err != nil {
		s.logger.Warn("scheduled cycle failed", zap.Error(err))
	}
}

// Stop shuts the ticker loop down and waits for it to exit. An in-flight
// cycle finishes first.
func (s *Service) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	close(s.stopCh)
	doneCh := s.doneCh
	s.mu.Unlock()

	<-doneCh

	s.runMu.Lock() // wait out an in-flight cycle
	s.runMu.Unlock()
}

func (s *Service) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()

	status := Status{
		Running:     s.running,
		InFlight:    s.inFlight,
		LastSummary: s.lastSummary,
	}
	if s.lastErr != nil {
		status.LastError = s.lastErr.Error()
	}
	if s.running {
		status.NextRunAt = s.nextRunAt
	}
	return status
}

func (s *Service) setInFlight(v bool) {
	s.mu.Lock()
	s.inFlight = v
	s.mu.Unlock()
}

func (s *Service) recordOutcome(summary *Summary, err error) {
	s.mu.Lock()
	if err == nil {
		s.lastSummary = summary
	}
	s.lastErr = err
	s.mu.Unlock()
}
