package status

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/tessera/internal/bot"
	"github.com/ternarybob/tessera/internal/interfaces"
	"github.com/ternarybob/tessera/internal/services/jira"
)

// ComponentState is the health of one dependency.
type ComponentState string

const (
	StateHealthy      ComponentState = "healthy"
	StateUnhealthy    ComponentState = "unhealthy"
	StateAuthRequired ComponentState = "authentication_required"
	StateDisabled     ComponentState = "disabled"
)

// probeTimeout bounds each dependency check.
const probeTimeout = 10 * time.Second

// cacheTTL keeps probe results between health requests so frequent
// polling does not hammer the dependencies.
const cacheTTL = 30 * time.Second

// ComponentHealth is the probe result for one dependency.
type ComponentHealth struct {
	State   ComponentState `json:"state"`
	Message string         `json:"message,omitempty"`
}

// Health is the aggregate health report.
type Health struct {
	Healthy    bool                       `json:"healthy"`
	Components map[string]ComponentHealth `json:"components"`
	CheckedAt  time.Time                  `json:"checked_at"`
}

// Service aggregates dependency health for the health endpoints and
// the scheduled health job.
type Service struct {
	jira     interfaces.JiraService
	llm      interfaces.LLMService
	telegram *bot.TelegramClient
	events   interfaces.EventService
	logger   arbor.ILogger

	mu     sync.Mutex
	cached *Health
}

// NewService creates a health service. Any nil dependency reports as
// disabled rather than unhealthy.
func NewService(jiraService interfaces.JiraService, llmService interfaces.LLMService, telegram *bot.TelegramClient, events interfaces.EventService, logger arbor.ILogger) *Service {
	return &Service{
		jira:     jiraService,
		llm:      llmService,
		telegram: telegram,
		events:   events,
		logger:   logger,
	}
}

// Check returns the current aggregate health, serving a cached result
// when the last probe is recent enough.
func (s *Service) Check(ctx context.Context) *Health {
	s.mu.Lock()
	if s.cached != nil && time.Since(s.cached.CheckedAt) < cacheTTL {
		cached := s.cached
		s.mu.Unlock()
		return cached
	}
	s.mu.Unlock()

	return s.Probe(ctx)
}

// Probe runs all dependency checks now, updates the cache, and emits
// a health event when the overall state flips.
func (s *Service) Probe(ctx context.Context) *Health {
	health := &Health{
		Healthy:    true,
		Components: make(map[string]ComponentHealth),
		CheckedAt:  time.Now(),
	}

	health.Components["jira"] = s.probeJira(ctx)
	health.Components["llm"] = s.probeLLM(ctx)
	health.Components["telegram"] = s.probeTelegram(ctx)

	for _, component := range health.Components {
		if component.State == StateUnhealthy {
			health.Healthy = false
		}
	}

	s.mu.Lock()
	previous := s.cached
	s.cached = health
	s.mu.Unlock()

	if previous != nil && previous.Healthy != health.Healthy {
		s.logger.Warn().
			Str("healthy", boolString(health.Healthy)).
			Msg("Overall health changed")
		s.events.Publish(ctx, interfaces.Event{
			Type:    interfaces.EventHealthChanged,
			Payload: health,
		})
	}

	return health
}

func (s *Service) probeJira(ctx context.Context) ComponentHealth {
	if s.jira == nil {
		return ComponentHealth{State: StateDisabled}
	}
	if !s.jira.IsAuthenticated() {
		return ComponentHealth{State: StateAuthRequired, Message: "OAuth authorization has not been completed"}
	}

	probeCtx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	if err := s.jira.Ping(probeCtx); err != nil {
		if errors.Is(err, jira.ErrNotAuthenticated) {
			return ComponentHealth{State: StateAuthRequired, Message: "access token was rejected"}
		}
		s.logger.Warn().Err(err).Msg("Jira health probe failed")
		return ComponentHealth{State: StateUnhealthy, Message: err.Error()}
	}
	return ComponentHealth{State: StateHealthy}
}

func (s *Service) probeLLM(ctx context.Context) ComponentHealth {
	if s.llm == nil {
		return ComponentHealth{State: StateDisabled}
	}

	probeCtx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	if err := s.llm.HealthCheck(probeCtx); err != nil {
		s.logger.Warn().Err(err).Msg("LLM health probe failed")
		return ComponentHealth{State: StateUnhealthy, Message: err.Error()}
	}
	return ComponentHealth{State: StateHealthy}
}

func (s *Service) probeTelegram(ctx context.Context) ComponentHealth {
	if s.telegram == nil {
		return ComponentHealth{State: StateDisabled}
	}

	probeCtx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	if _, err := s.telegram.GetMe(probeCtx); err != nil {
		s.logger.Warn().Err(err).Msg("Telegram health probe failed")
		return ComponentHealth{State: StateUnhealthy, Message: err.Error()}
	}
	return ComponentHealth{State: StateHealthy}
}

func boolString(b bool) string {
	if b {
		return "true"
	}
	return "false"
}
