// Package pilot orchestrates the command pipeline: security gate, intent
// resolution, authorization, action dispatch, audit, and response shaping.
// Every caller-visible failure leaves through the error translator; raw
// internals never reach the response.
package pilot

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"pilotd/internal/audit"
	"pilotd/internal/authz"
	"pilotd/internal/config"
	"pilotd/internal/dispatch"
	"pilotd/internal/errs"
	"pilotd/internal/gate"
	"pilotd/internal/metrics"
	"pilotd/internal/models"
	"pilotd/internal/nlu"
)

const (
	statusAction  = "status check"
	messageAction = "message"
)

// Service wires the pipeline stages together.
type Service struct {
	cfg        config.Config
	gate       *gate.Gate
	client     *nlu.Client
	authz      *authz.Service
	dispatcher *dispatch.Dispatcher
	auditLog   *audit.Log
	translator *errs.Translator
	orm        *gorm.DB
	log        zerolog.Logger
}

// New constructs the pipeline service.
func New(
	cfg config.Config,
	g *gate.Gate,
	client *nlu.Client,
	authzSvc *authz.Service,
	dispatcher *dispatch.Dispatcher,
	auditLog *audit.Log,
	translator *errs.Translator,
	orm *gorm.DB,
	log zerolog.Logger,
) (*Service, error) {
	if g == nil || client == nil || authzSvc == nil || dispatcher == nil || auditLog == nil || translator == nil || orm == nil {
		return nil, errors.New("all pipeline dependencies are required")
	}
	return &Service{
		cfg:        cfg,
		gate:       g,
		client:     client,
		authz:      authzSvc,
		dispatcher: dispatcher,
		auditLog:   auditLog,
		translator: translator,
		orm:        orm,
		log:        log,
	}, nil
}

// Status is the assistant availability report.
type Status struct {
	Status    string    `json:"status"`
	Model     string    `json:"model,omitempty"`
	Error     string    `json:"error,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// CheckStatus reports whether the assistant is reachable. The probe itself is
// rate limited per caller.
func (s *Service) CheckStatus(ctx context.Context, userID string) Status {
	now := time.Now().UTC()

	if ok, reason := s.gate.ValidateSession(ctx, userID); !ok {
		return Status{Status: "error", Error: reason, Timestamp: now}
	}
	if ok, reason := s.gate.CheckRateLimit(ctx, userID, statusAction, s.cfg.StatusCheckLimit, s.cfg.RateLimitWindow); !ok {
		metrics.RateLimitDenials.WithLabelValues(statusAction).Inc()
		return Status{Status: "error", Error: reason, Timestamp: now}
	}

	if !s.client.Available(ctx) {
		return Status{Status: "offline", Timestamp: now}
	}
	return Status{Status: "online", Model: s.client.Model(), Timestamp: now}
}

// Reply is the caller-visible outcome of one processed message.
type Reply struct {
	Success    bool    `json:"success"`
	Response   string  `json:"response,omitempty"`
	Error      string  `json:"error,omitempty"`
	Intent     string  `json:"intent,omitempty"`
	Confidence float64 `json:"confidence,omitempty"`
	ActionName string  `json:"action_executed,omitempty"`
	Data       any     `json:"data,omitempty"`
}

func errorReply(message string) Reply {
	return Reply{Success: false, Error: message}
}

// ProcessMessage runs the full pipeline for one user message. It never
// returns an error: every failure mode is folded into the Reply, and the
// audit entry always reaches a terminal state once created.
func (s *Service) ProcessMessage(ctx context.Context, userID, message, sourceAddr string) (reply Reply) {
	start := time.Now()
	var entry *audit.Entry

	defer func() {
		metrics.PipelineDuration.Observe(time.Since(start).Seconds())
		if r := recover(); r != nil {
			s.log.Error().Interface("panic", r).Str("user", userID).Msg("pipeline panicked")
			msg := s.translator.Translate(fmt.Errorf("%v", r), "processing your message", userID)
			if entry != nil && !entry.Finalized() {
				entry.Finalize(context.WithoutCancel(ctx), models.StatusFailed, "", msg)
			}
			metrics.PipelineOutcomes.WithLabelValues(models.StatusFailed).Inc()
			reply = errorReply(msg)
		}
	}()

	if ok, reason := s.gate.ValidateSession(ctx, userID); !ok {
		s.gate.LogSecurityEvent(ctx, "invalid_session", map[string]any{"reason": reason}, userID, sourceAddr)
		return errorReply(reason)
	}

	if ok, reason := s.gate.CheckRateLimit(ctx, userID, messageAction, s.cfg.MessageLimit, s.cfg.RateLimitWindow); !ok {
		metrics.RateLimitDenials.WithLabelValues(messageAction).Inc()
		s.gate.LogSecurityEvent(ctx, "rate_limit_exceeded", map[string]any{"action": messageAction}, userID, sourceAddr)
		return errorReply(reason)
	}

	sanitized := gate.Sanitize(message)
	if sanitized == "" {
		return errorReply("Message cannot be empty")
	}

	entry, err := s.auditLog.Begin(ctx, userID, sanitized)
	if err != nil {
		// Without an audit record there is no accountable execution.
		s.log.Error().Err(err).Str("user", userID).Msg("failed to open audit entry")
		return errorReply(s.translator.Translate(err, "processing your message", userID))
	}

	pref := s.preference(ctx, userID)

	intent := s.client.ExtractIntent(ctx, sanitized)
	if intent.Fallback {
		metrics.FallbackActivations.Inc()
	}
	entry.SetIntent(ctx, intent.Intent, intent.Entities)
	if intent.Prompt != "" || intent.RawResponse != "" {
		entry.SetExchange(ctx, intent.Prompt, intent.RawResponse)
	}

	allowed, reason, action := s.authz.CheckPermission(ctx, intent.Intent, userID)
	if action != nil {
		entry.SetAction(ctx, action.ActionName)
	}
	if !allowed {
		s.gate.LogSecurityEvent(ctx, "permission_denied", map[string]any{
			"intent": intent.Intent,
			"reason": reason,
		}, userID, sourceAddr)
		response := fmt.Sprintf("I'm sorry, but you don't have permission to perform this action. %s", reason)
		entry.Finalize(ctx, models.StatusDenied, response, reason)
		metrics.PipelineOutcomes.WithLabelValues(models.StatusDenied).Inc()
		return Reply{
			Success:    false,
			Response:   response,
			Error:      reason,
			Intent:     intent.Intent,
			Confidence: intent.Confidence,
		}
	}

	result := s.dispatcher.Dispatch(ctx, intent.Intent, dispatch.Request{
		UserID:     userID,
		Entities:   intent.Entities,
		Preference: pref,
	})
	if result.ActionName != "" {
		entry.SetAction(ctx, result.ActionName)
	}

	if !result.Success {
		response := fmt.Sprintf("I encountered an error while executing your request: %s", result.Error)
		entry.Finalize(ctx, models.StatusFailed, response, result.Error)
		metrics.PipelineOutcomes.WithLabelValues(models.StatusFailed).Inc()
		return Reply{
			Success:    false,
			Response:   response,
			Error:      result.Error,
			Intent:     intent.Intent,
			Confidence: intent.Confidence,
			ActionName: result.ActionName,
		}
	}

	response := s.composeResponse(ctx, sanitized, intent.Intent, result, pref)
	entry.Finalize(ctx, models.StatusSuccess, response, "")
	metrics.PipelineOutcomes.WithLabelValues(models.StatusSuccess).Inc()
	return Reply{
		Success:    true,
		Response:   response,
		Intent:     intent.Intent,
		Confidence: intent.Confidence,
		ActionName: result.ActionName,
		Data:       result.Data,
	}
}

// composeResponse turns a successful action result into conversational text.
// General queries go straight to the model; action results get a model
// summary with the structural message as the degraded fallback.
func (s *Service) composeResponse(ctx context.Context, message, intent string, result dispatch.Result, pref models.UserPreference) string {
	if intent == "general_query" {
		answer, err := s.client.Generate(ctx, message, "")
		if err != nil || answer == "" {
			return "I'm currently unable to answer general questions. Please try again later."
		}
		return answer
	}

	prompt := fmt.Sprintf(
		"Summarize this action result for the user: Action executed successfully: %s\nData: %v",
		result.Message, result.Data)
	if pref.ResponseVerbosity == "Brief" {
		prompt += "\nKeep the summary to one short sentence."
	}

	summary, err := s.client.Generate(ctx, prompt, "")
	if err != nil || summary == "" {
		return result.Message
	}
	return summary
}

// preference returns the user's settings, creating the defaults row on first
// access. Lookup failures fall back to in-memory defaults.
func (s *Service) preference(ctx context.Context, userID string) models.UserPreference {
	defaults := models.UserPreference{
		UserID:                 userID,
		ResponseVerbosity:      "Normal",
		PreferredLanguage:      "English",
		MaxConversationHistory: 50,
		EnableNotifications:    true,
		AutoSaveConversations:  true,
	}

	var pref models.UserPreference
	err := s.orm.WithContext(ctx).Where("user_id = ?", userID).First(&pref).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		if err := s.orm.WithContext(ctx).Create(&defaults).Error; err != nil {
			s.log.Error().Err(err).Str("user", userID).Msg("failed to create default preferences")
		}
		return defaults
	case err != nil:
		s.log.Error().Err(err).Str("user", userID).Msg("preference lookup failed")
		return defaults
	}
	return pref
}

// History returns the caller's recent conversation entries, newest first,
// after session validation.
func (s *Service) History(ctx context.Context, userID string, limit int) ([]audit.HistoryEntry, error) {
	if ok, reason := s.gate.ValidateSession(ctx, userID); !ok {
		return nil, errs.InvalidSession(reason)
	}
	if limit < 1 || limit > 100 {
		limit = 10
	}
	if max := s.preference(ctx, userID).MaxConversationHistory; max > 0 && limit > max {
		limit = max
	}
	return s.auditLog.History(ctx, userID, limit)
}

// Permissions returns the caller's roles, available actions, and admin
// standing.
func (s *Service) Permissions(ctx context.Context, userID string) (authz.Permissions, error) {
	if ok, reason := s.gate.ValidateSession(ctx, userID); !ok {
		return authz.Permissions{}, errs.InvalidSession(reason)
	}
	return s.authz.UserPermissions(ctx, userID)
}

// preferenceFields maps the caller-visible setting names onto mutators. Keys
// outside this map are rejected.
var preferenceFields = map[string]func(*models.UserPreference, string) error{
	"response_verbosity": func(p *models.UserPreference, v string) error {
		switch v {
		case "Brief", "Normal", "Detailed":
			p.ResponseVerbosity = v
			return nil
		}
		return errs.Validation("response_verbosity must be Brief, Normal, or Detailed")
	},
	"preferred_language": func(p *models.UserPreference, v string) error {
		if v == "" {
			return errs.Validation("preferred_language cannot be empty")
		}
		p.PreferredLanguage = v
		return nil
	},
	"default_company": func(p *models.UserPreference, v string) error {
		p.DefaultCompany = v
		return nil
	},
	"max_conversation_history": func(p *models.UserPreference, v string) error {
		var n int
		if _, err := fmt.Sscanf(v, "%d", &n); err != nil || n < 1 || n > 100 {
			return errs.Validation("max_conversation_history must be between 1 and 100")
		}
		p.MaxConversationHistory = n
		return nil
	},
	"enable_notifications": func(p *models.UserPreference, v string) error {
		b, err := parseBool(v)
		if err != nil {
			return err
		}
		p.EnableNotifications = b
		return nil
	},
	"auto_save_conversations": func(p *models.UserPreference, v string) error {
		b, err := parseBool(v)
		if err != nil {
			return err
		}
		p.AutoSaveConversations = b
		return nil
	},
}

func parseBool(v string) (bool, error) {
	switch v {
	case "true", "1", "yes":
		return true, nil
	case "false", "0", "no":
		return false, nil
	}
	return false, errs.Validation("value must be a boolean")
}

// UpdatePreference sets one allow-listed preference field. The value is
// sanitized like any other input, and repeating an update is a no-op.
func (s *Service) UpdatePreference(ctx context.Context, userID, key, value string) (models.UserPreference, error) {
	if ok, reason := s.gate.ValidateSession(ctx, userID); !ok {
		return models.UserPreference{}, errs.InvalidSession(reason)
	}

	mutate, ok := preferenceFields[key]
	if !ok {
		return models.UserPreference{}, errs.Validation(fmt.Sprintf("unknown preference field: %s", key))
	}

	pref := s.preference(ctx, userID)
	if err := mutate(&pref, gate.Sanitize(value)); err != nil {
		return models.UserPreference{}, err
	}
	if err := s.orm.WithContext(ctx).Save(&pref).Error; err != nil {
		return models.UserPreference{}, err
	}
	return pref, nil
}
