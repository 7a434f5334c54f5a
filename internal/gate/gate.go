// Package gate guards the front of the pipeline: input sanitization, session
// validation, per-action rate limiting, and security event logging.
package gate

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"html"
	"io"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"pilotd/internal/metrics"
	"pilotd/internal/models"
	"pilotd/pkg/bus"
	"pilotd/pkg/db"
)

const (
	maxInputLength = 10000

	securityEventsSubject = "pilot.security.events"
)

// AnonymousUser is the session identity assigned to unauthenticated callers.
const AnonymousUser = "Guest"

var blacklistedChars = []string{"<", ">", "\"", "'", "&", "\x00", "\n", "\r", "\t"}

// rateCounter is the persistence slice the rate limiter needs. Tests
// substitute a fake to exercise the window arithmetic without a database.
type rateCounter interface {
	increment(ctx context.Context, userID, action string, bucket int64, expires time.Time) (int, error)
}

// poolCounter backs the limiter with the rate_limits table.
type poolCounter struct {
	pool *pgxpool.Pool
}

func (p poolCounter) increment(ctx context.Context, userID, action string, bucket int64, expires time.Time) (int, error) {
	// Opportunistic cleanup of expired windows; failure is harmless.
	_, _ = db.Exec(ctx, p.pool, `DELETE FROM rate_limits WHERE expires_at < now()`)

	var count int
	err := db.Get(ctx, p.pool, &count, `
INSERT INTO rate_limits (user_id, action, bucket, count, expires_at)
VALUES ($1, $2, $3, 1, $4)
ON CONFLICT (user_id, action, bucket)
DO UPDATE SET count = rate_limits.count + 1
RETURNING count
`, userID, action, bucket, expires)
	return count, err
}

// Gate performs the security checks that run before intent resolution.
type Gate struct {
	orm     *gorm.DB
	pool    *pgxpool.Pool
	bus     *bus.Bus
	counter rateCounter
	log     zerolog.Logger

	now func() time.Time
}

// New constructs a Gate. The bus is optional; security events degrade to
// log-only when it is nil.
func New(orm *gorm.DB, pool *pgxpool.Pool, b *bus.Bus, log zerolog.Logger) (*Gate, error) {
	if orm == nil {
		return nil, errors.New("orm is required")
	}
	if pool == nil {
		return nil, errors.New("database pool is required")
	}
	return &Gate{
		orm:     orm,
		pool:    pool,
		bus:     b,
		counter: poolCounter{pool: pool},
		log:     log,
		now:     time.Now,
	}, nil
}

// Sanitize neutralizes user input: HTML-escapes it, strips a fixed blacklist
// of characters, truncates to the maximum input length, and trims whitespace.
// Empty input yields an empty string.
func Sanitize(input string) string {
	if input == "" {
		return ""
	}

	out := html.EscapeString(input)
	for _, ch := range blacklistedChars {
		out = strings.ReplaceAll(out, ch, "")
	}
	// Truncate on rune boundaries. Cutting bytes would sever a multibyte
	// character and hand invalid UTF-8 to the text columns downstream.
	if utf8.RuneCountInString(out) > maxInputLength {
		out = string([]rune(out)[:maxInputLength])
	}
	return strings.TrimSpace(out)
}

// ValidateSession checks that the caller maps to an existing, enabled,
// non-anonymous user. The reason is safe to surface to the caller.
func (g *Gate) ValidateSession(ctx context.Context, userID string) (bool, string) {
	if userID == "" || userID == AnonymousUser {
		return false, "Invalid session"
	}

	var user models.User
	err := g.orm.WithContext(ctx).Where("email = ?", userID).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return false, "User does not exist"
	}
	if err != nil {
		g.log.Error().Err(err).Str("user", userID).Msg("session lookup failed")
		return false, "Invalid session"
	}
	if !user.Enabled {
		return false, "User account is disabled"
	}
	return true, ""
}

// CheckRateLimit enforces a fixed-window counter keyed by user, action, and
// time bucket. The increment is a single atomic upsert so concurrent requests
// from the same key cannot race past the limit. Fixed windows permit a burst
// of up to twice the limit across a window boundary; that is inherited
// behavior and callers should size limits accordingly.
func (g *Gate) CheckRateLimit(ctx context.Context, userID, action string, limit int, window time.Duration) (bool, string) {
	if limit <= 0 || window <= 0 {
		return true, ""
	}

	now := g.now()
	bucket := now.Unix() / int64(window.Seconds())

	count, err := g.counter.increment(ctx, userID, action, bucket, now.Add(window))
	if err != nil {
		// A broken limiter must not take the service down with it.
		g.log.Error().Err(err).Str("user", userID).Str("action", action).Msg("rate limit check failed")
		return true, ""
	}

	if count > limit {
		return false, fmt.Sprintf("Rate limit exceeded. Maximum %d %ss per %d seconds", limit, action, int(window.Seconds()))
	}
	return true, ""
}

// LogSecurityEvent records a security-relevant denial to the append-only
// security_events table and publishes it on the bus. Failures are logged and
// swallowed; security logging must never abort the main flow.
func (g *Gate) LogSecurityEvent(ctx context.Context, eventType string, details map[string]any, userID, sourceAddr string) {
	event := map[string]any{
		"event_type":  eventType,
		"details":     details,
		"user":        userID,
		"timestamp":   g.now().UTC().Format(time.RFC3339Nano),
		"source_addr": sourceAddr,
	}

	metrics.SecurityEvents.WithLabelValues(eventType).Inc()

	g.log.Warn().
		Str("event_type", eventType).
		Str("user", userID).
		Str("source_addr", sourceAddr).
		Interface("details", details).
		Msg("security event")

	detailsJSON, err := json.Marshal(details)
	if err != nil {
		detailsJSON = []byte("{}")
	}
	if _, err := db.Exec(ctx, g.pool, `
INSERT INTO security_events (event_type, details, user_id, source_addr)
VALUES ($1, $2::jsonb, $3, $4)
`, eventType, string(detailsJSON), userID, sourceAddr); err != nil {
		g.log.Error().Err(err).Str("event_type", eventType).Msg("failed to persist security event")
	}

	if g.bus != nil {
		if err := g.bus.Publish(ctx, securityEventsSubject, event); err != nil {
			g.log.Error().Err(err).Str("event_type", eventType).Msg("failed to publish security event")
		}
	}
}

// WatchSecurityEvents attaches a durable consumer to the security events
// subject and mirrors events from all replicas into this instance's log, so
// one log stream carries the whole deployment's denials. The durable name
// must be shared across replicas for each event to be consumed once.
func (g *Gate) WatchSecurityEvents(ctx context.Context, durable string) (io.Closer, error) {
	if g.bus == nil {
		return nil, errors.New("bus is not configured")
	}
	return g.bus.Subscribe(ctx, securityEventsSubject, durable, g.relaySecurityEvent)
}

func (g *Gate) relaySecurityEvent(_ context.Context, data []byte) error {
	var event struct {
		EventType  string         `json:"event_type"`
		User       string         `json:"user"`
		SourceAddr string         `json:"source_addr"`
		Timestamp  string         `json:"timestamp"`
		Details    map[string]any `json:"details"`
	}
	if err := json.Unmarshal(data, &event); err != nil {
		return err
	}

	g.log.Warn().
		Str("event_type", event.EventType).
		Str("user", event.User).
		Str("source_addr", event.SourceAddr).
		Str("occurred_at", event.Timestamp).
		Interface("details", event.Details).
		Msg("security event (bus)")
	return nil
}

var (
	allowedCommands = []string{
		"bench version",
		"bench status",
		"bench restart",
		"bench update",
		"bench migrate",
		"bench build",
		"bench --help",
	}

	dangerousCommandPatterns = []*regexp.Regexp{
		regexp.MustCompile(`[;&|` + "`" + `$()]`),
		regexp.MustCompile(`\.\./`),
		regexp.MustCompile(`(?i)rm\s`),
		regexp.MustCompile(`(?i)sudo\s`),
		regexp.MustCompile(`(?i)chmod\s`),
		regexp.MustCompile(`(?i)>/dev/`),
	}

	modelNamePattern = regexp.MustCompile(`^[a-zA-Z0-9\-_:.]+$`)
)

// ValidateCommand accepts only allow-listed administrative commands and,
// independently of the allow-list, rejects anything containing shell
// metacharacters, traversal sequences, or destructive keywords.
func ValidateCommand(command string) (bool, string) {
	if command == "" {
		return false, "Command cannot be empty"
	}

	allowed := false
	for _, c := range allowedCommands {
		if command == c {
			allowed = true
			break
		}
	}
	if !allowed {
		return false, fmt.Sprintf("Command '%s' is not allowed", command)
	}

	for _, p := range dangerousCommandPatterns {
		if p.MatchString(command) {
			return false, "Command contains potentially dangerous characters"
		}
	}
	return true, ""
}

// ValidateModelName restricts model identifiers to a safe character set with
// no path separators and a bounded length.
func ValidateModelName(name string) (bool, string) {
	if name == "" {
		return false, "Model name cannot be empty"
	}
	if !modelNamePattern.MatchString(name) {
		return false, "Model name contains invalid characters"
	}
	if strings.Contains(name, "..") || strings.Contains(name, "/") {
		return false, "Model name cannot contain path separators"
	}
	if len(name) > 100 {
		return false, "Model name is too long"
	}
	return true, ""
}
