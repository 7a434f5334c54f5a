package gate

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
	"gorm.io/gorm"
)

func TestSanitize(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{
			name:  "empty input",
			input: "",
			want:  "",
		},
		{
			name:  "plain text unchanged",
			input: "create a new customer ABC Corp",
			want:  "create a new customer ABC Corp",
		},
		{
			name:  "whitespace trimmed",
			input: "  hello  ",
			want:  "hello",
		},
		{
			name:  "newlines and tabs stripped",
			input: "line1\nline2\tend",
			want:  "line1line2end",
		},
		{
			name:  "angle brackets neutralized",
			input: "a<b>c",
			want:  "alt;bgt;c",
		},
		{
			name:  "quotes neutralized",
			input: `say "hi"`,
			want:  "say #34;hi#34;",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Sanitize(tt.input); got != tt.want {
				t.Fatalf("Sanitize(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestSanitizeTruncates(t *testing.T) {
	long := strings.Repeat("a", maxInputLength+500)
	got := Sanitize(long)
	if len(got) != maxInputLength {
		t.Fatalf("Sanitize length = %d, want %d", len(got), maxInputLength)
	}
}

func TestSanitizeTruncatesOnRuneBoundary(t *testing.T) {
	long := strings.Repeat("世", maxInputLength+500)
	got := Sanitize(long)
	if !utf8.ValidString(got) {
		t.Fatal("Sanitize returned invalid UTF-8")
	}
	if n := utf8.RuneCountInString(got); n != maxInputLength {
		t.Fatalf("Sanitize rune count = %d, want %d", n, maxInputLength)
	}
}

func TestSanitizeKeepsMultibyteInputIntact(t *testing.T) {
	in := strings.Repeat("世", 4000)
	got := Sanitize(in)
	if got != in {
		t.Fatalf("Sanitize changed input below the limit")
	}
	if !utf8.ValidString(got) {
		t.Fatal("Sanitize returned invalid UTF-8")
	}
}

func TestSanitizeStripsBlacklist(t *testing.T) {
	got := Sanitize("x<>&\"'\x00\n\r\ty")
	for _, ch := range blacklistedChars {
		if strings.Contains(got, ch) {
			t.Fatalf("Sanitize output %q still contains %q", got, ch)
		}
	}
}

type fakeCounter struct {
	count  int
	err    error
	bucket int64
	calls  int
}

func (f *fakeCounter) increment(_ context.Context, _, _ string, bucket int64, _ time.Time) (int, error) {
	f.calls++
	f.bucket = bucket
	if f.err != nil {
		return 0, f.err
	}
	f.count++
	return f.count, nil
}

func newTestGate(t *testing.T, counter rateCounter, now time.Time) *Gate {
	t.Helper()
	g, err := New(&gorm.DB{}, &pgxpool.Pool{}, nil, zerolog.Nop())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	g.counter = counter
	g.now = func() time.Time { return now }
	return g
}

func TestCheckRateLimit(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	counter := &fakeCounter{}
	g := newTestGate(t, counter, now)

	for i := 0; i < 3; i++ {
		if ok, reason := g.CheckRateLimit(context.Background(), "alice@example.com", "message", 3, time.Minute); !ok {
			t.Fatalf("request %d denied: %s", i+1, reason)
		}
	}

	ok, reason := g.CheckRateLimit(context.Background(), "alice@example.com", "message", 3, time.Minute)
	if ok {
		t.Fatal("request over the limit was allowed")
	}
	if want := "Rate limit exceeded. Maximum 3 messages per 60 seconds"; reason != want {
		t.Fatalf("reason = %q, want %q", reason, want)
	}
}

func TestCheckRateLimitBucketArithmetic(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	counter := &fakeCounter{}
	g := newTestGate(t, counter, now)

	g.CheckRateLimit(context.Background(), "alice@example.com", "message", 3, time.Minute)
	first := counter.bucket
	if want := now.Unix() / 60; first != want {
		t.Fatalf("bucket = %d, want %d", first, want)
	}

	// Same window maps to the same bucket; the next window starts fresh.
	g.now = func() time.Time { return now.Add(59 * time.Second) }
	g.CheckRateLimit(context.Background(), "alice@example.com", "message", 3, time.Minute)
	if counter.bucket != first {
		t.Fatalf("bucket changed within the window: %d -> %d", first, counter.bucket)
	}

	g.now = func() time.Time { return now.Add(61 * time.Second) }
	g.CheckRateLimit(context.Background(), "alice@example.com", "message", 3, time.Minute)
	if counter.bucket == first {
		t.Fatal("bucket did not advance to the next window")
	}
}

func TestCheckRateLimitFailsOpen(t *testing.T) {
	counter := &fakeCounter{err: errors.New("connection refused")}
	g := newTestGate(t, counter, time.Unix(1_700_000_000, 0))

	if ok, _ := g.CheckRateLimit(context.Background(), "alice@example.com", "message", 1, time.Minute); !ok {
		t.Fatal("limiter error should not deny the request")
	}
}

func TestCheckRateLimitDisabled(t *testing.T) {
	counter := &fakeCounter{}
	g := newTestGate(t, counter, time.Unix(1_700_000_000, 0))

	if ok, _ := g.CheckRateLimit(context.Background(), "alice@example.com", "message", 0, time.Minute); !ok {
		t.Fatal("zero limit should disable the check")
	}
	if counter.calls != 0 {
		t.Fatalf("counter called %d times for a disabled check", counter.calls)
	}
}

func TestRelaySecurityEvent(t *testing.T) {
	g := newTestGate(t, &fakeCounter{}, time.Unix(1_700_000_000, 0))

	valid := []byte(`{"event_type": "permission_denied", "user": "alice@example.com", "source_addr": "10.0.0.1", "details": {"intent": "create_user"}}`)
	if err := g.relaySecurityEvent(context.Background(), valid); err != nil {
		t.Fatalf("relaySecurityEvent() error = %v", err)
	}

	if err := g.relaySecurityEvent(context.Background(), []byte("not json")); err == nil {
		t.Fatal("malformed event accepted")
	}
}

func TestWatchSecurityEventsRequiresBus(t *testing.T) {
	g := newTestGate(t, &fakeCounter{}, time.Unix(1_700_000_000, 0))
	if _, err := g.WatchSecurityEvents(context.Background(), "test"); err == nil {
		t.Fatal("WatchSecurityEvents succeeded without a bus")
	}
}

func TestValidateCommand(t *testing.T) {
	tests := []struct {
		name    string
		command string
		wantOK  bool
	}{
		{name: "empty", command: "", wantOK: false},
		{name: "bench version", command: "bench version", wantOK: true},
		{name: "bench status", command: "bench status", wantOK: true},
		{name: "bench restart", command: "bench restart", wantOK: true},
		{name: "bench update", command: "bench update", wantOK: true},
		{name: "bench migrate", command: "bench migrate", wantOK: true},
		{name: "bench build", command: "bench build", wantOK: true},
		{name: "bench help", command: "bench --help", wantOK: true},
		{name: "not on allow list", command: "bench drop-site", wantOK: false},
		{name: "shell injection", command: "bench status; rm -rf /", wantOK: false},
		{name: "destructive command", command: "rm -rf /", wantOK: false},
		{name: "sudo", command: "sudo bench restart", wantOK: false},
		{name: "trailing space changes command", command: "bench restart ", wantOK: false},
		{name: "case sensitive", command: "Bench Restart", wantOK: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ok, reason := ValidateCommand(tt.command)
			if ok != tt.wantOK {
				t.Fatalf("ValidateCommand(%q) = %v (%s), want %v", tt.command, ok, reason, tt.wantOK)
			}
			if !ok && reason == "" {
				t.Fatal("denial without a reason")
			}
		})
	}
}

func TestValidateModelName(t *testing.T) {
	tests := []struct {
		name   string
		model  string
		wantOK bool
	}{
		{name: "empty", model: "", wantOK: false},
		{name: "simple tag", model: "phi3:3.8b-mini", wantOK: true},
		{name: "underscores and dots", model: "my_model.v2", wantOK: true},
		{name: "path separator", model: "models/llama", wantOK: false},
		{name: "traversal", model: "..:latest", wantOK: false},
		{name: "spaces", model: "my model", wantOK: false},
		{name: "shell chars", model: "model;rm", wantOK: false},
		{name: "too long", model: strings.Repeat("a", 101), wantOK: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ok, reason := ValidateModelName(tt.model)
			if ok != tt.wantOK {
				t.Fatalf("ValidateModelName(%q) = %v (%s), want %v", tt.model, ok, reason, tt.wantOK)
			}
		})
	}
}
