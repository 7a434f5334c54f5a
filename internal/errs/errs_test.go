package errs

import (
	"errors"
	"fmt"
	"testing"
)

func TestSentinelWrapping(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		sentinel error
	}{
		{name: "invalid session", err: InvalidSession("bad token"), sentinel: ErrInvalidSession},
		{name: "rate limited", err: RateLimited("too many"), sentinel: ErrRateLimited},
		{name: "validation", err: Validation("empty message"), sentinel: ErrValidation},
		{name: "permission denied", err: PermissionDenied("no role"), sentinel: ErrPermissionDenied},
		{name: "action failed", err: ActionFailed(errors.New("boom")), sentinel: ErrActionFailed},
		{name: "action failed with nil cause", err: ActionFailed(nil), sentinel: ErrActionFailed},
		{name: "service unavailable", err: ServiceUnavailable("down"), sentinel: ErrServiceUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if !errors.Is(tt.err, tt.sentinel) {
				t.Fatalf("errors.Is(%v, %v) = false, want true", tt.err, tt.sentinel)
			}
		})
	}
}

func TestSafeMessage(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{
			name: "nil error",
			err:  nil,
			want: "",
		},
		{
			name: "duplicate key",
			err:  errors.New(`ERROR: duplicate key value violates unique constraint "customers_name_key"`),
			want: "This record already exists. Please check your input and try again.",
		},
		{
			name: "foreign key",
			err:  errors.New("update violates foreign key constraint"),
			want: "This action cannot be completed because it would affect related records.",
		},
		{
			name: "permission",
			err:  errors.New("permission denied for table users"),
			want: "You don't have permission to perform this action. Please contact your administrator if you believe this is an error.",
		},
		{
			name: "missing field",
			err:  errors.New("field customer_name is required"),
			want: "Some required information is missing. Please provide all necessary details and try again.",
		},
		{
			name: "model missing",
			err:  errors.New("model not found: phi3"),
			want: "The AI model is not available. Please contact your administrator to configure the AI models.",
		},
		{
			name: "service down",
			err:  ServiceUnavailable("Ollama service is not available"),
			want: "The AI service is currently unavailable. Please try again later or contact your administrator.",
		},
		{
			name: "timeout",
			err:  errors.New("context deadline exceeded: timeout"),
			want: "There was a connection issue. Please check your network and try again.",
		},
		{
			name: "unmatched error falls back to context sentence",
			err:  errors.New("something odd happened"),
			want: "An error occurred while creating the customer. Please try again or contact support if the problem persists.",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := SafeMessage(tt.err, "creating the customer"); got != tt.want {
				t.Fatalf("SafeMessage() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestSafeMessageWithoutContext(t *testing.T) {
	got := SafeMessage(fmt.Errorf("completely novel failure"), "")
	want := "An unexpected error occurred. Please try again or contact support if the problem persists."
	if got != want {
		t.Fatalf("SafeMessage() = %q, want %q", got, want)
	}
}

func TestSafeMessageNeverLeaksInternalDetail(t *testing.T) {
	raw := `pq: relation "secret_table" does not exist at character 15`
	got := SafeMessage(errors.New(raw), "processing your message")
	if got == raw {
		t.Fatal("SafeMessage returned the raw error text")
	}
}
