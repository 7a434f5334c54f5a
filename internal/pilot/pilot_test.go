package pilot

import (
	"testing"

	"pilotd/internal/models"
)

func TestPreferenceFields(t *testing.T) {
	tests := []struct {
		name    string
		field   string
		value   string
		wantErr bool
		check   func(t *testing.T, p models.UserPreference)
	}{
		{
			name:  "verbosity brief",
			field: "response_verbosity",
			value: "Brief",
			check: func(t *testing.T, p models.UserPreference) {
				if p.ResponseVerbosity != "Brief" {
					t.Fatalf("ResponseVerbosity = %q", p.ResponseVerbosity)
				}
			},
		},
		{
			name:    "verbosity out of range",
			field:   "response_verbosity",
			value:   "Shouty",
			wantErr: true,
		},
		{
			name:  "language",
			field: "preferred_language",
			value: "German",
			check: func(t *testing.T, p models.UserPreference) {
				if p.PreferredLanguage != "German" {
					t.Fatalf("PreferredLanguage = %q", p.PreferredLanguage)
				}
			},
		},
		{
			name:    "empty language rejected",
			field:   "preferred_language",
			value:   "",
			wantErr: true,
		},
		{
			name:  "default company may be cleared",
			field: "default_company",
			value: "",
			check: func(t *testing.T, p models.UserPreference) {
				if p.DefaultCompany != "" {
					t.Fatalf("DefaultCompany = %q", p.DefaultCompany)
				}
			},
		},
		{
			name:  "history limit",
			field: "max_conversation_history",
			value: "25",
			check: func(t *testing.T, p models.UserPreference) {
				if p.MaxConversationHistory != 25 {
					t.Fatalf("MaxConversationHistory = %d", p.MaxConversationHistory)
				}
			},
		},
		{
			name:    "history limit too large",
			field:   "max_conversation_history",
			value:   "500",
			wantErr: true,
		},
		{
			name:    "history limit not a number",
			field:   "max_conversation_history",
			value:   "many",
			wantErr: true,
		},
		{
			name:  "notifications off",
			field: "enable_notifications",
			value: "false",
			check: func(t *testing.T, p models.UserPreference) {
				if p.EnableNotifications {
					t.Fatal("EnableNotifications = true")
				}
			},
		},
		{
			name:  "autosave on",
			field: "auto_save_conversations",
			value: "yes",
			check: func(t *testing.T, p models.UserPreference) {
				if !p.AutoSaveConversations {
					t.Fatal("AutoSaveConversations = false")
				}
			},
		},
		{
			name:    "boolean garbage",
			field:   "enable_notifications",
			value:   "maybe",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mutate, ok := preferenceFields[tt.field]
			if !ok {
				t.Fatalf("field %q is not registered", tt.field)
			}

			pref := models.UserPreference{EnableNotifications: true}
			err := mutate(&pref, tt.value)
			if (err != nil) != tt.wantErr {
				t.Fatalf("mutate error = %v, wantErr %v", err, tt.wantErr)
			}
			if err == nil && tt.check != nil {
				tt.check(t, pref)
			}
		})
	}
}

func TestPreferenceFieldAllowList(t *testing.T) {
	// Only these settings may be changed through the public surface.
	want := []string{
		"response_verbosity",
		"preferred_language",
		"default_company",
		"max_conversation_history",
		"enable_notifications",
		"auto_save_conversations",
	}
	if len(preferenceFields) != len(want) {
		t.Fatalf("preferenceFields has %d entries, want %d", len(preferenceFields), len(want))
	}
	for _, field := range want {
		if _, ok := preferenceFields[field]; !ok {
			t.Fatalf("field %q missing from allow list", field)
		}
	}
}

func TestParseBool(t *testing.T) {
	for _, v := range []string{"true", "1", "yes"} {
		got, err := parseBool(v)
		if err != nil || !got {
			t.Fatalf("parseBool(%q) = %v, %v", v, got, err)
		}
	}
	for _, v := range []string{"false", "0", "no"} {
		got, err := parseBool(v)
		if err != nil || got {
			t.Fatalf("parseBool(%q) = %v, %v", v, got, err)
		}
	}
	if _, err := parseBool("TRUE"); err == nil {
		t.Fatal("parseBool accepted unnormalized input")
	}
}
