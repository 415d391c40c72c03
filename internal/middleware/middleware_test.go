package middleware

import (
	"errors"
	"net/http/httptest"
	"testing"

	"github.com/ajbunielteam/SysGranTES/internal/model"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

type staticTokens map[string]model.Participant

func (s staticTokens) ValidateAccessToken(token string) (model.Participant, error) {
	if p, ok := s[token]; ok {
		return p, nil
	}
	return model.Participant{}, errors.New("unknown token")
}

func TestAuthAndRequireAdmin(t *testing.T) {
	app := fiber.New()
	tokens := staticTokens{"a": model.AsAdmin(1), "s": model.AsStudent(42), "zero": model.AsStudent(0)}
	app.Get("/me", Auth(tokens), func(c *fiber.Ctx) error {
		return c.SendString(Participant(c).Key())
	})
	app.Get("/admin", Auth(tokens), RequireAdmin(), func(c *fiber.Ctx) error {
		return c.SendStatus(204)
	})

	tests := []struct {
		name   string
		path   string
		header string
		want   int
	}{
		{"bearer", "/me", "Bearer s", 200},
		{"query token", "/me?token=a", "", 200},
		{"no header", "/me", "", 401},
		{"not bearer", "/me", "Token s", 401},
		{"unknown", "/me", "Bearer x", 401},
		{"invalid participant", "/me", "Bearer zero", 401},
		{"student on admin route", "/admin", "Bearer s", 403},
		{"admin on admin route", "/admin", "Bearer a", 204},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", tt.path, nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			resp, err := app.Test(req)
			if err != nil {
				t.Fatalf("Test: %v", err)
			}
			if resp.StatusCode != tt.want {
				t.Fatalf("status = %d, want %d", resp.StatusCode, tt.want)
			}
		})
	}
}

func TestFilteredWriterKeepsOnlyNoteworthyRequests(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	w := &filteredWriter{log: zap.New(core), slowThreshold: 500e6, errorStatusFloor: 400}

	for _, line := range []string{
		"200 | 1.2ms | GET /health\n",
		"404 | 900µs | GET /nope\n",
		"500 | 3ms | POST /api/v1/messages\n",
		"200 | 750ms | GET /api/v1/unread\n",
	} {
		if n, err := w.Write([]byte(line)); err != nil || n != len(line) {
			t.Fatalf("Write(%q) = %d, %v", line, n, err)
		}
	}

	got := logs.All()
	if len(got) != 3 {
		t.Fatalf("logged %d lines, want 3", len(got))
	}
	if got[0].Message != "request rejected" || got[1].Message != "request failed" || got[2].Message != "slow request" {
		t.Fatalf("messages = %q %q %q", got[0].Message, got[1].Message, got[2].Message)
	}
}
