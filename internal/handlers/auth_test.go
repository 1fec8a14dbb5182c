package handlers

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/example/golestan/internal/config"
	"github.com/example/golestan/internal/otp"
)

func sendOTPApp(cfg *config.Config, challenges otp.ChallengeStore) *fiber.App {
	app := fiber.New()
	handler := NewAuthHandler(nil, cfg, challenges)
	app.Post("/api/auth/otp/send", handler.SendOTP)
	return app
}

func postJSON(t *testing.T, app *fiber.App, path, body string) int {
	t.Helper()
	req := httptest.NewRequest("POST", path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	return resp.StatusCode
}

func TestSendOTPThrottlesResend(t *testing.T) {
	cfg := &config.Config{
		OTPExpires:     2 * time.Minute,
		OTPResendAfter: time.Minute,
	}
	app := sendOTPApp(cfg, otp.NewMemoryStore())

	body := `{"phone":"09123456789","device_id":"dev-1"}`
	if status := postJSON(t, app, "/api/auth/otp/send", body); status != fiber.StatusOK {
		t.Fatalf("first send status = %d", status)
	}
	if status := postJSON(t, app, "/api/auth/otp/send", body); status != fiber.StatusTooManyRequests {
		t.Fatalf("immediate resend status = %d, want 429", status)
	}

	// A different phone is not affected by the first number's challenge.
	other := `{"phone":"09120000000","device_id":"dev-1"}`
	if status := postJSON(t, app, "/api/auth/otp/send", other); status != fiber.StatusOK {
		t.Fatalf("other phone status = %d", status)
	}
}

func TestSendOTPRejectsIncompleteRequests(t *testing.T) {
	cfg := &config.Config{OTPExpires: 2 * time.Minute, OTPResendAfter: time.Minute}
	app := sendOTPApp(cfg, otp.NewMemoryStore())

	for _, body := range []string{
		`{"phone":"09123456789"}`,
		`{"device_id":"dev-1"}`,
		`{}`,
	} {
		if status := postJSON(t, app, "/api/auth/otp/send", body); status != fiber.StatusBadRequest {
			t.Fatalf("body %s: status = %d, want 400", body, status)
		}
	}
}
