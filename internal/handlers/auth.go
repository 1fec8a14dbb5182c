package handlers

import (
	"log"
	"time"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"github.com/example/golestan/internal/config"
	"github.com/example/golestan/internal/middleware"
	"github.com/example/golestan/internal/models"
	"github.com/example/golestan/internal/otp"
	"github.com/example/golestan/internal/utils"
)

// AuthHandler bundles dependencies for authentication endpoints.
type AuthHandler struct {
	db         *gorm.DB
	cfg        *config.Config
	challenges otp.ChallengeStore
}

// NewAuthHandler constructs an AuthHandler.
func NewAuthHandler(db *gorm.DB, cfg *config.Config, challenges otp.ChallengeStore) *AuthHandler {
	return &AuthHandler{db: db, cfg: cfg, challenges: challenges}
}

type sendOTPRequest struct {
	Phone    string `json:"phone"`
	DeviceID string `json:"device_id"`
}

// SendOTP issues a verification code for the given phone number. Resending
// is throttled while a recent challenge is still outstanding.
func (h *AuthHandler) SendOTP(c *fiber.Ctx) error {
	var req sendOTPRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	if req.Phone == "" || req.DeviceID == "" {
		return fiber.NewError(fiber.StatusBadRequest, "missing required fields")
	}

	if existing, ok, err := h.challenges.Get(c.Context(), req.Phone); err != nil {
		return err
	} else if ok && time.Since(existing.SentAt) < h.cfg.OTPResendAfter {
		return fiber.NewError(fiber.StatusTooManyRequests, "verification code already sent")
	}

	code, err := otp.GenerateCode()
	if err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, "failed to generate verification code")
	}

	challenge := otp.Challenge{
		Code:     code,
		DeviceID: req.DeviceID,
		SentAt:   time.Now(),
	}

	if err := h.challenges.Put(c.Context(), req.Phone, challenge, h.cfg.OTPExpires); err != nil {
		return err
	}

	// SMS delivery is handled by an external gateway; in development the
	// code only shows up in the server log.
	log.Printf("[Auth] OTP for %s: %s", req.Phone, code)

	return c.JSON(fiber.Map{"success": true})
}

type verifyOTPRequest struct {
	Phone    string `json:"phone"`
	OTP      string `json:"otp"`
	DeviceID string `json:"device_id"`
}

// VerifyOTP validates a challenge code and signs the user in, creating the
// account on first verification.
func (h *AuthHandler) VerifyOTP(c *fiber.Ctx) error {
	var req verifyOTPRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	challenge, ok, err := h.challenges.Get(c.Context(), req.Phone)
	if err != nil {
		return err
	}
	if !ok {
		return fiber.NewError(fiber.StatusBadRequest, "verification code expired or not found")
	}

	if challenge.Code != req.OTP || challenge.DeviceID != req.DeviceID {
		return fiber.NewError(fiber.StatusBadRequest, "invalid verification code")
	}

	if err := h.challenges.Delete(c.Context(), req.Phone); err != nil {
		return err
	}

	var user models.User
	if err := h.db.Where("phone = ?", req.Phone).First(&user).Error; err != nil {
		if err != gorm.ErrRecordNotFound {
			return err
		}
		user = models.User{
			Phone:      req.Phone,
			Role:       models.RoleBuyer,
			IsVerified: true,
		}
		if err := h.db.Create(&user).Error; err != nil {
			return err
		}
	} else if !user.IsVerified {
		if err := h.db.Model(&user).Update("is_verified", true).Error; err != nil {
			return err
		}
	}

	accessToken, refreshToken, err := h.issueTokenPair(user, req.DeviceID)
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{
		"success":       true,
		"access_token":  accessToken,
		"refresh_token": refreshToken,
		"user": fiber.Map{
			"id":           user.ID,
			"phone":        user.Phone,
			"display_name": user.DisplayName,
			"role":         user.Role,
		},
	})
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

// Refresh exchanges a refresh credential for a new token pair. The presented
// credential is consumed; reuse of a consumed credential is rejected.
func (h *AuthHandler) Refresh(c *fiber.Ctx) error {
	var req refreshRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	if req.RefreshToken == "" {
		return fiber.NewError(fiber.StatusUnauthorized, "missing refresh token")
	}

	var stored models.RefreshToken
	err := h.db.Where("token_hash = ?", utils.HashRefreshToken(req.RefreshToken)).
		First(&stored).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return fiber.NewError(fiber.StatusUnauthorized, "invalid refresh token")
		}
		return err
	}

	if !stored.Usable(time.Now()) {
		return fiber.NewError(fiber.StatusUnauthorized, "refresh token expired or already used")
	}

	var user models.User
	if err := h.db.First(&user, "id = ?", stored.UserID).Error; err != nil {
		return fiber.NewError(fiber.StatusUnauthorized, "unknown user")
	}

	now := time.Now()
	if err := h.db.Model(&stored).Update("used_at", &now).Error; err != nil {
		return err
	}

	accessToken, refreshToken, err := h.issueTokenPair(user, stored.DeviceID)
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{
		"success":       true,
		"access_token":  accessToken,
		"refresh_token": refreshToken,
	})
}

type loginRequest struct {
	Phone    string `json:"phone"`
	Password string `json:"password"`
}

// Login authenticates provisioned seller and admin accounts by password.
func (h *AuthHandler) Login(c *fiber.Ctx) error {
	var req loginRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	var user models.User
	if err := h.db.Where("phone = ?", req.Phone).First(&user).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return fiber.NewError(fiber.StatusUnauthorized, "invalid credentials")
		}
		return err
	}

	if user.PasswordHash == "" || !utils.CheckPassword(user.PasswordHash, req.Password) {
		return fiber.NewError(fiber.StatusUnauthorized, "invalid credentials")
	}

	accessToken, refreshToken, err := h.issueTokenPair(user, c.Get("X-Device-Id"))
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{
		"success":       true,
		"access_token":  accessToken,
		"refresh_token": refreshToken,
		"user": fiber.Map{
			"id":           user.ID,
			"phone":        user.Phone,
			"display_name": user.DisplayName,
			"role":         user.Role,
		},
	})
}

// Logout revokes every outstanding refresh credential for the user.
func (h *AuthHandler) Logout(c *fiber.Ctx) error {
	userID, ok := middleware.GetCurrentUserID(c)
	if !ok {
		return fiber.NewError(fiber.StatusUnauthorized, "unauthorized")
	}

	now := time.Now()
	if err := h.db.Model(&models.RefreshToken{}).
		Where("user_id = ? AND revoked_at IS NULL", userID).
		Update("revoked_at", &now).Error; err != nil {
		return err
	}

	return c.JSON(fiber.Map{"success": true})
}

func (h *AuthHandler) issueTokenPair(user models.User, deviceID string) (string, string, error) {
	accessToken, err := utils.GenerateAccessToken(h.cfg.JWTSecret, user.ID, user.Role, h.cfg.AccessExpires)
	if err != nil {
		return "", "", fiber.NewError(fiber.StatusInternalServerError, "failed to generate token")
	}

	refreshToken, hash, err := utils.GenerateRefreshToken()
	if err != nil {
		return "", "", fiber.NewError(fiber.StatusInternalServerError, "failed to generate refresh token")
	}

	record := models.RefreshToken{
		UserID:    user.ID,
		TokenHash: hash,
		DeviceID:  deviceID,
		ExpiresAt: time.Now().Add(h.cfg.RefreshExpires),
	}
	if err := h.db.Create(&record).Error; err != nil {
		return "", "", err
	}

	return accessToken, refreshToken, nil
}
