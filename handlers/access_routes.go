// handlers/access_routes.go
package handlers

import (
	"errors"
	"fmt"
	"path/filepath"

	"bot-access-system/models"
	"bot-access-system/services"
	"bot-access-system/utils"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

// SetupAccessRoutes wires the secured per-user surface: gate decisions,
// quota, profile and verification submission.
func SetupAccessRoutes(app *fiber.App, accounts *services.AccountService, gate *services.GateService, quota *services.QuotaService, subs *services.SubscriptionService) {
	securedGroup := app.Group("/s")

	securedGroup.Post("/access/authorize", func(c *fiber.Ctx) error {
		telegramID := c.Locals("telegram_id").(int64)

		if _, err := accounts.EnsureAccount(telegramID, localStr(c, "username"), localStr(c, "first_name")); err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "failed to upsert account",
				"cause": err.Error(),
			})
		}

		decision, _, err := gate.CheckAccess(c.Context(), telegramID)
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "gate evaluation failed",
				"cause": err.Error(),
			})
		}
		return c.JSON(decision)
	})

	securedGroup.Post("/quota/evaluate", func(c *fiber.Ctx) error {
		telegramID := c.Locals("telegram_id").(int64)

		acc, err := accounts.GetAccount(telegramID)
		if err != nil {
			if errors.Is(err, services.ErrAccountNotFound) {
				return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "account not found"})
			}
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "DB error"})
		}

		return c.JSON(quota.Evaluate(acc, quota.Clock.TodayKey()))
	})

	securedGroup.Post("/quota/consume", func(c *fiber.Ctx) error {
		telegramID := c.Locals("telegram_id").(int64)

		var req struct {
			RequestID string `json:"request_id"`
		}
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
		}
		if len(req.RequestID) > 64 {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "request_id must be at most 64 characters"})
		}

		decision, err := quota.Consume(telegramID, req.RequestID)
		if err != nil {
			if errors.Is(err, services.ErrAccountNotFound) {
				return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "account not found"})
			}
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "consume failed",
				"cause": err.Error(),
			})
		}
		return c.JSON(decision)
	})

	securedGroup.Get("/profile", func(c *fiber.Ctx) error {
		telegramID := c.Locals("telegram_id").(int64)

		acc, err := accounts.GetAccount(telegramID)
		if err != nil {
			if errors.Is(err, services.ErrAccountNotFound) {
				return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "account not found"})
			}
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "DB error"})
		}

		now := quota.Clock.Now()
		decision := quota.Evaluate(acc, quota.Clock.TodayKey())

		return c.JSON(fiber.Map{
			"telegram_id":      acc.TelegramID,
			"username":         acc.Username,
			"first_name":       acc.FirstName,
			"vip":              subs.IsVIP(acc, now),
			"vip_until":        acc.VIPUntil,
			"secondary":        secondaryStatus(acc),
			"bonus_credits":    acc.BonusCredits,
			"referral_count":   acc.ReferralCount,
			"referral_code":    acc.ReferralCode,
			"free_daily_limit": quota.Cfg.FreeDailyLimit,
			"vip_daily_limit":  quota.Cfg.VIPDailyLimit,
			"quota":            decision,
		})
	})

	securedGroup.Post("/verification", func(c *fiber.Ctx) error {
		telegramID := c.Locals("telegram_id").(int64)

		if _, err := accounts.EnsureAccount(telegramID, localStr(c, "username"), localStr(c, "first_name")); err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to upsert account"})
		}

		// Submission only makes sense past the channel gate, same order the
		// bot walks the user through.
		channelOK := gate.CheckChannel(c.Context(), telegramID)
		if !channelOK {
			return c.JSON(services.GateDecision{
				State:  services.GateChannelLocked,
				Reason: "join and verify the primary channel first",
			})
		}

		handle := c.FormValue("handle")
		if handle == "" {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "handle is required"})
		}

		proofURL := ""
		if fileHeader, err := c.FormFile("proof"); err == nil && fileHeader != nil {
			if !utils.R2Enabled() {
				return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "proof upload is not configured"})
			}
			key := fmt.Sprintf("proofs/%d/%s%s", telegramID, uuid.NewString(), filepath.Ext(fileHeader.Filename))
			proofURL, err = utils.UploadProofToR2(fileHeader, key)
			if err != nil {
				return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
					"error": "failed to store proof",
					"cause": err.Error(),
				})
			}
		}

		vr, err := gate.CompleteSecondaryVerification(telegramID, handle, proofURL, channelOK)
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "verification submission failed",
				"cause": err.Error(),
			})
		}
		if vr == nil {
			return c.JSON(fiber.Map{"status": models.VerificationStatusApproved, "verified": true})
		}
		return c.JSON(fiber.Map{
			"status":   vr.Status,
			"verified": vr.Status == models.VerificationStatusApproved,
		})
	})
}

func secondaryStatus(acc *models.Account) string {
	switch {
	case acc.SecondaryVerified:
		return "verified"
	case acc.SecondaryPending:
		return "pending"
	default:
		return "not_verified"
	}
}

func localStr(c *fiber.Ctx, key string) string {
	if v, ok := c.Locals(key).(string); ok {
		return v
	}
	return ""
}
