// handlers/event_routes.go
package handlers

import (
	"errors"
	"log"

	"bot-access-system/services"

	"github.com/gofiber/fiber/v2"
)

// SetupEventRoutes wires the bot-facing event endpoints (payments, referral
// deep links) and the admin moderation surface.
func SetupEventRoutes(app *fiber.App, accounts *services.AccountService, gate *services.GateService, referrals *services.ReferralService, subs *services.SubscriptionService, cfg services.Config, adminID int64) {
	events := app.Group("/events")

	// Confirmed Stars payment. The payload is the invoice idempotency key:
	// replaying a confirmation never extends VIP twice.
	events.Post("/payment", func(c *fiber.Ctx) error {
		var req struct {
			TelegramID int64  `json:"telegram_id"`
			Payload    string `json:"payload"`
			Stars      int    `json:"stars"`
			PlanDays   int    `json:"plan_days"`
			Username   string `json:"username"`
			FirstName  string `json:"first_name"`
		}
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
		}
		if req.TelegramID == 0 || req.Payload == "" {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "telegram_id and payload are required"})
		}
		if req.PlanDays <= 0 {
			req.PlanDays = cfg.VIPPlanDays
		}

		if _, err := accounts.EnsureAccount(req.TelegramID, req.Username, req.FirstName); err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to upsert account"})
		}

		until, err := subs.OnPaymentConfirmed(req.TelegramID, req.Payload, req.Stars, req.PlanDays)
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "payment processing failed",
				"cause": err.Error(),
			})
		}
		log.Printf("💰 Payment %s confirmed for %d: VIP until %s", req.Payload, req.TelegramID, until.Format("2006-01-02"))
		return c.JSON(fiber.Map{"vip_until": until})
	})

	// Referral deep-link start. Binds referred→referrer once; the reward
	// itself waits until the referred account is fully unlocked.
	events.Post("/referral", func(c *fiber.Ctx) error {
		var req struct {
			ReferrerID   int64  `json:"referrer_id"`
			ReferralCode string `json:"referral_code"`
			ReferredID   int64  `json:"referred_id"`
			Username     string `json:"username"`
			FirstName    string `json:"first_name"`
		}
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
		}
		if req.ReferredID == 0 {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "referred_id is required"})
		}

		referrerID := req.ReferrerID
		if referrerID == 0 && req.ReferralCode != "" {
			referrer, err := accounts.GetByReferralCode(req.ReferralCode)
			if err != nil {
				if errors.Is(err, services.ErrAccountNotFound) {
					return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "unknown referral code"})
				}
				return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "DB error"})
			}
			referrerID = referrer.TelegramID
		}
		if referrerID == 0 {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "referrer_id or referral_code is required"})
		}

		if _, err := accounts.EnsureAccount(req.ReferredID, req.Username, req.FirstName); err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to upsert account"})
		}

		applied, err := referrals.RegisterReferral(referrerID, req.ReferredID)
		if err != nil {
			if errors.Is(err, services.ErrAccountNotFound) {
				return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "account not found"})
			}
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "referral registration failed",
				"cause": err.Error(),
			})
		}
		return c.JSON(fiber.Map{"applied": applied})
	})

	// The /s mount already resolved the acting user; this only checks it is
	// the admin.
	admin := app.Group("/s/admin", adminOnly(adminID))

	admin.Post("/verification/:telegram_id/approve", func(c *fiber.Ctx) error {
		targetID, err := c.ParamsInt("telegram_id")
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid telegram_id"})
		}
		if err := gate.ApproveSecondary(c.Context(), int64(targetID)); err != nil {
			if errors.Is(err, services.ErrAccountNotFound) {
				return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "account not found"})
			}
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "approve failed"})
		}
		return c.JSON(fiber.Map{"status": "approved"})
	})

	admin.Post("/verification/:telegram_id/reject", func(c *fiber.Ctx) error {
		targetID, err := c.ParamsInt("telegram_id")
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid telegram_id"})
		}
		if err := gate.RejectSecondary(int64(targetID)); err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "reject failed"})
		}
		return c.JSON(fiber.Map{"status": "rejected"})
	})

	admin.Post("/vip/grant", func(c *fiber.Ctx) error {
		var req struct {
			TelegramID int64 `json:"telegram_id"`
			Days       int   `json:"days"`
		}
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
		}
		if req.TelegramID == 0 {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "telegram_id is required"})
		}
		if req.Days <= 0 {
			req.Days = cfg.VIPPlanDays
		}
		until, err := subs.GrantVIP(req.TelegramID, req.Days)
		if err != nil {
			if errors.Is(err, services.ErrAccountNotFound) {
				return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "account not found"})
			}
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "grant failed"})
		}
		log.Printf("👑 Admin granted %d days VIP to %d (until %s)", req.Days, req.TelegramID, until.Format("2006-01-02"))
		return c.JSON(fiber.Map{"vip_until": until})
	})
}

func adminOnly(adminID int64) fiber.Handler {
	return func(c *fiber.Ctx) error {
		callerID, ok := c.Locals("telegram_id").(int64)
		if !ok || adminID == 0 || callerID != adminID {
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "admin only"})
		}
		return c.Next()
	}
}
