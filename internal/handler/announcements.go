package handler

import (
	"errors"

	"github.com/ajbunielteam/SysGranTES/internal/logger"
	"github.com/ajbunielteam/SysGranTES/internal/middleware"
	"github.com/ajbunielteam/SysGranTES/internal/model"
	"github.com/ajbunielteam/SysGranTES/internal/service"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

type AnnouncementHandler struct {
	svc *service.AnnouncementService
}

func NewAnnouncementHandler(svc *service.AnnouncementService) *AnnouncementHandler {
	return &AnnouncementHandler{svc: svc}
}

// GET /api/v1/announcements?limit=20
func (h *AnnouncementHandler) List(c *fiber.Ctx) error {
	limit := c.QueryInt("limit", 20)
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	items, err := h.svc.Recent(c.Context(), limit)
	if err != nil {
		logger.Error("list announcements", zap.Error(err))
		return c.Status(500).JSON(fiber.Map{"error": "failed to load announcements"})
	}
	return c.JSON(fiber.Map{"announcements": items})
}

func (h *AnnouncementHandler) Post(c *fiber.Ctx) error {
	var req model.AnnouncementRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "invalid request body"})
	}
	a, err := h.svc.Post(c.Context(), middleware.Participant(c), req)
	if errors.Is(err, service.ErrEmptyAnnouncement) {
		return c.Status(400).JSON(fiber.Map{"error": err.Error()})
	}
	if err != nil {
		logger.Error("post announcement", zap.Error(err))
		return c.Status(500).JSON(fiber.Map{"error": "failed to post announcement"})
	}
	return c.Status(201).JSON(a)
}
