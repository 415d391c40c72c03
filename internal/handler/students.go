package handler

import (
	"errors"

	"github.com/ajbunielteam/SysGranTES/internal/logger"
	"github.com/ajbunielteam/SysGranTES/internal/repository"
	"github.com/ajbunielteam/SysGranTES/internal/service"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

type StudentHandler struct {
	svc *service.StudentService
}

func NewStudentHandler(svc *service.StudentService) *StudentHandler {
	return &StudentHandler{svc: svc}
}

func (h *StudentHandler) List(c *fiber.Ctx) error {
	students, err := h.svc.List(c.Context())
	if err != nil {
		logger.Error("list students", zap.Error(err))
		return c.Status(500).JSON(fiber.Map{"success": false, "error": "failed to load students"})
	}
	return c.JSON(fiber.Map{"success": true, "students": students})
}

// Delete removes a student along with their messages.
// DELETE /api/v1/students/:id
func (h *StudentHandler) Delete(c *fiber.Ctx) error {
	id, err := c.ParamsInt("id")
	if err != nil || id <= 0 {
		return c.Status(400).JSON(fiber.Map{"success": false, "message": "Invalid student ID"})
	}

	if err := h.svc.Delete(c.Context(), id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return c.Status(404).JSON(fiber.Map{"success": false, "message": "Student not found or already deleted"})
		}
		logger.Error("delete student", zap.Int("id", id), zap.Error(err))
		return c.Status(500).JSON(fiber.Map{"success": false, "message": "Error deleting student"})
	}
	return c.JSON(fiber.Map{"success": true, "message": "Student deleted successfully"})
}
