package handler

import (
	"github.com/ajbunielteam/SysGranTES/internal/messaging"
	"github.com/ajbunielteam/SysGranTES/internal/middleware"
	"github.com/ajbunielteam/SysGranTES/internal/model"
	"github.com/ajbunielteam/SysGranTES/internal/service"

	"github.com/gofiber/fiber/v2"
)

type AdminHandler struct {
	students *service.StudentService
	apps     *service.ApplicationService
	msgs     *messaging.Service
	wsHub    *service.WSHub
}

func NewAdminHandler(students *service.StudentService, apps *service.ApplicationService, msgs *messaging.Service, wsHub *service.WSHub) *AdminHandler {
	return &AdminHandler{students: students, apps: apps, msgs: msgs, wsHub: wsHub}
}

// Stats is the dashboard summary. Counts that fail to load are reported
// as -1.
// GET /api/v1/admin/stats
func (h *AdminHandler) Stats(c *fiber.Ctx) error {
	totalStudents := -1
	if students, err := h.students.List(c.Context()); err == nil {
		totalStudents = len(students)
	}
	pendingApps := -1
	if apps, err := h.apps.List(c.Context(), model.ApplicationPending); err == nil {
		pendingApps = len(apps)
	}
	unread := -1
	if b, err := h.msgs.Badge(c.Context(), middleware.Participant(c)); err == nil {
		unread = b.Count
	}

	return c.JSON(fiber.Map{
		"students_total":       totalStudents,
		"applications_pending": pendingApps,
		"messages_unread":      unread,
		"connections_online":   h.wsHub.OnlineCount(),
		"views_polling":        h.msgs.SessionCount(),
	})
}
