package handler

import (
	"strconv"

	"github.com/ajbunielteam/SysGranTES/internal/messaging"
	"github.com/ajbunielteam/SysGranTES/internal/middleware"

	"github.com/gofiber/fiber/v2"
)

type ThreadHandler struct {
	msgs *messaging.Service
}

func NewThreadHandler(msgs *messaging.Service) *ThreadHandler {
	return &ThreadHandler{msgs: msgs}
}

// studentParam reads :studentId. Students may pass anything, "me" included;
// they always get their own thread.
func studentParam(c *fiber.Ctx) int {
	id, _ := strconv.Atoi(c.Params("studentId"))
	return id
}

// Get returns the merged thread.
// GET /api/v1/threads/:studentId
func (h *ThreadHandler) Get(c *fiber.Ctx) error {
	t, err := h.msgs.Thread(c.Context(), middleware.Participant(c), studentParam(c))
	if err != nil {
		return messagingError(c, err)
	}
	return c.JSON(t)
}

// Send runs the guarded send and returns the refreshed thread.
// POST /api/v1/threads/:studentId/messages
func (h *ThreadHandler) Send(c *fiber.Ctx) error {
	var req struct {
		Content string `json:"content"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "invalid request body"})
	}

	res := h.msgs.Send(c.Context(), middleware.Participant(c), studentParam(c), req.Content)
	switch res.Status {
	case messaging.SendSent:
		return c.Status(201).JSON(res)
	case messaging.SendDuplicate:
		return c.JSON(res)
	case messaging.SendDropped:
		return c.Status(409).JSON(res)
	}

	status := 500
	if isValidation(res.Err) {
		status = 400
	}
	return c.Status(status).JSON(res)
}

// Read marks the thread's inbound messages as seen by the caller.
// POST /api/v1/threads/:studentId/read
func (h *ThreadHandler) Read(c *fiber.Ctx) error {
	n, err := h.msgs.MarkThreadRead(c.Context(), middleware.Participant(c), studentParam(c))
	if err != nil {
		return messagingError(c, err)
	}
	return c.JSON(fiber.Map{"success": true, "marked": n})
}

// Unread returns the caller's badge.
// GET /api/v1/unread
func (h *ThreadHandler) Unread(c *fiber.Ctx) error {
	b, err := h.msgs.Badge(c.Context(), middleware.Participant(c))
	if err != nil {
		return messagingError(c, err)
	}
	return c.JSON(b)
}
