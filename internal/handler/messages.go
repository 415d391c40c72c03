package handler

import (
	"errors"
	"strconv"

	"github.com/ajbunielteam/SysGranTES/internal/logger"
	"github.com/ajbunielteam/SysGranTES/internal/messaging"
	"github.com/ajbunielteam/SysGranTES/internal/middleware"
	"github.com/ajbunielteam/SysGranTES/internal/model"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// MessageHandler exposes the message store directly: one direction per
// read, one row per write.
type MessageHandler struct {
	store    messaging.Store
	notifier messaging.Notifier
	admin    model.Participant
	log      *zap.Logger
}

func NewMessageHandler(store messaging.Store, notifier messaging.Notifier, admin model.Participant) *MessageHandler {
	return &MessageHandler{store: store, notifier: notifier, admin: admin, log: logger.Named("messages")}
}

// List returns the messages sent by one participant to another.
// GET /api/v1/messages?sender_id=1&sender_type=admin&receiver_id=42&receiver_type=student
func (h *MessageHandler) List(c *fiber.Ctx) error {
	sender, err := participantQuery(c, "sender")
	if err != nil {
		return messagingError(c, err)
	}
	receiver, err := participantQuery(c, "receiver")
	if err != nil {
		return messagingError(c, err)
	}

	caller := middleware.Participant(c)
	if caller.IsStudent() && sender != caller && receiver != caller {
		return c.Status(403).JSON(fiber.Map{"error": "not your conversation"})
	}

	msgs, err := h.store.Query(c.Context(), sender, receiver)
	if err != nil {
		h.log.Error("query messages", zap.Stringer("sender", sender), zap.Stringer("receiver", receiver), zap.Error(err))
		return c.Status(500).JSON(fiber.Map{"success": false, "error": "failed to load messages"})
	}

	return c.JSON(fiber.Map{"success": true, "messages": msgs})
}

// Save stores one message from the caller. A repeated client_key is
// reported as a duplicate rather than an error.
// POST /api/v1/messages
func (h *MessageHandler) Save(c *fiber.Ctx) error {
	var req model.NewMessage
	if err := c.BodyParser(&req); err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "invalid request body"})
	}

	caller := middleware.Participant(c)
	if caller.IsAdmin() {
		caller = h.admin
	}
	req.SenderID, req.SenderType = caller.ID, caller.Role
	if caller.IsStudent() {
		req.ReceiverID, req.ReceiverType = h.admin.ID, h.admin.Role
	}

	msg, err := h.store.Save(c.Context(), req)
	if errors.Is(err, model.ErrDuplicateMessage) {
		return c.JSON(fiber.Map{"success": true, "duplicate": true})
	}
	if err != nil {
		return messagingError(c, err)
	}

	h.notifier.MessageSent(c.Context(), msg)
	return c.Status(201).JSON(fiber.Map{"success": true, "id": msg.ID, "created_at": msg.CreatedAt})
}

func participantQuery(c *fiber.Ctx, prefix string) (model.Participant, error) {
	role, err := model.ParseRole(c.Query(prefix + "_type"))
	if err != nil {
		return model.Participant{}, model.ErrUnknownRole
	}
	id, err := strconv.Atoi(c.Query(prefix + "_id"))
	if err != nil || id <= 0 {
		return model.Participant{}, model.ErrMissingParticipant
	}
	return model.Participant{Role: role, ID: id}, nil
}

func messagingError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, model.ErrMissingParticipant):
		return c.Status(400).JSON(fiber.Map{"success": false, "error": "Student ID not found"})
	case isValidation(err):
		return c.Status(400).JSON(fiber.Map{"success": false, "error": err.Error()})
	case errors.Is(err, messaging.ErrThreadUnavailable):
		logger.Warn("messaging", zap.Error(err))
		return c.Status(503).JSON(fiber.Map{"success": false, "error": "messages are temporarily unavailable"})
	default:
		logger.Error("messaging", zap.Error(err))
		return c.Status(500).JSON(fiber.Map{"success": false, "error": "internal server error"})
	}
}

func isValidation(err error) bool {
	return errors.Is(err, model.ErrMissingParticipant) ||
		errors.Is(err, model.ErrEmptyContent) ||
		errors.Is(err, model.ErrSameRole) ||
		errors.Is(err, model.ErrUnknownRole)
}
