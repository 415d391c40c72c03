package handler

import (
	"errors"
	"strings"

	"github.com/ajbunielteam/SysGranTES/internal/logger"
	"github.com/ajbunielteam/SysGranTES/internal/model"
	"github.com/ajbunielteam/SysGranTES/internal/repository"
	"github.com/ajbunielteam/SysGranTES/internal/service"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

const alreadyAppliedMessage = "You have already submitted an application. Only one application per student is allowed."

type ApplicationHandler struct {
	svc *service.ApplicationService
	log *zap.Logger
}

func NewApplicationHandler(svc *service.ApplicationService) *ApplicationHandler {
	return &ApplicationHandler{svc: svc, log: logger.Named("applications")}
}

// Submit accepts a JSON body or a multipart form with an optional photo.
// POST /api/v1/applications
func (h *ApplicationHandler) Submit(c *fiber.Ctx) error {
	var req model.ApplicationRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(400).JSON(fiber.Map{"success": false, "message": "Invalid request body"})
	}

	var photo *service.PhotoUpload
	if strings.HasPrefix(c.Get(fiber.HeaderContentType), fiber.MIMEMultipartForm) {
		if fh, err := c.FormFile("photo"); err == nil {
			photo = &service.PhotoUpload{
				Filename:    fh.Filename,
				ContentType: fh.Header.Get(fiber.HeaderContentType),
				Size:        fh.Size,
				Save:        func(dst string) error { return c.SaveFile(fh, dst) },
			}
		}
	}

	app, err := h.svc.Submit(c.Context(), req, photo)
	if err != nil {
		return applicationError(c, err)
	}
	return c.Status(201).JSON(fiber.Map{
		"success": true,
		"message": "Application submitted successfully",
		"id":      app.ID,
	})
}

// List returns applications newest first, optionally filtered by status.
// GET /api/v1/applications?status=pending
func (h *ApplicationHandler) List(c *fiber.Ctx) error {
	apps, err := h.svc.List(c.Context(), c.Query("status"))
	if err != nil {
		h.log.Error("list", zap.Error(err))
		return c.Status(500).JSON(fiber.Map{"success": false, "message": "Failed to load applications"})
	}
	return c.JSON(fiber.Map{"success": true, "applications": apps})
}

func (h *ApplicationHandler) Delete(c *fiber.Ctx) error {
	id, err := c.ParamsInt("id")
	if err != nil || id <= 0 {
		return c.Status(400).JSON(fiber.Map{"success": false, "message": "Application ID is required"})
	}
	if err := h.svc.Delete(c.Context(), int64(id)); err != nil {
		return applicationError(c, err)
	}
	return c.JSON(fiber.Map{"success": true, "message": "Application deleted successfully"})
}

// Approve creates the student login and sends the credentials.
// POST /api/v1/applications/:id/approve
func (h *ApplicationHandler) Approve(c *fiber.Ctx) error {
	id, err := c.ParamsInt("id")
	if err != nil || id <= 0 {
		return c.Status(400).JSON(fiber.Map{"success": false, "message": "Application ID is required"})
	}
	res, err := h.svc.Approve(c.Context(), int64(id))
	if err != nil {
		return applicationError(c, err)
	}
	return c.JSON(fiber.Map{
		"success":           true,
		"message":           res.Credentials.Message,
		"student":           res.Student,
		"temporaryPassword": res.TemporaryPassword,
		"credentials":       res.Credentials,
	})
}

func applicationError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, repository.ErrAlreadyApplied):
		return c.Status(409).JSON(fiber.Map{"success": false, "message": alreadyAppliedMessage})
	case errors.Is(err, service.ErrInvalidPhotoType),
		errors.Is(err, service.ErrPhotoTooLarge),
		errors.Is(err, service.ErrMissingEmail):
		return c.Status(400).JSON(fiber.Map{"success": false, "message": err.Error()})
	case errors.Is(err, repository.ErrNotFound):
		return c.Status(404).JSON(fiber.Map{"success": false, "message": "Application not found or already deleted"})
	case errors.Is(err, service.ErrAlreadyApproved):
		return c.Status(409).JSON(fiber.Map{"success": false, "message": "Application already approved"})
	default:
		logger.Error("application request", zap.Error(err))
		return c.Status(500).JSON(fiber.Map{"success": false, "message": "Failed to save application"})
	}
}

type CredentialsHandler struct {
	svc *service.CredentialsService
}

func NewCredentialsHandler(svc *service.CredentialsService) *CredentialsHandler {
	return &CredentialsHandler{svc: svc}
}

// Send emails and texts login details to an approved student.
// POST /api/v1/credentials/send
func (h *CredentialsHandler) Send(c *fiber.Ctx) error {
	var req model.CredentialsRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(400).JSON(fiber.Map{"success": false, "message": "Invalid request body"})
	}
	res, err := h.svc.Send(c.Context(), req)
	if errors.Is(err, service.ErrMissingCredentialFields) {
		return c.Status(400).JSON(res)
	}
	if err != nil {
		return c.Status(500).JSON(fiber.Map{"success": false, "message": "Failed to send credentials"})
	}
	return c.JSON(res)
}
