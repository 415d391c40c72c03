package service

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/ajbunielteam/SysGranTES/internal/logger"
	"github.com/ajbunielteam/SysGranTES/internal/model"

	"github.com/pkg/errors"
	"go.uber.org/zap"
)

var ErrEmptyAnnouncement = errors.New("title and body are required")

type AnnouncementStore interface {
	Create(ctx context.Context, a *model.Announcement) error
	Recent(ctx context.Context, limit int) ([]model.Announcement, error)
}

type AnnouncementService struct {
	store AnnouncementStore
	bus   *EventBus
	log   *zap.Logger
}

func NewAnnouncementService(store AnnouncementStore, bus *EventBus) *AnnouncementService {
	return &AnnouncementService{store: store, bus: bus, log: logger.Named("announcements")}
}

// Post stores an announcement and pushes it to every connected view.
func (s *AnnouncementService) Post(ctx context.Context, author model.Participant, req model.AnnouncementRequest) (*model.Announcement, error) {
	a := &model.Announcement{
		Title:    strings.TrimSpace(req.Title),
		Body:     strings.TrimSpace(req.Body),
		AuthorID: author.ID,
	}
	if a.Title == "" || a.Body == "" {
		return nil, ErrEmptyAnnouncement
	}
	if err := s.store.Create(ctx, a); err != nil {
		return nil, err
	}
	if err := s.bus.Publish(SubjectAnnouncements, a); err != nil {
		s.log.Warn("publish announcement", zap.Int64("id", a.ID), zap.Error(err))
	}
	return a, nil
}

func (s *AnnouncementService) Recent(ctx context.Context, limit int) ([]model.Announcement, error) {
	return s.store.Recent(ctx, limit)
}

// DeliverAnnouncements broadcasts announcements from the bus to local sockets.
func DeliverAnnouncements(bus *EventBus, hub *WSHub) error {
	return bus.Handle(SubjectAnnouncements, func(data []byte) {
		var a model.Announcement
		if err := json.Unmarshal(data, &a); err != nil {
			logger.Warn("bad announcement event", zap.Error(err))
			return
		}
		hub.Broadcast(model.NewWSEvent(model.EventAnnouncement, a))
	})
}
