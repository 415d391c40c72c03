package service

import (
	"context"

	"github.com/ajbunielteam/SysGranTES/internal/kv"
	"github.com/ajbunielteam/SysGranTES/internal/logger"
	"github.com/ajbunielteam/SysGranTES/internal/messaging"
	"github.com/ajbunielteam/SysGranTES/internal/model"
	"github.com/ajbunielteam/SysGranTES/internal/repository"

	"go.uber.org/zap"
)

type StudentDirectory interface {
	ListStudents(ctx context.Context) ([]model.Student, error)
	Delete(ctx context.Context, id int) error
}

type StudentService struct {
	students StudentDirectory
	state    kv.Store
	names    *messaging.NameBook
	log      *zap.Logger
}

func NewStudentService(students StudentDirectory, state kv.Store, names *messaging.NameBook) *StudentService {
	return &StudentService{students: students, state: state, names: names, log: logger.Named("students")}
}

func (s *StudentService) List(ctx context.Context) ([]model.Student, error) {
	return s.students.ListStudents(ctx)
}

// Delete removes the student, their messages and their per-viewer state.
func (s *StudentService) Delete(ctx context.Context, id int) error {
	if id <= 0 {
		return repository.ErrNotFound
	}
	if err := s.students.Delete(ctx, id); err != nil {
		return err
	}
	s.names.Forget(id)

	p := model.AsStudent(id)
	for _, key := range []string{messaging.ReadMapKey(p), messaging.PendingKey(p)} {
		if err := s.state.Delete(ctx, key); err != nil {
			s.log.Warn("clear student state", zap.String("key", key), zap.Error(err))
		}
	}
	s.log.Info("student deleted", zap.Int("id", id))
	return nil
}
