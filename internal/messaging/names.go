package messaging

import (
	"context"

	"github.com/ajbunielteam/SysGranTES/internal/logger"
	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"
)

const UnknownStudent = "Unknown Student"

// NameBook labels threads with student display names. Lookups that fail
// degrade to UnknownStudent and are not cached.
type NameBook struct {
	roster Roster
	cache  *lru.Cache[int, string]
	log    *zap.Logger
}

func NewNameBook(roster Roster, size int) *NameBook {
	if size <= 0 {
		size = 512
	}
	cache, _ := lru.New[int, string](size)
	return &NameBook{roster: roster, cache: cache, log: logger.Named("names")}
}

func (b *NameBook) Name(ctx context.Context, studentID int) string {
	if b == nil || b.roster == nil {
		return UnknownStudent
	}
	if name, ok := b.cache.Get(studentID); ok {
		return name
	}
	s, err := b.roster.GetStudent(ctx, studentID)
	if err != nil || s == nil {
		if err != nil {
			b.log.Debug("student lookup failed", zap.Int("student", studentID), zap.Error(err))
		}
		return UnknownStudent
	}
	name := s.DisplayName()
	if name == "" {
		name = UnknownStudent
	}
	b.cache.Add(studentID, name)
	return name
}

// Forget drops a cached name, e.g. after the student is deleted.
func (b *NameBook) Forget(studentID int) {
	if b != nil {
		b.cache.Remove(studentID)
	}
}
