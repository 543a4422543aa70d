// Package contacts is the directory of known phone numbers.
package contacts

import (
	"context"
	"errors"
	"time"

	"github.com/soporte-digital/whatsapp-bot/internal/errs"
	"github.com/soporte-digital/whatsapp-bot/internal/model"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Directory is the lookup/create/update surface the dialog engine needs.
type Directory interface {
	GetByPhone(ctx context.Context, phone string) (*model.Contact, error)
	Upsert(ctx context.Context, c *model.Contact) error
	SetEmail(ctx context.Context, phone, email string) error
	Touch(ctx context.Context, phone string) error
}

type Service struct {
	db *gorm.DB
}

func NewService(db *gorm.DB) *Service {
	return &Service{db: db}
}

func (s *Service) GetByPhone(ctx context.Context, phone string) (*model.Contact, error) {
	var c model.Contact
	if err := s.db.WithContext(ctx).Where("phone = ?", phone).First(&c).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errs.ErrContactNotFound
		}
		return nil, err
	}
	return &c, nil
}

// Upsert inserts the contact or, on phone conflict, refreshes name,
// classification and activity timestamp.
func (s *Service) Upsert(ctx context.Context, c *model.Contact) error {
	c.LastSeenAt = time.Now()
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "phone"}},
		DoUpdates: clause.AssignmentColumns([]string{"name", "classification", "last_seen_at"}),
	}).Create(c).Error
}

func (s *Service) SetEmail(ctx context.Context, phone, email string) error {
	res := s.db.WithContext(ctx).Model(&model.Contact{}).
		Where("phone = ?", phone).
		Updates(map[string]interface{}{"email": email, "last_seen_at": time.Now()})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return errs.ErrContactNotFound
	}
	return nil
}

func (s *Service) Touch(ctx context.Context, phone string) error {
	return s.db.WithContext(ctx).Model(&model.Contact{}).
		Where("phone = ?", phone).
		Update("last_seen_at", time.Now()).Error
}
