package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"Civic_Report/internal/model"
	"Civic_Report/internal/pkg"
	"Civic_Report/internal/repository/mysql"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// EmailService 徽章获得时给用户发邮件，作为 outbox 的一个投递通道
type EmailService struct {
	emailCfg pkg.SMTPConfig
	users    *mysql.UserRepository
	send     func(cfg pkg.SMTPConfig, to, subject, htmlBody string) error
	logger   *zap.Logger
}

func NewEmailService(cfg pkg.SMTPConfig, db *gorm.DB, logger *zap.Logger) *EmailService {
	return &EmailService{
		emailCfg: cfg,
		users:    &mysql.UserRepository{DB: db},
		send:     pkg.SendEmail,
		logger:   logger,
	}
}

type badgeGrantedPayload struct {
	BadgeName string `json:"badge_name"`
	Icon      string `json:"icon"`
	Points    int64  `json:"points"`
}

// Sender 只处理 badge_granted 事件；未配置 SMTP 或用户已不存在时直接跳过
func (s *EmailService) Sender(ctx context.Context, ob *model.GamificationOutbox) error {
	if ob.EventType != model.EventBadgeGranted || !s.emailCfg.Enabled() {
		return nil
	}
	var p badgeGrantedPayload
	if err := json.Unmarshal(ob.Payload, &p); err != nil {
		s.logger.Warn("skip malformed badge event", zap.Uint64("outbox_id", ob.ID), zap.Error(err))
		return nil
	}
	user, err := s.users.FindByID(ctx, ob.UserID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		return err
	}
	subject := fmt.Sprintf("You earned the %s badge", p.BadgeName)
	return s.send(s.emailCfg, user.Email, subject, pkg.BadgeEarnedHTML(user.Name, p.Icon, p.BadgeName, p.Points))
}
