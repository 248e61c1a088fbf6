// Package notification はユーザー宛て通知の生成と参照を提供する。
// 通知は投稿のステータス変更・コメント追加・下書き生成完了をきっかけに作られ、
// 受信者本人が既読にする以外は変更されない。
package notification

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/blogman/internal/model"
	"github.com/hitoshi/blogman/internal/repository"
)

// DefaultListLimit は通知一覧の既定の最大件数。
const DefaultListLimit = 50

// ServiceConfig は通知サービスの設定。
type ServiceConfig struct {
	ListLimit int
}

// Service は通知のファンアウトと参照を行う。
type Service struct {
	repo   repository.NotificationRepository
	config ServiceConfig
	now    func() time.Time
}

// NewService はServiceを生成する。
func NewService(repo repository.NotificationRepository, config ServiceConfig) *Service {
	if config.ListLimit <= 0 {
		config.ListLimit = DefaultListLimit
	}
	return &Service{repo: repo, config: config, now: time.Now}
}

// NotifyCommentAdded は投稿へのコメント追加を投稿者に通知する。
// 返信であっても宛先は常に投稿者。
func (s *Service) NotifyCommentAdded(ctx context.Context, post *model.Post) (*model.Notification, error) {
	return s.create(ctx, post.AuthorID, model.NotificationTypeComment,
		fmt.Sprintf("投稿「%s」に新しいコメントがつきました。", post.Title),
		map[string]string{"postTitle": post.Title},
	)
}

// NotifyStatusChanged は投稿のステータス変更を投稿者に通知する。
func (s *Service) NotifyStatusChanged(ctx context.Context, post *model.Post) (*model.Notification, error) {
	return s.create(ctx, post.AuthorID, model.NotificationTypePostStatus,
		fmt.Sprintf("投稿「%s」のステータスが %s に変更されました。", post.Title, post.Status),
		map[string]string{"postTitle": post.Title, "status": string(post.Status)},
	)
}

// NotifyDraftGenerated は下書き生成の完了を依頼者に通知する。
func (s *Service) NotifyDraftGenerated(ctx context.Context, userID string) (*model.Notification, error) {
	return s.create(ctx, userID, model.NotificationTypeAIUpdate,
		"下書きの自動生成が完了しました。",
		map[string]string{},
	)
}

func (s *Service) create(ctx context.Context, userID string, typ model.NotificationType, message string, meta map[string]string) (*model.Notification, error) {
	n := &model.Notification{
		ID:        uuid.New().String(),
		UserID:    userID,
		Type:      typ,
		Message:   message,
		Meta:      meta,
		CreatedAt: s.now(),
	}
	if err := s.repo.Create(ctx, n); err != nil {
		return nil, err
	}
	return n, nil
}

// List はユーザー宛ての通知を新しい順に返す。未読数は呼び出し側で数える。
func (s *Service) List(ctx context.Context, userID string) ([]*model.Notification, error) {
	return s.repo.ListByUser(ctx, userID, s.config.ListLimit)
}

// MarkRead は通知を既読にする。
// 他のユーザー宛ての通知の場合はForbiddenErrorを返す。既読の通知に対しても成功する。
func (s *Service) MarkRead(ctx context.Context, id, userID string) (*model.Notification, error) {
	n, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if n == nil {
		return nil, model.NewNotificationNotFoundError(id)
	}
	if n.UserID != userID {
		return nil, model.NewForbiddenError("他のユーザー宛ての通知は操作できません。")
	}

	if !n.Read {
		if err := s.repo.MarkRead(ctx, id); err != nil {
			return nil, err
		}
		n.Read = true
	}
	return n, nil
}
