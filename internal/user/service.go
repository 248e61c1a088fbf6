// Package user はユーザーの公開プロフィール参照を提供する。
package user

import (
	"context"

	"github.com/hitoshi/blogman/internal/model"
	"github.com/hitoshi/blogman/internal/repository"
)

// Service はユーザー参照のサービス層。
type Service struct {
	repo repository.UserRepository
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(repo repository.UserRepository) *Service {
	return &Service{repo: repo}
}

// Get は指定IDのユーザーを取得する。存在しない場合はNotFoundErrorを返す。
func (s *Service) Get(ctx context.Context, id string) (*model.User, error) {
	u, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if u == nil {
		return nil, model.NewUserNotFoundError(id)
	}
	return u, nil
}

// Profiles は投稿者IDごとのユーザーを返す。
// 重複したIDは1回だけ引き、存在しないユーザーは結果に含めない。
func (s *Service) Profiles(ctx context.Context, ids []string) (map[string]*model.User, error) {
	profiles := make(map[string]*model.User, len(ids))
	seen := make(map[string]bool, len(ids))
	for _, id := range ids {
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true

		u, err := s.repo.FindByID(ctx, id)
		if err != nil {
			return nil, err
		}
		if u != nil {
			profiles[id] = u
		}
	}
	return profiles, nil
}
