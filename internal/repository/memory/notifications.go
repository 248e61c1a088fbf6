package memory

import (
	"context"
	"maps"
	"sort"

	"github.com/hitoshi/blogman/internal/model"
	"github.com/hitoshi/blogman/internal/repository"
)

// NotificationRepo はインメモリの通知リポジトリ。
type NotificationRepo struct {
	s *Store
}

func cloneNotification(n *model.Notification) *model.Notification {
	cp := *n
	cp.Meta = maps.Clone(n.Meta)
	if cp.Meta == nil {
		cp.Meta = map[string]string{}
	}
	return &cp
}

// Create は通知を作成する。
func (r *NotificationRepo) Create(ctx context.Context, n *model.Notification) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	r.s.notifs[n.ID] = cloneNotification(n)
	return nil
}

// FindByID は指定IDの通知を取得する。見つからない場合はnilを返す。
func (r *NotificationRepo) FindByID(ctx context.Context, id string) (*model.Notification, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	n, ok := r.s.notifs[id]
	if !ok {
		return nil, nil
	}
	return cloneNotification(n), nil
}

// ListByUser はユーザー宛ての通知を新しい順に最大limit件返す。
func (r *NotificationRepo) ListByUser(ctx context.Context, userID string, limit int) ([]*model.Notification, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	result := []*model.Notification{}
	for _, n := range r.s.notifs {
		if n.UserID == userID {
			result = append(result, cloneNotification(n))
		}
	}
	sort.Slice(result, func(i, j int) bool {
		if !result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].CreatedAt.After(result[j].CreatedAt)
		}
		return result[i].ID > result[j].ID
	})
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

// MarkRead は通知を既読にする。
func (r *NotificationRepo) MarkRead(ctx context.Context, id string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if n, ok := r.s.notifs[id]; ok {
		n.Read = true
	}
	return nil
}

// compile-time interface check
var _ repository.NotificationRepository = (*NotificationRepo)(nil)
