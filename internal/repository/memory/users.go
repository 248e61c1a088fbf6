package memory

import (
	"context"

	"github.com/hitoshi/blogman/internal/model"
	"github.com/hitoshi/blogman/internal/repository"
)

// UserRepo はインメモリのユーザーリポジトリ。
type UserRepo struct {
	s *Store
}

// FindByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
func (r *UserRepo) FindByID(ctx context.Context, id string) (*model.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	u, ok := r.s.users[id]
	if !ok {
		return nil, nil
	}
	cp := *u
	return &cp, nil
}

// CreateWithIdentity はユーザーとidentityを同時に作成する。
func (r *UserRepo) CreateWithIdentity(ctx context.Context, user *model.User, identity *model.Identity) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	u := *user
	ident := *identity
	r.s.users[user.ID] = &u
	r.s.identities[identity.Provider+"\x00"+identity.ProviderUserID] = &ident
	return nil
}

// IdentityRepo はインメモリのidentityリポジトリ。
type IdentityRepo struct {
	s *Store
}

// FindByProviderAndProviderUserID はproviderとprovider_user_idでidentityを検索する。
func (r *IdentityRepo) FindByProviderAndProviderUserID(ctx context.Context, provider, providerUserID string) (*model.Identity, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	ident, ok := r.s.identities[provider+"\x00"+providerUserID]
	if !ok {
		return nil, nil
	}
	cp := *ident
	return &cp, nil
}

// SessionRepo はインメモリのセッションリポジトリ。
type SessionRepo struct {
	s *Store
}

// Create はセッションを作成する。
func (r *SessionRepo) Create(ctx context.Context, session *model.Session) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	cp := *session
	r.s.sessions[session.ID] = &cp
	return nil
}

// FindByID は指定IDのセッションを取得する。期限切れの場合はnilを返す。
func (r *SessionRepo) FindByID(ctx context.Context, id string) (*model.Session, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	sess, ok := r.s.sessions[id]
	if !ok || !sess.ExpiresAt.After(now()) {
		return nil, nil
	}
	cp := *sess
	return &cp, nil
}

// DeleteByID は指定IDのセッションを削除する。
func (r *SessionRepo) DeleteByID(ctx context.Context, id string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	delete(r.s.sessions, id)
	return nil
}

// compile-time interface check
var (
	_ repository.UserRepository     = (*UserRepo)(nil)
	_ repository.IdentityRepository = (*IdentityRepo)(nil)
	_ repository.SessionRepository  = (*SessionRepo)(nil)
)
