// Package model はドメインモデルを定義する。
package model

import "time"

// Role はユーザーの権限種別を表す。
type Role string

const (
	// RoleAuthor は投稿・コメント・リアクションができる一般ユーザー。
	RoleAuthor Role = "author"
	// RoleAdmin はモデレーション権限を持つ管理者。
	RoleAdmin Role = "admin"
)

// Valid はロールが定義済みの値かどうかを返す。
func (r Role) Valid() bool {
	return r == RoleAuthor || r == RoleAdmin
}

// Actor は操作を行う利用者の識別子とロールを表す。
// 認証ミドルウェアがセッションから解決してリクエストコンテキストに格納する。
type Actor struct {
	ID   string
	Role Role
}

// IsAdmin は管理者かどうかを返す。
func (a Actor) IsAdmin() bool {
	return a.Role == RoleAdmin
}

// Authenticated は利用者IDが設定されているかどうかを返す。
func (a Actor) Authenticated() bool {
	return a.ID != ""
}

// User はサービス利用ユーザーを表す。
type User struct {
	ID        string
	Email     string
	Name      string
	AvatarURL string
	Role      Role
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Actor はユーザーを操作主体として返す。
func (u *User) Actor() Actor {
	return Actor{ID: u.ID, Role: u.Role}
}

// Identity は外部IdPとの紐付け情報を表す。
type Identity struct {
	ID             string
	UserID         string
	Provider       string
	ProviderUserID string
	CreatedAt      time.Time
}

// Session はユーザーのログインセッションを表す。
type Session struct {
	ID        string
	UserID    string
	ExpiresAt time.Time
	CreatedAt time.Time
}
