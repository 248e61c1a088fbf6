package workflow

import "github.com/hitoshi/blogman/internal/model"

// 操作ごとの認可ルール。いずれもCoordinatorの入口で一度だけ評価する。

// requireAuthenticated は利用者情報がなければUnauthenticatedErrorを返す。
func requireAuthenticated(actor model.Actor) error {
	if !actor.Authenticated() {
		return model.NewUnauthenticatedError()
	}
	return nil
}

// requireAdmin は管理者でなければForbiddenErrorを返す。
func requireAdmin(actor model.Actor) error {
	if err := requireAuthenticated(actor); err != nil {
		return err
	}
	if !actor.IsAdmin() {
		return model.NewForbiddenError("この操作は管理者のみ実行できます。")
	}
	return nil
}

// canEditPost は投稿の編集・削除が許されるかを返す。投稿者本人か管理者のみ。
func canEditPost(actor model.Actor, p *model.Post) bool {
	return actor.IsAdmin() || actor.ID == p.AuthorID
}
