// Package model はドメインモデルを定義する。
package model

import (
	"context"
	"errors"
	"fmt"
)

// ErrorKind はエラーの分類を表す。
// HTTPステータスへの変換や、呼び出し側がリトライ可能かどうかの判断に使う。
type ErrorKind string

const (
	// KindValidation は入力不備（必須項目の欠落、不正な列挙値など）。
	KindValidation ErrorKind = "validation"
	// KindNotFound は参照先の投稿・コメント・通知などが存在しない。
	KindNotFound ErrorKind = "not_found"
	// KindForbidden は認証済みだが操作の権限がない。
	KindForbidden ErrorKind = "forbidden"
	// KindConflict は一意制約違反（スラッグ重複など）。
	KindConflict ErrorKind = "conflict"
	// KindStorage は永続化層が利用できない、またはタイムアウトした。
	// 呼び出し側がリトライして意味があるのはこの分類のみ。
	KindStorage ErrorKind = "storage"
	// KindUnauthenticated は保護されたエンドポイントに利用者情報がない。
	KindUnauthenticated ErrorKind = "unauthenticated"
	// KindUnavailable は外部の文章生成サービスが利用できない。
	KindUnavailable ErrorKind = "unavailable"
)

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string    // エラーコード
	Message  string    // エラーメッセージ
	Category string    // カテゴリ: auth, validation, post, comment, notification, system
	Action   string    // ユーザー向け対処方法
	Kind     ErrorKind // エラー分類
	Err      error     // 原因となったエラー（任意）
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap は原因となったエラーを返す。
func (e *APIError) Unwrap() error {
	return e.Err
}

// 定義済みエラーコード
const (
	ErrCodeValidation           = "VALIDATION_FAILED"
	ErrCodeInvalidStatus        = "INVALID_STATUS"
	ErrCodeInvalidReaction      = "INVALID_REACTION"
	ErrCodeInvalidParent        = "INVALID_PARENT"
	ErrCodeInvalidSort          = "INVALID_SORT"
	ErrCodePostNotFound         = "POST_NOT_FOUND"
	ErrCodeCommentNotFound      = "COMMENT_NOT_FOUND"
	ErrCodeNotificationNotFound = "NOTIFICATION_NOT_FOUND"
	ErrCodeCategoryNotFound     = "CATEGORY_NOT_FOUND"
	ErrCodeUserNotFound         = "USER_NOT_FOUND"
	ErrCodeForbidden            = "FORBIDDEN"
	ErrCodeSlugConflict         = "SLUG_CONFLICT"
	ErrCodeCategoryConflict     = "CATEGORY_CONFLICT"
	ErrCodeStorage              = "STORAGE_UNAVAILABLE"
	ErrCodeUnauthorized         = "UNAUTHORIZED"
	ErrCodeDraftUnavailable     = "DRAFT_UNAVAILABLE"
)

// NewValidationError は入力検証エラーを生成する。
func NewValidationError(message string) *APIError {
	return &APIError{
		Code:     ErrCodeValidation,
		Message:  message,
		Category: "validation",
		Action:   "入力内容を確認してください。",
		Kind:     KindValidation,
	}
}

// NewInvalidStatusError は不正なステータス値のエラーを生成する。
func NewInvalidStatusError(status string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidStatus,
		Message:  fmt.Sprintf("無効なステータスです: %s", status),
		Category: "validation",
		Action:   "ステータスには draft、pending、published、rejected（コメントは visible、hidden）のいずれかを指定してください。",
		Kind:     KindValidation,
	}
}

// NewInvalidReactionError は不正なリアクション種別のエラーを生成する。
func NewInvalidReactionError(action string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidReaction,
		Message:  fmt.Sprintf("無効なリアクションです: %s", action),
		Category: "validation",
		Action:   "リアクションには like または dislike を指定してください。",
		Kind:     KindValidation,
	}
}

// NewInvalidParentError は親コメントが同じ投稿に属さない場合のエラーを生成する。
func NewInvalidParentError(parentID string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidParent,
		Message:  fmt.Sprintf("親コメントがこの投稿に存在しません: %s", parentID),
		Category: "validation",
		Action:   "同じ投稿のコメントに返信してください。",
		Kind:     KindValidation,
	}
}

// NewInvalidSortError は並び替え指定が不正な場合のエラーを生成する。
func NewInvalidSortError(sort string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidSort,
		Message:  fmt.Sprintf("無効な並び順です: %s", sort),
		Category: "validation",
		Action:   "createdAt、updatedAt、views、title、readingTimeMinutes のいずれか（降順は先頭に - を付与）を指定してください。",
		Kind:     KindValidation,
	}
}

// NewPostNotFoundError は投稿未検出エラーを生成する。
func NewPostNotFoundError(ref string) *APIError {
	return &APIError{
		Code:     ErrCodePostNotFound,
		Message:  fmt.Sprintf("指定された投稿が見つかりません: %s", ref),
		Category: "post",
		Action:   "投稿のスラッグまたはIDを確認してください。",
		Kind:     KindNotFound,
	}
}

// NewCommentNotFoundError はコメント未検出エラーを生成する。
func NewCommentNotFoundError(commentID string) *APIError {
	return &APIError{
		Code:     ErrCodeCommentNotFound,
		Message:  fmt.Sprintf("指定されたコメントが見つかりません: %s", commentID),
		Category: "comment",
		Action:   "コメントIDを確認してください。",
		Kind:     KindNotFound,
	}
}

// NewNotificationNotFoundError は通知未検出エラーを生成する。
func NewNotificationNotFoundError(notificationID string) *APIError {
	return &APIError{
		Code:     ErrCodeNotificationNotFound,
		Message:  fmt.Sprintf("指定された通知が見つかりません: %s", notificationID),
		Category: "notification",
		Action:   "通知一覧を再読み込みしてください。",
		Kind:     KindNotFound,
	}
}

// NewCategoryNotFoundError はカテゴリ未検出エラーを生成する。
func NewCategoryNotFoundError(categoryID string) *APIError {
	return &APIError{
		Code:     ErrCodeCategoryNotFound,
		Message:  fmt.Sprintf("指定されたカテゴリが見つかりません: %s", categoryID),
		Category: "category",
		Action:   "カテゴリIDを確認してください。",
		Kind:     KindNotFound,
	}
}

// NewUserNotFoundError はユーザー未検出エラーを生成する。
func NewUserNotFoundError(userID string) *APIError {
	return &APIError{
		Code:     ErrCodeUserNotFound,
		Message:  fmt.Sprintf("ユーザーが見つかりません: %s", userID),
		Category: "auth",
		Action:   "再度ログインしてください。",
		Kind:     KindNotFound,
	}
}

// NewForbiddenError は権限不足エラーを生成する。
func NewForbiddenError(message string) *APIError {
	return &APIError{
		Code:     ErrCodeForbidden,
		Message:  message,
		Category: "auth",
		Action:   "この操作は投稿者本人または管理者のみ実行できます。",
		Kind:     KindForbidden,
	}
}

// NewSlugConflictError はスラッグ重複エラーを生成する。
func NewSlugConflictError(slug string) *APIError {
	return &APIError{
		Code:     ErrCodeSlugConflict,
		Message:  fmt.Sprintf("同じスラッグの投稿が既に存在します: %s", slug),
		Category: "post",
		Action:   "タイトルを変更してください。",
		Kind:     KindConflict,
	}
}

// NewCategoryConflictError はカテゴリ名重複エラーを生成する。
func NewCategoryConflictError(name string) *APIError {
	return &APIError{
		Code:     ErrCodeCategoryConflict,
		Message:  fmt.Sprintf("同じ名前のカテゴリが既に存在します: %s", name),
		Category: "category",
		Action:   "別の名前を指定してください。",
		Kind:     KindConflict,
	}
}

// NewStorageError は永続化層の障害を表すエラーを生成する。
func NewStorageError(message string, err error) *APIError {
	return &APIError{
		Code:     ErrCodeStorage,
		Message:  message,
		Category: "system",
		Action:   "しばらく待ってから再度お試しください。",
		Kind:     KindStorage,
		Err:      err,
	}
}

// NewUnauthenticatedError は未認証エラーを生成する。
func NewUnauthenticatedError() *APIError {
	return &APIError{
		Code:     ErrCodeUnauthorized,
		Message:  "認証が必要です。",
		Category: "auth",
		Action:   "ログインしてください。",
		Kind:     KindUnauthenticated,
	}
}

// NewDraftUnavailableError は下書き生成サービスが利用できない場合のエラーを生成する。
func NewDraftUnavailableError(err error) *APIError {
	return &APIError{
		Code:     ErrCodeDraftUnavailable,
		Message:  "下書きの自動生成を利用できません。",
		Category: "system",
		Action:   "しばらく待ってから再度お試しください。",
		Kind:     KindUnavailable,
		Err:      err,
	}
}

// KindOf はエラーの分類を返す。
// APIError以外でもコンテキストのタイムアウト・キャンセルはKindStorageとして扱う。
func KindOf(err error) ErrorKind {
	if err == nil {
		return ""
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Kind
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return KindStorage
	}
	return ""
}

// IsKind はエラーが指定の分類に該当するかを返す。
func IsKind(err error, kind ErrorKind) bool {
	return KindOf(err) == kind
}
