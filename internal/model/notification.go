package model

import "time"

// NotificationType は通知の種類を表す。
type NotificationType string

const (
	NotificationTypeComment    NotificationType = "comment"
	NotificationTypePostStatus NotificationType = "post_status"
	NotificationTypeAIUpdate   NotificationType = "ai_update"
)

// Notification はユーザー宛ての通知を表す。
// 作成後に変更されるのはReadのみ。
type Notification struct {
	ID        string
	UserID    string
	Type      NotificationType
	Message   string
	Meta      map[string]string
	Read      bool
	CreatedAt time.Time
}
