package repository

import (
	"database/sql"
	"errors"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/hitoshi/blogman/internal/model"
)

// pqUniqueViolation はPostgreSQLの一意制約違反を表すSQLSTATE。
const pqUniqueViolation = "23505"

// isUniqueViolation はエラーが指定制約の一意制約違反かどうかを判定する。
// constraintが空の場合は制約名を問わない。
func isUniqueViolation(err error, constraint string) bool {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) {
		return false
	}
	if pqErr.Code != pqUniqueViolation {
		return false
	}
	return constraint == "" || pqErr.Constraint == constraint
}

// storageError はドライバのエラーをStorageErrorに包む。
func storageError(message string, err error) error {
	return model.NewStorageError(message, err)
}

// validID はIDがUUID形式かどうかを返す。
// UUID以外の文字列をuuid型カラムと比較するとクエリ自体が失敗するため、事前に弾く。
func validID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

// nullString は空文字をNULLとして扱うsql.NullStringを生成する。
func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

// nullStringValue はsql.NullStringから文字列を取得する。
func nullStringValue(ns sql.NullString) string {
	if ns.Valid {
		return ns.String
	}
	return ""
}
