package utils

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

var ErrorRecordNotFound = errors.New("record not found")

type ErrorKind string

const (
	KindNotFound                 ErrorKind = "NOT_FOUND"
	KindValidation               ErrorKind = "VALIDATION"
	KindConflict                 ErrorKind = "CONFLICT"
	KindTransientDeliveryFailure ErrorKind = "TRANSIENT_DELIVERY_FAILURE"
	KindInternal                 ErrorKind = "INTERNAL"
)

// AppError carries a kind so transports can map it to a status code.
type AppError struct {
	Kind    ErrorKind
	Message string
	Err     error
}

func (e *AppError) Error() string {
	if e.Err != nil && e.Message == "" {
		return e.Err.Error()
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func NotFound(format string, args ...any) error {
	return &AppError{Kind: KindNotFound, Message: fmt.Sprintf(format, args...), Err: ErrorRecordNotFound}
}

func Validation(format string, args ...any) error {
	return &AppError{Kind: KindValidation, Message: fmt.Sprintf(format, args...)}
}

func Conflict(format string, args ...any) error {
	return &AppError{Kind: KindConflict, Message: fmt.Sprintf(format, args...)}
}

func DeliveryFailure(err error) error {
	return &AppError{Kind: KindTransientDeliveryFailure, Message: "delivery failed: " + err.Error(), Err: err}
}

// ErrorKindOf classifies any error returned by the models layer.
func ErrorKindOf(err error) ErrorKind {
	if err == nil {
		return ""
	}
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	if errors.Is(err, ErrorRecordNotFound) || errors.Is(err, gorm.ErrRecordNotFound) {
		return KindNotFound
	}
	if IsDuplicateKeyError(err) {
		return KindConflict
	}
	return KindInternal
}

// IsDuplicateKeyError recognises unique violations from every supported store:
// MySQL 1062, Postgres 23505 and SQLite's UNIQUE constraint message.
func IsDuplicateKeyError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) && myErr.Number == 1062 {
		return true
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return true
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}
