// Package errcode defines the stable error taxonomy shared by the HTTP
// surface and the translation pipeline.
//
// Every failure that can cross the API boundary is represented by a [Code].
// The [Error] carrier pairs a code with an operator-facing message and an
// optional wrapped cause, so internal errors can be annotated close to where
// they happen and mapped to an HTTP status in exactly one place
// ([HTTPStatus]).
package errcode

import (
	"errors"
	"fmt"
	"net/http"
)

// Code identifies a failure class. Codes are part of the wire contract and
// must never be renamed.
type Code string

const (
	ValidationEmptyText       Code = "VALIDATION_EMPTY_TEXT"
	ValidationTextTooLong     Code = "VALIDATION_TEXT_TOO_LONG"
	ValidationSameLanguage    Code = "VALIDATION_SAME_LANGUAGE"
	ValidationInvalidLanguage Code = "VALIDATION_INVALID_LANGUAGE"
	InvalidJSON               Code = "INVALID_JSON"
	AccessDenied              Code = "ACCESS_DENIED"
	QueueFull                 Code = "QUEUE_FULL"
	ServiceUnavailable        Code = "SERVICE_UNAVAILABLE"
	ModelNotLoaded            Code = "MODEL_NOT_LOADED"
	ModelInvalidID            Code = "MODEL_INVALID_ID"
	ModelNotFound             Code = "MODEL_NOT_FOUND"
	ModelSwitchInProgress     Code = "MODEL_SWITCH_IN_PROGRESS"
	ModelSwitchRejected       Code = "MODEL_SWITCH_REJECTED"
	ModelSwitchFailed         Code = "MODEL_SWITCH_FAILED"
	NetworkError              Code = "NETWORK_ERROR"
	TranslationTimeout        Code = "TRANSLATION_TIMEOUT"
	Internal                  Code = "INTERNAL_ERROR"
)

// defaultMessages are the operator-facing messages shown to API clients when
// a call site does not supply its own. The deployment audience is
// Traditional Chinese, matching the shipped web UI.
var defaultMessages = map[Code]string{
	ValidationEmptyText:       "請輸入要翻譯的文字",
	ValidationTextTooLong:     "文字長度超過限制",
	ValidationSameLanguage:    "來源語言與目標語言相同",
	ValidationInvalidLanguage: "不支援的語言代碼",
	InvalidJSON:               "無效的 JSON 格式",
	AccessDenied:              "IP 位址不在白名單中",
	QueueFull:                 "系統繁忙，請稍後再試",
	ServiceUnavailable:        "服務暫時無法使用，請稍後再試",
	ModelNotLoaded:            "翻譯模型尚未載入，請稍後再試",
	ModelInvalidID:            "無效的模型識別碼",
	ModelNotFound:             "找不到指定的模型",
	ModelSwitchInProgress:     "模型切換進行中，請稍後再試",
	ModelSwitchRejected:       "有翻譯請求處理中，無法切換模型",
	ModelSwitchFailed:         "模型切換失敗",
	NetworkError:              "網路連線異常，請稍後再試",
	TranslationTimeout:        "翻譯逾時，請稍後再試",
	Internal:                  "系統發生錯誤，請稍後再試",
}

// httpStatuses maps each code to the HTTP status the API responds with.
var httpStatuses = map[Code]int{
	ValidationEmptyText:       http.StatusBadRequest,
	ValidationTextTooLong:     http.StatusBadRequest,
	ValidationSameLanguage:    http.StatusBadRequest,
	ValidationInvalidLanguage: http.StatusBadRequest,
	InvalidJSON:               http.StatusBadRequest,
	ModelInvalidID:            http.StatusBadRequest,
	AccessDenied:              http.StatusForbidden,
	ModelNotFound:             http.StatusNotFound,
	ModelSwitchInProgress:     http.StatusConflict,
	ModelSwitchRejected:       http.StatusConflict,
	ModelSwitchFailed:         http.StatusInternalServerError,
	Internal:                  http.StatusInternalServerError,
	QueueFull:                 http.StatusServiceUnavailable,
	ServiceUnavailable:        http.StatusServiceUnavailable,
	ModelNotLoaded:            http.StatusServiceUnavailable,
	NetworkError:              http.StatusServiceUnavailable,
	TranslationTimeout:        http.StatusGatewayTimeout,
}

// HTTPStatus returns the HTTP status for code. Unknown codes map to 500.
func HTTPStatus(c Code) int {
	if s, ok := httpStatuses[c]; ok {
		return s
	}
	return http.StatusInternalServerError
}

// Message returns the default operator-facing message for code.
func Message(c Code) string {
	if m, ok := defaultMessages[c]; ok {
		return m
	}
	return defaultMessages[Internal]
}

// Error is the domain error carrier. It satisfies the error interface and
// supports errors.As extraction through wrapped chains.
type Error struct {
	Code    Code
	Message string
	Err     error
}

// New creates an [Error] with the default message for code.
func New(code Code) *Error {
	return &Error{Code: code, Message: Message(code)}
}

// Newf creates an [Error] with a custom message.
func Newf(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap annotates err with a code, keeping the default message. Returns nil if
// err is nil.
func Wrap(code Code, err error) *Error {
	if err == nil {
		return nil
	}
	return &Error{Code: code, Message: Message(code), Err: err}
}

func (e *Error) Error() string {
	if e.Err != nil {
		return string(e.Code) + ": " + e.Err.Error()
	}
	return string(e.Code) + ": " + e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// From extracts the [Error] from err's chain. Errors without a carrier are
// classified as INTERNAL_ERROR so no internal detail leaks to clients.
func From(err error) *Error {
	var ce *Error
	if errors.As(err, &ce) {
		return ce
	}
	return &Error{Code: Internal, Message: Message(Internal), Err: err}
}
