package http

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/example/room-booking/internal/application"
	"github.com/example/room-booking/internal/logging"
	"github.com/example/room-booking/internal/scheduler"
)

var (
	errBadRequestBody    = errors.New("無効なリクエスト形式です。")
	errInvalidBookingID  = errors.New("無効な予約 ID です。")
	errInvalidUserID     = errors.New("無効なユーザー ID です。")
	errInvalidRoomID     = errors.New("無効な教室 ID です。")
	errMissingAuthToken  = errors.New("認証トークンを指定してください")
	errRateLimitExceeded = errors.New("リクエストが多すぎます。しばらくしてから再度お試しください。")
)

type responder struct {
	logger *slog.Logger
}

func newResponder(logger *slog.Logger) responder {
	if logger == nil {
		logger = slog.Default()
	}
	return responder{logger: logger}
}

func (r responder) writeJSON(ctx context.Context, w http.ResponseWriter, status int, payload any) {
	if w == nil {
		return
	}

	if status == http.StatusNoContent || payload == nil {
		w.WriteHeader(status)
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		r.loggerFor(ctx).ErrorContext(ctx, "failed to encode response", "error", err)
	}
}

func (r responder) writeError(ctx context.Context, w http.ResponseWriter, status int, err error) {
	message := localizedStatusMessage(status)
	if err != nil {
		if msg := strings.TrimSpace(err.Error()); msg != "" {
			message = msg
		}
		r.loggerFor(ctx).ErrorContext(ctx, "request failed", "status", status, "error", err)
	}

	r.writeJSON(ctx, w, status, errorResponse{Message: message})
}

// handleServiceError maps an application error onto a status code and a
// localized body. Unexpected errors never leak their text to the client.
func (r responder) handleServiceError(ctx context.Context, w http.ResponseWriter, err error) {
	if err == nil {
		r.writeError(ctx, w, http.StatusInternalServerError, errors.New("unknown error"))
		return
	}

	status, resp := errorToResponse(err)
	if status == http.StatusInternalServerError {
		r.loggerFor(ctx).ErrorContext(ctx, "unexpected service error", "error", err)
	}
	r.writeJSON(ctx, w, status, resp)
}

func errorToResponse(err error) (int, errorResponse) {
	var conflict *application.SlotConflictError
	var vErr *application.ValidationError

	switch {
	case errors.Is(err, application.ErrUnauthenticated):
		return http.StatusUnauthorized, errorResponse{ErrorCode: "AUTH_REQUIRED", Message: "認証が必要です。"}
	case errors.Is(err, application.ErrInvalidCredentials):
		return http.StatusUnauthorized, errorResponse{ErrorCode: "AUTH_INVALID_CREDENTIALS", Message: "メールアドレスまたはパスワードが正しくありません"}
	case errors.Is(err, application.ErrForbidden):
		return http.StatusForbidden, errorResponse{ErrorCode: "AUTH_FORBIDDEN", Message: "この操作を実行する権限がありません。"}
	case errors.Is(err, application.ErrNotFound):
		return http.StatusNotFound, errorResponse{ErrorCode: "NOT_FOUND", Message: "指定されたリソースが見つかりません。"}
	case errors.As(err, &conflict):
		return http.StatusConflict, errorResponse{
			ErrorCode: "BOOKING_SLOT_UNAVAILABLE",
			Message:   "指定された時間帯は既に予約されています。",
			Conflicts: toBookingDTOs(conflict.Conflicts),
		}
	case errors.Is(err, application.ErrSlotUnavailable):
		return http.StatusConflict, errorResponse{ErrorCode: "BOOKING_SLOT_UNAVAILABLE", Message: "指定された時間帯は既に予約されています。"}
	case errors.Is(err, application.ErrCapacityExceeded):
		return http.StatusConflict, errorResponse{ErrorCode: "BOOKING_CAPACITY_EXCEEDED", Message: "受講者数が教室の収容人数を超えています。"}
	case errors.Is(err, application.ErrAlreadyExists):
		return http.StatusConflict, errorResponse{ErrorCode: "USER_ALREADY_EXISTS", Message: "このメールアドレスは既に登録されています。"}
	case errors.Is(err, application.ErrNoFieldsProvided):
		return http.StatusBadRequest, errorResponse{ErrorCode: "NO_FIELDS_PROVIDED", Message: "更新する項目を指定してください。"}
	case errors.Is(err, application.ErrRoomInUse):
		return http.StatusBadRequest, errorResponse{ErrorCode: "ROOM_IN_USE", Message: "有効な予約がある教室は削除できません。"}
	case errors.Is(err, application.ErrSelfDeletion):
		return http.StatusBadRequest, errorResponse{ErrorCode: "USER_SELF_DELETION", Message: "自分自身のアカウントは削除できません。"}
	case errors.Is(err, scheduler.ErrInvalidStatus):
		return http.StatusBadRequest, errorResponse{ErrorCode: "BOOKING_INVALID_STATUS", Message: "無効な予約ステータスです。"}
	case errors.Is(err, scheduler.ErrInvalidTransition):
		return http.StatusBadRequest, errorResponse{ErrorCode: "BOOKING_INVALID_TRANSITION", Message: "このステータスには変更できません。"}
	case errors.Is(err, scheduler.ErrInvalidInterval):
		return http.StatusBadRequest, errorResponse{ErrorCode: "BOOKING_INVALID_INTERVAL", Message: "終了時刻は開始時刻より後である必要があります。"}
	case errors.As(err, &vErr):
		return http.StatusBadRequest, errorResponse{
			ErrorCode: "VALIDATION_FAILED",
			Message:   "入力内容に誤りがあります。",
			Errors:    localizeValidationErrors(vErr),
		}
	default:
		return http.StatusInternalServerError, errorResponse{Message: "サーバー内部でエラーが発生しました。"}
	}
}

func (r responder) loggerFor(ctx context.Context) *slog.Logger {
	if logger := logging.FromContext(ctx); logger != nil {
		return logger
	}
	return r.logger
}

func localizedStatusMessage(status int) string {
	switch status {
	case http.StatusBadRequest:
		return "リクエスト内容が正しくありません。"
	case http.StatusUnauthorized:
		return "認証が必要です。"
	case http.StatusForbidden:
		return "この操作を実行する権限がありません。"
	case http.StatusNotFound:
		return "指定されたリソースが見つかりません。"
	case http.StatusConflict:
		return "要求はリソースの現在の状態と競合しています。"
	case http.StatusTooManyRequests:
		return errRateLimitExceeded.Error()
	default:
		return "サーバー内部でエラーが発生しました。"
	}
}

func localizeValidationErrors(vErr *application.ValidationError) map[string]string {
	if vErr == nil || len(vErr.FieldErrors) == 0 {
		return nil
	}

	translated := make(map[string]string, len(vErr.FieldErrors))
	for field, msg := range vErr.FieldErrors {
		translated[field] = translateValidationMessage(msg)
	}
	return translated
}

func translateValidationMessage(message string) string {
	switch message {
	case "email is required":
		return "メールアドレスは必須です。"
	case "email is invalid":
		return "メールアドレスの形式が不正です。"
	case "password is required", "password must not be empty":
		return "パスワードは必須です。"
	case "name is required", "name must not be empty":
		return "名前は必須です。"
	case "role must be admin or instructor":
		return "ロールは admin または instructor を指定してください。"
	case "capacity must be positive":
		return "収容人数は正の整数で指定してください。"
	case "status must not be empty":
		return "ステータスは必須です。"
	case "room is required", "room must not be empty":
		return "教室は必須です。"
	case "class name is required", "class name must not be empty":
		return "クラス名は必須です。"
	case "date is required":
		return "日付は必須です。"
	case "date must be YYYY-MM-DD":
		return "日付は YYYY-MM-DD 形式で指定してください。"
	case "start time is required":
		return "開始時刻は必須です。"
	case "start time must be HH:MM":
		return "開始時刻は HH:MM 形式で指定してください。"
	case "end time is required":
		return "終了時刻は必須です。"
	case "end time must be HH:MM":
		return "終了時刻は HH:MM 形式で指定してください。"
	case "duration must be positive":
		return "時間数は正の値で指定してください。"
	case "student count must not be negative":
		return "受講者数は 0 以上で指定してください。"
	default:
		return message
	}
}

type errorResponse struct {
	ErrorCode string            `json:"error_code,omitempty"`
	Message   string            `json:"message"`
	Errors    map[string]string `json:"errors,omitempty"`
	Conflicts []bookingDTO      `json:"conflicts,omitempty"`
}
