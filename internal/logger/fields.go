package logger

import (
	"strconv"
	"strings"

	"go.uber.org/zap"
)

// Structured log keys shared across packages.
const (
	FieldProvider = "ai_provider"
	FieldModel    = "ai_model"

	FieldJobID   = "job_id"
	FieldJobKind = "job_kind"

	FieldRole   = "role"
	FieldUserID = "user_id"

	FieldVacancyID     = "vacancy_id"
	FieldNegotiationID = "negotiation_id"
	FieldResumeID      = "resume_id"
)

// StringField is a key/value pair for StringFields.
type StringField struct {
	Key   string
	Value string
}

// StringFields turns pairs into zap fields. Pairs with a blank key or value
// are skipped.
func StringFields(pairs ...StringField) []zap.Field {
	var fields []zap.Field
	for _, p := range pairs {
		key, value := strings.TrimSpace(p.Key), strings.TrimSpace(p.Value)
		if key == "" || value == "" {
			continue
		}
		fields = append(fields, zap.String(key, value))
	}
	return fields
}

// WithFields returns log with fields attached. A nil log becomes a no-op
// logger.
func WithFields(log *zap.Logger, fields ...zap.Field) *zap.Logger {
	switch {
	case log == nil:
		log = zap.NewNop()
	case len(fields) == 0:
		return log
	}
	return log.With(fields...)
}

// AIFields names the model behind a request.
func AIFields(provider, model string) []zap.Field {
	return StringFields(
		StringField{FieldProvider, provider},
		StringField{FieldModel, model},
	)
}

// JobFields describes a task queue job. The id is optional.
func JobFields(id, kind string) []zap.Field {
	return StringFields(
		StringField{FieldJobID, id},
		StringField{FieldJobKind, kind},
	)
}

// UserFields identifies the telegram user a conversation belongs to.
func UserFields(role string, userID int64) []zap.Field {
	fields := StringFields(StringField{FieldRole, role})
	if userID != 0 {
		fields = append(fields, zap.String(FieldUserID, strconv.FormatInt(userID, 10)))
	}
	return fields
}

func Vacancy(id string) zap.Field { return zap.String(FieldVacancyID, id) }
func Negotiation(id string) zap.Field { return zap.String(FieldNegotiationID, id) }
func Resume(id string) zap.Field { return zap.String(FieldResumeID, id) }
