// Package businessflow contains the core business logic and use cases for campaign workflows
package businessflow

import (
	"errors"
	"fmt"
)

// Business flow error constants
var (
	// Campaign-related errors
	ErrCampaignNotFound          = errors.New("campaign not found")
	ErrCampaignNameRequired      = errors.New("campaign name is required")
	ErrTemplateNameRequired      = errors.New("template name is required")
	ErrDuplicateTemplateName     = errors.New("template name already exists")
	ErrMessageBodyRequired       = errors.New("message body is required")
	ErrScheduleTimeRequired      = errors.New("schedule time is required")
	ErrInvalidScheduleTime       = errors.New("schedule time is invalid")
	ErrUnknownTimezone           = errors.New("timezone is unknown")
	ErrCampaignUUIDRequired      = errors.New("campaign UUID is required")
	ErrCampaignUpdateRequired    = errors.New("at least one field must be provided for update")
	ErrCampaignAlreadyInState    = errors.New("campaign is already in the requested state")
	ErrOccurrenceAlreadyAdvanced = errors.New("occurrence was already advanced")

	// Audience-related errors
	ErrEmptyAudience = errors.New("campaign audience is empty")

	// Filter errors
	ErrInvalidPage     = errors.New("page must be at least 1")
	ErrInvalidPageSize = errors.New("page size must be between 1 and 100")
)

type BusinessError struct {
	Code    string
	Message string
	Err     error
}

func (e *BusinessError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *BusinessError) Unwrap() error {
	return e.Err
}

func NewBusinessError(code, message string, err error) *BusinessError {
	return &BusinessError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

func NewBusinessErrorf(code, message string, err error, args ...any) *BusinessError {
	return &BusinessError{
		Code:    code,
		Message: fmt.Sprintf(message, args...),
		Err:     err,
	}
}

func IsCampaignNotFound(err error) bool {
	return errors.Is(err, ErrCampaignNotFound)
}

func IsCampaignNameRequired(err error) bool {
	return errors.Is(err, ErrCampaignNameRequired)
}

func IsTemplateNameRequired(err error) bool {
	return errors.Is(err, ErrTemplateNameRequired)
}

func IsDuplicateTemplateName(err error) bool {
	return errors.Is(err, ErrDuplicateTemplateName)
}

func IsMessageBodyRequired(err error) bool {
	return errors.Is(err, ErrMessageBodyRequired)
}

func IsScheduleTimeRequired(err error) bool {
	return errors.Is(err, ErrScheduleTimeRequired)
}

func IsInvalidScheduleTime(err error) bool {
	return errors.Is(err, ErrInvalidScheduleTime)
}

func IsUnknownTimezone(err error) bool {
	return errors.Is(err, ErrUnknownTimezone)
}

func IsCampaignUUIDRequired(err error) bool {
	return errors.Is(err, ErrCampaignUUIDRequired)
}

func IsCampaignUpdateRequired(err error) bool {
	return errors.Is(err, ErrCampaignUpdateRequired)
}

func IsCampaignAlreadyInState(err error) bool {
	return errors.Is(err, ErrCampaignAlreadyInState)
}

func IsOccurrenceAlreadyAdvanced(err error) bool {
	return errors.Is(err, ErrOccurrenceAlreadyAdvanced)
}

func IsEmptyAudience(err error) bool {
	return errors.Is(err, ErrEmptyAudience)
}

func IsInvalidPage(err error) bool {
	return errors.Is(err, ErrInvalidPage)
}

func IsInvalidPageSize(err error) bool {
	return errors.Is(err, ErrInvalidPageSize)
}
