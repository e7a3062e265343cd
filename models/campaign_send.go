package models

import (
	"database/sql/driver"
	"fmt"
	"time"

	"github.com/bjohnson312/hi-emma-MVP-sub000/utils"
	"gorm.io/gorm"
)

// SendStatus represents the outcome of a single dispatch attempt
type SendStatus string

const (
	SendStatusDelivered SendStatus = "delivered"
	SendStatusFailed    SendStatus = "failed"
	SendStatusSkipped   SendStatus = "skipped"
)

// String returns the string representation of the status
func (s SendStatus) String() string {
	return string(s)
}

// Valid checks if the status is valid
func (s SendStatus) Valid() bool {
	switch s {
	case SendStatusDelivered, SendStatusFailed, SendStatusSkipped:
		return true
	default:
		return false
	}
}

// Scan implements the sql.Scanner interface for SendStatus
func (s *SendStatus) Scan(value any) error {
	if value == nil {
		*s = ""
		return nil
	}

	switch v := value.(type) {
	case string:
		*s = SendStatus(v)
	case []byte:
		*s = SendStatus(string(v))
	default:
		return fmt.Errorf("cannot scan %T into SendStatus", value)
	}

	return nil
}

// Value implements the driver.Valuer interface for SendStatus
func (s SendStatus) Value() (driver.Value, error) {
	if !s.Valid() {
		return nil, fmt.Errorf("invalid SendStatus: %s", s)
	}
	return string(s), nil
}

// CampaignSend is one row of append-only dispatch history. OccurrenceAt is
// the scheduled UTC instant the row belongs to; together with CampaignID and
// UserID it identifies the attempt for reclaim-time idempotency checks.
// Rows are never updated or deleted.
type CampaignSend struct {
	ID           uint       `gorm:"primaryKey" json:"id"`
	CampaignID   uint       `gorm:"not null;index:idx_campaign_sends_campaign_id;index:idx_campaign_sends_occurrence,priority:1" json:"campaign_id"`
	UserID       uint       `gorm:"not null;index:idx_campaign_sends_occurrence,priority:3" json:"user_id"`
	PhoneNumber  string     `gorm:"type:varchar(32);not null" json:"phone_number"`
	OccurrenceAt time.Time  `gorm:"not null;index:idx_campaign_sends_occurrence,priority:2" json:"occurrence_at"`
	Status       SendStatus `gorm:"type:varchar(16);not null" json:"status"`
	ProviderID   *string    `gorm:"type:varchar(128)" json:"provider_id,omitempty"`
	ErrorMessage *string    `gorm:"type:text" json:"error_message,omitempty"`
	SentAt       time.Time  `gorm:"not null;index:idx_campaign_sends_sent_at" json:"sent_at"`

	// Relations
	Campaign *Campaign `gorm:"foreignKey:CampaignID;references:ID" json:"campaign,omitempty"`
}

// TableName returns the table name for the model
func (CampaignSend) TableName() string {
	return "campaign_sends"
}

// BeforeCreate is called before creating a new record
func (s *CampaignSend) BeforeCreate(tx *gorm.DB) error {
	if s.SentAt.IsZero() {
		s.SentAt = utils.UTCNow()
	}
	return nil
}

// CampaignSendFilter represents filter criteria for campaign sends
type CampaignSendFilter struct {
	ID           *uint       `json:"id,omitempty"`
	CampaignID   *uint       `json:"campaign_id,omitempty"`
	UserID       *uint       `json:"user_id,omitempty"`
	Status       *SendStatus `json:"status,omitempty"`
	OccurrenceAt *time.Time  `json:"occurrence_at,omitempty"`
	SentAfter    *time.Time  `json:"sent_after,omitempty"`
	SentBefore   *time.Time  `json:"sent_before,omitempty"`
}
