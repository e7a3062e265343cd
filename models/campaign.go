package models

import (
	"time"

	"github.com/bjohnson312/hi-emma-MVP-sub000/utils"
	"github.com/google/uuid"
	"github.com/lib/pq"
	"gorm.io/gorm"
)

// DefaultTimezone is assumed for campaigns created without an explicit zone.
const DefaultTimezone = "America/New_York"

// Campaign represents a recurring daily message campaign in the database.
// ScheduleTime and Timezone together define the local wall-clock send time;
// NextRunAt is the precomputed UTC instant of the next occurrence and is the
// only value the dispatcher polls on.
type Campaign struct {
	ID            uint          `gorm:"primaryKey" json:"id"`
	UUID          uuid.UUID     `gorm:"type:uuid;not null;uniqueIndex:uk_campaigns_uuid" json:"uuid"`
	Name          string        `gorm:"type:varchar(255);not null" json:"name"`
	TemplateName  string        `gorm:"type:varchar(255);not null;uniqueIndex:uk_campaigns_template_name" json:"template_name"`
	MessageBody   string        `gorm:"type:text;not null" json:"message_body"`
	ScheduleTime  TimeOfDay     `gorm:"type:varchar(5);not null" json:"schedule_time"`
	Timezone      string        `gorm:"type:varchar(64);not null;default:'America/New_York'" json:"timezone"`
	IsActive      *bool         `gorm:"not null;default:true;index:idx_campaigns_is_active" json:"is_active"`
	TargetUserIDs pq.Int64Array `gorm:"type:bigint[]" json:"target_user_ids"`
	NextRunAt     *time.Time    `gorm:"index:idx_campaigns_next_run_at" json:"next_run_at,omitempty"`
	ClaimedUntil  *time.Time    `json:"claimed_until,omitempty"`
	CreatedAt     time.Time     `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC')" json:"created_at"`
	UpdatedAt     *time.Time    `json:"updated_at,omitempty"`
	DeletedAt     *time.Time    `gorm:"index:idx_campaigns_deleted_at" json:"deleted_at,omitempty"`
}

// TableName returns the table name for the model
func (Campaign) TableName() string {
	return "campaigns"
}

// BeforeCreate is called before creating a new record
func (c *Campaign) BeforeCreate(tx *gorm.DB) error {
	if c.UUID == uuid.Nil {
		c.UUID = uuid.New()
	}
	if c.Timezone == "" {
		c.Timezone = DefaultTimezone
	}
	if c.IsActive == nil {
		c.IsActive = utils.ToPtr(true)
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = utils.UTCNow()
	}
	return nil
}

// BeforeUpdate is called before updating a record
func (c *Campaign) BeforeUpdate(tx *gorm.DB) error {
	now := utils.UTCNow()
	c.UpdatedAt = &now
	return nil
}

// Location resolves the campaign's IANA timezone.
func (c *Campaign) Location() (*time.Location, error) {
	tz := c.Timezone
	if tz == "" {
		tz = DefaultTimezone
	}
	return time.LoadLocation(tz)
}

// IsTargeted reports whether the campaign addresses an explicit user subset
// rather than every user with a phone number on file.
func (c *Campaign) IsTargeted() bool {
	return len(c.TargetUserIDs) > 0
}

// IsDue reports whether the campaign has a pending occurrence at or before now.
func (c *Campaign) IsDue(now time.Time) bool {
	return utils.IsTrue(c.IsActive) && c.NextRunAt != nil && !c.NextRunAt.After(now)
}

// CampaignFilter represents filter criteria for campaigns
type CampaignFilter struct {
	ID            *uint      `json:"id,omitempty"`
	UUID          *uuid.UUID `json:"uuid,omitempty"`
	TemplateName  *string    `json:"template_name,omitempty"`
	IsActive      *bool      `json:"is_active,omitempty"`
	DueBefore     *time.Time `json:"due_before,omitempty"`
	CreatedAfter  *time.Time `json:"created_after,omitempty"`
	CreatedBefore *time.Time `json:"created_before,omitempty"`
	IncludeDeleted bool      `json:"include_deleted,omitempty"`
}
