package models

import (
	"time"

	"github.com/bjohnson312/hi-emma-MVP-sub000/utils"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// User represents a message recipient. PhoneNumber is nullable: users
// without a phone on file exist but are never part of a dispatch audience.
type User struct {
	ID          uint       `gorm:"primaryKey" json:"id"`
	UUID        uuid.UUID  `gorm:"type:uuid;not null;uniqueIndex:uk_users_uuid" json:"uuid"`
	FirstName   string     `gorm:"type:varchar(100);not null" json:"first_name"`
	LastName    string     `gorm:"type:varchar(100);not null" json:"last_name"`
	PhoneNumber *string    `gorm:"type:varchar(32);index:idx_users_phone_number" json:"phone_number,omitempty"`
	IsActive    *bool      `gorm:"not null;default:true" json:"is_active"`
	CreatedAt   time.Time  `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC')" json:"created_at"`
	UpdatedAt   *time.Time `json:"updated_at,omitempty"`
}

// TableName returns the table name for the model
func (User) TableName() string {
	return "users"
}

// BeforeCreate is called before creating a new record
func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.UUID == uuid.Nil {
		u.UUID = uuid.New()
	}
	if u.IsActive == nil {
		u.IsActive = utils.ToPtr(true)
	}
	if u.CreatedAt.IsZero() {
		u.CreatedAt = utils.UTCNow()
	}
	return nil
}

// BeforeUpdate is called before updating a record
func (u *User) BeforeUpdate(tx *gorm.DB) error {
	now := utils.UTCNow()
	u.UpdatedAt = &now
	return nil
}

// HasPhone reports whether the user can receive text messages.
func (u *User) HasPhone() bool {
	return u.PhoneNumber != nil && *u.PhoneNumber != ""
}

// FullName returns the user's display name
func (u *User) FullName() string {
	return u.FirstName + " " + u.LastName
}

// UserFilter represents filter criteria for users
type UserFilter struct {
	ID       *uint      `json:"id,omitempty"`
	UUID     *uuid.UUID `json:"uuid,omitempty"`
	IDs      []uint     `json:"ids,omitempty"`
	IsActive *bool      `json:"is_active,omitempty"`
	HasPhone *bool      `json:"has_phone,omitempty"`
}
