// Package repository provides data access layer implementations and interfaces for database operations
package repository

import (
	"context"
	"time"

	"github.com/bjohnson312/hi-emma-MVP-sub000/models"
)

// RepositoryContext key for transaction in context
type contextKey string

const TxContextKey contextKey = "tx"

type Repository[T any, F any] interface {
	ByID(ctx context.Context, id uint) (*T, error)
	ByFilter(ctx context.Context, filter F, orderBy string, limit, offset int) ([]*T, error)
	Save(ctx context.Context, entity *T) error
	SaveBatch(ctx context.Context, entities []*T) error
	Count(ctx context.Context, filter F) (int64, error)
	Exists(ctx context.Context, filter F) (bool, error)
}

// CampaignRepository defines operations for campaigns, including the
// conditional updates the dispatcher relies on for single-owner claims.
type CampaignRepository interface {
	Repository[models.Campaign, models.CampaignFilter]
	ByUUID(ctx context.Context, uuid string) (*models.Campaign, error)
	ByTemplateName(ctx context.Context, templateName string) (*models.Campaign, error)
	Update(ctx context.Context, campaign models.Campaign) error
	MarkDeleted(ctx context.Context, id uint) error

	// ListDue returns active campaigns whose next occurrence is at or before
	// now and whose claim lease (if any) has expired.
	ListDue(ctx context.Context, now time.Time, limit int) ([]*models.Campaign, error)

	// ClaimDue atomically takes ownership of the occurrence identified by
	// (id, occurrence). It succeeds only if next_run_at still equals the
	// occurrence and no live lease exists; exactly one contender wins.
	ClaimDue(ctx context.Context, id uint, occurrence, now, leaseUntil time.Time) (bool, error)

	// AdvanceNextRun moves next_run_at past the dispatched occurrence and
	// clears the lease. Conditional on next_run_at so replays are no-ops.
	AdvanceNextRun(ctx context.Context, id uint, occurrence, next time.Time) (bool, error)

	// ReleaseClaim drops the lease without advancing, so the occurrence can
	// be retried before the lease would have expired.
	ReleaseClaim(ctx context.Context, id uint, occurrence time.Time) error
}

// CampaignSendRepository defines operations for the append-only send history
type CampaignSendRepository interface {
	Repository[models.CampaignSend, models.CampaignSendFilter]
	ListRecentByCampaign(ctx context.Context, campaignID uint, limit int) ([]*models.CampaignSend, error)

	// CountByCampaign and CountBetween count every send record regardless of
	// status; failed and skipped attempts are part of the send history.
	CountByCampaign(ctx context.Context, campaignID uint) (int64, error)
	CountBetween(ctx context.Context, campaignID uint, from, to time.Time) (int64, error)
	CountDelivered(ctx context.Context, campaignID uint) (int64, error)

	// LastSentAt returns the most recent sent_at across all statuses, or nil
	// when the campaign has no send history.
	LastSentAt(ctx context.Context, campaignID uint) (*time.Time, error)

	// DeliveredUserIDs returns the recipients already delivered for the
	// given occurrence, used to skip duplicates when an occurrence is
	// reclaimed after a crash.
	DeliveredUserIDs(ctx context.Context, campaignID uint, occurrence time.Time) (map[uint]struct{}, error)
}

// UserRepository defines operations for users
type UserRepository interface {
	Repository[models.User, models.UserFilter]
	ByIDs(ctx context.Context, ids []uint) ([]*models.User, error)
	ListActiveWithPhone(ctx context.Context) ([]*models.User, error)
}
