package repository

import (
	"context"
	"errors"
	"time"

	"github.com/bjohnson312/hi-emma-MVP-sub000/models"
	"github.com/bjohnson312/hi-emma-MVP-sub000/utils"
	"gorm.io/gorm"
)

// CampaignRepositoryImpl implements the CampaignRepository interface
type CampaignRepositoryImpl struct {
	*BaseRepository[models.Campaign, models.CampaignFilter]
}

// NewCampaignRepository creates a new campaign repository
func NewCampaignRepository(db *gorm.DB) CampaignRepository {
	return &CampaignRepositoryImpl{
		BaseRepository: NewBaseRepository[models.Campaign, models.CampaignFilter](db),
	}
}

// ByUUID retrieves a campaign by UUID
func (r *CampaignRepositoryImpl) ByUUID(ctx context.Context, id string) (*models.Campaign, error) {
	parsedUUID, err := utils.ParseUUID(id)
	if err != nil {
		return nil, err
	}

	filter := models.CampaignFilter{UUID: &parsedUUID}
	campaigns, err := r.ByFilter(ctx, filter, "", 0, 0)
	if err != nil {
		return nil, err
	}

	if len(campaigns) == 0 {
		return nil, nil
	}

	return campaigns[0], nil
}

// ByTemplateName retrieves a campaign by its unique template name
func (r *CampaignRepositoryImpl) ByTemplateName(ctx context.Context, templateName string) (*models.Campaign, error) {
	db := r.getDB(ctx)

	var campaign models.Campaign
	err := db.Where("template_name = ? AND deleted_at IS NULL", templateName).
		First(&campaign).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}

	return &campaign, nil
}

// Update updates a campaign
func (r *CampaignRepositoryImpl) Update(ctx context.Context, campaign models.Campaign) error {
	db, shouldCommit, err := r.getDBForWrite(ctx)
	if err != nil {
		return err
	}

	if shouldCommit {
		defer func() {
			if err != nil {
				db.Rollback()
			} else {
				db.Commit()
			}
		}()
	}

	// Set updated_at timestamp
	now := utils.UTCNow()
	campaign.UpdatedAt = &now

	err = db.Save(&campaign).Error
	if err != nil {
		return err
	}

	return nil
}

// MarkDeleted soft-deletes a campaign and stops future dispatches
func (r *CampaignRepositoryImpl) MarkDeleted(ctx context.Context, id uint) error {
	db := r.getDB(ctx)
	now := utils.UTCNow()
	return db.Model(&models.Campaign{}).
		Where("id = ? AND deleted_at IS NULL", id).
		Updates(map[string]any{
			"deleted_at":  now,
			"is_active":   false,
			"next_run_at": nil,
			"updated_at":  now,
		}).Error
}

// ListDue retrieves active campaigns with a pending, unclaimed occurrence
func (r *CampaignRepositoryImpl) ListDue(ctx context.Context, now time.Time, limit int) ([]*models.Campaign, error) {
	db := r.getDB(ctx)

	var campaigns []*models.Campaign
	query := db.
		Where("deleted_at IS NULL").
		Where("is_active = ?", true).
		Where("next_run_at IS NOT NULL AND next_run_at <= ?", now).
		Where("claimed_until IS NULL OR claimed_until < ?", now).
		Order("next_run_at ASC")
	if limit > 0 {
		query = query.Limit(limit)
	}

	err := query.Find(&campaigns).Error
	if err != nil {
		return nil, err
	}

	return campaigns, nil
}

// ClaimDue atomically acquires the dispatch lease for one occurrence. The
// WHERE clause re-checks everything ListDue saw, so with several dispatcher
// instances racing, exactly one UPDATE matches.
func (r *CampaignRepositoryImpl) ClaimDue(ctx context.Context, id uint, occurrence, now, leaseUntil time.Time) (bool, error) {
	db := r.getDB(ctx)

	res := db.Model(&models.Campaign{}).
		Where("id = ?", id).
		Where("deleted_at IS NULL").
		Where("is_active = ?", true).
		Where("next_run_at = ?", occurrence).
		Where("claimed_until IS NULL OR claimed_until < ?", now).
		Updates(map[string]any{
			"claimed_until": leaseUntil,
			"updated_at":    utils.UTCNow(),
		})
	if res.Error != nil {
		return false, res.Error
	}

	return res.RowsAffected == 1, nil
}

// AdvanceNextRun moves the campaign past a dispatched occurrence. Conditional
// on next_run_at still being that occurrence, so a duplicate advance (crash
// replay, expired lease) affects zero rows and reports false.
func (r *CampaignRepositoryImpl) AdvanceNextRun(ctx context.Context, id uint, occurrence, next time.Time) (bool, error) {
	db := r.getDB(ctx)

	res := db.Model(&models.Campaign{}).
		Where("id = ?", id).
		Where("next_run_at = ?", occurrence).
		Updates(map[string]any{
			"next_run_at":   next,
			"claimed_until": nil,
			"updated_at":    utils.UTCNow(),
		})
	if res.Error != nil {
		return false, res.Error
	}

	return res.RowsAffected == 1, nil
}

// ReleaseClaim drops the lease for an occurrence without advancing it
func (r *CampaignRepositoryImpl) ReleaseClaim(ctx context.Context, id uint, occurrence time.Time) error {
	db := r.getDB(ctx)

	return db.Model(&models.Campaign{}).
		Where("id = ?", id).
		Where("next_run_at = ?", occurrence).
		Updates(map[string]any{
			"claimed_until": nil,
			"updated_at":    utils.UTCNow(),
		}).Error
}

// ByFilter retrieves campaigns based on filter criteria
func (r *CampaignRepositoryImpl) ByFilter(ctx context.Context, filter models.CampaignFilter, orderBy string, limit, offset int) ([]*models.Campaign, error) {
	db := r.getDB(ctx)

	var campaigns []*models.Campaign
	query := r.applyFilter(db, filter)

	// Apply ordering
	if orderBy != "" {
		query = query.Order(orderBy)
	}

	// Apply pagination
	if limit > 0 {
		query = query.Limit(limit)
	}
	if offset > 0 {
		query = query.Offset(offset)
	}

	err := query.Find(&campaigns).Error
	if err != nil {
		return nil, err
	}

	return campaigns, nil
}

// Count returns the number of campaigns matching the filter
func (r *CampaignRepositoryImpl) Count(ctx context.Context, filter models.CampaignFilter) (int64, error) {
	db := r.getDB(ctx)

	var count int64
	var campaign models.Campaign
	query := r.applyFilter(db.Model(&campaign), filter)

	err := query.Count(&count).Error
	if err != nil {
		return 0, err
	}

	return count, nil
}

// Exists checks if any campaign matching the filter exists
func (r *CampaignRepositoryImpl) Exists(ctx context.Context, filter models.CampaignFilter) (bool, error) {
	count, err := r.Count(ctx, filter)
	if err != nil {
		return false, err
	}

	return count > 0, nil
}

// applyFilter applies filter conditions to the GORM query
func (r *CampaignRepositoryImpl) applyFilter(db *gorm.DB, filter models.CampaignFilter) *gorm.DB {
	if !filter.IncludeDeleted {
		db = db.Where("deleted_at IS NULL")
	}
	if filter.ID != nil {
		db = db.Where("id = ?", *filter.ID)
	}
	if filter.UUID != nil {
		db = db.Where("uuid = ?", *filter.UUID)
	}
	if filter.TemplateName != nil {
		db = db.Where("template_name = ?", *filter.TemplateName)
	}
	if filter.IsActive != nil {
		db = db.Where("is_active = ?", *filter.IsActive)
	}
	if filter.DueBefore != nil {
		db = db.Where("next_run_at IS NOT NULL AND next_run_at <= ?", *filter.DueBefore)
	}
	if filter.CreatedAfter != nil {
		db = db.Where("created_at >= ?", *filter.CreatedAfter)
	}
	if filter.CreatedBefore != nil {
		db = db.Where("created_at < ?", *filter.CreatedBefore)
	}

	return db
}
