package repository

import (
	"context"
	"time"

	"github.com/bjohnson312/hi-emma-MVP-sub000/models"
	"gorm.io/gorm"
)

// CampaignSendRepositoryImpl implements the CampaignSendRepository interface
type CampaignSendRepositoryImpl struct {
	*BaseRepository[models.CampaignSend, models.CampaignSendFilter]
}

// NewCampaignSendRepository creates a new campaign send repository
func NewCampaignSendRepository(db *gorm.DB) CampaignSendRepository {
	return &CampaignSendRepositoryImpl{
		BaseRepository: NewBaseRepository[models.CampaignSend, models.CampaignSendFilter](db),
	}
}

// ListRecentByCampaign retrieves the most recent sends for a campaign, newest first
func (r *CampaignSendRepositoryImpl) ListRecentByCampaign(ctx context.Context, campaignID uint, limit int) ([]*models.CampaignSend, error) {
	filter := models.CampaignSendFilter{CampaignID: &campaignID}
	return r.ByFilter(ctx, filter, "sent_at DESC, id DESC", limit, 0)
}

// CountByCampaign counts every send record over the campaign's lifetime,
// whatever its status: a failed or skipped attempt is still a send record
func (r *CampaignSendRepositoryImpl) CountByCampaign(ctx context.Context, campaignID uint) (int64, error) {
	filter := models.CampaignSendFilter{CampaignID: &campaignID}
	return r.Count(ctx, filter)
}

// CountBetween counts send records of any status in [from, to)
func (r *CampaignSendRepositoryImpl) CountBetween(ctx context.Context, campaignID uint, from, to time.Time) (int64, error) {
	filter := models.CampaignSendFilter{
		CampaignID: &campaignID,
		SentAfter:  &from,
		SentBefore: &to,
	}
	return r.Count(ctx, filter)
}

// CountDelivered counts only the delivered subset, for the stats breakdown
func (r *CampaignSendRepositoryImpl) CountDelivered(ctx context.Context, campaignID uint) (int64, error) {
	status := models.SendStatusDelivered
	filter := models.CampaignSendFilter{CampaignID: &campaignID, Status: &status}
	return r.Count(ctx, filter)
}

// LastSentAt returns the timestamp of the most recent send attempt of any
// status, or nil when the campaign has no send history
func (r *CampaignSendRepositoryImpl) LastSentAt(ctx context.Context, campaignID uint) (*time.Time, error) {
	db := r.getDB(ctx)

	var last *time.Time
	err := db.Model(&models.CampaignSend{}).
		Where("campaign_id = ?", campaignID).
		Select("MAX(sent_at)").
		Scan(&last).Error
	if err != nil {
		return nil, err
	}

	return last, nil
}

// DeliveredUserIDs returns the set of users already delivered for an occurrence
func (r *CampaignSendRepositoryImpl) DeliveredUserIDs(ctx context.Context, campaignID uint, occurrence time.Time) (map[uint]struct{}, error) {
	db := r.getDB(ctx)

	var ids []uint
	err := db.Model(&models.CampaignSend{}).
		Where("campaign_id = ? AND occurrence_at = ? AND status = ?",
			campaignID, occurrence, models.SendStatusDelivered).
		Pluck("user_id", &ids).Error
	if err != nil {
		return nil, err
	}

	out := make(map[uint]struct{}, len(ids))
	for _, id := range ids {
		out[id] = struct{}{}
	}
	return out, nil
}

// ByFilter retrieves sends based on filter criteria
func (r *CampaignSendRepositoryImpl) ByFilter(ctx context.Context, filter models.CampaignSendFilter, orderBy string, limit, offset int) ([]*models.CampaignSend, error) {
	db := r.getDB(ctx)

	var sends []*models.CampaignSend
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

	err := query.Find(&sends).Error
	if err != nil {
		return nil, err
	}

	return sends, nil
}

// Count returns the number of sends matching the filter
func (r *CampaignSendRepositoryImpl) Count(ctx context.Context, filter models.CampaignSendFilter) (int64, error) {
	db := r.getDB(ctx)

	var count int64
	var send models.CampaignSend
	query := r.applyFilter(db.Model(&send), filter)

	err := query.Count(&count).Error
	if err != nil {
		return 0, err
	}

	return count, nil
}

// Exists checks if any send matching the filter exists
func (r *CampaignSendRepositoryImpl) Exists(ctx context.Context, filter models.CampaignSendFilter) (bool, error) {
	count, err := r.Count(ctx, filter)
	if err != nil {
		return false, err
	}

	return count > 0, nil
}

// applyFilter applies filter conditions to the GORM query
func (r *CampaignSendRepositoryImpl) applyFilter(db *gorm.DB, filter models.CampaignSendFilter) *gorm.DB {
	if filter.ID != nil {
		db = db.Where("id = ?", *filter.ID)
	}
	if filter.CampaignID != nil {
		db = db.Where("campaign_id = ?", *filter.CampaignID)
	}
	if filter.UserID != nil {
		db = db.Where("user_id = ?", *filter.UserID)
	}
	if filter.Status != nil {
		db = db.Where("status = ?", *filter.Status)
	}
	if filter.OccurrenceAt != nil {
		db = db.Where("occurrence_at = ?", *filter.OccurrenceAt)
	}
	if filter.SentAfter != nil {
		db = db.Where("sent_at >= ?", *filter.SentAfter)
	}
	if filter.SentBefore != nil {
		db = db.Where("sent_at < ?", *filter.SentBefore)
	}

	return db
}
