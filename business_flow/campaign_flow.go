// Package businessflow contains the core business logic and use cases for campaign workflows
package businessflow

import (
	"context"
	"time"

	"github.com/bjohnson312/hi-emma-MVP-sub000/app/dto"
	"github.com/bjohnson312/hi-emma-MVP-sub000/models"
	"github.com/bjohnson312/hi-emma-MVP-sub000/repository"
	"github.com/bjohnson312/hi-emma-MVP-sub000/utils"
	"github.com/lib/pq"
	"gorm.io/gorm"
)

// CampaignFlow handles the campaign lifecycle business logic. Every
// transition that touches the next occurrence goes through computeNextRun so
// the scheduling rules live in exactly one place.
type CampaignFlow interface {
	CreateCampaign(ctx context.Context, req *dto.CreateCampaignRequest, metadata *ClientMetadata) (*dto.CreateCampaignResponse, error)
	UpdateCampaign(ctx context.Context, req *dto.UpdateCampaignRequest, metadata *ClientMetadata) (*dto.UpdateCampaignResponse, error)
	ToggleCampaign(ctx context.Context, req *dto.ToggleCampaignRequest, metadata *ClientMetadata) (*dto.ToggleCampaignResponse, error)
	GetCampaign(ctx context.Context, campaignUUID string, metadata *ClientMetadata) (*dto.CampaignDTO, error)
	ListCampaigns(ctx context.Context, req *dto.ListCampaignsRequest, metadata *ClientMetadata) (*dto.ListCampaignsResponse, error)
	DeleteCampaign(ctx context.Context, campaignUUID string, metadata *ClientMetadata) (*dto.DeleteCampaignResponse, error)

	// AdvanceAfterDispatch moves the campaign past a dispatched occurrence.
	// The new occurrence is derived from the dispatched one, not from the
	// wall clock, so late dispatches do not drift the schedule.
	AdvanceAfterDispatch(ctx context.Context, campaign *models.Campaign, occurrence time.Time) (time.Time, error)
}

// CampaignFlowImpl implements the campaign business flow
type CampaignFlowImpl struct {
	campaignRepo repository.CampaignRepository
	db           *gorm.DB
}

// NewCampaignFlow creates a new campaign flow instance
func NewCampaignFlow(
	campaignRepo repository.CampaignRepository,
	db *gorm.DB,
) CampaignFlow {
	return &CampaignFlowImpl{
		campaignRepo: campaignRepo,
		db:           db,
	}
}

// CreateCampaign handles the complete campaign creation process
func (s *CampaignFlowImpl) CreateCampaign(ctx context.Context, req *dto.CreateCampaignRequest, metadata *ClientMetadata) (*dto.CreateCampaignResponse, error) {
	schedule, loc, err := s.validateSchedule(req.ScheduleTime, req.Timezone)
	if err != nil {
		return nil, NewBusinessError("CAMPAIGN_VALIDATION_FAILED", "Campaign validation failed", err)
	}

	if req.Name == "" {
		return nil, NewBusinessError("CAMPAIGN_VALIDATION_FAILED", "Campaign validation failed", ErrCampaignNameRequired)
	}
	if req.TemplateName == "" {
		return nil, NewBusinessError("CAMPAIGN_VALIDATION_FAILED", "Campaign validation failed", ErrTemplateNameRequired)
	}
	if req.MessageBody == "" {
		return nil, NewBusinessError("CAMPAIGN_VALIDATION_FAILED", "Campaign validation failed", ErrMessageBodyRequired)
	}

	var campaign *models.Campaign

	err = repository.WithTransaction(ctx, s.db, func(txCtx context.Context) error {
		existing, err := s.campaignRepo.ByTemplateName(txCtx, req.TemplateName)
		if err != nil {
			return err
		}
		if existing != nil {
			return ErrDuplicateTemplateName
		}

		isActive := true
		if req.IsActive != nil {
			isActive = *req.IsActive
		}

		tz := req.Timezone
		if tz == "" {
			tz = models.DefaultTimezone
		}

		campaign = &models.Campaign{
			Name:          req.Name,
			TemplateName:  req.TemplateName,
			MessageBody:   req.MessageBody,
			ScheduleTime:  schedule,
			Timezone:      tz,
			IsActive:      utils.ToPtr(isActive),
			TargetUserIDs: toInt64Array(req.TargetUserIDs),
		}

		// Inactive campaigns carry no pending occurrence.
		if isActive {
			next := utils.NextOccurrence(schedule.Hour, schedule.Minute, loc, utils.UTCNow())
			campaign.NextRunAt = &next
		}

		return s.campaignRepo.Save(txCtx, campaign)
	})

	if err != nil {
		if IsDuplicateTemplateName(err) {
			return nil, NewBusinessError("DUPLICATE_TEMPLATE_NAME", "Template name already exists", err)
		}
		return nil, NewBusinessError("CAMPAIGN_CREATION_FAILED", "Campaign creation failed", err)
	}

	return &dto.CreateCampaignResponse{
		Message:  "Campaign created successfully",
		Campaign: ToCampaignDTO(*campaign),
	}, nil
}

// UpdateCampaign handles partial edits. Editing the schedule time or the
// timezone of an active campaign recomputes the next occurrence from now;
// editing anything else leaves the pending occurrence untouched.
func (s *CampaignFlowImpl) UpdateCampaign(ctx context.Context, req *dto.UpdateCampaignRequest, metadata *ClientMetadata) (*dto.UpdateCampaignResponse, error) {
	if req.UUID == "" {
		return nil, NewBusinessError("CAMPAIGN_VALIDATION_FAILED", "Campaign validation failed", ErrCampaignUUIDRequired)
	}
	if req.Name == nil && req.TemplateName == nil && req.MessageBody == nil &&
		req.ScheduleTime == nil && req.Timezone == nil && req.TargetUserIDs == nil {
		return nil, NewBusinessError("CAMPAIGN_VALIDATION_FAILED", "Campaign validation failed", ErrCampaignUpdateRequired)
	}

	var updated *models.Campaign

	err := repository.WithTransaction(ctx, s.db, func(txCtx context.Context) error {
		campaign, err := s.campaignRepo.ByUUID(txCtx, req.UUID)
		if err != nil {
			return err
		}
		if campaign == nil {
			return ErrCampaignNotFound
		}

		if req.Name != nil {
			if *req.Name == "" {
				return ErrCampaignNameRequired
			}
			campaign.Name = *req.Name
		}
		if req.TemplateName != nil && *req.TemplateName != campaign.TemplateName {
			if *req.TemplateName == "" {
				return ErrTemplateNameRequired
			}
			other, err := s.campaignRepo.ByTemplateName(txCtx, *req.TemplateName)
			if err != nil {
				return err
			}
			if other != nil && other.ID != campaign.ID {
				return ErrDuplicateTemplateName
			}
			campaign.TemplateName = *req.TemplateName
		}
		if req.MessageBody != nil {
			if *req.MessageBody == "" {
				return ErrMessageBodyRequired
			}
			campaign.MessageBody = *req.MessageBody
		}
		if req.TargetUserIDs != nil {
			campaign.TargetUserIDs = toInt64Array(*req.TargetUserIDs)
		}

		scheduleChanged := false
		if req.ScheduleTime != nil {
			schedule, err := models.ParseTimeOfDay(*req.ScheduleTime)
			if err != nil {
				return ErrInvalidScheduleTime
			}
			if schedule != campaign.ScheduleTime {
				campaign.ScheduleTime = schedule
				scheduleChanged = true
			}
		}
		if req.Timezone != nil && *req.Timezone != campaign.Timezone {
			if _, err := utils.LoadTimezone(*req.Timezone); err != nil {
				return ErrUnknownTimezone
			}
			campaign.Timezone = *req.Timezone
			scheduleChanged = true
		}

		if scheduleChanged && utils.IsTrue(campaign.IsActive) {
			loc, err := campaign.Location()
			if err != nil {
				return ErrUnknownTimezone
			}
			next := utils.NextOccurrence(campaign.ScheduleTime.Hour, campaign.ScheduleTime.Minute, loc, utils.UTCNow())
			campaign.NextRunAt = &next
		}

		if err := s.campaignRepo.Update(txCtx, *campaign); err != nil {
			return err
		}

		updated = campaign
		return nil
	})

	if err != nil {
		if IsCampaignNotFound(err) {
			return nil, NewBusinessError("CAMPAIGN_NOT_FOUND", "Campaign not found", err)
		}
		if IsDuplicateTemplateName(err) {
			return nil, NewBusinessError("DUPLICATE_TEMPLATE_NAME", "Template name already exists", err)
		}
		return nil, NewBusinessError("CAMPAIGN_UPDATE_FAILED", "Campaign update failed", err)
	}

	return &dto.UpdateCampaignResponse{
		Message:  "Campaign updated successfully",
		Campaign: ToCampaignDTO(*updated),
	}, nil
}

// ToggleCampaign activates or deactivates a campaign. Activation computes a
// fresh next occurrence from now; deactivation clears it. Toggling to the
// state the campaign is already in is a no-op.
func (s *CampaignFlowImpl) ToggleCampaign(ctx context.Context, req *dto.ToggleCampaignRequest, metadata *ClientMetadata) (*dto.ToggleCampaignResponse, error) {
	if req.UUID == "" {
		return nil, NewBusinessError("CAMPAIGN_VALIDATION_FAILED", "Campaign validation failed", ErrCampaignUUIDRequired)
	}

	var updated *models.Campaign

	err := repository.WithTransaction(ctx, s.db, func(txCtx context.Context) error {
		campaign, err := s.campaignRepo.ByUUID(txCtx, req.UUID)
		if err != nil {
			return err
		}
		if campaign == nil {
			return ErrCampaignNotFound
		}

		if utils.IsTrue(campaign.IsActive) == req.IsActive {
			updated = campaign
			return nil
		}

		campaign.IsActive = utils.ToPtr(req.IsActive)
		if req.IsActive {
			loc, err := campaign.Location()
			if err != nil {
				return ErrUnknownTimezone
			}
			next := utils.NextOccurrence(campaign.ScheduleTime.Hour, campaign.ScheduleTime.Minute, loc, utils.UTCNow())
			campaign.NextRunAt = &next
		} else {
			campaign.NextRunAt = nil
			campaign.ClaimedUntil = nil
		}

		if err := s.campaignRepo.Update(txCtx, *campaign); err != nil {
			return err
		}

		updated = campaign
		return nil
	})

	if err != nil {
		if IsCampaignNotFound(err) {
			return nil, NewBusinessError("CAMPAIGN_NOT_FOUND", "Campaign not found", err)
		}
		return nil, NewBusinessError("CAMPAIGN_TOGGLE_FAILED", "Campaign toggle failed", err)
	}

	return &dto.ToggleCampaignResponse{
		Message:  "Campaign state updated",
		Campaign: ToCampaignDTO(*updated),
	}, nil
}

// GetCampaign retrieves a single campaign by UUID
func (s *CampaignFlowImpl) GetCampaign(ctx context.Context, campaignUUID string, metadata *ClientMetadata) (*dto.CampaignDTO, error) {
	if campaignUUID == "" {
		return nil, NewBusinessError("CAMPAIGN_VALIDATION_FAILED", "Campaign validation failed", ErrCampaignUUIDRequired)
	}

	campaign, err := s.campaignRepo.ByUUID(ctx, campaignUUID)
	if err != nil {
		return nil, NewBusinessError("CAMPAIGN_LOOKUP_FAILED", "Failed to lookup campaign", err)
	}
	if campaign == nil {
		return nil, NewBusinessError("CAMPAIGN_NOT_FOUND", "Campaign not found", ErrCampaignNotFound)
	}

	d := ToCampaignDTO(*campaign)
	return &d, nil
}

// ListCampaigns retrieves campaigns with pagination and an optional
// active-state filter
func (s *CampaignFlowImpl) ListCampaigns(ctx context.Context, req *dto.ListCampaignsRequest, metadata *ClientMetadata) (*dto.ListCampaignsResponse, error) {
	page := req.Page
	if page == 0 {
		page = 1
	}
	if page < 1 {
		return nil, NewBusinessError("INVALID_PAGINATION", "Invalid pagination", ErrInvalidPage)
	}
	pageSize := req.PageSize
	if pageSize == 0 {
		pageSize = 20
	}
	if pageSize < 1 || pageSize > 100 {
		return nil, NewBusinessError("INVALID_PAGINATION", "Invalid pagination", ErrInvalidPageSize)
	}

	filter := models.CampaignFilter{IsActive: req.IsActive}

	total, err := s.campaignRepo.Count(ctx, filter)
	if err != nil {
		return nil, NewBusinessError("CAMPAIGN_LIST_FAILED", "Failed to list campaigns", err)
	}

	campaigns, err := s.campaignRepo.ByFilter(ctx, filter, "created_at DESC, id DESC", pageSize, (page-1)*pageSize)
	if err != nil {
		return nil, NewBusinessError("CAMPAIGN_LIST_FAILED", "Failed to list campaigns", err)
	}

	items := make([]dto.CampaignDTO, 0, len(campaigns))
	for _, c := range campaigns {
		items = append(items, ToCampaignDTO(*c))
	}

	return &dto.ListCampaignsResponse{
		Message:   "Campaigns retrieved successfully",
		Campaigns: items,
		Pagination: dto.PaginationInfo{
			Page:     page,
			PageSize: pageSize,
			Total:    total,
		},
	}, nil
}

// DeleteCampaign soft-deletes a campaign; send history is retained
func (s *CampaignFlowImpl) DeleteCampaign(ctx context.Context, campaignUUID string, metadata *ClientMetadata) (*dto.DeleteCampaignResponse, error) {
	if campaignUUID == "" {
		return nil, NewBusinessError("CAMPAIGN_VALIDATION_FAILED", "Campaign validation failed", ErrCampaignUUIDRequired)
	}

	err := repository.WithTransaction(ctx, s.db, func(txCtx context.Context) error {
		campaign, err := s.campaignRepo.ByUUID(txCtx, campaignUUID)
		if err != nil {
			return err
		}
		if campaign == nil {
			return ErrCampaignNotFound
		}

		return s.campaignRepo.MarkDeleted(txCtx, campaign.ID)
	})

	if err != nil {
		if IsCampaignNotFound(err) {
			return nil, NewBusinessError("CAMPAIGN_NOT_FOUND", "Campaign not found", err)
		}
		return nil, NewBusinessError("CAMPAIGN_DELETE_FAILED", "Campaign delete failed", err)
	}

	return &dto.DeleteCampaignResponse{
		Message: "Campaign deleted successfully",
	}, nil
}

// AdvanceAfterDispatch computes the occurrence after the one just dispatched
// and persists it with a conditional update. A concurrent or replayed advance
// affects zero rows and surfaces as ErrOccurrenceAlreadyAdvanced.
func (s *CampaignFlowImpl) AdvanceAfterDispatch(ctx context.Context, campaign *models.Campaign, occurrence time.Time) (time.Time, error) {
	loc, err := campaign.Location()
	if err != nil {
		return time.Time{}, NewBusinessError("TIMEZONE_RESOLUTION_FAILED", "Failed to resolve campaign timezone", err)
	}

	next := utils.NextOccurrence(campaign.ScheduleTime.Hour, campaign.ScheduleTime.Minute, loc, occurrence)

	ok, err := s.campaignRepo.AdvanceNextRun(ctx, campaign.ID, occurrence, next)
	if err != nil {
		return time.Time{}, NewBusinessError("CAMPAIGN_ADVANCE_FAILED", "Failed to advance campaign occurrence", err)
	}
	if !ok {
		return time.Time{}, NewBusinessError("OCCURRENCE_ALREADY_ADVANCED", "Occurrence was already advanced", ErrOccurrenceAlreadyAdvanced)
	}

	return next, nil
}

func (s *CampaignFlowImpl) validateSchedule(scheduleTime, timezone string) (models.TimeOfDay, *time.Location, error) {
	if scheduleTime == "" {
		return models.TimeOfDay{}, nil, ErrScheduleTimeRequired
	}
	schedule, err := models.ParseTimeOfDay(scheduleTime)
	if err != nil {
		return models.TimeOfDay{}, nil, ErrInvalidScheduleTime
	}

	if timezone == "" {
		timezone = models.DefaultTimezone
	}
	loc, err := utils.LoadTimezone(timezone)
	if err != nil {
		return models.TimeOfDay{}, nil, ErrUnknownTimezone
	}

	return schedule, loc, nil
}

func toInt64Array(ids []uint) pq.Int64Array {
	if len(ids) == 0 {
		return nil
	}
	out := make(pq.Int64Array, 0, len(ids))
	for _, id := range ids {
		out = append(out, int64(id))
	}
	return out
}
