// Package businessflow contains the core business logic and use cases for campaign workflows
package businessflow

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/bjohnson312/hi-emma-MVP-sub000/app/dto"
	"github.com/bjohnson312/hi-emma-MVP-sub000/config"
	"github.com/bjohnson312/hi-emma-MVP-sub000/models"
	"github.com/bjohnson312/hi-emma-MVP-sub000/repository"
	"github.com/bjohnson312/hi-emma-MVP-sub000/utils"
	"github.com/redis/go-redis/v9"
)

// CampaignStatsFlow aggregates read-only dispatch statistics for a campaign
type CampaignStatsFlow interface {
	GetCampaignStats(ctx context.Context, campaignUUID string, metadata *ClientMetadata) (*dto.CampaignStatsResponse, error)
}

// CampaignStatsFlowImpl implements the campaign stats flow
type CampaignStatsFlowImpl struct {
	campaignRepo repository.CampaignRepository
	sendRepo     repository.CampaignSendRepository
	resolver     AudienceResolver
	rc           *redis.Client
	cacheConfig  *config.CacheConfig
}

// NewCampaignStatsFlow creates a new campaign stats flow instance
func NewCampaignStatsFlow(
	campaignRepo repository.CampaignRepository,
	sendRepo repository.CampaignSendRepository,
	resolver AudienceResolver,
	rc *redis.Client,
	cacheConfig *config.CacheConfig,
) CampaignStatsFlow {
	return &CampaignStatsFlowImpl{
		campaignRepo: campaignRepo,
		sendRepo:     sendRepo,
		resolver:     resolver,
		rc:           rc,
		cacheConfig:  cacheConfig,
	}
}

type audienceEstimate struct {
	Size     int `json:"size"`
	Excluded int `json:"excluded"`
}

// GetCampaignStats builds the stats view for a campaign. "Today" is the
// current calendar day in the campaign's own timezone, not the server's.
func (s *CampaignStatsFlowImpl) GetCampaignStats(ctx context.Context, campaignUUID string, metadata *ClientMetadata) (*dto.CampaignStatsResponse, error) {
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

	loc, err := campaign.Location()
	if err != nil {
		return nil, NewBusinessError("TIMEZONE_RESOLUTION_FAILED", "Failed to resolve campaign timezone", err)
	}

	// Totals count every send record; a failed or skipped attempt is part of
	// the campaign's history, not invisible to it.
	total, err := s.sendRepo.CountByCampaign(ctx, campaign.ID)
	if err != nil {
		return nil, NewBusinessError("STATS_QUERY_FAILED", "Failed to query send totals", err)
	}

	delivered, err := s.sendRepo.CountDelivered(ctx, campaign.ID)
	if err != nil {
		return nil, NewBusinessError("STATS_QUERY_FAILED", "Failed to query delivered totals", err)
	}

	now := utils.UTCNow()
	dayStart := utils.StartOfLocalDay(now, loc)
	dayEnd := utils.StartOfNextLocalDay(now, loc)
	today, err := s.sendRepo.CountBetween(ctx, campaign.ID, dayStart, dayEnd)
	if err != nil {
		return nil, NewBusinessError("STATS_QUERY_FAILED", "Failed to query today's sends", err)
	}

	last, err := s.sendRepo.LastSentAt(ctx, campaign.ID)
	if err != nil {
		return nil, NewBusinessError("STATS_QUERY_FAILED", "Failed to query last send", err)
	}

	recents, err := s.sendRepo.ListRecentByCampaign(ctx, campaign.ID, utils.RecentSendsLimit)
	if err != nil {
		return nil, NewBusinessError("STATS_QUERY_FAILED", "Failed to query recent sends", err)
	}

	estimate, err := s.audienceEstimate(ctx, campaign)
	if err != nil {
		return nil, err
	}

	resp := &dto.CampaignStatsResponse{
		Message:          "Campaign stats retrieved successfully",
		CampaignUUID:     campaign.UUID.String(),
		TotalSends:       total,
		TotalDelivered:   delivered,
		SendsToday:       today,
		AudienceSize:     estimate.Size,
		AudienceExcluded: estimate.Excluded,
	}
	if last != nil {
		resp.LastSentAt = last.UTC().Format(time.RFC3339)
	}
	if campaign.NextRunAt != nil {
		resp.NextRunAt = campaign.NextRunAt.UTC().Format(time.RFC3339)
	}
	for _, send := range recents {
		resp.RecentSends = append(resp.RecentSends, ToCampaignSendDTO(*send))
	}

	return resp, nil
}

// audienceEstimate re-resolves the current audience, with a short-TTL redis
// cache in front of it. The estimate may lag membership changes by at most
// the cache TTL; dispatch never reads it.
func (s *CampaignStatsFlowImpl) audienceEstimate(ctx context.Context, campaign *models.Campaign) (*audienceEstimate, error) {
	if s.rc == nil || s.cacheConfig == nil || !s.cacheConfig.Enabled {
		return s.resolveEstimate(ctx, campaign)
	}

	cacheKey := redisKey(*s.cacheConfig, fmt.Sprintf("audience_estimate:%s", campaign.UUID))
	lockKey := redisKey(*s.cacheConfig, fmt.Sprintf("audience_estimate_lock:%s", campaign.UUID))

	if data, err := s.rc.Get(ctx, cacheKey).Bytes(); err == nil {
		var cached audienceEstimate
		if json.Unmarshal(data, &cached) == nil {
			return &cached, nil
		}
	}

	estimate, err := s.resolveEstimate(ctx, campaign)
	if err != nil {
		return nil, err
	}

	// Only the lock holder refreshes the cache; everyone else just serves
	// the estimate they resolved.
	ok, err := s.rc.SetNX(ctx, lockKey, "1", 10*time.Second).Result()
	if err == nil && ok {
		defer func() {
			_ = s.rc.Del(context.Background(), lockKey).Err()
		}()
		ttl := s.cacheConfig.DefaultTTL
		if ttl <= 0 {
			ttl = utils.AudienceEstimateTTL
		}
		if bytes, err := json.Marshal(estimate); err == nil {
			_ = s.rc.Set(ctx, cacheKey, bytes, ttl).Err()
		}
	}

	return estimate, nil
}

func (s *CampaignStatsFlowImpl) resolveEstimate(ctx context.Context, campaign *models.Campaign) (*audienceEstimate, error) {
	audience, err := s.resolver.Resolve(ctx, campaign)
	if err != nil {
		return nil, err
	}
	return &audienceEstimate{
		Size:     len(audience.Recipients),
		Excluded: audience.Excluded,
	}, nil
}

func redisKey(cfg config.CacheConfig, key string) string {
	return cfg.RedisPrefix + key
}
