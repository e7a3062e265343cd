package businessflow

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/bjohnson312/hi-emma-MVP-sub000/config"
	"github.com/bjohnson312/hi-emma-MVP-sub000/models"
	apptesting "github.com/bjohnson312/hi-emma-MVP-sub000/testing"
	"github.com/bjohnson312/hi-emma-MVP-sub000/utils"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type statsFixture struct {
	flow         CampaignStatsFlow
	campaignRepo *apptesting.FakeCampaignRepository
	sendRepo     *apptesting.FakeCampaignSendRepository
	userRepo     *apptesting.FakeUserRepository
}

func newStatsFixture(t *testing.T, rc *redis.Client, cacheCfg *config.CacheConfig) *statsFixture {
	t.Helper()
	campaignRepo := apptesting.NewFakeCampaignRepository()
	sendRepo := apptesting.NewFakeCampaignSendRepository()
	userRepo := apptesting.NewFakeUserRepository()
	resolver := NewAudienceResolver(userRepo)
	return &statsFixture{
		flow:         NewCampaignStatsFlow(campaignRepo, sendRepo, resolver, rc, cacheCfg),
		campaignRepo: campaignRepo,
		sendRepo:     sendRepo,
		userRepo:     userRepo,
	}
}

func (f *statsFixture) saveSend(t *testing.T, campaignID, userID uint, status models.SendStatus, sentAt time.Time) {
	t.Helper()
	require.NoError(t, f.sendRepo.Save(context.Background(), &models.CampaignSend{
		CampaignID:   campaignID,
		UserID:       userID,
		PhoneNumber:  "+12125550199",
		OccurrenceAt: sentAt.Truncate(time.Hour),
		Status:       status,
		SentAt:       sentAt,
	}))
}

func TestGetCampaignStatsCountsAllSendRecords(t *testing.T) {
	f := newStatsFixture(t, nil, nil)
	campaign, err := apptesting.CreateTestCampaign(f.campaignRepo, "stats_totals", nil)
	require.NoError(t, err)

	now := utils.UTCNow()
	f.saveSend(t, campaign.ID, 1, models.SendStatusDelivered, now.Add(-3*time.Minute))
	f.saveSend(t, campaign.ID, 2, models.SendStatusDelivered, now.Add(-2*time.Minute))
	f.saveSend(t, campaign.ID, 3, models.SendStatusFailed, now.Add(-time.Minute))
	f.saveSend(t, campaign.ID, 4, models.SendStatusSkipped, now)

	resp, err := f.flow.GetCampaignStats(context.Background(), campaign.UUID.String(), nil)
	require.NoError(t, err)
	// Failed and skipped attempts are send records too
	assert.Equal(t, int64(4), resp.TotalSends)
	assert.Equal(t, int64(2), resp.TotalDelivered)
	assert.Len(t, resp.RecentSends, 4)
	// Most recent first
	assert.Equal(t, string(models.SendStatusSkipped), resp.RecentSends[0].Status)
}

func TestGetCampaignStatsFailuresMoveTheTotals(t *testing.T) {
	f := newStatsFixture(t, nil, nil)
	campaign, err := apptesting.CreateTestCampaign(f.campaignRepo, "stats_failures", nil)
	require.NoError(t, err)

	now := utils.UTCNow()
	f.saveSend(t, campaign.ID, 1, models.SendStatusDelivered, now.Add(-time.Hour))

	before, err := f.flow.GetCampaignStats(context.Background(), campaign.UUID.String(), nil)
	require.NoError(t, err)

	// A failed attempt still advances the totals and last-sent marker
	f.saveSend(t, campaign.ID, 2, models.SendStatusFailed, now)

	after, err := f.flow.GetCampaignStats(context.Background(), campaign.UUID.String(), nil)
	require.NoError(t, err)
	assert.Equal(t, before.TotalSends+1, after.TotalSends)
	assert.Equal(t, before.TotalDelivered, after.TotalDelivered)
	assert.Equal(t, now.UTC().Format(time.RFC3339), after.LastSentAt)
}

func TestGetCampaignStatsSendsTodayUsesCampaignTimezone(t *testing.T) {
	f := newStatsFixture(t, nil, nil)
	campaign, err := apptesting.CreateTestCampaign(f.campaignRepo, "stats_today", nil)
	require.NoError(t, err)

	loc, err := time.LoadLocation(campaign.Timezone)
	require.NoError(t, err)

	now := utils.UTCNow()
	dayStart := utils.StartOfLocalDay(now, loc)

	f.saveSend(t, campaign.ID, 1, models.SendStatusDelivered, dayStart.Add(time.Minute))
	f.saveSend(t, campaign.ID, 2, models.SendStatusFailed, now)
	// Just before midnight in the campaign's zone: yesterday
	f.saveSend(t, campaign.ID, 3, models.SendStatusDelivered, dayStart.Add(-time.Minute))

	resp, err := f.flow.GetCampaignStats(context.Background(), campaign.UUID.String(), nil)
	require.NoError(t, err)
	assert.Equal(t, int64(3), resp.TotalSends)
	assert.Equal(t, int64(2), resp.TotalDelivered)
	assert.Equal(t, int64(2), resp.SendsToday)
}

func TestGetCampaignStatsLastSentAndNextRun(t *testing.T) {
	f := newStatsFixture(t, nil, nil)
	next := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	campaign, err := apptesting.CreateTestCampaign(f.campaignRepo, "stats_markers", &next)
	require.NoError(t, err)

	last := utils.UTCNow().Add(-time.Hour).Truncate(time.Second)
	f.saveSend(t, campaign.ID, 1, models.SendStatusDelivered, last.Add(-time.Hour))
	// The most recent attempt failed; it is still the last send
	f.saveSend(t, campaign.ID, 2, models.SendStatusFailed, last)

	resp, err := f.flow.GetCampaignStats(context.Background(), campaign.UUID.String(), nil)
	require.NoError(t, err)
	assert.Equal(t, last.UTC().Format(time.RFC3339), resp.LastSentAt)
	assert.Equal(t, next.Format(time.RFC3339), resp.NextRunAt)
}

func TestGetCampaignStatsAudienceEstimate(t *testing.T) {
	f := newStatsFixture(t, nil, nil)
	campaign, err := apptesting.CreateTestCampaign(f.campaignRepo, "stats_audience", nil)
	require.NoError(t, err)

	users, err := apptesting.CreateTestUsers(f.userRepo, 3)
	require.NoError(t, err)
	// One targeted user has no usable phone
	broken := &models.User{
		FirstName:   "No",
		LastName:    "Phone",
		PhoneNumber: utils.ToPtr("not-a-number"),
		IsActive:    utils.ToPtr(true),
	}
	require.NoError(t, f.userRepo.Save(context.Background(), broken))

	campaign.TargetUserIDs = append(apptesting.TargetIDs(users), int64(broken.ID))
	require.NoError(t, f.campaignRepo.Update(context.Background(), *campaign))

	resp, err := f.flow.GetCampaignStats(context.Background(), campaign.UUID.String(), nil)
	require.NoError(t, err)
	assert.Equal(t, 3, resp.AudienceSize)
	assert.Equal(t, 1, resp.AudienceExcluded)
}

func TestGetCampaignStatsCachesAudienceEstimate(t *testing.T) {
	mr := miniredis.RunT(t)
	rc := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rc.Close()

	cacheCfg := &config.CacheConfig{
		Enabled:     true,
		RedisPrefix: "hi-emma:",
		DefaultTTL:  5 * time.Minute,
	}

	f := newStatsFixture(t, rc, cacheCfg)
	campaign, err := apptesting.CreateTestCampaign(f.campaignRepo, "stats_cached", nil)
	require.NoError(t, err)

	users, err := apptesting.CreateTestUsers(f.userRepo, 2)
	require.NoError(t, err)
	campaign.TargetUserIDs = apptesting.TargetIDs(users)
	require.NoError(t, f.campaignRepo.Update(context.Background(), *campaign))

	resp, err := f.flow.GetCampaignStats(context.Background(), campaign.UUID.String(), nil)
	require.NoError(t, err)
	assert.Equal(t, 2, resp.AudienceSize)

	cacheKey := "hi-emma:audience_estimate:" + campaign.UUID.String()
	cached, err := mr.Get(cacheKey)
	require.NoError(t, err)
	assert.Contains(t, cached, `"size":2`)

	// Membership changes are not visible until the cache expires
	more, err := apptesting.CreateTestUsers(f.userRepo, 1)
	require.NoError(t, err)
	campaign.TargetUserIDs = append(campaign.TargetUserIDs, int64(more[0].ID))
	require.NoError(t, f.campaignRepo.Update(context.Background(), *campaign))

	resp, err = f.flow.GetCampaignStats(context.Background(), campaign.UUID.String(), nil)
	require.NoError(t, err)
	assert.Equal(t, 2, resp.AudienceSize)

	mr.FastForward(6 * time.Minute)
	resp, err = f.flow.GetCampaignStats(context.Background(), campaign.UUID.String(), nil)
	require.NoError(t, err)
	assert.Equal(t, 3, resp.AudienceSize)
}

func TestGetCampaignStatsUnknownCampaign(t *testing.T) {
	f := newStatsFixture(t, nil, nil)

	_, err := f.flow.GetCampaignStats(context.Background(), "4f9d44a5-7a38-4f53-a6c5-9c7a7b9c0002", nil)
	require.Error(t, err)
	assert.True(t, IsCampaignNotFound(err))
}
