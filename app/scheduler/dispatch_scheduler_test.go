package scheduler

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/bjohnson312/hi-emma-MVP-sub000/app/services"
	businessflow "github.com/bjohnson312/hi-emma-MVP-sub000/business_flow"
	"github.com/bjohnson312/hi-emma-MVP-sub000/config"
	"github.com/bjohnson312/hi-emma-MVP-sub000/models"
	apptesting "github.com/bjohnson312/hi-emma-MVP-sub000/testing"
	"github.com/bjohnson312/hi-emma-MVP-sub000/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type schedulerFixture struct {
	scheduler    *DispatchScheduler
	campaignRepo *apptesting.FakeCampaignRepository
	sendRepo     *apptesting.FakeCampaignSendRepository
	userRepo     *apptesting.FakeUserRepository
	sms          *services.MockSMSService
}

func newSchedulerFixture(t *testing.T, cfg config.SchedulerConfig) *schedulerFixture {
	t.Helper()
	campaignRepo := apptesting.NewFakeCampaignRepository()
	sendRepo := apptesting.NewFakeCampaignSendRepository()
	userRepo := apptesting.NewFakeUserRepository()
	resolver := businessflow.NewAudienceResolver(userRepo)
	flow := businessflow.NewCampaignFlow(campaignRepo, nil)
	sms := services.NewMockSMSService()

	logPath := filepath.Join(t.TempDir(), "scheduler.log")
	s := NewDispatchScheduler(campaignRepo, sendRepo, resolver, flow, sms, cfg, logPath)
	return &schedulerFixture{
		scheduler:    s,
		campaignRepo: campaignRepo,
		sendRepo:     sendRepo,
		userRepo:     userRepo,
		sms:          sms,
	}
}

func testSchedulerConfig() config.SchedulerConfig {
	return config.SchedulerConfig{
		Enabled:          true,
		PollInterval:     time.Minute,
		ClaimLease:       5 * time.Minute,
		SendTimeout:      time.Second,
		DispatchDeadline: 3 * time.Minute,
		BatchLimit:       100,
	}
}

// dueCampaign seeds n active users and a campaign targeting all of them whose
// next occurrence is already in the past.
func (f *schedulerFixture) dueCampaign(t *testing.T, templateName string, n int) (*models.Campaign, []*models.User) {
	t.Helper()
	users, err := apptesting.CreateTestUsers(f.userRepo, n)
	require.NoError(t, err)

	occurrence := utils.UTCNow().Add(-time.Minute).Truncate(time.Second)
	campaign, err := apptesting.CreateTestCampaign(f.campaignRepo, templateName, &occurrence)
	require.NoError(t, err)
	campaign.TargetUserIDs = apptesting.TargetIDs(users)
	require.NoError(t, f.campaignRepo.Update(context.Background(), *campaign))
	return campaign, users
}

func (f *schedulerFixture) sendRows(t *testing.T, campaignID uint) []*models.CampaignSend {
	t.Helper()
	rows, err := f.sendRepo.ListRecentByCampaign(context.Background(), campaignID, 1000)
	require.NoError(t, err)
	return rows
}

func TestProcessCampaignDeliversAndAdvances(t *testing.T) {
	f := newSchedulerFixture(t, testSchedulerConfig())
	campaign, users := f.dueCampaign(t, "daily_checkin", 3)
	occurrence := *campaign.NextRunAt

	require.NoError(t, f.scheduler.processCampaign(context.Background(), campaign))

	rows := f.sendRows(t, campaign.ID)
	require.Len(t, rows, 3)
	seen := make(map[uint]bool)
	for _, row := range rows {
		assert.Equal(t, models.SendStatusDelivered, row.Status)
		assert.True(t, row.OccurrenceAt.Equal(occurrence))
		require.NotNil(t, row.ProviderID)
		seen[row.UserID] = true
	}
	for _, u := range users {
		assert.True(t, seen[u.ID], "user %d should have a send record", u.ID)
	}
	assert.Len(t, f.sms.GetSentMessages(), 3)

	stored, err := f.campaignRepo.ByID(context.Background(), campaign.ID)
	require.NoError(t, err)
	require.NotNil(t, stored.NextRunAt)
	assert.True(t, stored.NextRunAt.After(utils.UTCNow()), "next run should be in the future")
	assert.False(t, stored.NextRunAt.Equal(occurrence))
	assert.Nil(t, stored.ClaimedUntil)
}

func TestProcessCampaignExactlyOnceUnderConcurrentClaims(t *testing.T) {
	f := newSchedulerFixture(t, testSchedulerConfig())
	campaign, _ := f.dueCampaign(t, "race_checkin", 5)

	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			due, err := f.campaignRepo.ListDue(context.Background(), utils.UTCNow(), 10)
			assert.NoError(t, err)
			// The loser of the claim returns nil without dispatching
			for _, c := range due {
				assert.NoError(t, f.scheduler.processCampaign(context.Background(), c))
			}
		}()
	}
	wg.Wait()

	assert.Len(t, f.sendRows(t, campaign.ID), 5)
	assert.Len(t, f.sms.GetSentMessages(), 5)
}

func TestProcessCampaignPartialFailureStillAdvances(t *testing.T) {
	f := newSchedulerFixture(t, testSchedulerConfig())
	campaign, users := f.dueCampaign(t, "flaky_provider", 3)
	occurrence := *campaign.NextRunAt

	badPhone := *users[1].PhoneNumber
	f.sms.FailFor[badPhone] = errors.New("provider rejected recipient")

	require.NoError(t, f.scheduler.processCampaign(context.Background(), campaign))

	rows := f.sendRows(t, campaign.ID)
	require.Len(t, rows, 3)
	var delivered, failed int
	for _, row := range rows {
		switch row.Status {
		case models.SendStatusDelivered:
			delivered++
		case models.SendStatusFailed:
			failed++
			assert.Equal(t, badPhone, row.PhoneNumber)
			require.NotNil(t, row.ErrorMessage)
			assert.Contains(t, *row.ErrorMessage, "provider rejected recipient")
		}
	}
	assert.Equal(t, 2, delivered)
	assert.Equal(t, 1, failed)

	// A failed recipient never blocks the schedule
	stored, err := f.campaignRepo.ByID(context.Background(), campaign.ID)
	require.NoError(t, err)
	require.NotNil(t, stored.NextRunAt)
	assert.False(t, stored.NextRunAt.Equal(occurrence))
}

func TestProcessCampaignSkipsAlreadyDeliveredRecipients(t *testing.T) {
	f := newSchedulerFixture(t, testSchedulerConfig())
	campaign, users := f.dueCampaign(t, "crash_recovery", 3)
	occurrence := *campaign.NextRunAt

	// A previous attempt delivered to the first user before crashing
	require.NoError(t, f.sendRepo.Save(context.Background(), &models.CampaignSend{
		CampaignID:   campaign.ID,
		UserID:       users[0].ID,
		PhoneNumber:  *users[0].PhoneNumber,
		OccurrenceAt: occurrence,
		Status:       models.SendStatusDelivered,
	}))

	require.NoError(t, f.scheduler.processCampaign(context.Background(), campaign))

	rows := f.sendRows(t, campaign.ID)
	require.Len(t, rows, 3)
	perUser := make(map[uint]int)
	for _, row := range rows {
		perUser[row.UserID]++
	}
	for _, u := range users {
		assert.Equal(t, 1, perUser[u.ID], "user %d should have exactly one send record", u.ID)
	}
	// Only the two remaining recipients hit the provider
	assert.Len(t, f.sms.GetSentMessages(), 2)
}

func TestProcessCampaignDeadlineSkipsRemainingRecipients(t *testing.T) {
	cfg := testSchedulerConfig()
	cfg.DispatchDeadline = time.Nanosecond
	f := newSchedulerFixture(t, cfg)
	campaign, _ := f.dueCampaign(t, "slow_batch", 3)
	occurrence := *campaign.NextRunAt

	require.NoError(t, f.scheduler.processCampaign(context.Background(), campaign))

	rows := f.sendRows(t, campaign.ID)
	require.Len(t, rows, 3)
	for _, row := range rows {
		assert.Equal(t, models.SendStatusSkipped, row.Status)
		require.NotNil(t, row.ErrorMessage)
		assert.Equal(t, "dispatch deadline exceeded", *row.ErrorMessage)
	}
	assert.Empty(t, f.sms.GetSentMessages())

	// Skipped recipients are recorded and the occurrence still advances
	stored, err := f.campaignRepo.ByID(context.Background(), campaign.ID)
	require.NoError(t, err)
	require.NotNil(t, stored.NextRunAt)
	assert.False(t, stored.NextRunAt.Equal(occurrence))
}

func TestSchedulerStartDispatchesDueCampaigns(t *testing.T) {
	cfg := testSchedulerConfig()
	cfg.PollInterval = 20 * time.Millisecond
	f := newSchedulerFixture(t, cfg)
	campaign, _ := f.dueCampaign(t, "loop_checkin", 2)

	stop := f.scheduler.Start(context.Background())
	defer stop()

	assert.Eventually(t, func() bool {
		rows, err := f.sendRepo.ListRecentByCampaign(context.Background(), campaign.ID, 10)
		return err == nil && len(rows) == 2
	}, 2*time.Second, 10*time.Millisecond)
}
