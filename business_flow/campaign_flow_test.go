package businessflow

import (
	"context"
	"testing"
	"time"

	"github.com/bjohnson312/hi-emma-MVP-sub000/app/dto"
	"github.com/bjohnson312/hi-emma-MVP-sub000/models"
	apptesting "github.com/bjohnson312/hi-emma-MVP-sub000/testing"
	"github.com/bjohnson312/hi-emma-MVP-sub000/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCampaignFlow(t *testing.T) (CampaignFlow, *apptesting.FakeCampaignRepository) {
	t.Helper()
	repo := apptesting.NewFakeCampaignRepository()
	return NewCampaignFlow(repo, nil), repo
}

func createCampaign(t *testing.T, flow CampaignFlow, templateName string) dto.CampaignDTO {
	t.Helper()
	resp, err := flow.CreateCampaign(context.Background(), &dto.CreateCampaignRequest{
		Name:         "Morning Reminder",
		TemplateName: templateName,
		MessageBody:  "Hi! Your day starts now.",
		ScheduleTime: "08:00",
		Timezone:     "America/New_York",
	}, nil)
	require.NoError(t, err)
	return resp.Campaign
}

func mustParseTime(t *testing.T, value string) time.Time {
	t.Helper()
	parsed, err := time.Parse(time.RFC3339, value)
	require.NoError(t, err)
	return parsed
}

func TestCreateCampaignSchedulesNextOccurrence(t *testing.T) {
	flow, repo := newTestCampaignFlow(t)

	before := utils.UTCNow().Truncate(time.Second)
	campaign := createCampaign(t, flow, "morning_reminder")

	require.NotEmpty(t, campaign.NextRunAt)
	next := mustParseTime(t, campaign.NextRunAt)
	assert.False(t, next.Before(before), "next occurrence must be in the future")

	loc, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)
	local := next.In(loc)
	assert.Equal(t, 8, local.Hour())
	assert.Equal(t, 0, local.Minute())

	stored, err := repo.ByUUID(context.Background(), campaign.UUID)
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.True(t, utils.IsTrue(stored.IsActive))
	require.NotNil(t, stored.NextRunAt)
}

func TestCreateCampaignInactiveHasNoNextRun(t *testing.T) {
	flow, _ := newTestCampaignFlow(t)

	resp, err := flow.CreateCampaign(context.Background(), &dto.CreateCampaignRequest{
		Name:         "Dormant",
		TemplateName: "dormant",
		MessageBody:  "later",
		ScheduleTime: "12:30",
		Timezone:     "UTC",
		IsActive:     utils.ToPtr(false),
	}, nil)
	require.NoError(t, err)
	assert.Empty(t, resp.Campaign.NextRunAt)
	assert.False(t, resp.Campaign.IsActive)
}

func TestCreateCampaignDuplicateTemplateName(t *testing.T) {
	flow, _ := newTestCampaignFlow(t)

	createCampaign(t, flow, "shared_template")

	_, err := flow.CreateCampaign(context.Background(), &dto.CreateCampaignRequest{
		Name:         "Second",
		TemplateName: "shared_template",
		MessageBody:  "body",
		ScheduleTime: "09:00",
	}, nil)
	require.Error(t, err)
	assert.True(t, IsDuplicateTemplateName(err))
}

func TestCreateCampaignRejectsInvalidSchedule(t *testing.T) {
	flow, _ := newTestCampaignFlow(t)

	cases := []struct {
		name     string
		schedule string
		timezone string
		check    func(error) bool
	}{
		{"hour out of range", "24:00", "UTC", IsInvalidScheduleTime},
		{"minute out of range", "08:60", "UTC", IsInvalidScheduleTime},
		{"not a time", "morning", "UTC", IsInvalidScheduleTime},
		{"missing schedule", "", "UTC", IsScheduleTimeRequired},
		{"unknown timezone", "08:00", "Mars/Olympus_Mons", IsUnknownTimezone},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := flow.CreateCampaign(context.Background(), &dto.CreateCampaignRequest{
				Name:         "Bad Schedule",
				TemplateName: "bad_" + tc.name,
				MessageBody:  "body",
				ScheduleTime: tc.schedule,
				Timezone:     tc.timezone,
			}, nil)
			require.Error(t, err)
			assert.True(t, tc.check(err))
		})
	}
}

func TestUpdateCampaignScheduleRecomputesNextRun(t *testing.T) {
	flow, _ := newTestCampaignFlow(t)
	campaign := createCampaign(t, flow, "reschedule_me")
	require.NotEmpty(t, campaign.NextRunAt)

	resp, err := flow.UpdateCampaign(context.Background(), &dto.UpdateCampaignRequest{
		UUID:         campaign.UUID,
		ScheduleTime: utils.ToPtr("17:45"),
	}, nil)
	require.NoError(t, err)
	require.NotEmpty(t, resp.Campaign.NextRunAt)
	assert.NotEqual(t, campaign.NextRunAt, resp.Campaign.NextRunAt)

	loc, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)
	local := mustParseTime(t, resp.Campaign.NextRunAt).In(loc)
	assert.Equal(t, 17, local.Hour())
	assert.Equal(t, 45, local.Minute())
}

func TestUpdateCampaignOtherFieldsKeepNextRun(t *testing.T) {
	flow, _ := newTestCampaignFlow(t)
	campaign := createCampaign(t, flow, "keep_schedule")
	require.NotEmpty(t, campaign.NextRunAt)

	resp, err := flow.UpdateCampaign(context.Background(), &dto.UpdateCampaignRequest{
		UUID:        campaign.UUID,
		MessageBody: utils.ToPtr("A new body"),
	}, nil)
	require.NoError(t, err)
	assert.Equal(t, campaign.NextRunAt, resp.Campaign.NextRunAt)
	assert.Equal(t, "A new body", resp.Campaign.MessageBody)
}

func TestUpdateCampaignNotFound(t *testing.T) {
	flow, _ := newTestCampaignFlow(t)

	_, err := flow.UpdateCampaign(context.Background(), &dto.UpdateCampaignRequest{
		UUID: "4f9d44a5-7a38-4f53-a6c5-9c7a7b9c0001",
		Name: utils.ToPtr("nobody"),
	}, nil)
	require.Error(t, err)
	assert.True(t, IsCampaignNotFound(err))
}

func TestUpdateCampaignRejectsDuplicateTemplateRename(t *testing.T) {
	flow, _ := newTestCampaignFlow(t)
	createCampaign(t, flow, "taken")
	other := createCampaign(t, flow, "renameable")

	_, err := flow.UpdateCampaign(context.Background(), &dto.UpdateCampaignRequest{
		UUID:         other.UUID,
		TemplateName: utils.ToPtr("taken"),
	}, nil)
	require.Error(t, err)
	assert.True(t, IsDuplicateTemplateName(err))
}

func TestUpdateCampaignRequiresAtLeastOneField(t *testing.T) {
	flow, _ := newTestCampaignFlow(t)
	campaign := createCampaign(t, flow, "empty_update")

	_, err := flow.UpdateCampaign(context.Background(), &dto.UpdateCampaignRequest{
		UUID: campaign.UUID,
	}, nil)
	require.Error(t, err)
	assert.True(t, IsCampaignUpdateRequired(err))
}

func TestToggleCampaignDeactivateClearsNextRun(t *testing.T) {
	flow, repo := newTestCampaignFlow(t)
	campaign := createCampaign(t, flow, "toggle_off")

	resp, err := flow.ToggleCampaign(context.Background(), &dto.ToggleCampaignRequest{
		UUID:     campaign.UUID,
		IsActive: false,
	}, nil)
	require.NoError(t, err)
	assert.False(t, resp.Campaign.IsActive)
	assert.Empty(t, resp.Campaign.NextRunAt)

	stored, err := repo.ByUUID(context.Background(), campaign.UUID)
	require.NoError(t, err)
	assert.Nil(t, stored.NextRunAt)
	assert.Nil(t, stored.ClaimedUntil)
}

func TestToggleCampaignReactivateSchedules(t *testing.T) {
	flow, _ := newTestCampaignFlow(t)
	campaign := createCampaign(t, flow, "toggle_cycle")

	_, err := flow.ToggleCampaign(context.Background(), &dto.ToggleCampaignRequest{
		UUID: campaign.UUID, IsActive: false,
	}, nil)
	require.NoError(t, err)

	resp, err := flow.ToggleCampaign(context.Background(), &dto.ToggleCampaignRequest{
		UUID: campaign.UUID, IsActive: true,
	}, nil)
	require.NoError(t, err)
	assert.True(t, resp.Campaign.IsActive)
	require.NotEmpty(t, resp.Campaign.NextRunAt)
	next := mustParseTime(t, resp.Campaign.NextRunAt)
	assert.True(t, next.After(utils.UTCNowAdd(-time.Minute)))
}

func TestToggleCampaignSameStateIsNoOp(t *testing.T) {
	flow, _ := newTestCampaignFlow(t)
	campaign := createCampaign(t, flow, "toggle_noop")
	require.NotEmpty(t, campaign.NextRunAt)

	resp, err := flow.ToggleCampaign(context.Background(), &dto.ToggleCampaignRequest{
		UUID: campaign.UUID, IsActive: true,
	}, nil)
	require.NoError(t, err)
	assert.Equal(t, campaign.NextRunAt, resp.Campaign.NextRunAt)
}

func TestListCampaignsPagination(t *testing.T) {
	flow, _ := newTestCampaignFlow(t)
	for _, name := range []string{"list_a", "list_b", "list_c"} {
		createCampaign(t, flow, name)
	}

	resp, err := flow.ListCampaigns(context.Background(), &dto.ListCampaignsRequest{
		Page: 1, PageSize: 2,
	}, nil)
	require.NoError(t, err)
	assert.Len(t, resp.Campaigns, 2)
	assert.Equal(t, int64(3), resp.Pagination.Total)

	resp2, err := flow.ListCampaigns(context.Background(), &dto.ListCampaignsRequest{
		Page: 2, PageSize: 2,
	}, nil)
	require.NoError(t, err)
	assert.Len(t, resp2.Campaigns, 1)
}

func TestListCampaignsRejectsBadPagination(t *testing.T) {
	flow, _ := newTestCampaignFlow(t)

	_, err := flow.ListCampaigns(context.Background(), &dto.ListCampaignsRequest{Page: -1}, nil)
	require.Error(t, err)
	assert.True(t, IsInvalidPage(err))

	_, err = flow.ListCampaigns(context.Background(), &dto.ListCampaignsRequest{PageSize: 500}, nil)
	require.Error(t, err)
	assert.True(t, IsInvalidPageSize(err))
}

func TestDeleteCampaignHidesItFromLookups(t *testing.T) {
	flow, _ := newTestCampaignFlow(t)
	campaign := createCampaign(t, flow, "delete_me")

	_, err := flow.DeleteCampaign(context.Background(), campaign.UUID, nil)
	require.NoError(t, err)

	_, err = flow.GetCampaign(context.Background(), campaign.UUID, nil)
	require.Error(t, err)
	assert.True(t, IsCampaignNotFound(err))

	// The freed template name is reusable
	createCampaign(t, flow, "delete_me")
}

func TestAdvanceAfterDispatchMovesToNextDay(t *testing.T) {
	flow, repo := newTestCampaignFlow(t)

	occurrence := time.Date(2024, 1, 16, 13, 0, 0, 0, time.UTC)
	schedule, err := models.ParseTimeOfDay("08:00")
	require.NoError(t, err)
	campaign := &models.Campaign{
		Name:         "Advance",
		TemplateName: "advance_chain",
		MessageBody:  "body",
		ScheduleTime: schedule,
		Timezone:     "America/New_York",
		IsActive:     utils.ToPtr(true),
		NextRunAt:    &occurrence,
	}
	require.NoError(t, repo.Save(context.Background(), campaign))

	next, err := flow.AdvanceAfterDispatch(context.Background(), campaign, occurrence)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 1, 17, 13, 0, 0, 0, time.UTC), next)

	stored, err := repo.ByID(context.Background(), campaign.ID)
	require.NoError(t, err)
	require.NotNil(t, stored.NextRunAt)
	assert.True(t, stored.NextRunAt.Equal(next))
	assert.Nil(t, stored.ClaimedUntil)
}

func TestAdvanceAfterDispatchReplayIsRejected(t *testing.T) {
	flow, repo := newTestCampaignFlow(t)

	occurrence := time.Date(2024, 1, 16, 13, 0, 0, 0, time.UTC)
	schedule, err := models.ParseTimeOfDay("08:00")
	require.NoError(t, err)
	campaign := &models.Campaign{
		Name:         "Replay",
		TemplateName: "advance_replay",
		MessageBody:  "body",
		ScheduleTime: schedule,
		Timezone:     "America/New_York",
		IsActive:     utils.ToPtr(true),
		NextRunAt:    &occurrence,
	}
	require.NoError(t, repo.Save(context.Background(), campaign))

	_, err = flow.AdvanceAfterDispatch(context.Background(), campaign, occurrence)
	require.NoError(t, err)

	_, err = flow.AdvanceAfterDispatch(context.Background(), campaign, occurrence)
	require.Error(t, err)
	assert.True(t, IsOccurrenceAlreadyAdvanced(err))
}
