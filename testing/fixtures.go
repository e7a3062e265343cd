package testing

import (
	"context"
	"fmt"
	"time"

	"github.com/bjohnson312/hi-emma-MVP-sub000/models"
	"github.com/bjohnson312/hi-emma-MVP-sub000/utils"
	"github.com/lib/pq"
)

// CreateTestCampaign saves a campaign with sensible defaults. The schedule
// time is "08:00" in America/New_York unless overridden via the returned
// struct before further use.
func CreateTestCampaign(repo *FakeCampaignRepository, templateName string, nextRunAt *time.Time) (*models.Campaign, error) {
	schedule, err := models.ParseTimeOfDay("08:00")
	if err != nil {
		return nil, err
	}
	c := &models.Campaign{
		Name:         "Test Campaign " + templateName,
		TemplateName: templateName,
		MessageBody:  "Hi! This is a test reminder.",
		ScheduleTime: schedule,
		Timezone:     models.DefaultTimezone,
		IsActive:     utils.ToPtr(true),
		NextRunAt:    nextRunAt,
	}
	if err := repo.Save(context.Background(), c); err != nil {
		return nil, err
	}
	return c, nil
}

// CreateTestUsers saves n active users with valid E.164 phone numbers
func CreateTestUsers(repo *FakeUserRepository, n int) ([]*models.User, error) {
	users := make([]*models.User, 0, n)
	for i := 0; i < n; i++ {
		phone := fmt.Sprintf("+1212555%04d", i+1)
		u := &models.User{
			FirstName:   "User",
			LastName:    fmt.Sprintf("Number%d", i+1),
			PhoneNumber: utils.ToPtr(phone),
			IsActive:    utils.ToPtr(true),
		}
		if err := repo.Save(context.Background(), u); err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, nil
}

// TargetIDs converts users to the campaign targeting array
func TargetIDs(users []*models.User) pq.Int64Array {
	out := make(pq.Int64Array, 0, len(users))
	for _, u := range users {
		out = append(out, int64(u.ID))
	}
	return out
}
