// Package businessflow contains the core business logic and use cases for campaign workflows
package businessflow

import (
	"context"

	"github.com/bjohnson312/hi-emma-MVP-sub000/models"
	"github.com/bjohnson312/hi-emma-MVP-sub000/repository"
	"github.com/bjohnson312/hi-emma-MVP-sub000/utils"
	"github.com/nyaruka/phonenumbers"
)

// DefaultPhoneRegion is assumed for numbers stored without a country prefix.
const DefaultPhoneRegion = "US"

// Recipient is one deliverable member of a campaign audience
type Recipient struct {
	UserID      uint
	PhoneNumber string
}

// Audience is the resolved recipient set for one dispatch, plus how many
// users had to be excluded for being deactivated or lacking a usable phone.
type Audience struct {
	Recipients []Recipient
	Excluded   int
}

// AudienceResolver resolves a campaign's recipient list. Resolution happens
// at dispatch time, never at campaign creation, so membership changes between
// occurrences are always picked up.
type AudienceResolver interface {
	Resolve(ctx context.Context, campaign *models.Campaign) (*Audience, error)
}

// AudienceResolverImpl implements AudienceResolver on top of the user repository
type AudienceResolverImpl struct {
	userRepo repository.UserRepository
}

// NewAudienceResolver creates a new audience resolver instance
func NewAudienceResolver(userRepo repository.UserRepository) AudienceResolver {
	return &AudienceResolverImpl{
		userRepo: userRepo,
	}
}

// Resolve builds the recipient list for one dispatch. A targeted campaign
// resolves its stored user IDs; an untargeted one addresses every active user
// with a phone on file. Deactivated users and users without a valid number are
// counted as excluded, not failed; targeting does not override deactivation.
func (r *AudienceResolverImpl) Resolve(ctx context.Context, campaign *models.Campaign) (*Audience, error) {
	var (
		users []*models.User
		err   error
	)

	if campaign.IsTargeted() {
		ids := make([]uint, 0, len(campaign.TargetUserIDs))
		for _, id := range campaign.TargetUserIDs {
			ids = append(ids, uint(id))
		}
		users, err = r.userRepo.ByIDs(ctx, ids)
	} else {
		users, err = r.userRepo.ListActiveWithPhone(ctx)
	}
	if err != nil {
		return nil, NewBusinessError("AUDIENCE_RESOLUTION_FAILED", "Failed to resolve campaign audience", err)
	}

	audience := &Audience{}
	seen := make(map[uint]struct{}, len(users))
	for _, u := range users {
		if _, dup := seen[u.ID]; dup {
			continue
		}
		seen[u.ID] = struct{}{}

		if !utils.IsTrue(u.IsActive) {
			audience.Excluded++
			continue
		}
		if !u.HasPhone() {
			audience.Excluded++
			continue
		}
		normalized, ok := normalizePhone(*u.PhoneNumber)
		if !ok {
			audience.Excluded++
			continue
		}

		audience.Recipients = append(audience.Recipients, Recipient{
			UserID:      u.ID,
			PhoneNumber: normalized,
		})
	}

	return audience, nil
}

// normalizePhone canonicalizes a stored phone number to E.164
func normalizePhone(raw string) (string, bool) {
	parsed, err := phonenumbers.Parse(raw, DefaultPhoneRegion)
	if err != nil {
		return "", false
	}
	if !phonenumbers.IsValidNumber(parsed) {
		return "", false
	}
	return phonenumbers.Format(parsed, phonenumbers.E164), true
}
