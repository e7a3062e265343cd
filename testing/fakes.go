// Package testing provides in-memory repository fakes for unit testing the
// campaign flows and the dispatch scheduler without a database.
package testing

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/bjohnson312/hi-emma-MVP-sub000/models"
	"github.com/bjohnson312/hi-emma-MVP-sub000/utils"
	"github.com/google/uuid"
)

// FakeCampaignRepository is a mutex-protected in-memory CampaignRepository.
// ClaimDue and AdvanceNextRun keep the same compare-and-swap semantics as the
// SQL implementation so concurrency tests exercise the real contract.
type FakeCampaignRepository struct {
	mu        sync.Mutex
	campaigns map[uint]*models.Campaign
	nextID    uint
}

func NewFakeCampaignRepository() *FakeCampaignRepository {
	return &FakeCampaignRepository{
		campaigns: make(map[uint]*models.Campaign),
		nextID:    1,
	}
}

func cloneCampaign(c *models.Campaign) *models.Campaign {
	if c == nil {
		return nil
	}
	cp := *c
	return &cp
}

func (r *FakeCampaignRepository) Save(ctx context.Context, c *models.Campaign) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if c.ID == 0 {
		c.ID = r.nextID
		r.nextID++
	}
	if c.UUID == uuid.Nil {
		c.UUID = uuid.New()
	}
	if c.Timezone == "" {
		c.Timezone = models.DefaultTimezone
	}
	if c.IsActive == nil {
		c.IsActive = utils.ToPtr(true)
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = utils.UTCNow()
	}
	r.campaigns[c.ID] = cloneCampaign(c)
	return nil
}

func (r *FakeCampaignRepository) SaveBatch(ctx context.Context, cs []*models.Campaign) error {
	for _, c := range cs {
		if err := r.Save(ctx, c); err != nil {
			return err
		}
	}
	return nil
}

func (r *FakeCampaignRepository) ByID(ctx context.Context, id uint) (*models.Campaign, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return cloneCampaign(r.campaigns[id]), nil
}

func (r *FakeCampaignRepository) ByUUID(ctx context.Context, id string) (*models.Campaign, error) {
	parsed, err := utils.ParseUUID(id)
	if err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range r.campaigns {
		if c.UUID == parsed && c.DeletedAt == nil {
			return cloneCampaign(c), nil
		}
	}
	return nil, nil
}

func (r *FakeCampaignRepository) ByTemplateName(ctx context.Context, templateName string) (*models.Campaign, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range r.campaigns {
		if c.TemplateName == templateName && c.DeletedAt == nil {
			return cloneCampaign(c), nil
		}
	}
	return nil, nil
}

func (r *FakeCampaignRepository) Update(ctx context.Context, campaign models.Campaign) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := utils.UTCNow()
	campaign.UpdatedAt = &now
	r.campaigns[campaign.ID] = cloneCampaign(&campaign)
	return nil
}

func (r *FakeCampaignRepository) MarkDeleted(ctx context.Context, id uint) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if c, ok := r.campaigns[id]; ok {
		now := utils.UTCNow()
		c.DeletedAt = &now
		c.IsActive = utils.ToPtr(false)
		c.NextRunAt = nil
	}
	return nil
}

func (r *FakeCampaignRepository) ListDue(ctx context.Context, now time.Time, limit int) ([]*models.Campaign, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var due []*models.Campaign
	for _, c := range r.campaigns {
		if c.DeletedAt != nil || !c.IsDue(now) {
			continue
		}
		if c.ClaimedUntil != nil && c.ClaimedUntil.After(now) {
			continue
		}
		due = append(due, cloneCampaign(c))
	}
	sort.Slice(due, func(i, j int) bool { return due[i].ID < due[j].ID })
	if limit > 0 && len(due) > limit {
		due = due[:limit]
	}
	return due, nil
}

func (r *FakeCampaignRepository) ClaimDue(ctx context.Context, id uint, occurrence, now, leaseUntil time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.campaigns[id]
	if !ok || c.DeletedAt != nil || !utils.IsTrue(c.IsActive) {
		return false, nil
	}
	if c.NextRunAt == nil || !c.NextRunAt.Equal(occurrence) {
		return false, nil
	}
	if c.ClaimedUntil != nil && c.ClaimedUntil.After(now) {
		return false, nil
	}
	c.ClaimedUntil = &leaseUntil
	return true, nil
}

func (r *FakeCampaignRepository) AdvanceNextRun(ctx context.Context, id uint, occurrence, next time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.campaigns[id]
	if !ok || c.NextRunAt == nil || !c.NextRunAt.Equal(occurrence) {
		return false, nil
	}
	n := next
	c.NextRunAt = &n
	c.ClaimedUntil = nil
	return true, nil
}

func (r *FakeCampaignRepository) ReleaseClaim(ctx context.Context, id uint, occurrence time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if c, ok := r.campaigns[id]; ok {
		if c.NextRunAt != nil && c.NextRunAt.Equal(occurrence) {
			c.ClaimedUntil = nil
		}
	}
	return nil
}

func (r *FakeCampaignRepository) ByFilter(ctx context.Context, filter models.CampaignFilter, orderBy string, limit, offset int) ([]*models.Campaign, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.Campaign
	for _, c := range r.campaigns {
		if r.matches(c, filter) {
			out = append(out, cloneCampaign(c))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	if offset > 0 {
		if offset >= len(out) {
			return nil, nil
		}
		out = out[offset:]
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *FakeCampaignRepository) Count(ctx context.Context, filter models.CampaignFilter) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for _, c := range r.campaigns {
		if r.matches(c, filter) {
			n++
		}
	}
	return n, nil
}

func (r *FakeCampaignRepository) Exists(ctx context.Context, filter models.CampaignFilter) (bool, error) {
	n, err := r.Count(ctx, filter)
	return n > 0, err
}

func (r *FakeCampaignRepository) matches(c *models.Campaign, f models.CampaignFilter) bool {
	if !f.IncludeDeleted && c.DeletedAt != nil {
		return false
	}
	if f.ID != nil && c.ID != *f.ID {
		return false
	}
	if f.UUID != nil && c.UUID != *f.UUID {
		return false
	}
	if f.TemplateName != nil && c.TemplateName != *f.TemplateName {
		return false
	}
	if f.IsActive != nil && utils.IsTrue(c.IsActive) != *f.IsActive {
		return false
	}
	if f.DueBefore != nil && (c.NextRunAt == nil || c.NextRunAt.After(*f.DueBefore)) {
		return false
	}
	if f.CreatedAfter != nil && !c.CreatedAt.After(*f.CreatedAfter) {
		return false
	}
	if f.CreatedBefore != nil && !c.CreatedAt.Before(*f.CreatedBefore) {
		return false
	}
	return true
}

// FakeCampaignSendRepository is an in-memory append-only send history
type FakeCampaignSendRepository struct {
	mu     sync.Mutex
	sends  []*models.CampaignSend
	nextID uint
}

func NewFakeCampaignSendRepository() *FakeCampaignSendRepository {
	return &FakeCampaignSendRepository{nextID: 1}
}

func cloneSend(s *models.CampaignSend) *models.CampaignSend {
	if s == nil {
		return nil
	}
	cp := *s
	return &cp
}

func (r *FakeCampaignSendRepository) Save(ctx context.Context, s *models.CampaignSend) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s.ID == 0 {
		s.ID = r.nextID
		r.nextID++
	}
	if s.SentAt.IsZero() {
		s.SentAt = utils.UTCNow()
	}
	r.sends = append(r.sends, cloneSend(s))
	return nil
}

func (r *FakeCampaignSendRepository) SaveBatch(ctx context.Context, ss []*models.CampaignSend) error {
	for _, s := range ss {
		if err := r.Save(ctx, s); err != nil {
			return err
		}
	}
	return nil
}

func (r *FakeCampaignSendRepository) ByID(ctx context.Context, id uint) (*models.CampaignSend, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range r.sends {
		if s.ID == id {
			return cloneSend(s), nil
		}
	}
	return nil, nil
}

func (r *FakeCampaignSendRepository) ListRecentByCampaign(ctx context.Context, campaignID uint, limit int) ([]*models.CampaignSend, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.CampaignSend
	for _, s := range r.sends {
		if s.CampaignID == campaignID {
			out = append(out, cloneSend(s))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].SentAt.Equal(out[j].SentAt) {
			return out[i].SentAt.After(out[j].SentAt)
		}
		return out[i].ID > out[j].ID
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *FakeCampaignSendRepository) CountByCampaign(ctx context.Context, campaignID uint) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for _, s := range r.sends {
		if s.CampaignID == campaignID {
			n++
		}
	}
	return n, nil
}

func (r *FakeCampaignSendRepository) CountBetween(ctx context.Context, campaignID uint, from, to time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for _, s := range r.sends {
		if s.CampaignID != campaignID {
			continue
		}
		if s.SentAt.Before(from) || !s.SentAt.Before(to) {
			continue
		}
		n++
	}
	return n, nil
}

func (r *FakeCampaignSendRepository) CountDelivered(ctx context.Context, campaignID uint) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for _, s := range r.sends {
		if s.CampaignID == campaignID && s.Status == models.SendStatusDelivered {
			n++
		}
	}
	return n, nil
}

func (r *FakeCampaignSendRepository) LastSentAt(ctx context.Context, campaignID uint) (*time.Time, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var last *time.Time
	for _, s := range r.sends {
		if s.CampaignID != campaignID {
			continue
		}
		if last == nil || s.SentAt.After(*last) {
			t := s.SentAt
			last = &t
		}
	}
	return last, nil
}

func (r *FakeCampaignSendRepository) DeliveredUserIDs(ctx context.Context, campaignID uint, occurrence time.Time) (map[uint]struct{}, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[uint]struct{})
	for _, s := range r.sends {
		if s.CampaignID == campaignID && s.Status == models.SendStatusDelivered && s.OccurrenceAt.Equal(occurrence) {
			out[s.UserID] = struct{}{}
		}
	}
	return out, nil
}

func (r *FakeCampaignSendRepository) ByFilter(ctx context.Context, filter models.CampaignSendFilter, orderBy string, limit, offset int) ([]*models.CampaignSend, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.CampaignSend
	for _, s := range r.sends {
		if r.matches(s, filter) {
			out = append(out, cloneSend(s))
		}
	}
	if offset > 0 {
		if offset >= len(out) {
			return nil, nil
		}
		out = out[offset:]
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *FakeCampaignSendRepository) Count(ctx context.Context, filter models.CampaignSendFilter) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for _, s := range r.sends {
		if r.matches(s, filter) {
			n++
		}
	}
	return n, nil
}

func (r *FakeCampaignSendRepository) Exists(ctx context.Context, filter models.CampaignSendFilter) (bool, error) {
	n, err := r.Count(ctx, filter)
	return n > 0, err
}

func (r *FakeCampaignSendRepository) matches(s *models.CampaignSend, f models.CampaignSendFilter) bool {
	if f.ID != nil && s.ID != *f.ID {
		return false
	}
	if f.CampaignID != nil && s.CampaignID != *f.CampaignID {
		return false
	}
	if f.UserID != nil && s.UserID != *f.UserID {
		return false
	}
	if f.Status != nil && s.Status != *f.Status {
		return false
	}
	if f.OccurrenceAt != nil && !s.OccurrenceAt.Equal(*f.OccurrenceAt) {
		return false
	}
	if f.SentAfter != nil && s.SentAt.Before(*f.SentAfter) {
		return false
	}
	if f.SentBefore != nil && !s.SentAt.Before(*f.SentBefore) {
		return false
	}
	return true
}

// FakeUserRepository is an in-memory UserRepository
type FakeUserRepository struct {
	mu     sync.Mutex
	users  []*models.User
	nextID uint
}

func NewFakeUserRepository() *FakeUserRepository {
	return &FakeUserRepository{nextID: 1}
}

func cloneUser(u *models.User) *models.User {
	if u == nil {
		return nil
	}
	cp := *u
	return &cp
}

func (r *FakeUserRepository) Save(ctx context.Context, u *models.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if u.ID == 0 {
		u.ID = r.nextID
		r.nextID++
	}
	if u.UUID == uuid.Nil {
		u.UUID = uuid.New()
	}
	if u.IsActive == nil {
		u.IsActive = utils.ToPtr(true)
	}
	r.users = append(r.users, cloneUser(u))
	return nil
}

func (r *FakeUserRepository) SaveBatch(ctx context.Context, us []*models.User) error {
	for _, u := range us {
		if err := r.Save(ctx, u); err != nil {
			return err
		}
	}
	return nil
}

func (r *FakeUserRepository) ByID(ctx context.Context, id uint) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.ID == id {
			return cloneUser(u), nil
		}
	}
	return nil, nil
}

func (r *FakeUserRepository) ByIDs(ctx context.Context, ids []uint) ([]*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	want := make(map[uint]struct{}, len(ids))
	for _, id := range ids {
		want[id] = struct{}{}
	}
	var out []*models.User
	for _, u := range r.users {
		if _, ok := want[u.ID]; ok {
			out = append(out, cloneUser(u))
		}
	}
	return out, nil
}

func (r *FakeUserRepository) ListActiveWithPhone(ctx context.Context) ([]*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.User
	for _, u := range r.users {
		if utils.IsTrue(u.IsActive) && u.HasPhone() {
			out = append(out, cloneUser(u))
		}
	}
	return out, nil
}

func (r *FakeUserRepository) ByFilter(ctx context.Context, filter models.UserFilter, orderBy string, limit, offset int) ([]*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.User
	for _, u := range r.users {
		if r.matches(u, filter) {
			out = append(out, cloneUser(u))
		}
	}
	if offset > 0 {
		if offset >= len(out) {
			return nil, nil
		}
		out = out[offset:]
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *FakeUserRepository) Count(ctx context.Context, filter models.UserFilter) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for _, u := range r.users {
		if r.matches(u, filter) {
			n++
		}
	}
	return n, nil
}

func (r *FakeUserRepository) Exists(ctx context.Context, filter models.UserFilter) (bool, error) {
	n, err := r.Count(ctx, filter)
	return n > 0, err
}

func (r *FakeUserRepository) matches(u *models.User, f models.UserFilter) bool {
	if f.ID != nil && u.ID != *f.ID {
		return false
	}
	if f.UUID != nil && u.UUID != *f.UUID {
		return false
	}
	if len(f.IDs) > 0 {
		found := false
		for _, id := range f.IDs {
			if u.ID == id {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if f.IsActive != nil && utils.IsTrue(u.IsActive) != *f.IsActive {
		return false
	}
	if f.HasPhone != nil && u.HasPhone() != *f.HasPhone {
		return false
	}
	return true
}
