package dto

// CampaignDTO is the API representation of a campaign
type CampaignDTO struct {
	UUID          string `json:"uuid"`
	Name          string `json:"name"`
	TemplateName  string `json:"template_name"`
	MessageBody   string `json:"message_body"`
	ScheduleTime  string `json:"schedule_time"`
	Timezone      string `json:"timezone"`
	IsActive      bool   `json:"is_active"`
	TargetUserIDs []uint `json:"target_user_ids,omitempty"`
	NextRunAt     string `json:"next_run_at,omitempty"`
	CreatedAt     string `json:"created_at"`
	UpdatedAt     string `json:"updated_at,omitempty"`
}

// CampaignSendDTO is the API representation of one send history row
type CampaignSendDTO struct {
	UserID       uint   `json:"user_id"`
	PhoneNumber  string `json:"phone_number"`
	OccurrenceAt string `json:"occurrence_at"`
	Status       string `json:"status"`
	ProviderID   string `json:"provider_id,omitempty"`
	ErrorMessage string `json:"error_message,omitempty"`
	SentAt       string `json:"sent_at"`
}

// CreateCampaignRequest represents the request to create a new campaign
type CreateCampaignRequest struct {
	Name          string `json:"name" validate:"required,max=255"`
	TemplateName  string `json:"template_name" validate:"required,max=255"`
	MessageBody   string `json:"message_body" validate:"required,max=1600"`
	ScheduleTime  string `json:"schedule_time" validate:"required,len=5"`
	Timezone      string `json:"timezone,omitempty" validate:"omitempty,max=64"`
	IsActive      *bool  `json:"is_active,omitempty"`
	TargetUserIDs []uint `json:"target_user_ids,omitempty"`
}

// CreateCampaignResponse represents the response to create a new campaign
type CreateCampaignResponse struct {
	Message  string      `json:"message"`
	Campaign CampaignDTO `json:"campaign"`
}

// UpdateCampaignRequest represents the request to update an existing campaign
type UpdateCampaignRequest struct {
	UUID          string  `json:"-"`
	Name          *string `json:"name,omitempty" validate:"omitempty,max=255"`
	TemplateName  *string `json:"template_name,omitempty" validate:"omitempty,max=255"`
	MessageBody   *string `json:"message_body,omitempty" validate:"omitempty,max=1600"`
	ScheduleTime  *string `json:"schedule_time,omitempty" validate:"omitempty,len=5"`
	Timezone      *string `json:"timezone,omitempty" validate:"omitempty,max=64"`
	TargetUserIDs *[]uint `json:"target_user_ids,omitempty"`
}

// UpdateCampaignResponse represents the response to update an existing campaign
type UpdateCampaignResponse struct {
	Message  string      `json:"message"`
	Campaign CampaignDTO `json:"campaign"`
}

// ToggleCampaignRequest represents the request to activate or deactivate a campaign
type ToggleCampaignRequest struct {
	UUID     string `json:"-"`
	IsActive bool   `json:"is_active"`
}

// ToggleCampaignResponse represents the response to a toggle request
type ToggleCampaignResponse struct {
	Message  string      `json:"message"`
	Campaign CampaignDTO `json:"campaign"`
}

// ListCampaignsRequest represents the request to list campaigns
type ListCampaignsRequest struct {
	Page     int   `json:"page" query:"page" validate:"omitempty,min=1"`
	PageSize int   `json:"page_size" query:"page_size" validate:"omitempty,min=1,max=100"`
	IsActive *bool `json:"is_active" query:"is_active"`
}

// ListCampaignsResponse represents the response to list campaigns
type ListCampaignsResponse struct {
	Message    string         `json:"message"`
	Campaigns  []CampaignDTO  `json:"campaigns"`
	Pagination PaginationInfo `json:"pagination"`
}

// DeleteCampaignResponse represents the response to delete a campaign
type DeleteCampaignResponse struct {
	Message string `json:"message"`
}

// CampaignStatsResponse represents the aggregated stats for a campaign
type CampaignStatsResponse struct {
	Message          string            `json:"message"`
	CampaignUUID     string            `json:"campaign_uuid"`
	TotalSends       int64             `json:"total_sends"`
	TotalDelivered   int64             `json:"total_delivered"`
	SendsToday       int64             `json:"sends_today"`
	LastSentAt       string            `json:"last_sent_at,omitempty"`
	NextRunAt        string            `json:"next_run_at,omitempty"`
	AudienceSize     int               `json:"audience_size"`
	AudienceExcluded int               `json:"audience_excluded"`
	RecentSends      []CampaignSendDTO `json:"recent_sends"`
}
