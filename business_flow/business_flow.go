// Package businessflow contains the business logic for the application.
package businessflow

import (
	"time"

	"github.com/bjohnson312/hi-emma-MVP-sub000/app/dto"
	"github.com/bjohnson312/hi-emma-MVP-sub000/models"
)

const RequestIDKey = "X-Request-ID"

// ClientMetadata holds client-related information for request tracking
type ClientMetadata struct {
	IPAddress string `json:"ip_address"`
	UserAgent string `json:"user_agent"`
	RequestID string `json:"request_id,omitempty"`
}

// NewClientMetadata creates a new ClientMetadata instance with basic information
func NewClientMetadata(ipAddress, userAgent string) *ClientMetadata {
	return &ClientMetadata{
		IPAddress: ipAddress,
		UserAgent: userAgent,
	}
}

// SetRequestID sets the request ID
func (cm *ClientMetadata) SetRequestID(requestID string) {
	cm.RequestID = requestID
}

// ToCampaignDTO converts a campaign model to its API representation
func ToCampaignDTO(campaign models.Campaign) dto.CampaignDTO {
	d := dto.CampaignDTO{
		UUID:         campaign.UUID.String(),
		Name:         campaign.Name,
		TemplateName: campaign.TemplateName,
		MessageBody:  campaign.MessageBody,
		ScheduleTime: campaign.ScheduleTime.String(),
		Timezone:     campaign.Timezone,
		IsActive:     campaign.IsActive != nil && *campaign.IsActive,
		CreatedAt:    campaign.CreatedAt.Format(time.RFC3339),
	}

	for _, id := range campaign.TargetUserIDs {
		d.TargetUserIDs = append(d.TargetUserIDs, uint(id))
	}
	if campaign.NextRunAt != nil {
		d.NextRunAt = campaign.NextRunAt.UTC().Format(time.RFC3339)
	}
	if campaign.UpdatedAt != nil {
		d.UpdatedAt = campaign.UpdatedAt.Format(time.RFC3339)
	}

	return d
}

// ToCampaignSendDTO converts a send history row to its API representation
func ToCampaignSendDTO(send models.CampaignSend) dto.CampaignSendDTO {
	d := dto.CampaignSendDTO{
		UserID:       send.UserID,
		PhoneNumber:  send.PhoneNumber,
		OccurrenceAt: send.OccurrenceAt.UTC().Format(time.RFC3339),
		Status:       send.Status.String(),
		SentAt:       send.SentAt.UTC().Format(time.RFC3339),
	}

	if send.ProviderID != nil {
		d.ProviderID = *send.ProviderID
	}
	if send.ErrorMessage != nil {
		d.ErrorMessage = *send.ErrorMessage
	}

	return d
}
