package entity

import (
	"context"
	"errors"
	"strings"
)

const (
	ChannelLinkedIn = "linkedin"

	CampaignTypeConnector = "connector"
)

// MessageTemplates holds the campaign copy sent by the automation engine.
type MessageTemplates struct {
	ConnectionRequest string   `json:"connection_request"`
	FollowUps         []string `json:"follow_up_messages,omitempty"`
}

type Campaign struct {
	ID          string           `json:"id"`
	WorkspaceID string           `json:"workspace_id"`
	Name        string           `json:"name"`
	Channel     string           `json:"channel"`
	Type        string           `json:"campaign_type"`
	Templates   MessageTemplates `json:"message_templates"`
	AccountID   string           `json:"account_id,omitempty"`
	Active      bool             `json:"active"`
}

var ErrMissingConnectionTemplate = errors.New("campaign has no connection request template")

// Ready reports whether prospects of the campaign may leave pending.
func (c *Campaign) Ready() error {
	if strings.TrimSpace(c.Templates.ConnectionRequest) == "" {
		return ErrMissingConnectionTemplate
	}
	return nil
}

type CampaignRepository interface {
	FindByID(ctx context.Context, workspaceID, id string) (*Campaign, error)
	ListActive(ctx context.Context) ([]*Campaign, error)
}
