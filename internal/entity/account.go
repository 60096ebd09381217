package entity

import (
	"context"
	"time"
)

const (
	ConnectionConnected    = "connected"
	ConnectionDisconnected = "disconnected"
)

// Account is a workspace scoped messaging credential handle.
type Account struct {
	ID                string        `json:"id"`
	WorkspaceID       string        `json:"workspace_id"`
	Channel           string        `json:"channel"`
	Name              string        `json:"name"`
	ProviderAccountID string        `json:"provider_account_id"`
	ConnectionStatus  string        `json:"connection_status"`
	SendDelay         time.Duration `json:"send_delay"` // zero means the configured default
	DailyLimit        int           `json:"daily_limit"`
}

func (a *Account) Connected() bool {
	return a.ConnectionStatus == ConnectionConnected
}

// Watermark is the per-account scheduling cursor: the last slot handed out
// and how many slots fell on that slot's local day.
type Watermark struct {
	LastSlot time.Time `json:"last_slot"`
	DayCount int       `json:"day_count"`
}

type AccountRepository interface {
	FindByID(ctx context.Context, id string) (*Account, error)
	ListByWorkspaceChannel(ctx context.Context, workspaceID, channel string) ([]*Account, error)
	GetWatermark(ctx context.Context, accountID string) (Watermark, error)
	SaveWatermark(ctx context.Context, accountID string, wm Watermark) error
}
