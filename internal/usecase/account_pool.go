package usecase

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/xavierca1/linkedin-outreach/internal/entity"
)

// AccountPool maps a workspace and channel to the one messaging account
// allowed to send for it.
type AccountPool struct {
	Repo     entity.AccountRepository
	Notifier OperatorNotifier
	Logger   *zap.Logger
}

func NewAccountPool(repo entity.AccountRepository, notifier OperatorNotifier, logger *zap.Logger) *AccountPool {
	if notifier == nil {
		notifier = NopNotifier{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AccountPool{Repo: repo, Notifier: notifier, Logger: logger}
}

// ResolveAccount returns the single connected account of the channel. Several
// connected accounts is a configuration error and is never resolved by picking one.
func (p *AccountPool) ResolveAccount(ctx context.Context, workspaceID, channel string) (*entity.Account, error) {
	accounts, err := p.Repo.ListByWorkspaceChannel(ctx, workspaceID, channel)
	if err != nil {
		return nil, &TechnicalError{Code: "DATABASE_ERROR", Message: "list accounts", Err: err}
	}

	var connected []*entity.Account
	for _, a := range accounts {
		if a.Connected() {
			connected = append(connected, a)
		}
	}

	switch len(connected) {
	case 0:
		return nil, &AccountUnavailableError{WorkspaceID: workspaceID, Channel: channel, Reason: "no connected account"}
	case 1:
		return connected[0], nil
	}

	ids := make([]string, 0, len(connected))
	for _, a := range connected {
		ids = append(ids, a.ID)
	}
	ambiguous := &AmbiguousAccountError{WorkspaceID: workspaceID, Channel: channel, AccountIDs: ids}
	p.Logger.Error("ambiguous account configuration",
		zap.String("workspace_id", workspaceID),
		zap.String("channel", channel),
		zap.Strings("account_ids", ids))
	p.alert(ctx, OperatorAlert{
		Kind:        AlertAmbiguousAccount,
		WorkspaceID: workspaceID,
		Subject:     fmt.Sprintf("Multiple connected %s accounts", channel),
		Detail:      ambiguous.Error(),
	})
	return nil, ambiguous
}

// ForCampaign returns the account a campaign sends through. An explicit
// assignment is authoritative: other connected accounts in the workspace do
// not make it ambiguous. A campaign without one falls back to ResolveAccount.
func (p *AccountPool) ForCampaign(ctx context.Context, c *entity.Campaign) (*entity.Account, error) {
	if c.AccountID == "" {
		return p.ResolveAccount(ctx, c.WorkspaceID, c.Channel)
	}

	account, err := p.Repo.FindByID(ctx, c.AccountID)
	if errors.Is(err, entity.ErrNotFound) {
		return nil, &AccountUnavailableError{WorkspaceID: c.WorkspaceID, Channel: c.Channel, AccountID: c.AccountID, Reason: "assigned account does not exist"}
	}
	if err != nil {
		return nil, &TechnicalError{Code: "DATABASE_ERROR", Message: "find account", Err: err}
	}

	if account.WorkspaceID != c.WorkspaceID || account.Channel != c.Channel {
		return nil, &AccountUnavailableError{WorkspaceID: c.WorkspaceID, Channel: c.Channel, AccountID: account.ID, Reason: "assigned account belongs to another workspace or channel"}
	}
	if !account.Connected() {
		return nil, &AccountUnavailableError{WorkspaceID: c.WorkspaceID, Channel: c.Channel, AccountID: account.ID, Reason: "connection status is " + account.ConnectionStatus}
	}
	return account, nil
}

func (p *AccountPool) alert(ctx context.Context, a OperatorAlert) {
	if err := p.Notifier.Alert(ctx, a); err != nil {
		p.Logger.Warn("operator alert failed", zap.String("kind", a.Kind), zap.Error(err))
	}
}
