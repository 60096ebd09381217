package memstore

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/xavierca1/linkedin-outreach/internal/entity"
)

// Seed is the YAML fixture loaded in dev mode: campaigns, accounts and
// approval sessions that the external ingestion would otherwise provide.
type Seed struct {
	Campaigns []seedCampaign `yaml:"campaigns"`
	Accounts  []seedAccount  `yaml:"accounts"`
	Sessions  []seedSession  `yaml:"sessions"`
}

type seedCampaign struct {
	ID                string   `yaml:"id"`
	WorkspaceID       string   `yaml:"workspace_id"`
	Name              string   `yaml:"name"`
	Channel           string   `yaml:"channel"`
	Type              string   `yaml:"campaign_type"`
	AccountID         string   `yaml:"account_id"`
	Active            bool     `yaml:"active"`
	ConnectionRequest string   `yaml:"connection_request"`
	FollowUps         []string `yaml:"follow_up_messages"`
}

type seedAccount struct {
	ID                string `yaml:"id"`
	WorkspaceID       string `yaml:"workspace_id"`
	Channel           string `yaml:"channel"`
	Name              string `yaml:"name"`
	ProviderAccountID string `yaml:"provider_account_id"`
	ConnectionStatus  string `yaml:"connection_status"`
	SendDelayMinutes  int    `yaml:"send_delay_minutes"`
	DailyLimit        int    `yaml:"daily_limit"`
}

type seedSession struct {
	ID            string       `yaml:"id"`
	WorkspaceID   string       `yaml:"workspace_id"`
	CampaignID    string       `yaml:"campaign_id"`
	CampaignName  string       `yaml:"campaign_name"`
	Tag           string       `yaml:"tag"`
	DeclaredTotal int          `yaml:"total_prospects"`
	CreatedAt     time.Time    `yaml:"created_at"`
	Staged        []seedStaged `yaml:"staged"`
}

type seedStaged struct {
	ID        string         `yaml:"id"`
	FirstName string         `yaml:"first_name"`
	LastName  string         `yaml:"last_name"`
	ProfileID string         `yaml:"profile_id"`
	Decision  string         `yaml:"decision"`
	Contact   map[string]any `yaml:"contact"`
}

func LoadSeedFile(path string) (*Seed, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read seed file: %w", err)
	}
	var seed Seed
	if err := yaml.Unmarshal(raw, &seed); err != nil {
		return nil, fmt.Errorf("parse seed file %s: %w", path, err)
	}
	return &seed, nil
}

// SeededSession is an approval session with its staged rows in file order.
type SeededSession struct {
	Session *entity.ApprovalSession
	Rows    []*entity.StagedProspect
}

// Entities converts the fixture into domain values. Staged rows keep file
// order; the store assigns their sequence on insert.
func (seed *Seed) Entities() ([]*entity.Campaign, []*entity.Account, []SeededSession, error) {
	campaigns := make([]*entity.Campaign, 0, len(seed.Campaigns))
	for _, c := range seed.Campaigns {
		channel := c.Channel
		if channel == "" {
			channel = entity.ChannelLinkedIn
		}
		campaignType := c.Type
		if campaignType == "" {
			campaignType = entity.CampaignTypeConnector
		}
		campaigns = append(campaigns, &entity.Campaign{
			ID:          c.ID,
			WorkspaceID: c.WorkspaceID,
			Name:        c.Name,
			Channel:     channel,
			Type:        campaignType,
			AccountID:   c.AccountID,
			Active:      c.Active,
			Templates: entity.MessageTemplates{
				ConnectionRequest: c.ConnectionRequest,
				FollowUps:         c.FollowUps,
			},
		})
	}

	accounts := make([]*entity.Account, 0, len(seed.Accounts))
	for _, a := range seed.Accounts {
		channel := a.Channel
		if channel == "" {
			channel = entity.ChannelLinkedIn
		}
		accounts = append(accounts, &entity.Account{
			ID:                a.ID,
			WorkspaceID:       a.WorkspaceID,
			Channel:           channel,
			Name:              a.Name,
			ProviderAccountID: a.ProviderAccountID,
			ConnectionStatus:  a.ConnectionStatus,
			SendDelay:         time.Duration(a.SendDelayMinutes) * time.Minute,
			DailyLimit:        a.DailyLimit,
		})
	}

	sessions := make([]SeededSession, 0, len(seed.Sessions))
	for _, sess := range seed.Sessions {
		rows := make([]*entity.StagedProspect, 0, len(sess.Staged))
		for _, st := range sess.Staged {
			var contact json.RawMessage
			if len(st.Contact) > 0 {
				b, err := json.Marshal(st.Contact)
				if err != nil {
					return nil, nil, nil, fmt.Errorf("session %s row %s: encode contact: %w", sess.ID, st.ID, err)
				}
				contact = b
			}
			decision := st.Decision
			if decision == "" {
				decision = entity.DecisionApproved
			}
			rows = append(rows, &entity.StagedProspect{
				ID:        st.ID,
				SessionID: sess.ID,
				FirstName: st.FirstName,
				LastName:  st.LastName,
				ProfileID: st.ProfileID,
				Contact:   contact,
				Decision:  decision,
			})
		}
		sessions = append(sessions, SeededSession{
			Session: &entity.ApprovalSession{
				ID:            sess.ID,
				WorkspaceID:   sess.WorkspaceID,
				CampaignID:    sess.CampaignID,
				CampaignName:  sess.CampaignName,
				Tag:           sess.Tag,
				DeclaredTotal: sess.DeclaredTotal,
				CreatedAt:     sess.CreatedAt,
			},
			Rows: rows,
		})
	}
	return campaigns, accounts, sessions, nil
}

// Apply loads the fixture into s.
func (seed *Seed) Apply(s *Store) error {
	campaigns, accounts, sessions, err := seed.Entities()
	if err != nil {
		return err
	}
	for _, c := range campaigns {
		s.PutCampaign(c)
	}
	for _, a := range accounts {
		s.PutAccount(a)
	}
	for _, ss := range sessions {
		s.PutSession(ss.Session, ss.Rows...)
	}
	return nil
}
