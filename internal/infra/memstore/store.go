// Package memstore keeps every repository in process memory behind one
// mutex. It honours the same compare-and-set contracts as the PostgreSQL
// repositories and backs dev mode and the use case tests.
package memstore

import (
	"sync"
	"time"

	"github.com/xavierca1/linkedin-outreach/internal/entity"
)

type lease struct {
	holder    string
	expiresAt time.Time
}

type Store struct {
	mu sync.Mutex

	prospects map[string]*entity.Prospect
	events    []entity.StatusEvent

	sessions  map[string]*entity.ApprovalSession
	staged    map[string][]*entity.StagedProspect
	campaigns map[string]*entity.Campaign

	accounts   map[string]*entity.Account
	watermarks map[string]entity.Watermark

	leases map[string]lease

	// stagedSeq mirrors the BIGSERIAL on staged_prospects: one counter for
	// the whole store, so staging order holds across sessions.
	stagedSeq int64
}

func New() *Store {
	return &Store{
		prospects:  make(map[string]*entity.Prospect),
		sessions:   make(map[string]*entity.ApprovalSession),
		staged:     make(map[string][]*entity.StagedProspect),
		campaigns:  make(map[string]*entity.Campaign),
		accounts:   make(map[string]*entity.Account),
		watermarks: make(map[string]entity.Watermark),
		leases:     make(map[string]lease),
	}
}

func (s *Store) Prospects() *ProspectRepository { return &ProspectRepository{s} }
func (s *Store) Sessions() *SessionRepository   { return &SessionRepository{s} }
func (s *Store) Campaigns() *CampaignRepository { return &CampaignRepository{s} }
func (s *Store) Accounts() *AccountRepository   { return &AccountRepository{s} }
func (s *Store) Leases() *LeaseRepository       { return &LeaseRepository{s} }

func (s *Store) PutCampaign(c *entity.Campaign) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *c
	s.campaigns[c.ID] = &cp
}

func (s *Store) PutAccount(a *entity.Account) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *a
	s.accounts[a.ID] = &cp
}

// PutSession stores a session with its staged rows, as the ingestion process
// would. Rows get the next store-wide sequence numbers in argument order.
func (s *Store) PutSession(session *entity.ApprovalSession, rows ...*entity.StagedProspect) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *session
	s.sessions[session.ID] = &cp

	staged := make([]*entity.StagedProspect, 0, len(rows))
	for _, r := range rows {
		row := *r
		row.SessionID = session.ID
		s.stagedSeq++
		row.Seq = s.stagedSeq
		staged = append(staged, &row)
	}
	s.staged[session.ID] = staged
}

func cloneProspect(p *entity.Prospect) *entity.Prospect {
	cp := *p
	cp.ScheduledSendAt = cloneTime(p.ScheduledSendAt)
	cp.ContactedAt = cloneTime(p.ContactedAt)
	cp.DispatchedAt = cloneTime(p.DispatchedAt)
	cp.NextAttemptAt = cloneTime(p.NextAttemptAt)
	if p.Contact != nil {
		cp.Contact = append([]byte(nil), p.Contact...)
	}
	return &cp
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}

func limit[T any](items []T, n int) []T {
	if n > 0 && len(items) > n {
		return items[:n]
	}
	return items
}
