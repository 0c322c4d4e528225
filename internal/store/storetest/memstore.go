// Package storetest provides an in-memory store.Store for tests. Each
// transaction runs against a private copy of the data under one mutex and is
// swapped in only when the transaction function returns nil.
package storetest

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"freelancehub/internal/model"
	"freelancehub/internal/store"
	"freelancehub/pkg/outbox"
)

type state struct {
	nextID     int64
	users      map[int64]model.User
	skills     map[int64]string
	userSkills map[int64][]int64
	projects   map[int64]model.Project
	proposals  map[int64]model.Proposal
	prefs      map[int64]model.Preference
	history    []model.HistoryEntry
	ratings    []model.Rating
	events     []*outbox.Event
}

func newState() *state {
	return &state{
		users:      map[int64]model.User{},
		skills:     map[int64]string{},
		userSkills: map[int64][]int64{},
		projects:   map[int64]model.Project{},
		proposals:  map[int64]model.Proposal{},
		prefs:      map[int64]model.Preference{},
	}
}

func (s *state) clone() *state {
	c := newState()
	c.nextID = s.nextID
	for k, v := range s.users {
		c.users[k] = v
	}
	for k, v := range s.skills {
		c.skills[k] = v
	}
	for k, v := range s.userSkills {
		c.userSkills[k] = append([]int64(nil), v...)
	}
	for k, v := range s.projects {
		c.projects[k] = v
	}
	for k, v := range s.proposals {
		c.proposals[k] = v
	}
	for k, v := range s.prefs {
		c.prefs[k] = v
	}
	c.history = append([]model.HistoryEntry(nil), s.history...)
	c.ratings = append([]model.Rating(nil), s.ratings...)
	c.events = append([]*outbox.Event(nil), s.events...)
	return c
}

func (s *state) id() int64 {
	s.nextID++
	return s.nextID
}

// Store is an in-memory store.Store.
type Store struct {
	mu     sync.Mutex
	st     *state
	faults map[string]error
	now    func() time.Time
}

func New() *Store {
	return &Store{
		st:     newState(),
		faults: map[string]error{},
		now:    time.Now,
	}
}

// FailOn makes the next call to the named Tx method return err.
func (s *Store) FailOn(method string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.faults[method] = err
}

func (s *Store) WithTx(ctx context.Context, fn func(ctx context.Context, tx store.Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}
	work := s.st.clone()
	if err := fn(ctx, &tx{st: work, parent: s}); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	s.st = work
	return nil
}

// --- seeding and inspection helpers ---

func (s *Store) AddUser(name, role string) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.st.id()
	s.st.users[id] = model.User{
		ID:        id,
		Name:      name,
		Email:     strings.ToLower(name) + "@example.com",
		Role:      role,
		CreatedAt: s.now(),
	}
	return id
}

func (s *Store) AddSkill(id int64, name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.st.skills[id] = name
}

func (s *Store) SetUserSkills(userID int64, skillIDs ...int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.st.userSkills[userID] = append([]int64(nil), skillIDs...)
}

// PutProject stores p as-is, assigning an id when p.ID is zero.
func (s *Store) PutProject(p model.Project) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p.ID == 0 {
		p.ID = s.st.id()
	}
	if p.Status == "" {
		p.Status = model.ProjectOpen
	}
	s.st.projects[p.ID] = p
	return p.ID
}

func (s *Store) AddHistory(h model.HistoryEntry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.st.history = append(s.st.history, h)
}

func (s *Store) AddRating(r model.Rating) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r.ID = s.st.id()
	s.st.ratings = append(s.st.ratings, r)
}

func (s *Store) Project(id int64) (model.Project, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.st.projects[id]
	return p, ok
}

func (s *Store) Proposal(id int64) (model.Proposal, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.st.proposals[id]
	return p, ok
}

func (s *Store) ProposalsFor(projectID int64) []model.Proposal {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.Proposal
	for _, p := range s.st.proposals {
		if p.ProjectID == projectID {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (s *Store) History(userID int64) []model.HistoryEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.HistoryEntry
	for _, h := range s.st.history {
		if h.UserID == userID {
			out = append(out, h)
		}
	}
	return out
}

// Events returns the committed outbox events in insertion order.
func (s *Store) Events() []*outbox.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*outbox.Event(nil), s.st.events...)
}

func (s *Store) EventsWithKey(routingKey string) []*outbox.Event {
	var out []*outbox.Event
	for _, ev := range s.Events() {
		if ev.RoutingKey == routingKey {
			out = append(out, ev)
		}
	}
	return out
}

// --- store.Tx ---

type tx struct {
	st     *state
	parent *Store
}

func (t *tx) fault(method string) error {
	if err, ok := t.parent.faults[method]; ok {
		delete(t.parent.faults, method)
		return err
	}
	return nil
}

func (t *tx) GetProject(ctx context.Context, id int64) (*model.Project, error) {
	if err := t.fault("GetProject"); err != nil {
		return nil, err
	}
	p, ok := t.st.projects[id]
	if !ok {
		return nil, fmt.Errorf("project %d: %w", id, store.ErrNotFound)
	}
	p.Status = p.Status.Normalize()
	return &p, nil
}

func (t *tx) GetProjectForUpdate(ctx context.Context, id int64) (*model.Project, error) {
	if err := t.fault("GetProjectForUpdate"); err != nil {
		return nil, err
	}
	return t.GetProject(ctx, id)
}

func (t *tx) InsertProject(ctx context.Context, p *model.Project) error {
	if err := t.fault("InsertProject"); err != nil {
		return err
	}
	for _, id := range p.SkillIDs {
		if _, ok := t.st.skills[id]; !ok {
			return fmt.Errorf("insert project skill %d: %w", id, store.ErrInvalidReference)
		}
	}
	p.ID = t.st.id()
	p.CreatedAt = t.parent.now()
	p.UpdatedAt = p.CreatedAt
	t.st.projects[p.ID] = *p
	return nil
}

func (t *tx) UpdateProjectStatus(ctx context.Context, id int64, status model.ProjectStatus, freelancerID *int64) error {
	if err := t.fault("UpdateProjectStatus"); err != nil {
		return err
	}
	p, ok := t.st.projects[id]
	if !ok {
		return fmt.Errorf("project %d: %w", id, store.ErrNotFound)
	}
	p.Status = status
	if freelancerID != nil {
		fid := *freelancerID
		p.FreelancerID = &fid
	}
	p.UpdatedAt = t.parent.now()
	t.st.projects[id] = p
	return nil
}

func (t *tx) GetProposal(ctx context.Context, id int64) (*model.Proposal, error) {
	if err := t.fault("GetProposal"); err != nil {
		return nil, err
	}
	p, ok := t.st.proposals[id]
	if !ok {
		return nil, fmt.Errorf("proposal %d: %w", id, store.ErrNotFound)
	}
	return &p, nil
}

func (t *tx) FindProposal(ctx context.Context, projectID, freelancerID int64) (*model.Proposal, error) {
	for _, p := range t.st.proposals {
		if p.ProjectID == projectID && p.FreelancerID == freelancerID {
			found := p
			return &found, nil
		}
	}
	return nil, store.ErrNotFound
}

func (t *tx) InsertProposal(ctx context.Context, p *model.Proposal) error {
	if err := t.fault("InsertProposal"); err != nil {
		return err
	}
	if _, err := t.FindProposal(ctx, p.ProjectID, p.FreelancerID); err == nil {
		return fmt.Errorf("proposals_project_freelancer: %w", store.ErrDuplicate)
	}
	p.ID = t.st.id()
	p.SubmittedAt = t.parent.now()
	p.UpdatedAt = p.SubmittedAt
	t.st.proposals[p.ID] = *p
	return nil
}

func (t *tx) UpdateProposalStatus(ctx context.Context, id int64, status model.ProposalStatus) error {
	if err := t.fault("UpdateProposalStatus"); err != nil {
		return err
	}
	p, ok := t.st.proposals[id]
	if !ok {
		return fmt.Errorf("proposal %d: %w", id, store.ErrNotFound)
	}
	// mirrors the partial unique index on accepted proposals
	if status == model.ProposalAccepted {
		for _, other := range t.st.proposals {
			if other.ID != id && other.ProjectID == p.ProjectID && other.Status == model.ProposalAccepted {
				return fmt.Errorf("proposals_one_accepted: %w", store.ErrDuplicate)
			}
		}
	}
	p.Status = status
	p.UpdatedAt = t.parent.now()
	t.st.proposals[id] = p
	return nil
}

func (t *tx) RejectPendingExcept(ctx context.Context, projectID, keepID int64) ([]model.Proposal, error) {
	if err := t.fault("RejectPendingExcept"); err != nil {
		return nil, err
	}
	var rejected []model.Proposal
	for id, p := range t.st.proposals {
		if p.ProjectID == projectID && id != keepID && p.Status == model.ProposalPending {
			p.Status = model.ProposalRejected
			p.UpdatedAt = t.parent.now()
			t.st.proposals[id] = p
			rejected = append(rejected, p)
		}
	}
	sort.Slice(rejected, func(i, j int) bool { return rejected[i].ID < rejected[j].ID })
	return rejected, nil
}

func (t *tx) DeleteProposal(ctx context.Context, id int64) error {
	if err := t.fault("DeleteProposal"); err != nil {
		return err
	}
	if _, ok := t.st.proposals[id]; !ok {
		return fmt.Errorf("proposal %d: %w", id, store.ErrNotFound)
	}
	delete(t.st.proposals, id)
	return nil
}

func (t *tx) CountAccepted(ctx context.Context, projectID int64) (int, error) {
	if err := t.fault("CountAccepted"); err != nil {
		return 0, err
	}
	n := 0
	for _, p := range t.st.proposals {
		if p.ProjectID == projectID && p.Status == model.ProposalAccepted {
			n++
		}
	}
	return n, nil
}

func (t *tx) UpsertPreference(ctx context.Context, p *model.Preference) error {
	if err := t.fault("UpsertPreference"); err != nil {
		return err
	}
	p.UpdatedAt = t.parent.now()
	t.st.prefs[p.UserID] = *p
	return nil
}

func (t *tx) InsertRating(ctx context.Context, r *model.Rating) error {
	if err := t.fault("InsertRating"); err != nil {
		return err
	}
	for _, existing := range t.st.ratings {
		if existing.ProjectID == r.ProjectID && existing.RaterID == r.RaterID {
			return fmt.Errorf("ratings_project_rater: %w", store.ErrDuplicate)
		}
	}
	r.ID = t.st.id()
	r.CreatedAt = t.parent.now()
	t.st.ratings = append(t.st.ratings, *r)
	return nil
}

func (t *tx) InsertHistory(ctx context.Context, h *model.HistoryEntry) error {
	if err := t.fault("InsertHistory"); err != nil {
		return err
	}
	if h.AppliedAt.IsZero() {
		h.AppliedAt = t.parent.now()
	}
	t.st.history = append(t.st.history, *h)
	return nil
}

func (t *tx) EnqueueEvent(ctx context.Context, ev *outbox.Event) error {
	if err := t.fault("EnqueueEvent"); err != nil {
		return err
	}
	ev.ID = t.st.id()
	ev.CreatedAt = t.parent.now()
	ev.UpdatedAt = ev.CreatedAt
	t.st.events = append(t.st.events, ev)
	return nil
}
