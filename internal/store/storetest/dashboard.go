package storetest

import (
	"context"
	"sort"

	"freelancehub/internal/model"
)

func (s *Store) ClientDashboard(ctx context.Context, clientID int64) (*model.DashboardStats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var st model.DashboardStats
	for _, p := range s.sortedProjects() {
		if p.ClientID != clientID {
			continue
		}
		countStatus(&st, p.Status)
		for _, pr := range s.st.proposals {
			if pr.ProjectID == p.ID && pr.Status == model.ProposalPending {
				st.PendingProposals++
			}
		}
	}
	return &st, nil
}

func (s *Store) FreelancerDashboard(ctx context.Context, freelancerID int64) (*model.DashboardStats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var st model.DashboardStats
	proposed := s.proposedTo(freelancerID)
	for _, p := range s.sortedProjects() {
		if p.Status == model.ProjectOpen && !proposed[p.ID] {
			st.AvailableProjects++
		}
		if p.FreelancerID != nil && *p.FreelancerID == freelancerID {
			countStatus(&st, p.Status)
		}
	}
	for _, pr := range s.st.proposals {
		if pr.FreelancerID == freelancerID && pr.Status == model.ProposalPending {
			st.PendingProposals++
		}
	}
	return &st, nil
}

func countStatus(st *model.DashboardStats, status model.ProjectStatus) {
	switch status {
	case model.ProjectOpen:
		st.OpenProjects++
	case model.ProjectInProgress:
		st.InProgressProjects++
	case model.ProjectCompleted:
		st.CompletedProjects++
	}
}

func (s *Store) ClientActivity(ctx context.Context, clientID int64, limit int) ([]model.ActivityItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.activity(limit,
		func(p model.Project) bool { return p.ClientID == clientID },
		func(pr model.Proposal, p model.Project) bool { return p.ClientID == clientID },
	), nil
}

func (s *Store) FreelancerActivity(ctx context.Context, freelancerID int64, limit int) ([]model.ActivityItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.activity(limit,
		func(p model.Project) bool { return p.FreelancerID != nil && *p.FreelancerID == freelancerID },
		func(pr model.Proposal, p model.Project) bool { return pr.FreelancerID == freelancerID },
	), nil
}

func (s *Store) activity(limit int, project func(model.Project) bool, proposal func(model.Proposal, model.Project) bool) []model.ActivityItem {
	out := []model.ActivityItem{}
	for _, p := range s.sortedProjects() {
		if project(p) {
			out = append(out, model.ActivityItem{
				Type: model.ActivityProject, ID: p.ID, ProjectID: p.ID,
				Title: p.Title, Status: string(p.Status), Date: p.UpdatedAt,
			})
		}
	}
	for _, pr := range s.st.proposals {
		p := s.st.projects[pr.ProjectID]
		if proposal(pr, p) {
			out = append(out, model.ActivityItem{
				Type: model.ActivityProposal, ID: pr.ID, ProjectID: p.ID,
				Title: p.Title, Status: string(pr.Status), Date: pr.UpdatedAt,
			})
		}
	}
	// 与 SQL 的 ORDER BY at DESC, kind, id DESC 一致
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if !a.Date.Equal(b.Date) {
			return a.Date.After(b.Date)
		}
		if a.Type != b.Type {
			return a.Type < b.Type
		}
		return a.ID > b.ID
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}
