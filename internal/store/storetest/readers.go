package storetest

import (
	"context"
	"fmt"
	"sort"

	"freelancehub/internal/model"
	"freelancehub/internal/store"
)

// Read-side queries used by the catalog and recommendation services. They
// mirror the filter semantics of internal/repository.

func (s *Store) GetProject(ctx context.Context, id int64) (*model.Project, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.st.projects[id]
	if !ok {
		return nil, fmt.Errorf("project %d: %w", id, store.ErrNotFound)
	}
	p.Status = p.Status.Normalize()
	return &p, nil
}

func (s *Store) proposedTo(freelancerID int64) map[int64]bool {
	out := map[int64]bool{}
	for _, p := range s.st.proposals {
		if p.FreelancerID == freelancerID {
			out[p.ProjectID] = true
		}
	}
	return out
}

func (s *Store) sortedProjects() []model.Project {
	out := make([]model.Project, 0, len(s.st.projects))
	for _, p := range s.st.projects {
		p.Status = p.Status.Normalize()
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (s *Store) ListAvailable(ctx context.Context, f model.ProjectFilter) ([]model.Project, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	proposed := s.proposedTo(f.FreelancerID)
	var out []model.Project
	for _, p := range s.sortedProjects() {
		if p.Status != model.ProjectOpen || proposed[p.ID] {
			continue
		}
		if f.MinBudget != nil && p.Budget < *f.MinBudget {
			continue
		}
		if f.MaxBudget != nil && p.Budget > *f.MaxBudget {
			continue
		}
		if f.MinWorkHours != nil && (p.ExpectedWorkHours == nil || *p.ExpectedWorkHours < *f.MinWorkHours) {
			continue
		}
		if f.MaxWorkHours != nil && (p.ExpectedWorkHours == nil || *p.ExpectedWorkHours > *f.MaxWorkHours) {
			continue
		}
		if len(f.SkillIDs) > 0 && overlap(p.SkillIDs, f.SkillIDs) == 0 {
			continue
		}
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

func (s *Store) ListClientProjects(ctx context.Context, clientID int64) ([]model.ProjectSummary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []model.ProjectSummary
	for _, p := range s.sortedProjects() {
		if p.ClientID != clientID {
			continue
		}
		n := 0
		for _, pr := range s.st.proposals {
			if pr.ProjectID == p.ID {
				n++
			}
		}
		out = append(out, model.ProjectSummary{Project: p, ProposalCount: n})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

func (s *Store) ListProjectProposals(ctx context.Context, projectID int64, by model.ProposalSort) ([]model.ProposalView, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []model.ProposalView
	for _, p := range s.st.proposals {
		if p.ProjectID != projectID {
			continue
		}
		v := model.ProposalView{Proposal: p, FreelancerName: s.st.users[p.FreelancerID].Name}
		sum := 0
		for _, r := range s.st.ratings {
			if r.RateeID == p.FreelancerID {
				sum += r.Score
				v.RatingCount++
			}
		}
		if v.RatingCount > 0 {
			avg := float64(sum) / float64(v.RatingCount)
			v.AverageRating = &avg
		}
		for _, id := range s.st.userSkills[p.FreelancerID] {
			v.Skills = append(v.Skills, s.st.skills[id])
		}
		out = append(out, v)
	}

	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		switch by {
		case model.SortByPrice:
			if a.ProposedAmount != b.ProposedAmount {
				return a.ProposedAmount < b.ProposedAmount
			}
		case model.SortByRating:
			ar, br := ratingOrZero(a.AverageRating), ratingOrZero(b.AverageRating)
			if ar != br {
				return ar > br
			}
		}
		return a.ID > b.ID
	})
	return out, nil
}

func ratingOrZero(r *float64) float64 {
	if r == nil {
		return 0
	}
	return *r
}

func (s *Store) ListFreelancerProposals(ctx context.Context, freelancerID int64) ([]model.MyProposal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []model.MyProposal
	for _, p := range s.st.proposals {
		if p.FreelancerID != freelancerID {
			continue
		}
		pr := s.st.projects[p.ProjectID]
		out = append(out, model.MyProposal{
			Proposal:      p,
			ProjectTitle:  pr.Title,
			ProjectStatus: pr.Status.Normalize(),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

func (s *Store) UserSkillIDs(ctx context.Context, userID int64) ([]int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]int64(nil), s.st.userSkills[userID]...), nil
}

func (s *Store) GetPreference(ctx context.Context, userID int64) (*model.Preference, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.st.prefs[userID]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &p, nil
}

func (s *Store) SuccessfulProjects(ctx context.Context, userID int64, minScore int) ([]model.SuccessfulProject, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	seen := map[int64]bool{}
	var out []model.SuccessfulProject
	for _, h := range s.st.history {
		if h.UserID != userID || h.SuccessScore < minScore || seen[h.ProjectID] {
			continue
		}
		p, ok := s.st.projects[h.ProjectID]
		if !ok {
			continue
		}
		seen[h.ProjectID] = true
		out = append(out, model.SuccessfulProject{
			ProjectID:         p.ID,
			Categories:        p.Categories,
			SkillIDs:          p.SkillIDs,
			ExpectedWorkHours: p.ExpectedWorkHours,
		})
	}
	return out, nil
}

func (s *Store) CandidateProjects(ctx context.Context, q model.CandidateQuery) ([]model.Candidate, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	proposed := s.proposedTo(q.FreelancerID)
	var out []model.Candidate
	for _, p := range s.sortedProjects() {
		if p.Status != model.ProjectOpen || proposed[p.ID] {
			continue
		}
		if p.Budget < q.MinBudget || (q.MaxBudget != nil && p.Budget > *q.MaxBudget) {
			continue
		}
		out = append(out, model.Candidate{
			Project:        p,
			MatchingSkills: overlap(p.SkillIDs, q.SkillIDs),
			TotalSkills:    len(distinct(p.SkillIDs)),
		})
	}
	return out, nil
}

func distinct(ids []int64) map[int64]bool {
	set := make(map[int64]bool, len(ids))
	for _, id := range ids {
		set[id] = true
	}
	return set
}

func overlap(a, b []int64) int {
	bs := distinct(b)
	n := 0
	for id := range distinct(a) {
		if bs[id] {
			n++
		}
	}
	return n
}
