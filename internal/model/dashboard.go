package model

import "time"

// DashboardStats 用户首页统计
//
// client: Open / InProgress / Completed 为自己发布的项目，PendingProposals
// 为自己项目上待处理的投标。
// freelancer: Available 为尚未投标的开放项目，PendingProposals 为自己待定的投标，
// InProgress / Completed 为分配给自己的项目。
type DashboardStats struct {
	Role               string `json:"role"`
	OpenProjects       int    `json:"open_projects"`
	AvailableProjects  int    `json:"available_projects"`
	InProgressProjects int    `json:"in_progress_projects"`
	CompletedProjects  int    `json:"completed_projects"`
	PendingProposals   int    `json:"pending_proposals"`
}

type ActivityType string

const (
	ActivityProject  ActivityType = "project"
	ActivityProposal ActivityType = "proposal"
)

// ActivityItem is one recent status change on a project or proposal the
// user takes part in. ID is the project or proposal id depending on Type.
type ActivityItem struct {
	Type      ActivityType `json:"type"`
	ID        int64        `json:"id"`
	ProjectID int64        `json:"project_id"`
	Title     string       `json:"title"`
	Status    string       `json:"status"`
	Date      time.Time    `json:"date"`
}
