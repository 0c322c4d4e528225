// Package store declares the transactional persistence contract used by the
// lifecycle engine. internal/repository implements it on Postgres and
// internal/store/storetest implements it in memory.
package store

import (
	"context"
	"errors"

	"freelancehub/internal/model"
	"freelancehub/pkg/outbox"
)

var (
	ErrNotFound  = errors.New("not found")
	ErrDuplicate = errors.New("duplicate")

	// ErrInvalidReference 写入引用了不存在的行（外键约束）
	ErrInvalidReference = errors.New("invalid reference")
)

// Tx is the set of reads and writes available inside one transaction.
// Every write to project or proposal status goes through a Tx.
type Tx interface {
	GetProject(ctx context.Context, id int64) (*model.Project, error)
	// GetProjectForUpdate loads the project and holds its row lock until the
	// transaction ends. Proposal-mutating operations lock the parent project
	// first so they serialize per project.
	GetProjectForUpdate(ctx context.Context, id int64) (*model.Project, error)
	InsertProject(ctx context.Context, p *model.Project) error
	UpdateProjectStatus(ctx context.Context, id int64, status model.ProjectStatus, freelancerID *int64) error

	GetProposal(ctx context.Context, id int64) (*model.Proposal, error)
	FindProposal(ctx context.Context, projectID, freelancerID int64) (*model.Proposal, error)
	InsertProposal(ctx context.Context, p *model.Proposal) error
	UpdateProposalStatus(ctx context.Context, id int64, status model.ProposalStatus) error
	// RejectPendingExcept rejects every pending proposal on the project other
	// than keepID and returns the rows it changed.
	RejectPendingExcept(ctx context.Context, projectID, keepID int64) ([]model.Proposal, error)
	DeleteProposal(ctx context.Context, id int64) error
	CountAccepted(ctx context.Context, projectID int64) (int, error)

	UpsertPreference(ctx context.Context, p *model.Preference) error
	InsertRating(ctx context.Context, r *model.Rating) error
	InsertHistory(ctx context.Context, h *model.HistoryEntry) error

	// EnqueueEvent writes a domain event to the outbox in the same transaction.
	EnqueueEvent(ctx context.Context, ev *outbox.Event) error
}

// Store runs fn inside a transaction. A nil return commits; any error rolls
// back every write made through tx.
type Store interface {
	WithTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
}
