package sqlstore

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/goliatone/go-community/core"
	repository "github.com/goliatone/go-repository-bun"
	"github.com/uptrace/bun"
)

type ApplicationStore struct {
	db   *bun.DB
	repo repository.Repository[*applicationRecord]
}

func NewApplicationStore(db *bun.DB) (*ApplicationStore, error) {
	repo, err := newRecordRepository[applicationRecord](db, "application")
	if err != nil {
		return nil, err
	}
	return &ApplicationStore{db: db, repo: repo}, nil
}

func (s *ApplicationStore) Create(ctx context.Context, application core.Application) (core.Application, error) {
	if s == nil || s.repo == nil {
		return core.Application{}, fmt.Errorf("sqlstore: application store is not configured")
	}
	record := newApplicationRecord(application, time.Now().UTC())
	var created *applicationRecord
	err := RunScopedTx(ctx, s.db, func(ctx context.Context, tx bun.Tx) error {
		inserted, err := s.repo.CreateTx(ctx, tx, record)
		created = inserted
		return err
	})
	if err != nil {
		return core.Application{}, mapStoreError(err, "application", record.ID)
	}
	return created.toDomain(), nil
}

func (s *ApplicationStore) Get(ctx context.Context, id string) (core.Application, error) {
	if s == nil || s.db == nil {
		return core.Application{}, fmt.Errorf("sqlstore: application store is not configured")
	}
	if !isUUID(id) {
		return core.Application{}, core.NotFound("application", id)
	}
	record := &applicationRecord{}
	if err := scopedGet(ctx, s.db, "id", id, record); err != nil {
		return core.Application{}, mapStoreError(err, "application", id)
	}
	return record.toDomain(), nil
}

func (s *ApplicationStore) List(ctx context.Context, filter core.ApplicationFilter) (core.Page[core.Application], error) {
	if s == nil || s.db == nil {
		return core.Page[core.Application]{}, fmt.Errorf("sqlstore: application store is not configured")
	}
	page, err := scopedPage(ctx, s.db, filter.PageRequest, func(q *bun.SelectQuery) *bun.SelectQuery {
		if status := strings.TrimSpace(string(filter.Status)); status != "" {
			q = q.Where("?TableAlias.status = ?", status)
		}
		if applicantID := strings.TrimSpace(filter.ApplicantID); applicantID != "" {
			q = q.Where("?TableAlias.applicant_id = ?", applicantID)
		}
		return q.OrderExpr("?TableAlias.created_at DESC")
	}, (*applicationRecord).toDomain)
	if err != nil {
		return core.Page[core.Application]{}, mapStoreError(err, "application", "")
	}
	return page, nil
}

func (s *ApplicationStore) UpdateStatus(ctx context.Context, id string, status core.ApplicationStatus, decidedAt time.Time) (core.Application, error) {
	if s == nil || s.db == nil {
		return core.Application{}, fmt.Errorf("sqlstore: application store is not configured")
	}
	id = strings.TrimSpace(id)
	if !isUUID(id) {
		return core.Application{}, core.NotFound("application", id)
	}
	record := &applicationRecord{}
	err := RunScopedTx(ctx, s.db, func(ctx context.Context, tx bun.Tx) error {
		result, err := tx.NewUpdate().
			Model((*applicationRecord)(nil)).
			Set("status = ?", string(status)).
			Set("decided_at = ?", decidedAt.UTC()).
			Set("updated_at = ?", time.Now().UTC()).
			Where("id = ?", id).
			Where("status = ?", string(core.ApplicationPending)).
			Exec(ctx)
		if err != nil {
			return err
		}
		affected, err := result.RowsAffected()
		if err != nil {
			return err
		}
		if err := tx.NewSelect().Model(record).Where("?TableAlias.id = ?", id).Scan(ctx); err != nil {
			return err
		}
		if affected == 0 {
			return core.Conflict("application is no longer pending")
		}
		return nil
	})
	if err != nil {
		return core.Application{}, mapStoreError(err, "application", id)
	}
	return record.toDomain(), nil
}

func (s *ApplicationStore) Delete(ctx context.Context, id string) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("sqlstore: application store is not configured")
	}
	return deleteByID[applicationRecord](ctx, s.db, "application", id)
}

// CastVote records the vote and refreshes the denormalized counters in one
// transaction.
func (s *ApplicationStore) CastVote(ctx context.Context, vote core.Vote) (core.Tally, error) {
	if s == nil || s.db == nil {
		return core.Tally{}, fmt.Errorf("sqlstore: application store is not configured")
	}
	record := newVoteRecord(vote, time.Now().UTC())
	if !isUUID(record.ApplicationID) {
		return core.Tally{}, core.NotFound("application", record.ApplicationID)
	}
	tally := core.Tally{}
	err := RunScopedTx(ctx, s.db, func(ctx context.Context, tx bun.Tx) error {
		var status string
		err := tx.NewSelect().
			Model((*applicationRecord)(nil)).
			Column("status").
			Where("?TableAlias.id = ?", record.ApplicationID).
			Scan(ctx, &status)
		if err != nil {
			return err
		}
		if status != string(core.ApplicationPending) {
			return core.Conflict("application is no longer pending")
		}

		exists, err := tx.NewSelect().
			Model((*voteRecord)(nil)).
			Where("?TableAlias.application_id = ?", record.ApplicationID).
			Where("?TableAlias.voter_id = ?", record.VoterID).
			Exists(ctx)
		if err != nil {
			return err
		}
		if exists {
			return core.Conflict("vote already cast")
		}
		if _, err := tx.NewInsert().Model(record).Exec(ctx); err != nil {
			return err
		}

		var counts []struct {
			Decision string `bun:"decision"`
			Total    int    `bun:"total"`
		}
		err = tx.NewSelect().
			Model((*voteRecord)(nil)).
			Column("decision").
			ColumnExpr("COUNT(*) AS total").
			Where("?TableAlias.application_id = ?", record.ApplicationID).
			Group("decision").
			Scan(ctx, &counts)
		if err != nil {
			return err
		}
		for _, count := range counts {
			switch core.VoteDecision(count.Decision) {
			case core.VoteApprove:
				tally.Approvals = count.Total
			case core.VoteReject:
				tally.Rejections = count.Total
			case core.VoteAbstain:
				tally.Abstentions = count.Total
			}
		}

		_, err = tx.NewUpdate().
			Model((*applicationRecord)(nil)).
			Set("approvals = ?", tally.Approvals).
			Set("rejections = ?", tally.Rejections).
			Set("abstentions = ?", tally.Abstentions).
			Set("updated_at = ?", time.Now().UTC()).
			Where("id = ?", record.ApplicationID).
			Exec(ctx)
		return err
	})
	if err != nil {
		return core.Tally{}, mapStoreError(err, "vote", record.ID)
	}
	return tally, nil
}

func (s *ApplicationStore) ListVotes(ctx context.Context, applicationID string) ([]core.Vote, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("sqlstore: application store is not configured")
	}
	if !isUUID(applicationID) {
		return []core.Vote{}, nil
	}
	var records []voteRecord
	err := RunScoped(ctx, s.db, func(ctx context.Context, idb bun.IDB) error {
		return idb.NewSelect().
			Model(&records).
			Where("?TableAlias.application_id = ?", strings.TrimSpace(applicationID)).
			OrderExpr("?TableAlias.created_at ASC").
			Scan(ctx)
	})
	if err != nil {
		return nil, mapStoreError(err, "vote", "")
	}
	return mapRecords(records, (*voteRecord).toDomain), nil
}
