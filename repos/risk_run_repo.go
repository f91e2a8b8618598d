package repos

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	m "github.com/kiprutobrian/MSGARCH/models"
	q "github.com/kiprutobrian/MSGARCH/queries"
)

func (pg *Postgres) InsertRiskRunHistory(ctx context.Context, run m.RiskRunHistory) (int32, error) {
	sql := q.Get(q.QueryHelper.Insert.RiskRun)
	args := pgx.NamedArgs{
		"param_kind":     run.ParamKind,
		"variance_model": run.VarianceModel,
		"dist_type":      run.DistType,
		"nahead":         run.Nahead,
		"nmesh":          run.Nmesh,
		"nsim":           run.Nsim,
		"seed":           run.Seed,
		"in_sample":      run.InSample,
		"cumulative":     run.Cumulative,
	}

	var runId int32
	if err := pg.db.QueryRow(ctx, sql, args).Scan(&runId); err != nil {
		return 0, fmt.Errorf("error inserting risk run history: %w", err)
	}

	return runId, nil
}

func (pg *Postgres) UpdateRiskRunAsFailure(ctx context.Context, runId int32, errorMessage string) error {
	cleanErrorMessage := strings.TrimSpace(errorMessage)
	if cleanErrorMessage == "" {
		return fmt.Errorf("error message is required if a risk run is failing, occurred in %d", runId)
	}

	return pg.updateRiskRun(ctx, pgx.NamedArgs{
		"id":            runId,
		"error_message": cleanErrorMessage,
	})
}

func (pg *Postgres) UpdateRiskRunAsSuccess(ctx context.Context, runId int32) error {
	return pg.updateRiskRun(ctx, pgx.NamedArgs{
		"id":            runId,
		"error_message": nil,
	})
}

func (pg *Postgres) updateRiskRun(ctx context.Context, args pgx.NamedArgs) error {
	sql := q.Get(q.QueryHelper.Update.RiskRun)
	if _, err := pg.db.Exec(ctx, sql, args); err != nil {
		return fmt.Errorf("error updating risk run: %w", err)
	}
	return nil
}

func (pg *Postgres) GetRecentRiskRuns(ctx context.Context, limit int) ([]*m.RiskRunHistory, error) {
	sql := q.Get(q.QueryHelper.Select.RecentRiskRuns)
	return Query[m.RiskRunHistory](ctx, pg, sql, pgx.NamedArgs{"row_limit": limit})
}
