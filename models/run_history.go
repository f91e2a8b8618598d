package models

import (
	"time"

	"github.com/guregu/null/v6"
)

// RiskRunHistory records one risk computation for auditability. CompletedAt
// and ErrorMessage stay null while the run is in flight; a failed run carries
// the error message, a successful one a null message.
type RiskRunHistory struct {
	Id            int32       `db:"id" json:"id"`
	ParamKind     string      `db:"param_kind" json:"paramKind"`
	VarianceModel string      `db:"variance_model" json:"varianceModel"`
	DistType      string      `db:"dist_type" json:"distType"`
	Nahead        int         `db:"nahead" json:"nahead"`
	Nmesh         int         `db:"nmesh" json:"nmesh"`
	Nsim          int         `db:"nsim" json:"nsim"`
	Seed          int64       `db:"seed" json:"seed"`
	InSample      bool        `db:"in_sample" json:"inSample"`
	Cumulative    bool        `db:"cumulative" json:"cumulative"`
	CreatedAt     time.Time   `db:"created_at" json:"createdAt"`
	CompletedAt   null.Time   `db:"completed_at" json:"completedAt"`
	ErrorMessage  null.String `db:"error_message" json:"errorMessage"`
}
