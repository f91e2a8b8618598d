package queries

import (
	"embed"
	"fmt"
)

//go:embed insert/*.sql select/*.sql update/*.sql
var Files embed.FS

type InsertQueries struct {
	RiskRun string
}

type SelectQueries struct {
	RecentRiskRuns string
}

type UpdateQueries struct {
	RiskRun string
}

type QueryHelperStruct struct {
	Insert InsertQueries
	Select SelectQueries
	Update UpdateQueries
}

var QueryHelper = QueryHelperStruct{
	Insert: InsertQueries{
		RiskRun: "insert/risk_run.sql",
	},
	Select: SelectQueries{
		RecentRiskRuns: "select/recent_risk_runs.sql",
	},
	Update: UpdateQueries{
		RiskRun: "update/risk_run.sql",
	},
}

func Get(path string) string {
	content, err := Files.ReadFile(path)
	if err != nil {
		panic(fmt.Errorf("error reading query file: %w", err))
	}

	return string(content)
}
