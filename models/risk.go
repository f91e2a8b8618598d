package models

// String codes accepted on the API; mapped to the core constants by the
// controller so everything is resolved once at the boundary.
const (
	ParamKindSpecification = "specification"
	ParamKindPoint         = "point"
	ParamKindEnsemble      = "ensemble"

	DistStandardNormal = "standardNormal"
	DistStudentT       = "studentT"

	VarianceConstant = "constant"
	VarianceGARCH    = "garch"
)

// RiskRequestSettings is the request from the caller to the risk controller.
type RiskRequestSettings struct {
	Data   []float64   `json:"data"`
	Params [][]float64 `json:"params"`

	ParamKind string `json:"paramkind"` // specification, point, ensemble
	Variance  string `json:"variance"`  // constant, garch
	DistType  string `json:"disttype"`  // standardNormal, studentT

	Levels []float64 `json:"levels"`
	Nahead int       `json:"nahead"`
	Nmesh  int       `json:"nmesh"`
	Nsim   int       `json:"nsim"`
	Seed   int64     `json:"seed"`

	InSample   bool `json:"insample"`
	ES         bool `json:"es"`
	Cumulative bool `json:"cumulative"`
}

// RiskResponse is what the controller sends back: the VaR/ES matrices with
// their level and row labels.
type RiskResponse struct {
	Levels    []float64   `json:"levels"`
	RowLabels []string    `json:"rowLabels"`
	VaR       [][]float64 `json:"var"`
	ES        [][]float64 `json:"es,omitempty"`
}
