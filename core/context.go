package core

import (
	"context"

	"github.com/kiprutobrian/MSGARCH/config"
	r "github.com/kiprutobrian/MSGARCH/repos"
)

type ServiceContext struct {
	Context            context.Context
	Config             *config.Config
	PostgresConnection *r.Postgres // nil when run-history persistence is disabled
}
