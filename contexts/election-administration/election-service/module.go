package electionservice

import (
	"log/slog"
	"time"

	"campusvote/contexts/election-administration/election-service/adapters/export"
	httpadapter "campusvote/contexts/election-administration/election-service/adapters/http"
	"campusvote/contexts/election-administration/election-service/adapters/memory"
	"campusvote/contexts/election-administration/election-service/application/commands"
	"campusvote/contexts/election-administration/election-service/application/queries"
	"campusvote/contexts/election-administration/election-service/domain/entities"
	"campusvote/contexts/election-administration/election-service/ports"
)

type Module struct {
	Handler httpadapter.Handler
	Roles   commands.RoleReconciliation
	Store   *memory.Store
}

type Dependencies struct {
	Store       ports.Store
	Definition  entities.BallotDefinition
	Exporter    ports.ArchiveExporter
	Clock       ports.Clock
	IDGen       ports.IDGenerator
	CallTimeout time.Duration
	Logger      *slog.Logger
}

func NewModule(deps Dependencies) Module {
	store := deps.Store
	effects := commands.Effects{
		Activity: store,
		Outbox:   store,
		IDGen:    deps.IDGen,
		Logger:   deps.Logger,
	}
	exporter := deps.Exporter
	if exporter == nil {
		exporter = export.CSVExporter{}
	}

	return Module{
		Handler: httpadapter.Handler{
			Identities: commands.IdentityUseCase{
				Identities: store,
				Definition: deps.Definition,
				Clock:      deps.Clock,
				Timeout:    deps.CallTimeout,
				Logger:     deps.Logger,
			},
			Candidacy: commands.CandidacyUseCase{
				Cases:      store,
				Identities: store,
				Definition: deps.Definition,
				Effects:    effects,
				Clock:      deps.Clock,
				IDGen:      deps.IDGen,
				Timeout:    deps.CallTimeout,
				Logger:     deps.Logger,
			},
			Screening: commands.ScreeningUseCase{
				Cases:      store,
				Slots:      store,
				Phases:     store,
				Identities: store,
				Effects:    effects,
				Clock:      deps.Clock,
				Timeout:    deps.CallTimeout,
				Logger:     deps.Logger,
			},
			Roster: commands.RosterUseCase{
				Roster:     store,
				Cases:      store,
				Identities: store,
				Definition: deps.Definition,
				Effects:    effects,
				Clock:      deps.Clock,
				IDGen:      deps.IDGen,
				Timeout:    deps.CallTimeout,
				Logger:     deps.Logger,
			},
			Campaign: commands.CampaignUseCase{
				Materials:  store,
				Roster:     store,
				Phases:     store,
				Identities: store,
				Effects:    effects,
				Clock:      deps.Clock,
				IDGen:      deps.IDGen,
				Timeout:    deps.CallTimeout,
				Logger:     deps.Logger,
			},
			Ballots: commands.BallotUseCase{
				Ballots:    store,
				Identities: store,
				Roster:     store,
				Phases:     store,
				Definition: deps.Definition,
				Clock:      deps.Clock,
				Timeout:    deps.CallTimeout,
				Logger:     deps.Logger,
			},
			Phases: commands.PhaseUseCase{
				Phases:  store,
				Effects: effects,
				Clock:   deps.Clock,
				Timeout: deps.CallTimeout,
				Logger:  deps.Logger,
			},
			Archive: &commands.ArchiveUseCase{
				Archives:   store,
				Definition: deps.Definition,
				Effects:    effects,
				Clock:      deps.Clock,
				IDGen:      deps.IDGen,
				Timeout:    deps.CallTimeout,
				Logger:     deps.Logger,
			},
			Queries: queries.ElectionQueries{
				Store:      store,
				Definition: deps.Definition,
				Exporter:   exporter,
				Clock:      deps.Clock,
				Timeout:    deps.CallTimeout,
				Logger:     deps.Logger,
			},
			Logger: deps.Logger,
		},
		Roles: commands.RoleReconciliation{
			Cases:      store,
			Identities: store,
			Clock:      deps.Clock,
			Logger:     deps.Logger,
		},
	}
}

func NewInMemoryModule(definition entities.BallotDefinition, logger *slog.Logger) Module {
	store := memory.NewStore()
	module := NewModule(Dependencies{
		Store:       store,
		Definition:  definition,
		Clock:       store,
		IDGen:       store,
		CallTimeout: 5 * time.Second,
		Logger:      logger,
	})
	module.Store = store
	return module
}
