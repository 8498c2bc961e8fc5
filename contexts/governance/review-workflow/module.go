package reviewworkflow

import (
	"log/slog"
	"time"

	"hoaportal/contexts/governance/review-workflow/adapters/events"
	httpadapter "hoaportal/contexts/governance/review-workflow/adapters/http"
	"hoaportal/contexts/governance/review-workflow/adapters/memory"
	"hoaportal/contexts/governance/review-workflow/application/commands"
	"hoaportal/contexts/governance/review-workflow/application/notifications"
	"hoaportal/contexts/governance/review-workflow/application/queries"
	"hoaportal/contexts/governance/review-workflow/application/workers"
	"hoaportal/contexts/governance/review-workflow/domain/entities"
	"hoaportal/contexts/governance/review-workflow/domain/services"
	"hoaportal/contexts/governance/review-workflow/ports"
)

// Module is the wired review workflow. Transports consume Handler; Store is
// only set by NewInMemoryModule.
type Module struct {
	Handler     httpadapter.Handler
	Validator   *services.Validator
	Create      commands.CreateRequestUseCase
	Transitions commands.TransitionUseCase
	Votes       commands.CastVoteUseCase
	Requests    queries.RequestQueryUseCase
	Projection  queries.ProjectionUseCase
	Dispatcher  notifications.Dispatcher
	Scheduler   workers.DeadlineScheduler
	Relay       workers.OutboxRelay
	Store       *memory.Store
}

type Dependencies struct {
	Requests  ports.RequestRepository
	Votes     ports.VoteRepository
	Debounce  ports.DebounceStore
	Directory ports.IdentityDirectory
	Outbox    interface {
		ports.OutboxWriter
		ports.OutboxRepository
	}
	// Gateway defaults to an outbox-backed gateway over Outbox.
	Gateway   ports.NotificationGateway
	Publisher ports.EventPublisher
	Metrics   ports.Metrics
	Clock     ports.Clock
	IDGen     ports.IDGenerator

	// Workflows defaults to services.DefaultGraphSpecs.
	Workflows        []services.GraphSpec
	RevotePolicy     commands.RevotePolicy
	ReviewPeriod     time.Duration
	VoteCastCooldown time.Duration
	WarningLeadTimes []time.Duration
	SweepBatchSize   int
	RelayBatchSize   int
	DisableSweep     bool
	DisableRelay     bool
	Logger           *slog.Logger
}

func NewModule(deps Dependencies) (Module, error) {
	specs := deps.Workflows
	if len(specs) == 0 {
		specs = services.DefaultGraphSpecs()
	}
	validator, err := services.NewValidator(specs...)
	if err != nil {
		return Module{}, err
	}

	gateway := deps.Gateway
	if gateway == nil {
		gateway = events.OutboxGateway{Outbox: deps.Outbox, Clock: deps.Clock, IDGen: deps.IDGen}
	}
	dispatcher := notifications.Dispatcher{
		Directory:        deps.Directory,
		Gateway:          gateway,
		Debounce:         deps.Debounce,
		Validator:        validator,
		Metrics:          deps.Metrics,
		Clock:            deps.Clock,
		VoteCastCooldown: deps.VoteCastCooldown,
		Logger:           deps.Logger,
	}
	transitions := commands.TransitionUseCase{
		Requests:     deps.Requests,
		Votes:        deps.Votes,
		Validator:    validator,
		Directory:    deps.Directory,
		Dispatcher:   dispatcher,
		Metrics:      deps.Metrics,
		Clock:        deps.Clock,
		ReviewPeriod: deps.ReviewPeriod,
		Logger:       deps.Logger,
	}

	create := commands.CreateRequestUseCase{
		Requests:   deps.Requests,
		Validator:  validator,
		Directory:  deps.Directory,
		Dispatcher: dispatcher,
		Clock:      deps.Clock,
		IDGen:      deps.IDGen,
		Logger:     deps.Logger,
	}
	votes := commands.CastVoteUseCase{
		Requests:     deps.Requests,
		Votes:        deps.Votes,
		Directory:    deps.Directory,
		Validator:    validator,
		Transitions:  transitions,
		Dispatcher:   dispatcher,
		RevotePolicy: deps.RevotePolicy,
		Clock:        deps.Clock,
		Logger:       deps.Logger,
	}
	requests := queries.RequestQueryUseCase{
		Requests: deps.Requests,
		Votes:    deps.Votes,
	}
	projection := queries.ProjectionUseCase{
		Requests:  deps.Requests,
		Votes:     deps.Votes,
		Directory: deps.Directory,
		Validator: validator,
	}

	return Module{
		Handler: httpadapter.Handler{
			Create:      create,
			Transitions: transitions,
			Votes:       votes,
			Requests:    requests,
			Projection:  projection,
			Logger:      deps.Logger,
		},
		Validator:   validator,
		Create:      create,
		Transitions: transitions,
		Votes:       votes,
		Requests:    requests,
		Projection:  projection,
		Dispatcher: dispatcher,
		Scheduler: workers.DeadlineScheduler{
			Requests:    deps.Requests,
			Validator:   validator,
			Transitions: transitions,
			Dispatcher:  dispatcher,
			Debounce:    deps.Debounce,
			Metrics:     deps.Metrics,
			Clock:       deps.Clock,
			LeadTimes:   deps.WarningLeadTimes,
			BatchSize:   deps.SweepBatchSize,
			Disabled:    deps.DisableSweep,
			Logger:      deps.Logger,
		},
		Relay: workers.OutboxRelay{
			Outbox:    deps.Outbox,
			Publisher: deps.Publisher,
			Clock:     deps.Clock,
			BatchSize: deps.RelayBatchSize,
			Disabled:  deps.DisableRelay || deps.Publisher == nil,
			Logger:    deps.Logger,
		},
	}, nil
}

// NewInMemoryModule wires every port to one memory store seeded with members.
func NewInMemoryModule(members []entities.Actor, logger *slog.Logger) Module {
	store := memory.NewStore()
	for _, member := range members {
		store.SetMember(member)
	}
	module, err := NewModule(Dependencies{
		Requests:  store,
		Votes:     store,
		Debounce:  store,
		Directory: store,
		Outbox:    store,
		Clock:     store,
		IDGen:     store,
		Logger:    logger,
	})
	if err != nil {
		panic(err)
	}
	module.Store = store
	return module
}
