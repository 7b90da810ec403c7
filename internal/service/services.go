package service

import (
	"context"

	"github.com/StoryBB/StoryBB-sub002/internal/core/audit"
	"github.com/StoryBB/StoryBB-sub002/internal/core/cache"
	"github.com/StoryBB/StoryBB-sub002/internal/core/config"
	"github.com/StoryBB/StoryBB-sub002/internal/core/event"
	"github.com/StoryBB/StoryBB-sub002/internal/repository"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
)

// Deps 构建服务所需的外部依赖，Audit/Cache/Events 为 nil 时使用空实现
type Deps struct {
	DB          *sqlx.DB
	Audit       audit.Sink
	Cache       cache.Cache
	Events      event.Bus
	Maintenance config.MaintenanceConfig
	JobSecret   string
}

// Services 全部业务服务
type Services struct {
	Tree       *BoardTreeService
	Boards     *BoardService
	BoardOrder *BoardOrderService
	Groups     *MembergroupService
	Stats      *StatsService
	Removal    *RemovalService
	Recount    *RecountService
}

// New 按依赖组装服务
func New(d Deps) *Services {
	if d.Audit == nil {
		d.Audit = nopAudit{}
	}
	if d.Cache == nil {
		d.Cache = nopCache{}
	}
	if d.Events == nil {
		d.Events = nopEvents{}
	}
	if d.Maintenance.MinIncrement == 0 {
		d.Maintenance = config.DefaultMaintenance()
	}

	boardRepo := repository.NewBoardRepository(d.DB)
	topicRepo := repository.NewTopicRepository(d.DB)
	statsRepo := repository.NewStatsRepository(d.DB)
	groupRepo := repository.NewMembergroupRepository(d.DB)
	memberRepo := repository.NewMemberRepository(d.DB)
	charRepo := repository.NewCharacterRepository(d.DB)

	tree := NewBoardTreeService(boardRepo)
	stats := NewStatsService(boardRepo, statsRepo, d.Cache)
	removal := NewRemovalService(topicRepo, boardRepo, statsRepo, memberRepo, charRepo, stats, d.Audit, d.Events)
	boardOrder := NewBoardOrderService(tree, d.Cache)

	return &Services{
		Tree:       tree,
		Boards:     NewBoardService(boardRepo, topicRepo, memberRepo, groupRepo, tree, removal, stats, d.Audit, d.Cache, d.Events),
		BoardOrder: boardOrder,
		Groups:     NewMembergroupService(groupRepo, memberRepo, charRepo, boardRepo, d.Audit, d.Cache, d.Events),
		Stats:      stats,
		Removal:    removal,
		Recount: NewRecountService(boardRepo, statsRepo, memberRepo, charRepo, stats, d.Events,
			d.Maintenance, NewJobCodec(d.JobSecret, d.Maintenance.JobTokenIssuer, d.Maintenance.JobTokenTTL)),
	}
}

var validate = validator.New()

type nopAudit struct{}

func (nopAudit) Log(context.Context, string, int, map[string]interface{}) error { return nil }

type nopCache struct{}

func (nopCache) Get(context.Context, string) ([]byte, bool) { return nil, false }
func (nopCache) Set(context.Context, string, []byte)        {}
func (nopCache) Invalidate(context.Context, ...string)      {}

type nopEvents struct{}

func (nopEvents) Fire(context.Context, string, map[string]interface{}) {}
