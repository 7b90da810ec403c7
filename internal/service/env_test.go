package service

import (
	"context"
	"testing"
	"time"

	"github.com/StoryBB/StoryBB-sub002/internal/core/cache"
	"github.com/StoryBB/StoryBB-sub002/internal/core/config"
	"github.com/StoryBB/StoryBB-sub002/internal/model"
	"github.com/StoryBB/StoryBB-sub002/internal/pkg/pool"
	"github.com/StoryBB/StoryBB-sub002/internal/testutil"

	"github.com/stretchr/testify/require"
)

type testEnv struct {
	ctx    context.Context
	fx     *testutil.Fixture
	audit  *testutil.AuditRecorder
	events *testutil.EventRecorder
	cache  *cache.Store
	svc    *Services
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	fx := testutil.NewFixture(t)

	l1, err := pool.NewBigCache(8, time.Minute)
	require.NoError(t, err)
	t.Cleanup(func() { _ = l1.Close() })

	env := &testEnv{
		ctx:    context.Background(),
		fx:     fx,
		audit:  &testutil.AuditRecorder{},
		events: &testutil.EventRecorder{},
		cache:  cache.NewStore(l1, nil, time.Minute),
	}
	maint := config.DefaultMaintenance()
	maint.MinIncrement = 2
	maint.MaxIncrement = 2
	// 每个窗口之后都让出，续跑令牌路径总会被走到
	maint.StepBudget = -time.Second
	env.svc = New(Deps{
		DB:          fx.DB,
		Audit:       env.audit,
		Cache:       env.cache,
		Events:      env.events,
		Maintenance: maint,
		JobSecret:   "test-secret",
	})
	return env
}

func admin() *model.Actor {
	return &model.Actor{MemberID: 1, Name: "admin", IsAdmin: true}
}

func moderator(perms ...string) *model.Actor {
	a := &model.Actor{MemberID: 2, Name: "mod", Permissions: map[string]bool{}}
	for _, p := range perms {
		a.Permissions[p] = true
	}
	return a
}

// board 读取版块当前行
func (e *testEnv) board(t *testing.T, id int) *model.Board {
	t.Helper()
	b, err := e.svc.Tree.repo.GetByID(e.ctx, id)
	require.NoError(t, err)
	require.NotNil(t, b, "board %d", id)
	return b
}

// cacheMissing 缓存中没有该键
func (e *testEnv) cacheMissing(key string) bool {
	_, ok := e.cache.Get(e.ctx, key)
	return !ok
}
