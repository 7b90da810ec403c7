package main

import (
	"bytes"
	"testing"

	"github.com/StoryBB/StoryBB-sub002/internal/core/config"
	"github.com/StoryBB/StoryBB-sub002/internal/service"
	"github.com/StoryBB/StoryBB-sub002/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func run(t *testing.T, args ...string) string {
	t.Helper()
	var out bytes.Buffer
	root := newRootCmd()
	root.SetOut(&out)
	root.SetArgs(args)
	require.NoError(t, root.Execute())
	return out.String()
}

func withServices(t *testing.T) *testutil.Fixture {
	t.Helper()
	fx := testutil.NewFixture(t)
	maint := config.DefaultMaintenance()
	maint.MinIncrement, maint.MaxIncrement = 1, 1
	svc = service.New(service.Deps{DB: fx.DB, Maintenance: maint, JobSecret: "cli"})
	t.Cleanup(func() { svc = nil })
	return fx
}

func TestTreeCommandRepairs(t *testing.T) {
	fx := withServices(t)
	fx.Category(1, 1)
	parent := fx.Board(testutil.BoardSpec{Category: 1, Order: 1, Name: "General"})
	fx.Board(testutil.BoardSpec{Category: 1, Parent: parent, Level: 4, Order: 2, Name: "Nested"})

	out := run(t, "tree")
	assert.Contains(t, out, "  - General")
	assert.Contains(t, out, "    - Nested")
	assert.Contains(t, out, "child_level: 4 -> 1")
}

func TestReorderCommand(t *testing.T) {
	fx := withServices(t)
	fx.Category(1, 1)
	fx.Board(testutil.BoardSpec{Category: 1, Order: 10})
	fx.Board(testutil.BoardSpec{Category: 1, Order: 20})

	assert.Contains(t, run(t, "reorder"), "2 board(s) renumbered")
	assert.Equal(t, 2, fx.Int("SELECT MAX(board_order) FROM boards"))
}

func TestRecountCommand(t *testing.T) {
	fx := withServices(t)
	fx.Category(1, 1)
	b := fx.Board(testutil.BoardSpec{Category: 1, Order: 1})
	fx.Topic(b, 1, testutil.Approved(3)...)
	fx.Exec("UPDATE topics SET num_replies = 9")

	out := run(t, "recount", "--budget", "1ns")
	assert.Contains(t, out, "100% step 8")
	assert.Contains(t, out, "recount finished")
	assert.Equal(t, 2, fx.Int("SELECT num_replies FROM topics"))
}
