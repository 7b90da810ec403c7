package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/StoryBB/StoryBB-sub002/internal/core/audit"
	"github.com/StoryBB/StoryBB-sub002/internal/core/cache"
	"github.com/StoryBB/StoryBB-sub002/internal/core/event"
	"github.com/StoryBB/StoryBB-sub002/internal/core/logger"
	"github.com/StoryBB/StoryBB-sub002/internal/model"
	"github.com/StoryBB/StoryBB-sub002/internal/pkg/apperr"
	"github.com/StoryBB/StoryBB-sub002/internal/pkg/intset"
	"github.com/StoryBB/StoryBB-sub002/internal/repository"
)

// 版块移动方式
const (
	MoveTop    = "top"
	MoveBottom = "bottom"
	MoveChild  = "child"
	MoveBefore = "before"
	MoveAfter  = "after"
)

// ModifyBoardOptions 版块修改选项，nil 字段保持不变
type ModifyBoardOptions struct {
	MoveTo         string `json:"move_to" validate:"omitempty,oneof=top bottom child before after"`
	TargetCategory int    `json:"target_category" validate:"required_if=MoveTo top,required_if=MoveTo bottom"`
	TargetBoard    int    `json:"target_board" validate:"required_if=MoveTo child,required_if=MoveTo before,required_if=MoveTo after"`
	MoveFirstChild bool   `json:"move_first_child"`

	Name        *string `json:"board_name" validate:"omitempty,min=1,max=255"`
	Description *string `json:"board_description"`
	Slug        *string `json:"board_slug" validate:"omitempty,min=1,max=255"`
	Redirect    *string `json:"redirect" validate:"omitempty,max=255"`

	// PostsCount 发帖是否计入会员帖数
	PostsCount    *bool `json:"posts_count"`
	Theme         *int  `json:"board_theme" validate:"omitempty,gte=0"`
	OverrideTheme *bool `json:"override_theme"`
	Profile       *int  `json:"profile"`

	InheritPermissions bool `json:"inherit_permissions"`

	AccessGroups []int `json:"access_groups"`
	DenyGroups   []int `json:"deny_groups"`

	Moderators           []int   `json:"moderators"`
	ModeratorString      *string `json:"moderator_string"`
	ModeratorGroups      []int   `json:"moderator_groups"`
	ModeratorGroupString *string `json:"moderator_group_string"`
}

// CreateBoardOptions 新建版块选项
type CreateBoardOptions struct {
	Name           string `json:"board_name" validate:"required,max=255"`
	Slug           string `json:"board_slug" validate:"required,max=255"`
	MoveTo         string `json:"move_to" validate:"required,oneof=top bottom child before after"`
	TargetCategory int    `json:"target_category" validate:"required"`
	TargetBoard    int    `json:"target_board" validate:"required_if=MoveTo child,required_if=MoveTo before,required_if=MoveTo after"`

	// Settings 其余字段，移动相关字段会被上面的值覆盖
	Settings ModifyBoardOptions `json:"settings"`
}

// movePlan 移动后的位置
type movePlan struct {
	category int
	parent   int
	level    int
	after    int // 插入在该 board_order 之后
}

// BoardService 版块结构变更
type BoardService struct {
	repo    repository.BoardRepository
	topics  repository.TopicRepository
	members repository.GroupHolderRepository
	groups  repository.MembergroupRepository
	tree    *BoardTreeService
	removal *RemovalService
	stats   *StatsService
	audit   audit.Sink
	cache   cache.Invalidator
	events  event.Bus
}

// NewBoardService 创建 BoardService 实例
func NewBoardService(
	repo repository.BoardRepository,
	topics repository.TopicRepository,
	members repository.GroupHolderRepository,
	groups repository.MembergroupRepository,
	tree *BoardTreeService,
	removal *RemovalService,
	stats *StatsService,
	auditSink audit.Sink,
	inv cache.Invalidator,
	events event.Bus,
) *BoardService {
	return &BoardService{
		repo:    repo,
		topics:  topics,
		members: members,
		groups:  groups,
		tree:    tree,
		removal: removal,
		stats:   stats,
		audit:   auditSink,
		cache:   inv,
		events:  events,
	}
}

// IsChildOf child 是否为 parent 的后代
func (s *BoardService) IsChildOf(ctx context.Context, child, parent int) (bool, error) {
	tree, err := s.tree.BuildTree(ctx)
	if err != nil {
		return false, err
	}
	return tree.IsChildOf(child, parent), nil
}

// ModifyBoard 修改版块属性和位置
func (s *BoardService) ModifyBoard(ctx context.Context, actor *model.Actor, boardID int, opts ModifyBoardOptions) error {
	if !actor.Allowed(model.PermManageBoards) {
		return apperr.ErrForbidden
	}
	if err := validate.Struct(opts); err != nil {
		return apperr.New(apperr.ErrBoardInvalidMove, err.Error())
	}
	return s.modify(ctx, actor, boardID, opts, true)
}

// CreateBoard 插入空版块后交给 modify 处理位置和其余字段，返回新版块 id
func (s *BoardService) CreateBoard(ctx context.Context, actor *model.Actor, opts CreateBoardOptions) (int, error) {
	if !actor.Allowed(model.PermManageBoards) {
		return 0, apperr.ErrForbidden
	}
	if err := validate.Struct(opts); err != nil {
		return 0, apperr.New(apperr.ErrBoardMissingField, err.Error())
	}

	settings := opts.Settings
	settings.MoveTo = opts.MoveTo
	settings.TargetCategory = opts.TargetCategory
	settings.TargetBoard = opts.TargetBoard
	settings.Name = &opts.Name
	settings.Slug = &opts.Slug
	if err := validate.Struct(settings); err != nil {
		return 0, apperr.New(apperr.ErrBoardMissingField, err.Error())
	}

	// 写入前确认目标存在，避免留下无法定位的空行
	tree, err := s.tree.BuildTree(ctx)
	if err != nil {
		return 0, err
	}
	plan, err := planMove(tree, nil, settings)
	if err != nil {
		return 0, err
	}

	id, err := s.repo.Create(ctx, plan.category, opts.Name, opts.Slug)
	if err != nil {
		return 0, err
	}
	if err := s.modify(ctx, actor, id, settings, false); err != nil {
		return 0, err
	}

	s.log(ctx, actor, "add_board", map[string]interface{}{"board": id, "name": opts.Name})
	logger.Info("board created", logger.Int("board", id), logger.String("name", opts.Name))
	return id, nil
}

func (s *BoardService) modify(ctx context.Context, actor *model.Actor, boardID int, opts ModifyBoardOptions, logAction bool) error {
	board, err := s.repo.GetByID(ctx, boardID)
	if err != nil {
		return err
	}
	if board == nil {
		return apperr.New(apperr.ErrBoardNotFound, fmt.Sprintf("board %d", boardID))
	}

	// 以下全部为只读校验，任何错误都发生在写入之前
	var (
		tree *BoardTree
		plan *movePlan
	)
	if opts.MoveTo != "" || opts.InheritPermissions {
		if tree, err = s.tree.BuildTree(ctx); err != nil {
			return err
		}
	}
	if opts.MoveTo != "" {
		if plan, err = planMove(tree, board, opts); err != nil {
			return err
		}
	}

	fields, err := s.fieldUpdates(tree, board, plan, opts)
	if err != nil {
		return err
	}

	moderators, err := s.resolveModerators(ctx, opts)
	if err != nil {
		return err
	}
	moderatorGroups, err := s.resolveModeratorGroups(ctx, opts)
	if err != nil {
		return err
	}

	if plan != nil {
		if err := s.move(ctx, tree, board, plan); err != nil {
			return err
		}
	}
	if err := s.repo.Update(ctx, boardID, fields); err != nil {
		return err
	}
	if moderators != nil {
		if err := s.repo.ReplaceModerators(ctx, boardID, moderators); err != nil {
			return err
		}
	}
	if moderatorGroups != nil {
		if err := s.repo.ReplaceModeratorGroups(ctx, boardID, moderatorGroups); err != nil {
			return err
		}
	}

	if plan != nil {
		if _, err := s.ReorderBoards(ctx); err != nil {
			return err
		}
	}
	s.cache.Invalidate(ctx, cache.KeyBoardOrder)
	s.events.Fire(ctx, event.BoardsChanged, map[string]interface{}{"board": boardID})

	if logAction {
		s.log(ctx, actor, "edit_board", map[string]interface{}{"board": boardID})
	}
	logger.Info("board modified", logger.Int("board", boardID), logger.String("move_to", opts.MoveTo))
	return nil
}

// planMove 计算移动后的位置；board 为 nil 表示新建版块
func planMove(tree *BoardTree, board *model.Board, opts ModifyBoardOptions) (*movePlan, error) {
	moving := map[int]bool{}
	if board != nil {
		moving[board.ID] = true
		for _, id := range tree.Descendants(board.ID) {
			moving[id] = true
		}
	}

	switch opts.MoveTo {
	case MoveTop, MoveBottom:
		cat, ok := tree.Category[opts.TargetCategory]
		if !ok {
			return nil, apperr.New(apperr.ErrCategoryNotFound, fmt.Sprintf("category %d", opts.TargetCategory))
		}
		plan := &movePlan{category: cat.Category.ID, after: cat.LastBoardOrder}
		if opts.MoveTo == MoveBottom {
			if top, ok := tree.MaxOrderIn(cat.Category.ID, moving); ok {
				plan.after = top
			}
		}
		return plan, nil

	case MoveChild, MoveBefore, MoveAfter:
		target := tree.Node(opts.TargetBoard)
		if target == nil {
			return nil, apperr.New(apperr.ErrBoardNotFound, fmt.Sprintf("target board %d", opts.TargetBoard))
		}
		if board != nil {
			if target.Board.ID == board.ID {
				return nil, apperr.New(apperr.ErrBoardSelfParent, fmt.Sprintf("board %d", board.ID))
			}
			if tree.IsChildOf(target.Board.ID, board.ID) {
				return nil, apperr.New(apperr.ErrBoardCycle,
					fmt.Sprintf("board %d is a descendant of %d", target.Board.ID, board.ID))
			}
		}
		t := target.Board
		switch opts.MoveTo {
		case MoveChild:
			plan := &movePlan{category: t.Category, parent: t.ID, level: t.Level + 1, after: t.Order}
			if !opts.MoveFirstChild {
				for _, id := range tree.Descendants(t.ID) {
					if o := tree.Boards[id].Board.Order; !moving[id] && o > plan.after {
						plan.after = o
					}
				}
			}
			return plan, nil
		case MoveBefore:
			return &movePlan{category: t.Category, parent: t.Parent, level: t.Level, after: t.Order - 1}, nil
		default:
			return &movePlan{category: t.Category, parent: t.Parent, level: t.Level, after: t.Order}, nil
		}
	}
	return nil, apperr.New(apperr.ErrBoardInvalidMove, opts.MoveTo)
}

// move 腾出排序空间后写入版块及其后代的新位置
func (s *BoardService) move(ctx context.Context, tree *BoardTree, board *model.Board, plan *movePlan) error {
	desc := tree.Descendants(board.ID)
	subtree := append([]int{board.ID}, desc...)

	if err := s.repo.MakeRoom(ctx, plan.after, len(subtree), subtree); err != nil {
		return err
	}
	if err := s.repo.SetPosition(ctx, board.ID, repository.BoardPosition{
		Category: plan.category,
		Parent:   plan.parent,
		Level:    plan.level,
		Order:    plan.after + 1,
	}); err != nil {
		return err
	}
	for i, id := range desc {
		if err := s.repo.SetOrder(ctx, id, plan.after+2+i); err != nil {
			return err
		}
	}
	if err := s.repo.ShiftLevels(ctx, desc, plan.level-board.Level); err != nil {
		return err
	}
	if plan.category != board.Category {
		if err := s.repo.SetCategory(ctx, desc, plan.category); err != nil {
			return err
		}
	}

	logger.Info("board moved",
		logger.Int("board", board.ID),
		logger.Int("category", plan.category),
		logger.Int("parent", plan.parent),
		logger.Int("level", plan.level),
		logger.Int("descendants", len(desc)))
	return nil
}

// fieldUpdates 收集普通字段的修改
func (s *BoardService) fieldUpdates(tree *BoardTree, board *model.Board, plan *movePlan, opts ModifyBoardOptions) (map[string]interface{}, error) {
	fields := map[string]interface{}{}
	if opts.Name != nil {
		fields["name"] = *opts.Name
	}
	if opts.Description != nil {
		fields["description"] = *opts.Description
	}
	if opts.Slug != nil {
		fields["slug"] = *opts.Slug
	}
	if opts.Redirect != nil {
		fields["redirect"] = *opts.Redirect
	}
	if opts.PostsCount != nil {
		// 存储的是“不计数”标记
		if *opts.PostsCount {
			fields["count_posts"] = 0
		} else {
			fields["count_posts"] = 1
		}
	}
	if opts.Theme != nil {
		fields["id_theme"] = *opts.Theme
	}
	if opts.OverrideTheme != nil {
		if *opts.OverrideTheme {
			fields["override_theme"] = 1
		} else {
			fields["override_theme"] = 0
		}
	}

	profile := opts.Profile
	if opts.InheritPermissions {
		parent := board.Parent
		if plan != nil {
			parent = plan.parent
		}
		profile = nil
		if p := tree.Node(parent); p != nil {
			inherited := p.Board.Profile
			profile = &inherited
		}
	}
	if profile != nil && *profile != -1 {
		fields["id_profile"] = *profile
	}

	if opts.AccessGroups != nil {
		fields["member_groups"] = intset.New(opts.AccessGroups...).String()
	}
	if opts.DenyGroups != nil {
		fields["deny_groups"] = intset.New(opts.DenyGroups...).String()
	}
	return fields, nil
}

// resolveModerators 合并 id 列表和按名称解析的版主，nil 表示不修改
func (s *BoardService) resolveModerators(ctx context.Context, opts ModifyBoardOptions) ([]int, error) {
	if opts.Moderators == nil && opts.ModeratorString == nil {
		return nil, nil
	}
	ids := append([]int{}, opts.Moderators...)
	if opts.ModeratorString != nil {
		found, err := s.members.FindIDsByName(ctx, splitNames(*opts.ModeratorString))
		if err != nil {
			return nil, err
		}
		ids = append(ids, found...)
	}
	return ids, nil
}

func (s *BoardService) resolveModeratorGroups(ctx context.Context, opts ModifyBoardOptions) ([]int, error) {
	if opts.ModeratorGroups == nil && opts.ModeratorGroupString == nil {
		return nil, nil
	}
	ids := append([]int{}, opts.ModeratorGroups...)
	if opts.ModeratorGroupString != nil {
		found, err := s.groups.FindIDsByName(ctx, splitNames(*opts.ModeratorGroupString), false)
		if err != nil {
			return nil, err
		}
		ids = append(ids, found...)
	}
	return ids, nil
}

// splitNames 解析逗号分隔、可带引号的名称列表
func splitNames(raw string) []string {
	var names []string
	for _, part := range strings.Split(raw, ",") {
		name := strings.Trim(strings.TrimSpace(part), `"'`)
		if name != "" {
			names = append(names, name)
		}
	}
	return names
}

// DeleteBoards 删除版块
// moveChildrenTo 为 nil 时连同全部后代一起删除；否则直接子版块挂到该版块下（0 表示顶级）
func (s *BoardService) DeleteBoards(ctx context.Context, actor *model.Actor, ids []int, moveChildrenTo *int) error {
	if !actor.Allowed(model.PermManageBoards) {
		return apperr.ErrForbidden
	}
	tree, err := s.tree.BuildTree(ctx)
	if err != nil {
		return err
	}

	doomed := intset.New()
	for _, id := range ids {
		if tree.Node(id) != nil {
			doomed.Add(id)
		}
	}
	if doomed.Len() == 0 {
		return nil
	}

	if moveChildrenTo == nil {
		for _, id := range doomed.Slice() {
			doomed.Add(tree.Descendants(id)...)
		}
	} else {
		target := *moveChildrenTo
		newLevel := 0
		var targetNode *BoardNode
		if target != 0 {
			targetNode = tree.Node(target)
			if targetNode == nil {
				return apperr.New(apperr.ErrBoardNotFound, fmt.Sprintf("target board %d", target))
			}
			if doomed.Has(target) {
				return apperr.New(apperr.ErrBoardInvalidMove, fmt.Sprintf("target board %d is being deleted", target))
			}
			for _, id := range doomed.Slice() {
				if tree.IsChildOf(target, id) {
					return apperr.New(apperr.ErrBoardCycle,
						fmt.Sprintf("target board %d is a descendant of deleted board %d", target, id))
				}
			}
			newLevel = targetNode.Board.Level + 1
		}
		for _, id := range doomed.Slice() {
			category := tree.Node(id).Board.Category
			if targetNode != nil {
				category = targetNode.Board.Category
			}
			if err := s.FixChildren(ctx, id, newLevel, target, category); err != nil {
				return err
			}
		}
	}

	boards := doomed.Slice()

	topics, err := s.topics.TopicIDsInBoards(ctx, boards)
	if err != nil {
		return err
	}
	if err := s.removal.RemoveTopics(ctx, actor, topics, false, true, false); err != nil {
		return err
	}
	if err := s.repo.DeleteBoards(ctx, boards); err != nil {
		return err
	}
	for _, id := range boards {
		s.log(ctx, actor, "delete_board", map[string]interface{}{"board": id, "name": tree.Node(id).Board.Name})
	}
	if _, err := s.stats.RefreshGlobalStats(ctx); err != nil {
		return err
	}
	if _, err := s.ReorderBoards(ctx); err != nil {
		return err
	}
	s.cache.Invalidate(ctx, cache.KeyBoardOrder)
	s.events.Fire(ctx, event.BoardsChanged, map[string]interface{}{"deleted": boards})

	logger.Info("boards deleted", logger.Ints("boards", boards), logger.Int("topics", len(topics)))
	return nil
}

// FixChildren 将 parent 的直接子版块挂到 newParent 下并设为 newLevel，递归修正更深层级
func (s *BoardService) FixChildren(ctx context.Context, parent, newLevel, newParent, category int) error {
	children, err := s.repo.ChildrenOf(ctx, parent)
	if err != nil {
		return err
	}
	if len(children) == 0 {
		return nil
	}
	if err := s.repo.Reparent(ctx, parent, newParent, newLevel, category); err != nil {
		return err
	}
	for _, child := range children {
		if err := s.FixChildren(ctx, child, newLevel+1, child, category); err != nil {
			return err
		}
	}
	return nil
}

// ReorderBoards 按分区顺序和树先序把 board_order 重排为 1..N，只写发生变化的行
func (s *BoardService) ReorderBoards(ctx context.Context) (int, error) {
	tree, err := s.tree.BuildTree(ctx)
	if err != nil {
		return 0, err
	}

	order, changed := 0, 0
	var walkErr error
	tree.Walk(func(n *BoardNode) {
		if walkErr != nil {
			return
		}
		order++
		if n.Board.Order == order {
			return
		}
		if walkErr = s.repo.SetOrder(ctx, n.Board.ID, order); walkErr == nil {
			n.Board.Order = order
			changed++
		}
	})
	if walkErr != nil {
		return changed, walkErr
	}

	s.cache.Invalidate(ctx, cache.KeyBoardOrder)
	if changed > 0 {
		logger.Info("boards reordered", logger.Int("changed", changed), logger.Int("total", order))
	}
	return changed, nil
}

func (s *BoardService) log(ctx context.Context, actor *model.Actor, action string, extra map[string]interface{}) {
	actorID := 0
	if actor != nil {
		actorID = actor.MemberID
	}
	if err := s.audit.Log(ctx, action, actorID, extra); err != nil {
		logger.Warn("audit log failed", logger.String("action", action), logger.ErrorField(err))
	}
}
