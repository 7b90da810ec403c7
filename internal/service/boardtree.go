package service

import (
	"context"
	"fmt"
	"sort"

	"github.com/StoryBB/StoryBB-sub002/internal/core/logger"
	"github.com/StoryBB/StoryBB-sub002/internal/core/metrics"
	"github.com/StoryBB/StoryBB-sub002/internal/model"
	"github.com/StoryBB/StoryBB-sub002/internal/pkg/apperr"
	"github.com/StoryBB/StoryBB-sub002/internal/repository"
)

// BoardNode 版块树节点
type BoardNode struct {
	Board    *model.Board
	Parent   *BoardNode // 顶级版块为 nil
	Children []*BoardNode
}

// CategoryNode 分区节点
type CategoryNode struct {
	Category *model.Category
	Children []*BoardNode
	// LastBoardOrder 排在本分区之前的版块中最大的 board_order
	LastBoardOrder int
}

// Repair BuildTree 过程中写回存储的修正
type Repair struct {
	Board int    `json:"board"`
	Field string `json:"field"`
	From  int    `json:"from"`
	To    int    `json:"to"`
}

// BoardTree 一次请求内的版块树快照
type BoardTree struct {
	Categories []*CategoryNode
	Category   map[int]*CategoryNode
	Boards     map[int]*BoardNode
	// BoardList 每个分区内按先序遍历排列的版块 id
	BoardList map[int][]int
	Repairs   []Repair
}

// Node 获取版块节点
func (t *BoardTree) Node(id int) *BoardNode {
	return t.Boards[id]
}

// IsChildOf child 是否为 parent 的后代，沿父指针向上查找
func (t *BoardTree) IsChildOf(child, parent int) bool {
	n, ok := t.Boards[child]
	if !ok {
		return false
	}
	for n.Parent != nil {
		if n.Parent.Board.ID == parent {
			return true
		}
		n = n.Parent
	}
	return false
}

// Descendants 先序返回全部后代 id，不含自身
func (t *BoardTree) Descendants(id int) []int {
	n, ok := t.Boards[id]
	if !ok {
		return nil
	}
	var out []int
	var walk func(*BoardNode)
	walk = func(n *BoardNode) {
		for _, c := range n.Children {
			out = append(out, c.Board.ID)
			walk(c)
		}
	}
	walk(n)
	return out
}

// Walk 按分区顺序、分区内先序遍历全部版块
func (t *BoardTree) Walk(fn func(n *BoardNode)) {
	for _, cat := range t.Categories {
		for _, id := range t.BoardList[cat.Category.ID] {
			fn(t.Boards[id])
		}
	}
}

// MaxOrderIn 分区内最大的 board_order，exclude 中的版块不计
func (t *BoardTree) MaxOrderIn(cat int, exclude map[int]bool) (int, bool) {
	top, found := 0, false
	for _, id := range t.BoardList[cat] {
		if exclude[id] {
			continue
		}
		if o := t.Boards[id].Board.Order; !found || o > top {
			top, found = o, true
		}
	}
	return top, found
}

// BoardTreeService 版块树构建
type BoardTreeService struct {
	repo repository.BoardRepository
}

// NewBoardTreeService 创建 BoardTreeService 实例
func NewBoardTreeService(repo repository.BoardRepository) *BoardTreeService {
	return &BoardTreeService{repo: repo}
}

// BuildTree 读取全部分区和版块并组装成树
// 父版块不存在或存在环时返回错误；层级或分区与父版块不一致时写回修正并记录在 Repairs 中
func (s *BoardTreeService) BuildTree(ctx context.Context) (*BoardTree, error) {
	cats, err := s.repo.ListCategories(ctx)
	if err != nil {
		return nil, err
	}
	boards, err := s.repo.ListBoards(ctx)
	if err != nil {
		return nil, err
	}

	tree := &BoardTree{
		Categories: make([]*CategoryNode, 0, len(cats)),
		Category:   make(map[int]*CategoryNode, len(cats)),
		Boards:     make(map[int]*BoardNode, len(boards)),
		BoardList:  make(map[int][]int, len(cats)),
	}
	for _, c := range cats {
		node := &CategoryNode{Category: c}
		tree.Categories = append(tree.Categories, node)
		tree.Category[c.ID] = node
	}
	for _, b := range boards {
		tree.Boards[b.ID] = &BoardNode{Board: b}
	}

	// 先建节点再挂接，行的读取顺序不影响结果
	for _, b := range boards {
		node := tree.Boards[b.ID]
		if b.Parent == 0 {
			cat, ok := tree.Category[b.Category]
			if !ok {
				return nil, apperr.New(apperr.ErrCategoryNotFound,
					fmt.Sprintf("board %d declares category %d", b.ID, b.Category))
			}
			cat.Children = append(cat.Children, node)
			continue
		}
		parent, ok := tree.Boards[b.Parent]
		if !ok {
			logger.Error("board parent missing", logger.Int("board", b.ID), logger.Int("parent", b.Parent))
			return nil, apperr.New(apperr.ErrParentBoardMissing,
				fmt.Sprintf("board %d declares parent %d", b.ID, b.Parent))
		}
		node.Parent = parent
		parent.Children = append(parent.Children, node)
	}

	lastOrder := 0
	for _, cat := range tree.Categories {
		cat.LastBoardOrder = lastOrder
		sortNodes(cat.Children)
		for _, top := range cat.Children {
			if err := s.attach(ctx, tree, cat, top, 0); err != nil {
				return nil, err
			}
		}
		for _, id := range tree.BoardList[cat.Category.ID] {
			if o := tree.Boards[id].Board.Order; o > lastOrder {
				lastOrder = o
			}
		}
	}

	// 从分区出发不可达的版块只能是环
	if visited := countListed(tree); visited != len(tree.Boards) {
		for id := range tree.Boards {
			if !listed(tree, id) {
				return nil, apperr.New(apperr.ErrBoardCycle, fmt.Sprintf("board %d is not reachable from any category", id))
			}
		}
	}

	return tree, nil
}

// attach 先序遍历，记录 BoardList 并修正层级和分区
func (s *BoardTreeService) attach(ctx context.Context, tree *BoardTree, cat *CategoryNode, n *BoardNode, level int) error {
	b := n.Board
	if b.Level != level {
		if err := s.repo.SetChildLevel(ctx, b.ID, level); err != nil {
			return err
		}
		s.repaired(tree, Repair{Board: b.ID, Field: "child_level", From: b.Level, To: level})
		b.Level = level
	}
	if b.Category != cat.Category.ID {
		if err := s.repo.SetCategory(ctx, []int{b.ID}, cat.Category.ID); err != nil {
			return err
		}
		s.repaired(tree, Repair{Board: b.ID, Field: "id_cat", From: b.Category, To: cat.Category.ID})
		b.Category = cat.Category.ID
	}

	tree.BoardList[cat.Category.ID] = append(tree.BoardList[cat.Category.ID], b.ID)
	sortNodes(n.Children)
	for _, c := range n.Children {
		if err := s.attach(ctx, tree, cat, c, level+1); err != nil {
			return err
		}
	}
	return nil
}

func (s *BoardTreeService) repaired(tree *BoardTree, r Repair) {
	tree.Repairs = append(tree.Repairs, r)
	metrics.TreeRepairs.WithLabelValues(r.Field).Inc()
	logger.Warn("board tree repaired",
		logger.Int("board", r.Board),
		logger.String("field", r.Field),
		logger.Int("from", r.From),
		logger.Int("to", r.To))
}

func sortNodes(nodes []*BoardNode) {
	sort.SliceStable(nodes, func(i, j int) bool {
		return nodes[i].Board.Order < nodes[j].Board.Order
	})
}

func countListed(tree *BoardTree) int {
	n := 0
	for _, ids := range tree.BoardList {
		n += len(ids)
	}
	return n
}

func listed(tree *BoardTree, id int) bool {
	for _, ids := range tree.BoardList {
		for _, x := range ids {
			if x == id {
				return true
			}
		}
	}
	return false
}
