package service

import (
	"context"
	"fmt"

	"github.com/StoryBB/StoryBB-sub002/internal/core/audit"
	"github.com/StoryBB/StoryBB-sub002/internal/core/cache"
	"github.com/StoryBB/StoryBB-sub002/internal/core/event"
	"github.com/StoryBB/StoryBB-sub002/internal/core/logger"
	"github.com/StoryBB/StoryBB-sub002/internal/model"
	"github.com/StoryBB/StoryBB-sub002/internal/pkg/apperr"
	"github.com/StoryBB/StoryBB-sub002/internal/pkg/intset"
	"github.com/StoryBB/StoryBB-sub002/internal/repository"
)

// 加入用户组的方式
const (
	AddOnlyPrimary    = "only_primary"
	AddOnlyAdditional = "only_additional"
	AddForcePrimary   = "force_primary"
	AddAuto           = "auto"
)

// holderSide 账号或角色一侧的用户组操作
type holderSide struct {
	repo          repository.GroupHolderRepository
	character     bool
	removedAction string
	addedAction   string
	nameKey       string
}

// MembergroupService 用户组删除与成员变更
type MembergroupService struct {
	groups     repository.MembergroupRepository
	boards     repository.BoardRepository
	members    holderSide
	characters holderSide
	audit      audit.Sink
	cache      cache.Invalidator
	events     event.Bus
}

// NewMembergroupService 创建 MembergroupService 实例
func NewMembergroupService(
	groups repository.MembergroupRepository,
	members, characters repository.GroupHolderRepository,
	boards repository.BoardRepository,
	auditSink audit.Sink,
	inv cache.Invalidator,
	events event.Bus,
) *MembergroupService {
	return &MembergroupService{
		groups: groups,
		boards: boards,
		members: holderSide{
			repo:          members,
			removedAction: "removed_from_group",
			addedAction:   "added_to_group",
			nameKey:       "member",
		},
		characters: holderSide{
			repo:          characters,
			character:     true,
			removedAction: "char_removed_from_group",
			addedAction:   "char_added_to_group",
			nameKey:       "character",
		},
		audit:  auditSink,
		cache:  inv,
		events: events,
	}
}

// DeleteMembergroups 删除用户组
// 保留组总是被过滤，受保护组只有 admin_forum 才能删除；被启用中的订阅引用时拒绝
func (s *MembergroupService) DeleteMembergroups(ctx context.Context, actor *model.Actor, ids []int) error {
	if len(ids) == 0 {
		return apperr.ErrNoGroups
	}
	if !actor.Allowed(model.PermManageMembergroups) {
		return apperr.ErrForbidden
	}

	requested := intset.New(ids...)
	candidates := requested.Difference(model.ReservedGroups)
	if candidates.Len() == 0 {
		return apperr.New(apperr.ErrGroupProtected, fmt.Sprintf("groups %s are reserved", requested))
	}

	rows, err := s.groups.Get(ctx, candidates.Slice())
	if err != nil {
		return err
	}
	doomed := intset.New()
	var names []*model.Membergroup
	protected := 0
	for _, g := range rows {
		if g.IsProtected() && !actor.Allowed(model.PermAdminForum) {
			protected++
			continue
		}
		doomed.Add(g.ID)
		names = append(names, g)
	}
	if doomed.Len() == 0 {
		if protected > 0 {
			return apperr.New(apperr.ErrGroupProtected, fmt.Sprintf("groups %s are protected", candidates))
		}
		return nil
	}

	subs, err := s.groups.ActiveSubscriptions(ctx)
	if err != nil {
		return err
	}
	for _, sub := range subs {
		if sub.Groups().HasAny(doomed) {
			return apperr.New(apperr.ErrGroupInSubscription,
				fmt.Sprintf("subscription %q uses groups %s", sub.Name, sub.Groups().Intersect(doomed)))
		}
	}

	groupIDs := doomed.Slice()
	if err := s.groups.Delete(ctx, groupIDs); err != nil {
		return err
	}
	for _, side := range []holderSide{s.members, s.characters} {
		if _, err := side.repo.ResetPrimary(ctx, groupIDs, nil, model.GroupUngrouped); err != nil {
			return err
		}
	}
	if err := s.groups.ClearInheritance(ctx, groupIDs); err != nil {
		return err
	}
	for _, side := range []holderSide{s.members, s.characters} {
		if _, err := scrubAdditional(ctx, side.repo, nil, doomed); err != nil {
			return err
		}
	}
	if err := s.scrubBoards(ctx, doomed); err != nil {
		return err
	}

	for _, g := range names {
		s.log(ctx, actor, "delete_group", map[string]interface{}{"group": g.ID, "group_name": g.Name})
	}

	s.cache.Invalidate(ctx, cache.KeyMembergroupList, cache.KeyBoardOrder)
	s.events.Fire(ctx, event.MembergroupsDeleted, map[string]interface{}{"groups": groupIDs})
	logger.Info("membergroups deleted", logger.Ints("groups", groupIDs))
	return nil
}

// scrubAdditional 从附加组中移除 remove 中的组，相同结果值的记录合并成一次写入
// ids 为 nil 时扫描全表
func scrubAdditional(ctx context.Context, repo repository.GroupHolderRepository, ids []int, remove intset.Set) (int, error) {
	if ids != nil && len(ids) == 0 {
		return 0, nil
	}
	holders, err := repo.WithAdditionalGroups(ctx, ids)
	if err != nil {
		return 0, err
	}
	byValue := map[string][]int{}
	values := map[string]intset.Set{}
	for _, h := range holders {
		if !h.AdditionalGroups.HasAny(remove) {
			continue
		}
		next := h.AdditionalGroups.Difference(remove)
		key := next.String()
		byValue[key] = append(byValue[key], h.ID)
		values[key] = next
	}
	changed := 0
	for key, hits := range byValue {
		if err := repo.SetAdditional(ctx, values[key], hits); err != nil {
			return changed, err
		}
		changed += len(hits)
	}
	return changed, nil
}

// scrubBoards 从版块的允许/禁止列表中移除已删除的组
func (s *MembergroupService) scrubBoards(ctx context.Context, groups intset.Set) error {
	boards, err := s.boards.ListBoards(ctx)
	if err != nil {
		return err
	}
	for _, b := range boards {
		if !b.MemberGroups.HasAny(groups) && !b.DenyGroups.HasAny(groups) {
			continue
		}
		if err := s.boards.SetAccessLists(ctx, b.ID, b.MemberGroups.Difference(groups), b.DenyGroups.Difference(groups)); err != nil {
			return err
		}
	}
	return nil
}

// RemoveMembersFromGroups 把账号移出用户组，groups 为 nil 时移出全部用户组
// 操作不会让管理员组变空
func (s *MembergroupService) RemoveMembersFromGroups(ctx context.Context, actor *model.Actor, members []int, groups []int,
	permissionChecked, ignoreProtected bool) error {
	return s.removeFromGroups(ctx, actor, s.members, members, groups, permissionChecked, ignoreProtected)
}

// RemoveCharactersFromGroups 把角色移出角色组
func (s *MembergroupService) RemoveCharactersFromGroups(ctx context.Context, actor *model.Actor, characters []int, groups []int,
	permissionChecked, ignoreProtected bool) error {
	return s.removeFromGroups(ctx, actor, s.characters, characters, groups, permissionChecked, ignoreProtected)
}

func (s *MembergroupService) removeFromGroups(ctx context.Context, actor *model.Actor, side holderSide, ids []int, groups []int,
	permissionChecked, ignoreProtected bool) error {
	if !permissionChecked && !actor.Allowed(model.PermManageMembergroups) {
		return apperr.ErrForbidden
	}
	targets := intset.New()
	for _, id := range ids {
		if id > 0 {
			targets.Add(id)
		}
	}
	if targets.Len() == 0 {
		return nil
	}
	isAdmin := actor.Allowed(model.PermAdminForum)

	if groups == nil {
		if !side.character {
			admins, err := s.adminIDs(ctx)
			if err != nil {
				return err
			}
			if !isAdmin || admins.Difference(targets).Len() == 0 {
				targets = targets.Difference(admins)
			}
		}
		return s.stripAll(ctx, actor, side, targets)
	}

	wanted := intset.New(groups...).Difference(model.ImplicitGroups)
	rows, err := s.groups.Get(ctx, wanted.Slice())
	if err != nil {
		return err
	}
	remove := intset.New()
	protected := intset.New()
	for _, g := range rows {
		if (g.IsCharacter == 1) != side.character {
			continue
		}
		if g.IsProtected() && !isAdmin && !ignoreProtected {
			protected.Add(g.ID)
			continue
		}
		remove.Add(g.ID)
	}
	if remove.Len() == 0 {
		if protected.Len() > 0 {
			return apperr.New(apperr.ErrGroupProtected, fmt.Sprintf("groups %s are protected", protected))
		}
		return nil
	}

	if !side.character && remove.Has(model.GroupAdministrator) {
		admins, err := s.adminIDs(ctx)
		if err != nil {
			return err
		}
		if admins.Difference(targets).Len() == 0 {
			targets = targets.Difference(admins)
			logger.Warn("keeping last administrators", logger.Ints("members", admins.Slice()))
		}
	}
	if targets.Len() == 0 {
		return nil
	}

	holders, err := side.repo.Get(ctx, targets.Slice())
	if err != nil {
		return err
	}
	var primaryHits, additionalHits []int
	for _, h := range holders {
		for _, g := range remove.Slice() {
			switch {
			case h.PrimaryGroup == g:
				primaryHits = append(primaryHits, h.ID)
			case h.AdditionalGroups.Has(g):
				additionalHits = append(additionalHits, h.ID)
			default:
				continue
			}
			s.log(ctx, actor, side.removedAction, map[string]interface{}{
				side.nameKey: h.ID, side.nameKey + "_name": h.Name, "group": g,
			})
		}
	}
	if len(primaryHits) == 0 && len(additionalHits) == 0 {
		return nil
	}

	if _, err := side.repo.ResetPrimary(ctx, remove.Slice(), intset.New(primaryHits...).Slice(), model.GroupUngrouped); err != nil {
		return err
	}
	if _, err := scrubAdditional(ctx, side.repo, intset.New(additionalHits...).Slice(), remove); err != nil {
		return err
	}

	affected := intset.New(primaryHits...).Union(intset.New(additionalHits...)).Slice()
	s.cache.Invalidate(ctx, cache.KeyMembergroupList)
	s.events.Fire(ctx, event.MembergroupsRemoved, map[string]interface{}{
		side.nameKey + "s": affected, "groups": remove.Slice(),
	})
	logger.Info("removed from membergroups",
		logger.String("side", side.nameKey),
		logger.Ints("ids", affected),
		logger.Ints("groups", remove.Slice()))
	return nil
}

// stripAll 清空主组和附加组
func (s *MembergroupService) stripAll(ctx context.Context, actor *model.Actor, side holderSide, targets intset.Set) error {
	if targets.Len() == 0 {
		return nil
	}
	holders, err := side.repo.Get(ctx, targets.Slice())
	if err != nil {
		return err
	}
	var hits []int
	for _, h := range holders {
		all := h.AllGroups()
		all.Remove(model.GroupUngrouped)
		if all.Len() == 0 {
			continue
		}
		hits = append(hits, h.ID)
		for _, g := range all.Slice() {
			s.log(ctx, actor, side.removedAction, map[string]interface{}{
				side.nameKey: h.ID, side.nameKey + "_name": h.Name, "group": g,
			})
		}
	}
	if len(hits) == 0 {
		return nil
	}
	if err := side.repo.SetGroups(ctx, model.GroupUngrouped, intset.New(), hits); err != nil {
		return err
	}

	s.cache.Invalidate(ctx, cache.KeyMembergroupList)
	s.events.Fire(ctx, event.MembergroupsRemoved, map[string]interface{}{side.nameKey + "s": hits, "groups": nil})
	logger.Info("stripped all membergroups", logger.String("side", side.nameKey), logger.Ints("ids", hits))
	return nil
}

// adminIDs 主组或附加组包含管理员组的账号
func (s *MembergroupService) adminIDs(ctx context.Context) (intset.Set, error) {
	primary, err := s.members.repo.InPrimaryGroup(ctx, model.GroupAdministrator)
	if err != nil {
		return nil, err
	}
	admins := intset.New(primary...)
	extra, err := s.members.repo.WithAdditionalGroups(ctx, nil)
	if err != nil {
		return nil, err
	}
	for _, h := range extra {
		if h.AdditionalGroups.Has(model.GroupAdministrator) {
			admins.Add(h.ID)
		}
	}
	return admins, nil
}

// AddMembersToGroup 把账号加入用户组
func (s *MembergroupService) AddMembersToGroup(ctx context.Context, actor *model.Actor, members []int, group int, addType string,
	permissionChecked, ignoreProtected bool) error {
	return s.addToGroup(ctx, actor, s.members, members, group, addType, permissionChecked, ignoreProtected)
}

// AddCharactersToGroup 把角色加入角色组，只写附加组
func (s *MembergroupService) AddCharactersToGroup(ctx context.Context, actor *model.Actor, characters []int, group int,
	permissionChecked, ignoreProtected bool) error {
	return s.addToGroup(ctx, actor, s.characters, characters, group, AddOnlyAdditional, permissionChecked, ignoreProtected)
}

func (s *MembergroupService) addToGroup(ctx context.Context, actor *model.Actor, side holderSide, ids []int, group int, addType string,
	permissionChecked, ignoreProtected bool) error {
	if !permissionChecked && !actor.Allowed(model.PermManageMembergroups) {
		return apperr.ErrForbidden
	}
	if model.ImplicitGroups.Has(group) {
		return apperr.New(apperr.ErrGroupImplicit, fmt.Sprintf("group %d", group))
	}
	switch addType {
	case AddOnlyPrimary, AddOnlyAdditional, AddForcePrimary, AddAuto:
	default:
		return apperr.New(apperr.ErrInvalidParams, fmt.Sprintf("unknown add type %q", addType))
	}

	rows, err := s.groups.Get(ctx, []int{group})
	if err != nil {
		return err
	}
	if len(rows) == 0 || (rows[0].IsCharacter == 1) != side.character {
		return apperr.New(apperr.ErrGroupNotFound, fmt.Sprintf("group %d", group))
	}
	g := rows[0]
	isAdmin := actor.Allowed(model.PermAdminForum)
	if group == model.GroupAdministrator && !isAdmin {
		return apperr.New(apperr.ErrGroupProtected, "only administrators can add administrators")
	}
	if g.IsProtected() && !isAdmin && !ignoreProtected {
		return apperr.New(apperr.ErrGroupProtected, fmt.Sprintf("group %d", group))
	}

	targets := intset.New()
	for _, id := range ids {
		if id > 0 {
			targets.Add(id)
		}
	}
	if targets.Len() == 0 {
		return nil
	}
	holders, err := side.repo.Get(ctx, targets.Slice())
	if err != nil {
		return err
	}

	var toPrimary []int
	additional := map[string][]int{}
	values := map[string]intset.Set{}
	addAdditional := func(h *model.GroupHolder, next intset.Set) {
		key := next.String()
		additional[key] = append(additional[key], h.ID)
		values[key] = next
	}

	var hits []int
	for _, h := range holders {
		inPrimary := h.PrimaryGroup == group
		inAdditional := h.AdditionalGroups.Has(group)
		primaryFree := h.PrimaryGroup == model.GroupUngrouped

		switch addType {
		case AddOnlyPrimary:
			if !primaryFree || inAdditional {
				continue
			}
			toPrimary = append(toPrimary, h.ID)
		case AddOnlyAdditional:
			if inPrimary || inAdditional {
				continue
			}
			addAdditional(h, h.AdditionalGroups.Union(intset.New(group)))
		case AddForcePrimary:
			if inPrimary && !inAdditional {
				continue
			}
			toPrimary = append(toPrimary, h.ID)
			if inAdditional {
				addAdditional(h, h.AdditionalGroups.Difference(intset.New(group)))
			}
		case AddAuto:
			if inPrimary || inAdditional {
				continue
			}
			if primaryFree {
				toPrimary = append(toPrimary, h.ID)
			} else {
				addAdditional(h, h.AdditionalGroups.Union(intset.New(group)))
			}
		}
		hits = append(hits, h.ID)
		s.log(ctx, actor, side.addedAction, map[string]interface{}{
			side.nameKey: h.ID, side.nameKey + "_name": h.Name, "group": group, "group_name": g.Name,
		})
	}
	if len(hits) == 0 {
		return nil
	}

	if len(toPrimary) > 0 {
		if err := s.setPrimary(ctx, side, toPrimary, group); err != nil {
			return err
		}
	}
	for key, hit := range additional {
		if err := side.repo.SetAdditional(ctx, values[key], hit); err != nil {
			return err
		}
	}

	s.cache.Invalidate(ctx, cache.KeyMembergroupList)
	s.events.Fire(ctx, event.MembergroupsAdded, map[string]interface{}{
		side.nameKey + "s": hits, "group": group, "type": addType,
	})
	logger.Info("added to membergroup",
		logger.String("side", side.nameKey),
		logger.Ints("ids", hits),
		logger.Int("group", group),
		logger.String("type", addType))
	return nil
}

// setPrimary 写入主组，保留各自的附加组
func (s *MembergroupService) setPrimary(ctx context.Context, side holderSide, ids []int, group int) error {
	holders, err := side.repo.Get(ctx, ids)
	if err != nil {
		return err
	}
	current := intset.New()
	for _, h := range holders {
		current.Add(h.PrimaryGroup)
	}
	_, err = side.repo.ResetPrimary(ctx, current.Slice(), ids, group)
	return err
}

func (s *MembergroupService) log(ctx context.Context, actor *model.Actor, action string, extra map[string]interface{}) {
	actorID := 0
	if actor != nil {
		actorID = actor.MemberID
	}
	if err := s.audit.Log(ctx, action, actorID, extra); err != nil {
		logger.Warn("audit log failed", logger.String("action", action), logger.ErrorField(err))
	}
}
