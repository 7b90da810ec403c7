package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/StoryBB/StoryBB-sub002/internal/core/config"
	"github.com/StoryBB/StoryBB-sub002/internal/middleware"
	"github.com/StoryBB/StoryBB-sub002/internal/model"

	"github.com/spf13/cobra"
)

func newTreeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "tree",
		Short: "Print the board tree, repairing child levels and categories on the way",
		RunE: func(cmd *cobra.Command, args []string) error {
			tree, err := svc.Tree.BuildTree(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, cat := range tree.Categories {
				fmt.Fprintf(out, "[%d] %s\n", cat.Category.ID, cat.Category.Name)
				for _, id := range tree.BoardList[cat.Category.ID] {
					b := tree.Node(id).Board
					fmt.Fprintf(out, "%s- %s (#%d, order %d)\n", strings.Repeat("  ", b.Level+1), b.Name, b.ID, b.Order)
				}
			}
			for _, r := range tree.Repairs {
				fmt.Fprintf(out, "repaired board %d %s: %d -> %d\n", r.Board, r.Field, r.From, r.To)
			}
			return nil
		},
	}
}

func newReorderCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reorder",
		Short: "Renumber board_order densely in tree order",
		RunE: func(cmd *cobra.Command, args []string) error {
			changed, err := svc.Boards.ReorderBoards(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d board(s) renumbered\n", changed)
			return nil
		},
	}
}

func newRecountCmd() *cobra.Command {
	var budget time.Duration
	cmd := &cobra.Command{
		Use:   "recount",
		Short: "Recount topic, board and member statistics",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRecount(cmd.Context(), cmd, budget)
		},
	}
	cmd.Flags().DurationVar(&budget, "budget", 3*time.Second, "work per slice before reporting progress")
	return cmd
}

// runRecount 在进程内连续推进任务，每个时间片输出一次进度
func runRecount(ctx context.Context, cmd *cobra.Command, budget time.Duration) error {
	state, err := svc.Recount.NewJob(ctx)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	for !state.Done() {
		var done bool
		state, done, err = svc.Recount.RunBudgeted(ctx, state, time.Now().Add(budget))
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "%3d%% step %d start %d\n", state.Progress(), state.Step, state.Start)
		if done {
			break
		}
	}
	fmt.Fprintf(out, "recount finished, %d correction(s)\n", state.Corrections)
	return nil
}

func newStatsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Refresh last-message pointers and forum-wide totals",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			boards, err := svc.Stats.UpdateLastMessages(ctx, nil)
			if err != nil {
				return err
			}
			settings, err := svc.Stats.RefreshGlobalStats(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d board(s) and %d setting(s) updated\n", boards, settings)
			return nil
		},
	}
}

// newTokenCmd 签发管理接口 token，只读取配置不连接数据库
func newTokenCmd() *cobra.Command {
	var (
		member int
		name   string
		admin  bool
		perms  []string
	)
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue a bearer token for the management API",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := config.Init(configPath); err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			actor := model.Actor{MemberID: member, Name: name, IsAdmin: admin}
			if len(perms) > 0 {
				actor.Permissions = make(map[string]bool, len(perms))
				for _, p := range perms {
					actor.Permissions[p] = true
				}
			}
			token, err := middleware.GenerateToken(actor, &config.Get().JWT)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	cmd.Flags().IntVar(&member, "member", 0, "member id recorded in the audit log")
	cmd.Flags().StringVar(&name, "name", "", "display name")
	cmd.Flags().BoolVar(&admin, "admin", false, "grant every permission")
	cmd.Flags().StringSliceVar(&perms, "perm", nil, "permission to grant, repeatable")
	_ = cmd.MarkFlagRequired("member")
	return cmd
}
