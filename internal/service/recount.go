package service

import (
	"context"
	"time"

	"github.com/StoryBB/StoryBB-sub002/internal/core/config"
	"github.com/StoryBB/StoryBB-sub002/internal/core/event"
	"github.com/StoryBB/StoryBB-sub002/internal/core/logger"
	"github.com/StoryBB/StoryBB-sub002/internal/core/metrics"
	"github.com/StoryBB/StoryBB-sub002/internal/model"
	"github.com/StoryBB/StoryBB-sub002/internal/repository"

	"github.com/google/uuid"
)

// 重新统计的步骤，按顺序执行
const (
	StepTopicReplies = iota
	StepBoardPosts
	StepBoardTopics
	StepUnapprovedPosts
	StepUnapprovedTopics
	StepPersonalMessages
	StepMessageBoards
	StepFinalize
	StepDone
)

var stepNames = [...]string{
	"topic_replies", "board_posts", "board_topics", "unapproved_posts",
	"unapproved_topics", "personal_messages", "message_boards", "finalize",
}

// JobState 可在请求之间传递的重新统计进度
type JobState struct {
	JobID      string `json:"job_id"`
	Step       int    `json:"step"`
	Start      int    `json:"start"`
	MaxTopic   int    `json:"max_topic"`
	MaxMessage int    `json:"max_msg"`
	Increment  int    `json:"increment"`
	// Totals 当前步骤已扫描窗口的版块累计值，步骤结束时一次性写入
	Totals      map[int][2]int `json:"totals,omitempty"`
	Corrections int            `json:"corrections"`
}

// Done 是否已完成全部步骤
func (st JobState) Done() bool {
	return st.Step >= StepDone
}

// Progress 完成百分比
func (st JobState) Progress() int {
	if st.Done() {
		return 100
	}
	within := 0
	limit := st.MaxTopic
	if st.Step == StepMessageBoards {
		limit = st.MaxMessage
	}
	switch st.Step {
	case StepPersonalMessages, StepFinalize:
	default:
		if limit > 0 {
			within = st.Start * 100 / limit
			if within > 100 {
				within = 100
			}
		}
	}
	return (st.Step*100 + within) / StepDone
}

func (st *JobState) nextStep() {
	st.Step++
	st.Start = 0
	st.Totals = nil
}

// Continuation 返回给调用方的继续执行信息
type Continuation struct {
	Done      bool   `json:"done"`
	NextStep  int    `json:"next_step"`
	NextStart int    `json:"next_start"`
	Percent   int    `json:"percent"`
	Token     string `json:"token,omitempty"`
}

// RecountService 分批、可续跑的计数重建
// 每个窗口的修正都先比较再写入，重复执行不会改写任何行
type RecountService struct {
	boards     repository.BoardRepository
	stats      repository.StatsRepository
	members    repository.GroupHolderRepository
	characters repository.GroupHolderRepository
	statsSvc   *StatsService
	events     event.Bus
	cfg        config.MaintenanceConfig
	codec      *JobCodec
	now        func() time.Time
}

// NewRecountService 创建 RecountService 实例
func NewRecountService(
	boards repository.BoardRepository,
	stats repository.StatsRepository,
	members, characters repository.GroupHolderRepository,
	statsSvc *StatsService,
	events event.Bus,
	cfg config.MaintenanceConfig,
	codec *JobCodec,
) *RecountService {
	return &RecountService{
		boards:     boards,
		stats:      stats,
		members:    members,
		characters: characters,
		statsSvc:   statsSvc,
		events:     events,
		cfg:        cfg,
		codec:      codec,
		now:        time.Now,
	}
}

// NewJob 读取最大 id 并计算窗口大小
func (s *RecountService) NewJob(ctx context.Context) (JobState, error) {
	maxTopic, err := s.stats.MaxTopicID(ctx)
	if err != nil {
		return JobState{}, err
	}
	maxMsg, err := s.stats.MaxMessageID(ctx)
	if err != nil {
		return JobState{}, err
	}
	return JobState{
		JobID:      uuid.NewString(),
		MaxTopic:   maxTopic,
		MaxMessage: maxMsg,
		Increment:  Increment(maxTopic, s.cfg.MinIncrement, s.cfg.MaxIncrement),
	}, nil
}

// growLimits 每次续跑重新读取最大 id，任务期间新建的主题和帖子也会被扫描
// 上限只增不减
func (s *RecountService) growLimits(ctx context.Context, st *JobState) error {
	maxTopic, err := s.stats.MaxTopicID(ctx)
	if err != nil {
		return err
	}
	maxMsg, err := s.stats.MaxMessageID(ctx)
	if err != nil {
		return err
	}
	if maxTopic > st.MaxTopic {
		st.MaxTopic = maxTopic
	}
	if maxMsg > st.MaxMessage {
		st.MaxMessage = maxMsg
	}
	return nil
}

// Increment ceil(maxTopic/4) 限制在 [min, max] 内
func Increment(maxTopic, min, max int) int {
	inc := (maxTopic + 3) / 4
	if inc < min {
		inc = min
	}
	if inc > max {
		inc = max
	}
	return inc
}

// RunBudgeted 从 state 继续执行，直到全部完成或超过 deadline
// 每次调用至少处理一个窗口；返回新的进度和是否完成
func (s *RecountService) RunBudgeted(ctx context.Context, state JobState, deadline time.Time) (JobState, bool, error) {
	started := s.now()
	if err := s.growLimits(ctx, &state); err != nil {
		return state, false, err
	}
	if state.Increment <= 0 {
		state.Increment = Increment(state.MaxTopic, s.cfg.MinIncrement, s.cfg.MaxIncrement)
	}

	for !state.Done() {
		if err := ctx.Err(); err != nil {
			return state, false, err
		}
		step := state.Step
		fixed, err := s.runWindow(ctx, &state)
		if err != nil {
			metrics.RecountRuns.WithLabelValues("error").Inc()
			logger.Error("recount step failed",
				logger.String("job", state.JobID),
				logger.String("step", stepNames[step]),
				logger.Int("start", state.Start),
				logger.ErrorField(err))
			return state, false, err
		}
		if fixed > 0 {
			state.Corrections += fixed
			metrics.RecountCorrections.WithLabelValues(stepNames[step]).Add(float64(fixed))
		}
		if state.Step != step {
			logger.Info("recount step finished",
				logger.String("job", state.JobID),
				logger.String("step", stepNames[step]),
				logger.Int("corrections", state.Corrections))
		}
		if !state.Done() && s.now().After(deadline) {
			metrics.RecountRuns.WithLabelValues("yield").Inc()
			metrics.RecountDuration.Observe(s.now().Sub(started).Seconds())
			return state, false, nil
		}
	}

	metrics.RecountRuns.WithLabelValues("done").Inc()
	metrics.RecountDuration.Observe(s.now().Sub(started).Seconds())
	logger.Info("recount finished", logger.String("job", state.JobID), logger.Int("corrections", state.Corrections))
	return state, true, nil
}

// Continue 解码续跑令牌（为空时新建任务），在配置的预算内执行并返回下一次的令牌
func (s *RecountService) Continue(ctx context.Context, token string) (Continuation, error) {
	var (
		state JobState
		err   error
	)
	if token == "" {
		state, err = s.NewJob(ctx)
	} else {
		state, err = s.codec.Decode(token)
	}
	if err != nil {
		return Continuation{}, err
	}

	state, done, err := s.RunBudgeted(ctx, state, s.now().Add(s.cfg.StepBudget))
	if err != nil {
		return Continuation{}, err
	}
	out := Continuation{Done: done, NextStep: state.Step, NextStart: state.Start, Percent: state.Progress()}
	if !done {
		if out.Token, err = s.codec.Encode(state); err != nil {
			return Continuation{}, err
		}
	}
	return out, nil
}

// runWindow 执行当前步骤的一个窗口，返回修正的行数
func (s *RecountService) runWindow(ctx context.Context, st *JobState) (int, error) {
	switch st.Step {
	case StepTopicReplies:
		return s.topicReplies(ctx, st)
	case StepBoardPosts, StepBoardTopics, StepUnapprovedPosts, StepUnapprovedTopics:
		return s.boardCounters(ctx, st)
	case StepPersonalMessages:
		n, err := s.personalMessages(ctx)
		if err == nil {
			st.nextStep()
		}
		return n, err
	case StepMessageBoards:
		return s.messageBoards(ctx, st)
	case StepFinalize:
		n, err := s.finalize(ctx)
		if err == nil {
			st.nextStep()
		}
		return n, err
	}
	st.Step = StepDone
	return 0, nil
}

func (s *RecountService) topicReplies(ctx context.Context, st *JobState) (int, error) {
	rows, err := s.stats.TopicStatsInRange(ctx, st.Start, st.Start+st.Increment)
	if err != nil {
		return 0, err
	}
	fixed := 0
	for _, row := range rows {
		want := row.Actual()
		if want == row.Stored() {
			continue
		}
		if err := s.stats.SetTopicCounters(ctx, row.Topic, want); err != nil {
			return fixed, err
		}
		fixed++
	}
	s.advance(st, st.MaxTopic)
	return fixed, nil
}

// boardPair 每个版块计数步骤负责的两个字段
func boardPair(step int, c model.BoardCounters) [2]int {
	switch step {
	case StepBoardPosts:
		return [2]int{c.NumPosts, c.DeletedPosts}
	case StepBoardTopics:
		return [2]int{c.NumTopics, c.DeletedTopics}
	case StepUnapprovedPosts:
		return [2]int{c.UnapprovedPosts, 0}
	default:
		return [2]int{c.UnapprovedTopics, 0}
	}
}

func setBoardPair(step int, c *model.BoardCounters, v [2]int) {
	switch step {
	case StepBoardPosts:
		c.NumPosts, c.DeletedPosts = v[0], v[1]
	case StepBoardTopics:
		c.NumTopics, c.DeletedTopics = v[0], v[1]
	case StepUnapprovedPosts:
		c.UnapprovedPosts = v[0]
	default:
		c.UnapprovedTopics = v[0]
	}
}

// boardCounters 累加一个主题窗口，扫描完成后与存储值比较并写入
func (s *RecountService) boardCounters(ctx context.Context, st *JobState) (int, error) {
	var (
		counts map[int]model.BoardCounters
		err    error
	)
	end := st.Start + st.Increment
	if st.Step == StepBoardPosts || st.Step == StepUnapprovedPosts {
		counts, err = s.stats.PostCountsInRange(ctx, st.Start, end)
	} else {
		counts, err = s.stats.TopicCountsInRange(ctx, st.Start, end)
	}
	if err != nil {
		return 0, err
	}
	if st.Totals == nil {
		st.Totals = map[int][2]int{}
	}
	for board, c := range counts {
		v := boardPair(st.Step, c)
		acc := st.Totals[board]
		st.Totals[board] = [2]int{acc[0] + v[0], acc[1] + v[1]}
	}

	if end < st.MaxTopic {
		st.Start = end
		return 0, nil
	}

	boards, err := s.boards.ListBoards(ctx)
	if err != nil {
		return 0, err
	}
	fixed := 0
	for _, b := range boards {
		current := b.Counters()
		want := st.Totals[b.ID]
		if boardPair(st.Step, current) == want {
			continue
		}
		setBoardPair(st.Step, &current, want)
		if err := s.boards.SetCounters(ctx, b.ID, current); err != nil {
			return fixed, err
		}
		fixed++
	}
	st.nextStep()
	return fixed, nil
}

func (s *RecountService) personalMessages(ctx context.Context) (int, error) {
	fixed := 0
	for _, repo := range []repository.GroupHolderRepository{s.members, s.characters} {
		stored, err := repo.PMCounters(ctx)
		if err != nil {
			return fixed, err
		}
		actual, err := repo.ActualPMCounters(ctx)
		if err != nil {
			return fixed, err
		}
		byID := make(map[int]model.PMCounters, len(actual))
		for _, a := range actual {
			byID[a.ID] = a
		}
		for _, cur := range stored {
			want := byID[cur.ID]
			if cur.Total == want.Total && cur.Unread == want.Unread {
				continue
			}
			if err := repo.SetPMCounters(ctx, cur.ID, want.Total, want.Unread); err != nil {
				return fixed, err
			}
			fixed++
		}
	}
	return fixed, nil
}

// messageBoards 修正 id_board 与主题不一致的帖子，按帖子 id 分窗口
func (s *RecountService) messageBoards(ctx context.Context, st *JobState) (int, error) {
	rows, err := s.stats.MisfiledMessages(ctx, st.Start, st.Start+st.Increment)
	if err != nil {
		return 0, err
	}
	byBoard := map[int][]int{}
	for _, m := range rows {
		byBoard[m.Board] = append(byBoard[m.Board], m.ID)
	}
	for board, msgs := range byBoard {
		if err := s.stats.SetMessagesBoard(ctx, board, msgs); err != nil {
			return 0, err
		}
	}
	if len(rows) > 0 {
		logger.Warn("misfiled messages moved", logger.Int("count", len(rows)), logger.Int("start", st.Start))
	}
	s.advance(st, st.MaxMessage)
	return len(rows), nil
}

func (s *RecountService) finalize(ctx context.Context) (int, error) {
	fixed, err := s.statsSvc.UpdateLastMessages(ctx, nil)
	if err != nil {
		return fixed, err
	}
	n, err := s.statsSvc.RefreshGlobalStats(ctx)
	if err != nil {
		return fixed, err
	}
	s.events.Fire(ctx, event.RecalculateTasks, map[string]interface{}{"reason": "recount"})
	return fixed + n, nil
}

// advance 移动窗口，越过 limit 时进入下一步
func (s *RecountService) advance(st *JobState, limit int) {
	st.Start += st.Increment
	if st.Start >= limit {
		st.nextStep()
	}
}
