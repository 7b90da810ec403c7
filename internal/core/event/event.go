package event

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/StoryBB/StoryBB-sub002/internal/core/logger"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// 扩展点名称
const (
	MembergroupsAdded   = "membergroups.added"
	MembergroupsRemoved = "membergroups.removed"
	MembergroupsDeleted = "membergroups.deleted"
	TopicsRemoved       = "topics.removed"
	TopicsRestored      = "topics.restored"
	MessageRemoved      = "message.removed"
	BoardsChanged       = "boards.changed"
	// RecalculateTasks 重新计算计划任务的下次运行时间
	RecalculateTasks = "scheduled_tasks.recalculate"
)

// DefaultChannel redis 广播频道
const DefaultChannel = "forum:events"

// Event 一次扩展点触发
type Event struct {
	Name    string                 `json:"name"`
	Payload map[string]interface{} `json:"payload,omitempty"`
	At      time.Time              `json:"at"`
	// Origin 发出事件的 Hub，Listen 据此跳过自己的广播
	Origin string `json:"origin,omitempty"`
}

// Handler 进程内订阅者
type Handler func(ctx context.Context, ev Event)

// Bus 触发扩展点，不关心返回值
type Bus interface {
	Fire(ctx context.Context, name string, payload map[string]interface{})
}

// Hub 进程内订阅者 + redis 广播
type Hub struct {
	mu      sync.RWMutex
	subs    map[string][]Handler
	rdb     *redis.Client
	channel string
	origin  string
}

// NewHub rdb 为 nil 时只通知进程内订阅者
func NewHub(rdb *redis.Client, channel string) *Hub {
	if channel == "" {
		channel = DefaultChannel
	}
	return &Hub{
		subs:    make(map[string][]Handler),
		rdb:     rdb,
		channel: channel,
		origin:  uuid.NewString(),
	}
}

// Subscribe 注册订阅者
func (h *Hub) Subscribe(name string, fn Handler) {
	h.mu.Lock()
	h.subs[name] = append(h.subs[name], fn)
	h.mu.Unlock()
}

// Fire 同步调用订阅者后广播到 redis，订阅者 panic 或广播失败都不影响调用方
func (h *Hub) Fire(ctx context.Context, name string, payload map[string]interface{}) {
	if h == nil {
		return
	}
	ev := Event{Name: name, Payload: payload, At: time.Now(), Origin: h.origin}

	h.mu.RLock()
	handlers := append([]Handler(nil), h.subs[name]...)
	h.mu.RUnlock()

	for _, fn := range handlers {
		h.call(ctx, fn, ev)
	}

	if h.rdb == nil {
		return
	}
	data, err := json.Marshal(ev)
	if err != nil {
		logger.Warn("marshal event failed", logger.String("event", name), logger.ErrorField(err))
		return
	}
	if err := h.rdb.Publish(ctx, h.channel, data).Err(); err != nil {
		logger.Warn("publish event failed", logger.String("event", name), logger.ErrorField(err))
	}
}

// Listen 接收其他实例的广播并分发给本地订阅者，阻塞到 ctx 结束
func (h *Hub) Listen(ctx context.Context) error {
	if h.rdb == nil {
		<-ctx.Done()
		return nil
	}
	sub := h.rdb.Subscribe(ctx, h.channel)
	defer sub.Close()

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			h.dispatch(ctx, []byte(msg.Payload))
		}
	}
}

func (h *Hub) dispatch(ctx context.Context, data []byte) {
	var ev Event
	if err := json.Unmarshal(data, &ev); err != nil {
		logger.Warn("decode event failed", logger.ErrorField(err))
		return
	}
	if ev.Origin == h.origin {
		return
	}

	h.mu.RLock()
	handlers := append([]Handler(nil), h.subs[ev.Name]...)
	h.mu.RUnlock()

	for _, fn := range handlers {
		h.call(ctx, fn, ev)
	}
}

func (h *Hub) call(ctx context.Context, fn Handler, ev Event) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("event handler panic", logger.String("event", ev.Name), logger.Any("panic", r))
		}
	}()
	fn(ctx, ev)
}
