package testutil

import (
	"context"
	"sync"
)

// AuditEntry 一条记录的审计日志
type AuditEntry struct {
	Action string
	Actor  int
	Extra  map[string]interface{}
}

// AuditRecorder 记录审计调用
type AuditRecorder struct {
	mu      sync.Mutex
	Entries []AuditEntry
}

// Log 实现 audit.Sink
func (r *AuditRecorder) Log(_ context.Context, action string, actorID int, extra map[string]interface{}) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Entries = append(r.Entries, AuditEntry{Action: action, Actor: actorID, Extra: extra})
	return nil
}

// Actions 按调用顺序返回动作名
func (r *AuditRecorder) Actions() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.Entries))
	for i, e := range r.Entries {
		out[i] = e.Action
	}
	return out
}

// Count 某动作的次数
func (r *AuditRecorder) Count(action string) int {
	n := 0
	for _, a := range r.Actions() {
		if a == action {
			n++
		}
	}
	return n
}

// FiredEvent 一次扩展点触发
type FiredEvent struct {
	Name    string
	Payload map[string]interface{}
}

// EventRecorder 记录扩展点触发
type EventRecorder struct {
	mu     sync.Mutex
	Events []FiredEvent
}

// Fire 实现 event.Bus
func (r *EventRecorder) Fire(_ context.Context, name string, payload map[string]interface{}) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Events = append(r.Events, FiredEvent{Name: name, Payload: payload})
}

// Names 按触发顺序返回名称
func (r *EventRecorder) Names() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.Events))
	for i, e := range r.Events {
		out[i] = e.Name
	}
	return out
}

// CacheRecorder 记录缓存失效
type CacheRecorder struct {
	mu   sync.Mutex
	Keys []string
}

// Invalidate 实现 cache.Invalidator
func (r *CacheRecorder) Invalidate(_ context.Context, keys ...string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Keys = append(r.Keys, keys...)
}

// Invalidated 某键是否失效过
func (r *CacheRecorder) Invalidated(key string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, k := range r.Keys {
		if k == key {
			return true
		}
	}
	return false
}
