package middleware

import (
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/StoryBB/StoryBB-sub002/internal/core/config"
	"github.com/StoryBB/StoryBB-sub002/internal/core/logger"
	"github.com/gin-gonic/gin"
)

// ipChecker 管理接口 IP 规则，条目可以是单个 IP 或 CIDR
type ipChecker struct {
	allow []*net.IPNet
	deny  []*net.IPNet
}

func newIPChecker(cfg *config.SecurityConfig) *ipChecker {
	return &ipChecker{
		allow: parseNets(cfg.AllowIPs),
		deny:  parseNets(cfg.DenyIPs),
	}
}

func parseNets(entries []string) []*net.IPNet {
	var out []*net.IPNet
	for _, e := range entries {
		e = strings.TrimSpace(e)
		if e == "" {
			continue
		}
		if _, n, err := net.ParseCIDR(e); err == nil {
			out = append(out, n)
			continue
		}
		ip := net.ParseIP(e)
		if ip == nil {
			logger.Warn("ignoring invalid ip rule", logger.String("rule", e))
			continue
		}
		bits := 128
		if ip.To4() != nil {
			ip, bits = ip.To4(), 32
		}
		out = append(out, &net.IPNet{IP: ip, Mask: net.CIDRMask(bits, bits)})
	}
	return out
}

func containsIP(nets []*net.IPNet, ip net.IP) bool {
	for _, n := range nets {
		if n.Contains(ip) {
			return true
		}
	}
	return false
}

// allowed 黑名单优先；回环和内网地址总是允许；其余必须命中白名单
func (c *ipChecker) allowed(raw string) bool {
	ip := net.ParseIP(raw)
	if ip == nil {
		return false
	}
	if containsIP(c.deny, ip) {
		return false
	}
	if ip.IsLoopback() || ip.IsPrivate() {
		return true
	}
	return containsIP(c.allow, ip)
}

// AdminWhitelistMW 管理接口 IP 白名单
func AdminWhitelistMW(cfg *config.SecurityConfig) gin.HandlerFunc {
	checker := newIPChecker(cfg)

	return func(c *gin.Context) {
		clientIP := c.ClientIP()
		if checker.allowed(clientIP) {
			c.Next()
			return
		}

		logger.Warn("admin access denied",
			logger.String("ip", clientIP),
			logger.String("path", c.Request.URL.Path))
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
			"code": 403,
			"msg":  "access denied: IP not in whitelist",
		})
	}
}

// IPLimiter 滑动窗口的 IP 频率限制
type IPLimiter struct {
	mu     sync.Mutex
	visits map[string][]time.Time
	limit  int
	window time.Duration
	now    func() time.Time
}

// NewIPLimiter 创建 IP 限制器
func NewIPLimiter(limit int, window time.Duration) *IPLimiter {
	return &IPLimiter{
		visits: make(map[string][]time.Time),
		limit:  limit,
		window: window,
		now:    time.Now,
	}
}

// Allow 记录一次访问，超过限制时返回 false
func (l *IPLimiter) Allow(ip string) bool {
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	kept := l.visits[ip][:0]
	for _, ts := range l.visits[ip] {
		if now.Sub(ts) < l.window {
			kept = append(kept, ts)
		}
	}
	if len(kept) >= l.limit {
		l.visits[ip] = kept
		return false
	}
	l.visits[ip] = append(kept, now)
	return true
}

// RateLimitMW 频率限制中间件，limiter 为 nil 时不限制
func RateLimitMW(limiter *IPLimiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		if limiter == nil {
			c.Next()
			return
		}
		ip := c.ClientIP()
		if !limiter.Allow(ip) {
			logger.Warn("rate limit exceeded",
				logger.String("ip", ip),
				logger.String("path", c.Request.URL.Path))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"code": 429,
				"msg":  "too many requests",
			})
			return
		}
		c.Next()
	}
}
