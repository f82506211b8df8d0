package host

import (
	"context"
	"sync"
	"time"

	"github.com/wfunc/superrpg-core/internal/catalog"
	"go.uber.org/zap"
)

// Clock 时间来源，测试中可替换
type Clock interface {
	Now() time.Time
}

// SystemClock 系统时间
type SystemClock struct{}

// Now 当前时间
func (SystemClock) Now() time.Time {
	return time.Now()
}

// ManualClock 手动推进的时钟
type ManualClock struct {
	mu  sync.RWMutex
	now time.Time
}

// NewManualClock 创建手动时钟
func NewManualClock(start time.Time) *ManualClock {
	return &ManualClock{now: start}
}

// Now 当前时间
func (c *ManualClock) Now() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.now
}

// Set 设置时间
func (c *ManualClock) Set(t time.Time) {
	c.mu.Lock()
	c.now = t
	c.mu.Unlock()
}

// Advance 推进时间
func (c *ManualClock) Advance(d time.Duration) time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
	return c.now
}

// PermissionChecker 权限检查
type PermissionChecker interface {
	HasPermission(entityID, permission string) bool
}

// PermissionFunc 函数形式的权限检查
type PermissionFunc func(entityID, permission string) bool

// HasPermission 实现 PermissionChecker
func (f PermissionFunc) HasPermission(entityID, permission string) bool {
	return f(entityID, permission)
}

// AllowAll 放行所有权限
var AllowAll PermissionChecker = PermissionFunc(func(string, string) bool { return true })

// Notifier 向玩家推送提示
type Notifier interface {
	SendMessage(entityID, text string)
	SendTitle(entityID, title, subtitle string)
}

// LogNotifier 仅记录日志的通知实现
type LogNotifier struct {
	Log *zap.Logger
}

// SendMessage 发送消息
func (n LogNotifier) SendMessage(entityID, text string) {
	n.Log.Info("notify_message", zap.String("entity_id", entityID), zap.String("text", text))
}

// SendTitle 发送标题
func (n LogNotifier) SendTitle(entityID, title, subtitle string) {
	n.Log.Info("notify_title",
		zap.String("entity_id", entityID),
		zap.String("title", title),
		zap.String("subtitle", subtitle),
	)
}

// ActiveEffect 技能产生的效果实例
type ActiveEffect struct {
	ID        string             `json:"id"`
	Kind      catalog.EffectKind `json:"kind"`
	Attribute string             `json:"attribute,omitempty"`
	Magnitude float64            `json:"magnitude"`
	SourceID  string             `json:"source_id"`
	TargetID  string             `json:"target_id"`
	SkillID   string             `json:"skill_id"`
	CreatedAt time.Time          `json:"created_at"`
	ExpiresAt time.Time          `json:"expires_at,omitempty"` // 零值表示一次性效果
}

// Timed 是否为持续效果
func (e ActiveEffect) Timed() bool {
	return !e.ExpiresAt.IsZero()
}

// Expired 在指定时刻是否已过期
func (e ActiveEffect) Expired(now time.Time) bool {
	return e.Timed() && !now.Before(e.ExpiresAt)
}

// EffectApplier 把效果作用到宿主实体上（伤害、治疗、增益、减益）
type EffectApplier interface {
	Apply(ctx context.Context, effect ActiveEffect)
}

// LogEffectApplier 仅记录日志的效果实现
type LogEffectApplier struct {
	Log *zap.Logger
}

// Apply 记录效果
func (a LogEffectApplier) Apply(ctx context.Context, effect ActiveEffect) {
	a.Log.Debug("apply_effect",
		zap.String("effect_id", effect.ID),
		zap.Stringer("kind", effect.Kind),
		zap.String("attribute", effect.Attribute),
		zap.Float64("magnitude", effect.Magnitude),
		zap.String("source_id", effect.SourceID),
		zap.String("target_id", effect.TargetID),
	)
}
