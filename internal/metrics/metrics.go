package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// 记录存储指标
var (
	// storeLoads 按表和结果统计后端加载次数（hit/miss/created/error）
	storeLoads = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "superrpg_store_loads_total",
		Help: "Total number of record lookups by table and outcome",
	}, []string{"table", "outcome"})

	// storeWrites 按表和结果统计写入次数
	storeWrites = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "superrpg_store_writes_total",
		Help: "Total number of record writes by table and outcome",
	}, []string{"table", "outcome"})

	// storeWriteDuration 写入延迟
	storeWriteDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "superrpg_store_write_duration_seconds",
		Help:    "Histogram of record write latency in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"table"})

	// cachedRecords 当前缓存的记录数
	cachedRecords = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "superrpg_store_cached_records",
		Help: "Number of records currently cached per table",
	}, []string{"table"})
)

// 引擎指标
var (
	// operations 按引擎、操作和结果统计
	operations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "superrpg_operations_total",
		Help: "Total number of engine operations by engine, operation and result",
	}, []string{"engine", "operation", "result"})

	// levelUps 升级次数（按获得的等级累计）
	levelUps = promauto.NewCounter(prometheus.CounterOpts{
		Name: "superrpg_levels_gained_total",
		Help: "Total number of levels gained across all players",
	})

	// activeEffects 当前生效的持续效果数量
	activeEffects = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "superrpg_active_effects",
		Help: "Number of registered timed effects",
	})

	// expiredEffects 清理掉的过期效果
	expiredEffects = promauto.NewCounter(prometheus.CounterOpts{
		Name: "superrpg_expired_effects_total",
		Help: "Total number of timed effects removed by the sweeper",
	})

	// eventsPublished 按主题统计发布的事件
	eventsPublished = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "superrpg_events_published_total",
		Help: "Total number of domain events delivered by topic and mode",
	}, []string{"topic", "mode"})
)

// RecordLoad 记录一次加载
func RecordLoad(table, outcome string) {
	storeLoads.WithLabelValues(table, outcome).Inc()
}

// RecordWrite 记录一次写入
func RecordWrite(table string, duration time.Duration, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	storeWrites.WithLabelValues(table, outcome).Inc()
	storeWriteDuration.WithLabelValues(table).Observe(duration.Seconds())
}

// SetCached 更新缓存记录数
func SetCached(table string, n int) {
	cachedRecords.WithLabelValues(table).Set(float64(n))
}

// RecordOperation 记录一次引擎操作，result 为错误码名或 ok
func RecordOperation(engine, operation, result string) {
	operations.WithLabelValues(engine, operation, result).Inc()
}

// AddLevelsGained 累计升级数
func AddLevelsGained(n int) {
	if n > 0 {
		levelUps.Add(float64(n))
	}
}

// AddActiveEffects 调整当前效果数量
func AddActiveEffects(delta int) {
	activeEffects.Add(float64(delta))
}

// AddExpiredEffects 累计过期效果
func AddExpiredEffects(n int) {
	if n > 0 {
		expiredEffects.Add(float64(n))
	}
}

// RecordEvent 记录事件投递
func RecordEvent(topic, mode string) {
	eventsPublished.WithLabelValues(topic, mode).Inc()
}
