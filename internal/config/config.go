package config

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// Config 全局配置结构体
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Admin    AdminConfig    `mapstructure:"admin"`
	Database DatabaseConfig `mapstructure:"database"`
	Log      LogConfig      `mapstructure:"log"`
	Engine   EngineConfig   `mapstructure:"engine"`
	Catalog  CatalogConfig  `mapstructure:"catalog"`
	Snapshot SnapshotConfig `mapstructure:"snapshot"`
	Events   EventsConfig   `mapstructure:"events"`
	System   SystemConfig   `mapstructure:"system"`
}

// ServerConfig 服务器配置
type ServerConfig struct {
	Mode            string        `mapstructure:"mode"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// AdminConfig 运维HTTP接口配置
type AdminConfig struct {
	Enabled      bool          `mapstructure:"enabled"`
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	Mode         string        `mapstructure:"mode"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	RateLimit    float64       `mapstructure:"rate_limit"` // 每IP每秒请求数，0 表示不限流
	RateBurst    int           `mapstructure:"rate_burst"`
}

// DatabaseConfig 数据库配置
type DatabaseConfig struct {
	Driver          string        `mapstructure:"driver"`
	DSN             string        `mapstructure:"dsn"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	LogLevel        string        `mapstructure:"log_level"`
	AutoMigrate     bool          `mapstructure:"auto_migrate"`
	OpTimeout       time.Duration `mapstructure:"op_timeout"` // 单次持久化操作超时
}

// LogConfig 日志配置
type LogConfig struct {
	Level   string            `mapstructure:"level"`
	Format  string            `mapstructure:"format"`
	Output  string            `mapstructure:"output"`
	File    LogFileConfig     `mapstructure:"file"`
	Modules map[string]string `mapstructure:"modules"`
}

// LogFileConfig 日志文件配置
type LogFileConfig struct {
	Path       string `mapstructure:"path"`
	Filename   string `mapstructure:"filename"`
	MaxSize    int    `mapstructure:"max_size"`
	MaxAge     int    `mapstructure:"max_age"`
	MaxBackups int    `mapstructure:"max_backups"`
	Compress   bool   `mapstructure:"compress"`
}

// EngineConfig 引擎参数
type EngineConfig struct {
	Progression ProgressionConfig `mapstructure:"progression"`
	Profession  ProfessionConfig  `mapstructure:"profession"`
	Ability     AbilityConfig     `mapstructure:"ability"`
}

// ProgressionConfig 等级成长参数
type ProgressionConfig struct {
	BaseExp                float64 `mapstructure:"base_exp"`
	ExpGrowth              float64 `mapstructure:"exp_growth"`
	StatPointsPerLevel     int     `mapstructure:"stat_points_per_level"`
	HealthPerVitalityPoint float64 `mapstructure:"health_per_vitality_point"`
}

// ProfessionConfig 职业参数
type ProfessionConfig struct {
	TalentResetCost      int64 `mapstructure:"talent_reset_cost"`
	TalentPointsPerLevel int   `mapstructure:"talent_points_per_level"`
}

// AbilityConfig 技能参数
type AbilityConfig struct {
	SweepInterval       time.Duration `mapstructure:"sweep_interval"`
	LevelScaling        float64       `mapstructure:"level_scaling"`
	SkillPointsPerLevel int           `mapstructure:"skill_points_per_level"`
}

// CatalogConfig 职业/天赋/技能目录配置
type CatalogConfig struct {
	Path string `mapstructure:"path"`
}

// SnapshotConfig 定时快照配置
type SnapshotConfig struct {
	Enabled     bool   `mapstructure:"enabled"`
	FlushSpec   string `mapstructure:"flush_spec"`
	CleanupSpec string `mapstructure:"cleanup_spec"`
}

// EventsConfig 事件总线配置
type EventsConfig struct {
	PoolSize int `mapstructure:"pool_size"`
}

// SystemConfig 系统配置
type SystemConfig struct {
	Timezone string `mapstructure:"timezone"`
	MaxProcs int    `mapstructure:"max_procs"`
}

var (
	cfg  *Config
	once sync.Once
	mu   sync.RWMutex
	v    *viper.Viper
)

// Init 初始化配置
func Init(configPath string) error {
	var err error
	once.Do(func() {
		v = viper.New()

		if configPath != "" {
			v.SetConfigFile(configPath)
		} else {
			v.SetConfigName("config")
			v.SetConfigType("yaml")
			v.AddConfigPath("./config")
			v.AddConfigPath(".")
		}

		v.SetEnvPrefix("SUPERRPG")
		v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
		v.AutomaticEnv()

		SetDefaults(v)

		if err = v.ReadInConfig(); err != nil {
			// 配置文件不存在时使用默认配置
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return
			}
			err = nil
		}

		cfg = &Config{}
		if err = v.Unmarshal(cfg); err != nil {
			return
		}
		err = cfg.Validate()
	})

	return err
}

// Load 从指定viper实例解析配置（不影响全局配置，测试和工具使用）
func Load(vp *viper.Viper) (*Config, error) {
	c := &Config{}
	if err := vp.Unmarshal(c); err != nil {
		return nil, fmt.Errorf("解析配置失败: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// Default 返回全部取默认值的配置
func Default() *Config {
	vp := viper.New()
	SetDefaults(vp)
	c, err := Load(vp)
	if err != nil {
		panic(err)
	}
	return c
}

// SetDefaults 设置默认配置值
func SetDefaults(v *viper.Viper) {
	v.SetDefault("server.mode", "development")
	v.SetDefault("server.shutdown_timeout", "10s")

	v.SetDefault("admin.enabled", true)
	v.SetDefault("admin.host", "127.0.0.1")
	v.SetDefault("admin.port", 8090)
	v.SetDefault("admin.mode", "release")
	v.SetDefault("admin.read_timeout", "10s")
	v.SetDefault("admin.write_timeout", "10s")
	v.SetDefault("admin.rate_limit", 20.0)
	v.SetDefault("admin.rate_burst", 40)

	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.dsn", "./data/superrpg.db")
	v.SetDefault("database.max_idle_conns", 10)
	v.SetDefault("database.max_open_conns", 100)
	v.SetDefault("database.conn_max_lifetime", "1h")
	v.SetDefault("database.log_level", "warn")
	v.SetDefault("database.auto_migrate", true)
	v.SetDefault("database.op_timeout", "5s")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("log.output", "stdout")
	v.SetDefault("log.file.path", "./logs")
	v.SetDefault("log.file.filename", "superrpg.log")
	v.SetDefault("log.file.max_size", 100)
	v.SetDefault("log.file.max_age", 30)
	v.SetDefault("log.file.max_backups", 7)
	v.SetDefault("log.file.compress", true)

	v.SetDefault("engine.progression.base_exp", 100.0)
	v.SetDefault("engine.progression.exp_growth", 1.15)
	v.SetDefault("engine.progression.stat_points_per_level", 5)
	v.SetDefault("engine.progression.health_per_vitality_point", 5.0)
	v.SetDefault("engine.profession.talent_reset_cost", 5000)
	v.SetDefault("engine.profession.talent_points_per_level", 1)
	v.SetDefault("engine.ability.sweep_interval", "1s")
	v.SetDefault("engine.ability.level_scaling", 0.1)
	v.SetDefault("engine.ability.skill_points_per_level", 1)

	v.SetDefault("catalog.path", "")

	v.SetDefault("snapshot.enabled", true)
	v.SetDefault("snapshot.flush_spec", "@every 5m")
	v.SetDefault("snapshot.cleanup_spec", "@every 10m")

	v.SetDefault("events.pool_size", 64)
}

// Validate 校验配置
func (c *Config) Validate() error {
	p := c.Engine.Progression
	if p.BaseExp <= 0 || p.ExpGrowth < 1 {
		return fmt.Errorf("经验曲线参数无效: base_exp=%v exp_growth=%v", p.BaseExp, p.ExpGrowth)
	}
	if p.StatPointsPerLevel < 0 || c.Engine.Profession.TalentPointsPerLevel < 0 || c.Engine.Ability.SkillPointsPerLevel < 0 {
		return fmt.Errorf("每级点数不能为负数")
	}
	if c.Engine.Profession.TalentResetCost < 0 {
		return fmt.Errorf("天赋重置费用不能为负数: %d", c.Engine.Profession.TalentResetCost)
	}
	if c.Engine.Ability.SweepInterval <= 0 {
		return fmt.Errorf("效果清理间隔必须大于0")
	}
	if c.Events.PoolSize <= 0 {
		return fmt.Errorf("事件协程池大小必须大于0")
	}
	return nil
}

// Get 获取配置实例
func Get() *Config {
	mu.RLock()
	defer mu.RUnlock()
	return cfg
}

// Watch 监听配置文件变化
func Watch(callback func(*Config)) {
	v.WatchConfig()
	v.OnConfigChange(func(e fsnotify.Event) {
		mu.Lock()
		defer mu.Unlock()

		newCfg := &Config{}
		if err := v.Unmarshal(newCfg); err != nil {
			fmt.Printf("配置重载失败: %v\n", err)
			return
		}
		if err := newCfg.Validate(); err != nil {
			fmt.Printf("配置重载校验失败: %v\n", err)
			return
		}

		cfg = newCfg

		if callback != nil {
			callback(cfg)
		}

		fmt.Println("配置已重新加载")
	})
}

// ConfigFile 当前使用的配置文件
func ConfigFile() string {
	if v == nil {
		return ""
	}
	return v.ConfigFileUsed()
}
