package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/wfunc/superrpg-core/internal/config"
	"github.com/wfunc/superrpg-core/internal/errors"
	"github.com/wfunc/superrpg-core/internal/middleware"
	"github.com/wfunc/superrpg-core/internal/service"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Router 运维HTTP路由器
type Router struct {
	engine *gin.Engine
	db     *gorm.DB
	svc    *service.Services
	log    *zap.Logger
}

// NewRouter 创建路由器
func NewRouter(db *gorm.DB, svc *service.Services, cfg config.AdminConfig, log *zap.Logger) *Router {
	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(middleware.Logger(log))
	engine.Use(middleware.RateLimit(middleware.NewRateLimiter(middleware.RateLimitConfig{
		RequestsPerSecond: cfg.RateLimit,
		Burst:             cfg.RateBurst,
		PerIP:             true,
		SkipPaths:         []string{"/health", "/metrics"},
	}, log)))

	r := &Router{
		engine: engine,
		db:     db,
		svc:    svc,
		log:    log,
	}
	r.setupRoutes()
	return r
}

// setupRoutes 设置路由
func (r *Router) setupRoutes() {
	r.engine.GET("/health", r.healthCheck)
	r.engine.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := r.engine.Group("/api/v1")
	{
		players := v1.Group("/players")
		{
			players.GET("/:id", r.getPlayer)
			players.POST("/:id/level", r.setLevel)
			players.POST("/:id/experience", r.gainExperience)
		}
		v1.POST("/snapshot", r.snapshot)
	}

	r.engine.NoRoute(func(c *gin.Context) {
		r.fail(c, errors.New(errors.ErrNotFound, "接口不存在"))
	})
}

// healthCheck 健康检查
func (r *Router) healthCheck(c *gin.Context) {
	sqlDB, err := r.db.DB()
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status":  "unhealthy",
			"message": "数据库连接失败",
		})
		return
	}
	if err := sqlDB.PingContext(c.Request.Context()); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status":  "unhealthy",
			"message": "数据库ping失败",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":  "healthy",
		"message": "服务运行正常",
		"online":  r.svc.OnlineCount(),
		"cached": gin.H{
			"players":     r.svc.Players.Len(),
			"professions": r.svc.Professions.Len(),
			"abilities":   r.svc.Abilities.Len(),
		},
	})
}

// fail 按错误码输出错误响应，不带调用栈
func (r *Router) fail(c *gin.Context, err error) {
	appErr, ok := errors.As(err)
	if !ok {
		appErr = errors.Wrap(err, errors.ErrUnknown)
	}
	view := *appErr
	view.Stack = nil

	status := appErr.HTTPStatus()
	if status >= http.StatusInternalServerError {
		r.log.Error("请求处理失败", zap.String("path", c.Request.URL.Path), zap.Error(err))
	}
	c.AbortWithStatusJSON(status, errors.NewErrorResponse(&view, c.GetHeader("X-Request-ID")))
}

// Handler HTTP处理器
func (r *Router) Handler() http.Handler {
	return r.engine
}

// GetEngine 获取Gin引擎（用于测试）
func (r *Router) GetEngine() *gin.Engine {
	return r.engine
}
