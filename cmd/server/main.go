package main

import (
	"context"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"strconv"
	"sync"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/wfunc/superrpg-core/internal/api"
	"github.com/wfunc/superrpg-core/internal/catalog"
	"github.com/wfunc/superrpg-core/internal/config"
	"github.com/wfunc/superrpg-core/internal/database"
	"github.com/wfunc/superrpg-core/internal/errors"
	"github.com/wfunc/superrpg-core/internal/logger"
	"github.com/wfunc/superrpg-core/internal/service"
	"go.uber.org/zap"
)

// 版本信息
var (
	Version   = "1.0.0"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

// Server 服务器实例
type Server struct {
	cfg    *config.Config
	logger *zap.Logger

	services  *service.Services
	scheduler *service.Scheduler
	http      *http.Server

	// 关闭控制
	shutdownCh chan struct{}
	wg         sync.WaitGroup
	ctx        context.Context
	cancel     context.CancelFunc
}

func main() {
	var (
		configPath  = flag.String("config", "", "配置文件路径")
		showVersion = flag.Bool("version", false, "显示版本信息")
		showHelp    = flag.Bool("help", false, "显示帮助信息")
	)

	flag.Parse()

	if *showVersion {
		printVersion()
		os.Exit(0)
	}

	if *showHelp {
		printHelp()
		os.Exit(0)
	}

	// 加载配置
	if err := config.Init(*configPath); err != nil {
		fmt.Printf("加载配置失败: %v\n", err)
		os.Exit(1)
	}

	cfg := config.Get()

	// 初始化日志系统
	if err := logger.Init(&cfg.Log); err != nil {
		fmt.Printf("初始化日志失败: %v\n", err)
		os.Exit(1)
	}

	setupSystem(&cfg.System)
	printStartInfo(cfg)

	server := NewServer(cfg)

	if err := server.Start(); err != nil {
		logger.Fatal("服务器启动失败", zap.Error(err))
	}

	server.WaitForShutdown()

	if err := server.Shutdown(); err != nil {
		logger.Error("服务器关闭失败", zap.Error(err))
		os.Exit(1)
	}

	logger.Info("服务器已安全关闭")
}

// NewServer 创建服务器实例
func NewServer(cfg *config.Config) *Server {
	ctx, cancel := context.WithCancel(context.Background())

	return &Server{
		cfg:        cfg,
		logger:     logger.GetLogger(),
		shutdownCh: make(chan struct{}),
		ctx:        ctx,
		cancel:     cancel,
	}
}

// Start 启动服务器
func (s *Server) Start() error {
	s.logger.Info("正在启动 SuperRPG 核心服务...",
		zap.String("version", Version),
		zap.String("mode", s.cfg.Server.Mode),
	)

	if err := s.initComponents(); err != nil {
		return errors.Wrap(err, errors.ErrUnknown, "初始化组件失败")
	}

	if err := s.startServices(); err != nil {
		return errors.Wrap(err, errors.ErrUnknown, "启动服务失败")
	}

	// 监听配置变化
	config.Watch(func(newCfg *config.Config) {
		s.logger.Info("配置已更新，正在重新加载...")
		s.reloadConfig(newCfg)
	})

	s.logger.Info("服务器启动成功", zap.Bool("admin", s.http != nil))
	return nil
}

// initComponents 初始化组件
func (s *Server) initComponents() error {
	s.logger.Info("初始化组件...")

	if err := s.initDatabase(); err != nil {
		return err
	}

	cat, err := catalog.Load(s.cfg.Catalog.Path)
	if err != nil {
		return err
	}
	s.logger.Info("目录加载完成",
		zap.Int("professions", len(cat.Professions())),
		zap.Int("skills", len(cat.Skills())),
	)

	svc, err := service.NewServices(database.GetDB(), s.cfg, cat, service.Deps{}, s.logger)
	if err != nil {
		return err
	}
	s.services = svc

	if s.cfg.Snapshot.Enabled {
		sched, err := service.NewScheduler(svc, s.cfg.Snapshot, logger.GetModuleLogger("scheduler"))
		if err != nil {
			return err
		}
		s.scheduler = sched
	}

	s.logger.Info("所有组件初始化完成")
	return nil
}

// initDatabase 初始化数据库
func (s *Server) initDatabase() error {
	s.logger.Info("初始化数据库...")

	if err := database.Init(&s.cfg.Database); err != nil {
		return errors.Wrap(err, errors.ErrDatabaseConnect, "初始化数据库连接失败")
	}

	if s.cfg.Database.AutoMigrate {
		s.logger.Info("执行数据库自动迁移...")
		if err := database.AutoMigrate(); err != nil {
			return errors.Wrap(err, errors.ErrDatabaseMigrate, "数据库迁移失败")
		}
	}

	if !database.IsConnected() {
		return errors.New(errors.ErrDatabaseConnect, "数据库连接检查失败")
	}

	s.logger.Info("数据库初始化完成")
	return nil
}

// startServices 启动服务
func (s *Server) startServices() error {
	s.logger.Info("启动服务...")

	// 效果过期清理
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.services.Ability.RunSweeper(s.ctx, s.cfg.Engine.Ability.SweepInterval)
	}()

	if s.scheduler != nil {
		s.scheduler.Start()
	}

	if s.cfg.Admin.Enabled {
		if err := s.startHTTPServer(); err != nil {
			return err
		}
	}

	s.logger.Info("所有服务启动完成")
	return nil
}

// startHTTPServer 启动运维HTTP接口
func (s *Server) startHTTPServer() error {
	gin.SetMode(s.cfg.Admin.Mode)
	router := api.NewRouter(database.GetDB(), s.services, s.cfg.Admin, logger.GetModuleLogger("api"))

	addr := net.JoinHostPort(s.cfg.Admin.Host, strconv.Itoa(s.cfg.Admin.Port))
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return errors.Wrapf(err, errors.ErrUnknown, "监听失败: %s", addr)
	}

	s.http = &http.Server{
		Handler:      router.Handler(),
		ReadTimeout:  s.cfg.Admin.ReadTimeout,
		WriteTimeout: s.cfg.Admin.WriteTimeout,
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.logger.Info("运维接口已启动", zap.String("address", addr))
		if err := s.http.Serve(ln); err != nil && err != http.ErrServerClosed {
			s.logger.Error("运维接口异常退出", zap.Error(err))
		}
	}()
	return nil
}

// WaitForShutdown 等待关闭信号
func (s *Server) WaitForShutdown() {
	sigCh := make(chan os.Signal, 1)

	signal.Notify(sigCh,
		syscall.SIGINT,  // Ctrl+C
		syscall.SIGTERM, // kill命令
		syscall.SIGQUIT, // Ctrl+\
	)

	sig := <-sigCh
	s.logger.Info("收到退出信号", zap.String("signal", sig.String()))

	close(s.shutdownCh)
}

// Shutdown 优雅关闭服务器
func (s *Server) Shutdown() error {
	s.logger.Info("正在优雅关闭服务器...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.Server.ShutdownTimeout)
	defer cancel()

	// 停止接收新请求
	if s.http != nil {
		if err := s.http.Shutdown(shutdownCtx); err != nil {
			s.logger.Warn("关闭运维接口失败", zap.Error(err))
		}
	}

	if s.scheduler != nil {
		s.scheduler.Stop()
	}

	// 取消主上下文，触发所有goroutine退出
	s.cancel()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info("所有服务已正常关闭")
	case <-shutdownCtx.Done():
		s.logger.Warn("关闭超时，强制退出")
		return errors.New(errors.ErrTimeout, "关闭超时")
	}

	if err := s.closeComponents(shutdownCtx); err != nil {
		s.logger.Error("关闭组件失败", zap.Error(err))
		return err
	}

	logger.Cleanup()
	return nil
}

// closeComponents 关闭组件
func (s *Server) closeComponents(ctx context.Context) error {
	s.logger.Info("关闭组件...")

	var flushErr error
	if s.services != nil {
		// 落盘所有缓存并等待在途事件
		if flushErr = s.services.Close(ctx); flushErr != nil {
			s.logger.Error("落盘失败", zap.Error(flushErr))
		}
	}

	if err := database.Close(); err != nil {
		s.logger.Error("关闭数据库失败", zap.Error(err))
	}

	s.logger.Info("所有组件已关闭")
	return flushErr
}

// reloadConfig 重新加载配置
func (s *Server) reloadConfig(newCfg *config.Config) {
	s.cfg = newCfg

	// 引擎参数在启动时固定，这里只应用日志级别
	logger.SetLevel(newCfg.Log.Level)

	s.logger.Info("配置重新加载完成", zap.String("log_level", logger.Level()))
}

// setupSystem 设置系统参数
func setupSystem(cfg *config.SystemConfig) {
	if cfg.Timezone != "" {
		if loc, err := time.LoadLocation(cfg.Timezone); err == nil {
			time.Local = loc
		}
	}

	if cfg.MaxProcs > 0 {
		runtime.GOMAXPROCS(cfg.MaxProcs)
	}
}

// printVersion 打印版本信息
func printVersion() {
	fmt.Printf("SuperRPG 核心服务\n")
	fmt.Printf("版本: %s\n", Version)
	fmt.Printf("构建时间: %s\n", BuildTime)
	fmt.Printf("Git提交: %s\n", GitCommit)
	fmt.Printf("Go版本: %s\n", runtime.Version())
	fmt.Printf("操作系统: %s/%s\n", runtime.GOOS, runtime.GOARCH)
}

// printHelp 打印帮助信息
func printHelp() {
	fmt.Println("SuperRPG 核心服务")
	fmt.Println()
	fmt.Println("用法:")
	fmt.Println("  superrpg-server [选项]")
	fmt.Println()
	fmt.Println("选项:")
	flag.PrintDefaults()
	fmt.Println()
	fmt.Println("环境变量:")
	fmt.Println("  SUPERRPG_DATABASE_DSN   数据库连接串")
	fmt.Println("  SUPERRPG_LOG_LEVEL      日志级别")
	fmt.Println()
	fmt.Println("示例:")
	fmt.Println("  superrpg-server -config=/path/to/config.yaml")
	fmt.Println("  superrpg-server -version")
}

// printStartInfo 打印启动信息
func printStartInfo(cfg *config.Config) {
	fmt.Println("═══════════════════════════════════════════════════════════════")
	fmt.Println("                     SuperRPG 核心服务")
	fmt.Println("═══════════════════════════════════════════════════════════════")
	fmt.Printf("版本: %s | 模式: %s | PID: %d\n", Version, cfg.Server.Mode, os.Getpid())
	fmt.Printf("配置文件: %s\n", config.ConfigFile())
	fmt.Println("═══════════════════════════════════════════════════════════════")
}
