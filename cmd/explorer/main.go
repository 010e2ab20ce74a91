// file: cmd/explorer/main.go

package main

import (
	"GWExplorer/internal/adapter/datastore/sqlite"
	"GWExplorer/internal/catalog"
	"GWExplorer/internal/core/port"
	"GWExplorer/internal/observe"
	"GWExplorer/internal/service"
	"GWExplorer/internal/transport/http/middleware"
	"GWExplorer/internal/transport/http/router"
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/viper"
	"golang.org/x/time/rate"

	_ "modernc.org/sqlite"
)

const version = "v0.2.0"

type ServerConfig struct {
	Port     int    `mapstructure:"port"`
	LogLevel string `mapstructure:"log_level"`
}

type DatastoreConfig struct {
	ReadURL     string `mapstructure:"read_url"`
	PoolSize    int    `mapstructure:"pool_size"`
	MaxOverflow int    `mapstructure:"max_overflow"`
	PoolRecycle int    `mapstructure:"pool_recycle"`
	Echo        bool   `mapstructure:"echo"`
	EchoPool    bool   `mapstructure:"echo_pool"`
}

type CatalogConfig struct {
	Path string `mapstructure:"path"`
}

type ObservabilityConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	PprofAddr string `mapstructure:"pprof_addr"`
}

type RateLimitConfig struct {
	Rate  float64 `mapstructure:"rate"`
	Burst int     `mapstructure:"burst"`
}

type Config struct {
	Server        ServerConfig        `mapstructure:"server"`
	Datastore     DatastoreConfig     `mapstructure:"datastore"`
	Catalog       CatalogConfig       `mapstructure:"catalog"`
	Observability ObservabilityConfig `mapstructure:"observability"`
	RateLimit     RateLimitConfig     `mapstructure:"rate_limit"`
}

func main() {
	// 在日志系统完全初始化前，使用标准 log
	log.Printf("GWExplorer %s 正在启动...", version)

	exePath, err := os.Executable()
	if err != nil {
		log.Fatalf("CRITICAL: 无法获取可执行文件路径: %v", err)
	}
	rootDir := filepath.Dir(filepath.Dir(exePath))

	configFilePath := filepath.Join(rootDir, "configs", "config.yaml")
	viper.SetConfigFile(configFilePath)
	setConfigDefaults()

	if err := viper.ReadInConfig(); err != nil {
		log.Fatalf("CRITICAL: 读取配置文件 '%s' 失败: %v", configFilePath, err)
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		log.Fatalf("CRITICAL: 解析配置到结构体失败: %v", err)
	}

	if config.Observability.Enabled {
		observe.InitLogger(config.Server.LogLevel) // 使用 slog
	} else {
		log.Println("ℹ️  高级可观测性功能未启用，使用标准日志。")
	}

	slog.Info("GWExplorer starting up", "version", version)
	slog.Info("检测到项目根目录", "path", rootDir)
	slog.Info("配置加载并解析成功", "path", configFilePath)

	instanceDir := filepath.Join(rootDir, "instance")
	if _, err := os.Stat(instanceDir); os.IsNotExist(err) {
		_ = os.MkdirAll(instanceDir, 0755)
	}

	catalogPath := config.Catalog.Path
	if !filepath.IsAbs(catalogPath) {
		catalogPath = filepath.Join(rootDir, catalogPath)
	}
	_ = os.MkdirAll(filepath.Dir(catalogPath), 0755)
	sysDB, err := initSystemDB(catalogPath)
	if err != nil {
		log.Fatalf("CRITICAL: 初始化系统数据库失败: %v", err)
	}
	defer func() {
		slog.Info("正在关闭系统数据库连接...")
		if err := sysDB.Close(); err != nil {
			slog.Error("关闭系统数据库时发生错误", "error", err)
		}
	}()

	// 确保表结构存在
	if err := catalog.InitCatalogTables(sysDB); err != nil {
		log.Fatalf("CRITICAL: 初始化资源目录表失败: %v", err)
	}
	if err := service.InitUserTable(sysDB); err != nil {
		log.Fatalf("CRITICAL: 初始化用户表失败: %v", err)
	}

	catalogService, err := catalog.NewService(sysDB, 1000, 5*time.Minute)
	if err != nil {
		slog.Error("初始化 Catalog 服务失败", "error", err)
		os.Exit(1)
	}
	slog.Info("服务层: Catalog 服务初始化完成")

	if config.Datastore.ReadURL == "" {
		config.Datastore.ReadURL = "file:" + filepath.Join(instanceDir, "datastore.db")
	}
	datastore := sqlite.NewManager(config.Datastore.ReadURL, port.EngineParams{
		PoolSize:    config.Datastore.PoolSize,
		MaxOverflow: config.Datastore.MaxOverflow,
		PoolRecycle: config.Datastore.PoolRecycle,
		Echo:        config.Datastore.Echo,
		EchoPool:    config.Datastore.EchoPool,
	})
	defer func() {
		if err := datastore.Close(); err != nil {
			slog.Error("关闭数据存储时发生错误", "error", err)
		}
	}()
	if err := datastore.StartWatcher(); err != nil {
		slog.Warn("数据存储文件监视器启动失败，字段缓存将不会自动失效", "error", err)
	}
	slog.Info("适配层: SQLite 数据存储初始化完成", "read_url", config.Datastore.ReadURL)

	dslService := service.NewDSLService(datastore, catalogService)
	slog.Info("服务层: DSL 服务初始化完成")

	rateLimiter := middleware.NewIPRateLimiter(rate.Limit(config.RateLimit.Rate), config.RateLimit.Burst)
	slog.Info("服务层: IP 速率限制器初始化完成")

	// 用户表为空时生成一次性安装令牌，供 setup_admin 创建首个管理员
	var setupToken string
	var setupTokenDeadline time.Time
	if service.UserCount(sysDB) == 0 {
		setupToken = genSetupToken()
		setupTokenDeadline = time.Now().Add(30 * time.Minute)
		slog.Warn("系统中无 API 用户，安装令牌已生成 (30分钟内有效)", "setup_token", setupToken)
	}

	httpRouter := router.New(
		router.Dependencies{
			Catalog:            catalogService,
			Datastore:          datastore,
			DSL:                dslService,
			AuthDB:             sysDB,
			RateLimiter:        rateLimiter,
			SetupToken:         setupToken,
			SetupTokenDeadline: setupTokenDeadline,
		},
	)
	slog.Info("传输层: HTTP 路由器创建完成。")

	addr := fmt.Sprintf(":%d", config.Server.Port)
	server := &http.Server{
		Addr:    addr,
		Handler: httpRouter,
	}

	go func() {
		slog.Info("GWExplorer 启动成功，开始监听HTTP请求...", "address", addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("HTTP服务启动失败", "error", err)
			os.Exit(1)
		}
	}()

	// 按需启用 pprof 并注册 prometheus metrics
	if config.Observability.Enabled {
		observe.EnablePprof(config.Observability.PprofAddr)
	}
	observe.Register()
	slog.Info("监控: metrics 已注册。")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	slog.Info("收到停机信号，准备优雅关闭...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		slog.Error("HTTP服务优雅关闭失败", "error", err)
		os.Exit(1)
	}

	slog.Info("HTTP服务已成功关闭。")
	slog.Info("程序即将退出。")
}

// setConfigDefaults 提供与连接池约定一致的缺省值，
// 并开启 EXPLORER_ 前缀的环境变量覆盖（如 EXPLORER_CATALOG_PATH）。
func setConfigDefaults() {
	viper.SetEnvPrefix("EXPLORER")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.log_level", "info")
	viper.SetDefault("catalog.path", "instance/catalog.db")
	viper.SetDefault("datastore.read_url", "")
	viper.SetDefault("datastore.pool_size", 15)
	viper.SetDefault("datastore.max_overflow", 100)
	viper.SetDefault("datastore.pool_recycle", 3600)
	viper.SetDefault("datastore.echo", false)
	viper.SetDefault("datastore.echo_pool", false)
	viper.SetDefault("observability.enabled", true)
	viper.SetDefault("observability.pprof_addr", "0.0.0.0:6060")
	viper.SetDefault("rate_limit.rate", 10)
	viper.SetDefault("rate_limit.burst", 30)
}

// genSetupToken 生成一次性的安装令牌
func genSetupToken() string {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "fallback_token_generation_failed"
	}
	return hex.EncodeToString(b)
}

// initSystemDB 封装了目录/认证数据库的初始化逻辑
func initSystemDB(path string) (*sql.DB, error) {
	dsn := fmt.Sprintf("file:%s?_busy_timeout=10000&_journal_mode=WAL&_foreign_keys=ON&_synchronous=NORMAL", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("打开/创建系统数据库 '%s' 失败: %w", path, err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("连接系统数据库 '%s' (Ping) 失败: %w", path, err)
	}
	return db, nil
}
