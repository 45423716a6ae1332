package main

import (
	"context"
	"flag"
	"log"
	"strings"
	"time"

	"budget/config"
	"budget/database"
	"budget/middleware"
	"budget/router"
	"budget/service"
)

// @title 预算助手 API
// @version 1.0
// @description 个人预算管理 API：预算、支出登记、剩余金额与汇总
// @host localhost:8080
// @BasePath /
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

var (
	configFile  string
	port        string
	showVersion bool
)

func init() {
	flag.StringVar(&configFile, "config", "", "外部配置文件路径（可选）")
	flag.StringVar(&configFile, "c", "", "外部配置文件路径（简写）")
	flag.StringVar(&port, "port", "", "监听端口，如: 8080 或 :8080")
	flag.StringVar(&port, "p", "", "监听端口（简写）")
	flag.BoolVar(&showVersion, "version", false, "显示版本信息")
	flag.BoolVar(&showVersion, "v", false, "显示版本信息（简写）")
}

func main() {
	flag.Parse()

	if showVersion {
		log.Println("预算助手 v1.0.0")
		return
	}

	// 加载配置（内置配置 + 可选的外部配置覆盖）
	cfg, err := config.LoadConfig(configFile)
	if err != nil {
		log.Fatalf("加载配置失败: %v", err)
	}

	// 命令行参数覆盖端口配置
	if port != "" {
		if !strings.HasPrefix(port, ":") {
			port = ":" + port
		}
		cfg.Server.Port = port
		log.Printf("命令行指定端口: %s", port)
	}

	config.PrintConfig()

	if err := database.Init(cfg); err != nil {
		log.Fatalf("数据库初始化失败: %v", err)
	}

	if n, err := database.PurgeRevokedTokens(database.DB, time.Now()); err != nil {
		log.Printf("警告: 清理过期注销记录失败: %v", err)
	} else if n > 0 {
		log.Printf("已清理 %d 条过期注销记录", n)
	}

	middleware.InitJWT(cfg)

	store := database.NewBudgetStore(database.DB, cfg.Budget.SerializeWrites)
	budgets := service.NewBudgetService(store, service.NewEmailService(&cfg.Email))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	r := router.SetupRouter(ctx, cfg, budgets)

	log.Printf("==========================================")
	log.Printf("  💰 预算助手已启动")
	log.Printf("==========================================")
	log.Printf("  Swagger:  http://localhost%s/swagger/index.html", cfg.Server.Port)
	log.Printf("  API接口:  http://localhost%s/api/v1/", cfg.Server.Port)
	log.Printf("==========================================")

	if err := r.Run(cfg.Server.Port); err != nil {
		log.Fatalf("服务器启动失败: %v", err)
	}
}
