// =============================================================================
// MedRAG 主入口
// =============================================================================
// 医疗咨询检索引擎命令行工具
//
// 使用方法:
//
//	medrag query "高血压的症状" --top-k 5   # 执行一次检索
//	medrag query --config config.yaml "..."  # 指定配置文件
//	medrag index --file docs.json            # 导入知识文档
//	medrag version                           # 显示版本信息
// =============================================================================
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/yilianai/medrag"
	"github.com/yilianai/medrag/config"
	"github.com/yilianai/medrag/internal/telemetry"
	"github.com/yilianai/medrag/retrieval"
)

// =============================================================================
// 📦 版本信息（构建时注入）
// =============================================================================

var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

// =============================================================================
// 🎯 主函数
// =============================================================================

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "query":
		runQuery(os.Args[2:])
	case "index":
		runIndex(os.Args[2:])
	case "version":
		printVersion()
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

// =============================================================================
// 🔍 query 命令
// =============================================================================

func runQuery(args []string) {
	fs := flag.NewFlagSet("query", flag.ExitOnError)
	configPath := fs.String("config", "", "Path to config file")
	topK := fs.Int("top-k", 5, "Number of results to return")
	department := fs.String("department", "", "Department filter")
	fs.Parse(args)

	if fs.NArg() < 1 {
		fmt.Fprintln(os.Stderr, "query text is required")
		os.Exit(1)
	}
	queryText := fs.Arg(0)

	cfg, logger, shutdown := bootstrap(*configPath)
	defer shutdown()

	client, err := medrag.New(cfg, medrag.WithLogger(logger))
	if err != nil {
		logger.Fatal("Failed to create client", zap.Error(err))
	}
	defer client.Close(context.Background())

	req := retrieval.RetrieveRequest{Query: queryText, TopK: *topK}
	if *department != "" {
		req.Filters = map[string]string{"department": *department}
	}

	resp, err := client.Retrieve(context.Background(), req)
	if err != nil {
		logger.Fatal("Retrieval failed", zap.Error(err))
	}

	out, _ := json.MarshalIndent(resp, "", "  ")
	fmt.Println(string(out))
}

// =============================================================================
// 📥 index 命令
// =============================================================================

func runIndex(args []string) {
	fs := flag.NewFlagSet("index", flag.ExitOnError)
	configPath := fs.String("config", "", "Path to config file")
	file := fs.String("file", "", "JSON file with documents to index")
	fs.Parse(args)

	if *file == "" {
		fmt.Fprintln(os.Stderr, "--file is required")
		os.Exit(1)
	}

	cfg, logger, shutdown := bootstrap(*configPath)
	defer shutdown()

	raw, err := os.ReadFile(*file)
	if err != nil {
		logger.Fatal("Failed to read documents file", zap.Error(err))
	}
	var docs []medrag.Document
	if err := json.Unmarshal(raw, &docs); err != nil {
		logger.Fatal("Failed to parse documents file", zap.Error(err))
	}

	client, err := medrag.New(cfg, medrag.WithLogger(logger))
	if err != nil {
		logger.Fatal("Failed to create client", zap.Error(err))
	}
	defer client.Close(context.Background())

	if err := client.IndexDocuments(context.Background(), docs); err != nil {
		logger.Fatal("Indexing failed", zap.Error(err))
	}

	fmt.Printf("indexed %d documents\n", len(docs))
}

// =============================================================================
// 🛠️ 初始化
// =============================================================================

// bootstrap 加载配置、初始化日志与遥测
func bootstrap(configPath string) (config.Config, *zap.Logger, func()) {
	loader := config.NewLoader()
	if configPath != "" {
		loader = loader.WithConfigPath(configPath)
	}

	cfg, err := loader.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid config: %v\n", err)
		os.Exit(1)
	}

	logger := initLogger(cfg.Log)

	logger.Info("Starting MedRAG",
		zap.String("version", Version),
		zap.String("build_time", BuildTime),
		zap.String("git_commit", GitCommit),
	)

	providers, err := telemetry.Init(cfg.Telemetry, logger)
	if err != nil {
		logger.Warn("failed to initialize telemetry", zap.Error(err))
	}

	shutdown := func() {
		if providers != nil {
			ctx, cancel := context.WithTimeout(context.Background(), cfg.Retrieval.QueryTimeout)
			defer cancel()
			if err := providers.Shutdown(ctx); err != nil {
				logger.Warn("telemetry shutdown failed", zap.Error(err))
			}
		}
		_ = logger.Sync()
	}
	return *cfg, logger, shutdown
}

// initLogger 按配置构建 zap 日志
func initLogger(cfg config.LogConfig) *zap.Logger {
	var level zapcore.Level
	switch cfg.Level {
	case "debug":
		level = zapcore.DebugLevel
	case "info":
		level = zapcore.InfoLevel
	case "warn":
		level = zapcore.WarnLevel
	case "error":
		level = zapcore.ErrorLevel
	default:
		level = zapcore.InfoLevel
	}

	var encoderConfig zapcore.EncoderConfig
	encoding := "json"
	if cfg.Format == "console" {
		encoding = "console"
		encoderConfig = zap.NewDevelopmentEncoderConfig()
		encoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	} else {
		encoderConfig = zap.NewProductionEncoderConfig()
		encoderConfig.TimeKey = "timestamp"
		encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	}

	outputPaths := cfg.OutputPaths
	if len(outputPaths) == 0 {
		outputPaths = []string{"stderr"}
	}

	zapConfig := zap.Config{
		Level:            zap.NewAtomicLevelAt(level),
		Development:      cfg.Format == "console",
		Encoding:         encoding,
		EncoderConfig:    encoderConfig,
		OutputPaths:      outputPaths,
		ErrorOutputPaths: []string{"stderr"},
	}

	opts := []zap.Option{}
	if cfg.EnableCaller {
		opts = append(opts, zap.AddCaller())
	}
	if cfg.EnableStacktrace {
		opts = append(opts, zap.AddStacktrace(zapcore.ErrorLevel))
	}

	logger, err := zapConfig.Build(opts...)
	if err != nil {
		logger, _ = zap.NewProduction()
	}
	return logger
}

// =============================================================================
// 📋 版本和帮助
// =============================================================================

func printVersion() {
	fmt.Printf("MedRAG %s\n", Version)
	fmt.Printf("  Build Time: %s\n", BuildTime)
	fmt.Printf("  Git Commit: %s\n", GitCommit)
}

func printUsage() {
	fmt.Println(`MedRAG - 医疗咨询检索引擎

Usage:
  medrag query [flags] "<text>"   执行一次检索
  medrag index --file docs.json   导入知识文档
  medrag version                  显示版本信息
  medrag help                     显示帮助

Query flags:
  --config path     配置文件路径
  --top-k n         返回结果数（默认 5）
  --department d    科室过滤`)
}
