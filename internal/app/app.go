package app

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"golang.org/x/sync/errgroup"

	"okra/internal/ai"
	"okra/internal/analysis/sector"
	"okra/internal/config"
	"okra/internal/logger"
	"okra/internal/market"
	"okra/internal/news"
	"okra/internal/notify"
	"okra/internal/paper"
	"okra/internal/store"
	"okra/internal/transport/web"
)

// App 负责应用级编排：加载配置→初始化依赖→启动分析循环与 HTTP 接口。
type App struct {
	cfg     *config.Config
	svc     *AnalysisService
	web     *web.Server
	archive *store.Archive
}

// NewApp 根据配置构建应用对象（不启动）
func NewApp(cfg *config.Config) (*App, error) {
	if cfg == nil {
		return nil, fmt.Errorf("nil config")
	}
	logger.SetLevel(cfg.App.LogLevel)
	if cfg.App.LogPath != "" {
		logger.SetFile(cfg.App.LogPath)
	}
	return buildAppWithWire(context.Background(), cfg)
}

// Run 启动分析循环与 HTTP 接口，直到 ctx 取消或分析循环结束。
func (a *App) Run(ctx context.Context) error {
	if a == nil || a.cfg == nil {
		return fmt.Errorf("app not initialized")
	}
	if a.svc == nil {
		return fmt.Errorf("analysis service not initialized")
	}
	defer func() {
		if a.archive != nil {
			_ = a.archive.Close()
		}
	}()

	group, ctx := errgroup.WithContext(ctx)

	if a.web != nil {
		group.Go(func() error {
			if err := a.web.Start(ctx); err != nil && ctx.Err() == nil {
				logger.Warnf("HTTP 接口停止: %v", err)
			}
			return nil
		})
	}

	group.Go(func() error {
		return a.svc.Run(ctx)
	})

	return group.Wait()
}

// AppBuilder 按依赖顺序组装各组件。
type AppBuilder struct {
	cfg *config.Config
}

func NewAppBuilder(cfg *config.Config) *AppBuilder {
	return &AppBuilder{cfg: cfg}
}

// Build 组装 App（不启动任何循环）。
func (b *AppBuilder) Build(ctx context.Context) (*App, error) {
	cfg := b.cfg

	source, err := market.NewSource(market.SourceConfig{
		Name:    cfg.Exchange.Name,
		BaseURL: cfg.Exchange.BaseURL,
	})
	if err != nil {
		return nil, fmt.Errorf("初始化行情源失败: %w", err)
	}
	logger.Infof("✓ 行情源: %s", source.Name())

	analyst := buildAnalyst(cfg)
	resolver := sector.NewResolver(cfg.Sector.DataPath)
	newsClient := buildNews(cfg)
	notifier := buildNotifier(cfg)
	trader := buildTrader(cfg)
	archive, err := buildArchive(cfg)
	if err != nil {
		return nil, err
	}

	var server *web.Server
	if cfg.App.HTTPAddr != "" {
		server = web.NewServer(cfg.App.HTTPAddr, trader, archive)
	}

	svc := &AnalysisService{
		cfg:      cfg,
		source:   source,
		analyst:  analyst,
		resolver: resolver,
		news:     newsClient,
		notifier: notifier,
		trader:   trader,
		archive:  archive,
	}
	return &App{cfg: cfg, svc: svc, web: server, archive: archive}, nil
}

func buildAnalyst(cfg *config.Config) *ai.Analyst {
	client := ai.NewChatClient(cfg.AI.APIURL, cfg.AI.APIKey, cfg.AI.Model,
		time.Duration(cfg.AI.TimeoutSeconds)*time.Second, cfg.AI.MaxRetries)
	analyst := ai.NewAnalyst(client)
	if analyst.Enabled() {
		logger.Infof("✓ AI 模型: %s (%s)", cfg.AI.Model, cfg.AI.APIURL)
	} else {
		logger.Warnf("未配置 AI API Key，分析与交易决策将跳过")
	}
	return analyst
}

func buildNews(cfg *config.Config) *news.Client {
	client := news.NewClient(cfg.News.APIKey)
	if !client.Enabled() {
		logger.Infof("未配置新闻 API Key，跳过新闻模块")
	}
	return client
}

func buildNotifier(cfg *config.Config) *notify.Notifier {
	n := notify.NewNotifier(cfg.Notify.FeishuWebhook, cfg.Notify.DingTalkWebhook)
	if !n.Enabled() {
		logger.Infof("未配置 Webhook，分析结果仅输出到日志")
	}
	return n
}

func buildTrader(cfg *config.Config) *paper.Trader {
	if !cfg.Paper.Enabled {
		return nil
	}
	strict := cfg.Paper.Durability == "strict"
	trader := paper.NewTrader(cfg.Paper.DataDir, cfg.Paper.InitialBalance, strict)
	logger.Infof("✓ 模拟盘已启用: %s (durability=%s)", trader.File(), cfg.Paper.Durability)
	return trader
}

func buildArchive(cfg *config.Config) (*store.Archive, error) {
	if cfg.Archive.Path == "" {
		return nil, nil
	}
	archive, err := store.Open(cfg.Archive.Path)
	if err != nil {
		return nil, fmt.Errorf("初始化归档失败: %w", err)
	}
	path := cfg.Archive.Path
	if abs, err := filepath.Abs(path); err == nil {
		path = abs
	}
	logger.Infof("✓ 归档写入 %s", path)
	return archive, nil
}
