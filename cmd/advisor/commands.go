package main

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"flip-advisor/internal/app"
	"flip-advisor/internal/config"
	"flip-advisor/internal/history"
	"flip-advisor/internal/log"
	"flip-advisor/internal/store"
	"flip-advisor/internal/trace"
)

type rootOptions struct {
	configPath string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	rootCmd := &cobra.Command{
		Use:           "flip-advisor",
		Short:         "交易所倒卖建议服务",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context(), opts)
		},
	}
	rootCmd.PersistentFlags().StringVar(&opts.configPath, "config", "", "配置文件路径，默认使用 configs/config.yaml")

	rootCmd.AddCommand(newServeCmd(opts))
	rootCmd.AddCommand(newSummaryCmd(opts))
	return rootCmd
}

func newServeCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "启动 HTTP 建议服务",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context(), opts)
		},
	}
}

func newSummaryCmd(opts *rootOptions) *cobra.Command {
	var recent int

	cmd := &cobra.Command{
		Use:   "summary <account>",
		Short: "打印账户的收益汇总与最近交易",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSummary(cmd.Context(), cmd.OutOrStdout(), opts, args[0], recent)
		},
	}
	cmd.Flags().IntVar(&recent, "recent", 10, "同时列出的最近交易笔数")
	return cmd
}

func runServe(ctx context.Context, opts *rootOptions) error {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return fmt.Errorf("加载配置失败: %w", err)
	}

	logger, err := log.NewLogger(cfg.Logging)
	if err != nil {
		return fmt.Errorf("初始化日志失败: %w", err)
	}
	defer func() {
		_ = logger.Sync()
	}()

	shutdownTracing, err := trace.Setup(ctx, cfg.Tracing)
	if err != nil {
		return fmt.Errorf("初始化链路追踪失败: %w", err)
	}
	defer func() {
		if err := shutdownTracing(context.WithoutCancel(ctx)); err != nil {
			logger.Warn("关闭链路追踪失败", zap.Error(err))
		}
	}()

	sqliteStore, err := store.NewSQLite(cfg.Database)
	if err != nil {
		logger.Error("初始化数据库失败", zap.Error(err))
		return err
	}
	defer func() {
		if closeErr := sqliteStore.Close(); closeErr != nil {
			logger.Warn("关闭数据库失败", zap.Error(closeErr))
		}
	}()

	advisor, err := app.New(ctx, cfg, logger, sqliteStore)
	if err != nil {
		logger.Error("初始化服务失败", zap.Error(err))
		return err
	}

	if err := advisor.Run(ctx); err != nil {
		logger.Error("系统运行异常", zap.Error(err))
		return err
	}

	logger.Info("系统已安全退出")
	return nil
}

func runSummary(ctx context.Context, out io.Writer, opts *rootOptions, accountID string, recent int) error {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return fmt.Errorf("加载配置失败: %w", err)
	}

	sqliteStore, err := store.NewSQLite(cfg.Database)
	if err != nil {
		return err
	}
	defer sqliteStore.Close()

	trades, err := history.NewStore(ctx, sqliteStore, nil)
	if err != nil {
		return err
	}

	summary, err := trades.Summarize(ctx, accountID)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "%s: gp_earned=%d flips=%d\n", accountID, summary.TotalProfit, summary.TradeCount)

	if recent <= 0 {
		return nil
	}
	list, err := trades.Recent(ctx, accountID, recent)
	if err != nil {
		return err
	}
	for _, t := range list {
		fmt.Fprintf(out, "  %s  %-4s item=%d qty=%d price=%d profit=%d\n",
			t.OccurredAt.Format("2006-01-02 15:04:05"), t.Type, t.ItemID, t.Quantity, t.Price, t.Profit)
	}
	return nil
}
