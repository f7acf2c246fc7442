// fixbadges 运维命令：徽章全量修复、单用户对账、开发环境种子数据。
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"

	"Civic_Report/internal/app"
	"Civic_Report/internal/config"
	"Civic_Report/internal/pkg"
	"Civic_Report/internal/repository/mysql"
	"Civic_Report/internal/repository/redis"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:           "fixbadges",
	Short:         "Maintenance commands for the civic report backend",
	SilenceUsage:  true,
	SilenceErrors: true,
}

// repairCmd 与 POST /api/admin/fix-badges 等价
var repairCmd = &cobra.Command{
	Use:   "repair",
	Short: "Recompute badges for every citizen and fix drift",
	RunE: func(cmd *cobra.Command, _ []string) error {
		a, cleanup, err := bootstrap()
		if err != nil {
			return err
		}
		defer cleanup()
		report, err := a.Repair.RepairAll(cmd.Context())
		if err != nil {
			return err
		}
		if err := printJSON(cmd, report); err != nil {
			return err
		}
		if !report.Success {
			return fmt.Errorf("%d users failed", report.Summary.FailedUsers)
		}
		return nil
	},
}

var reconcileUserID string

var reconcileCmd = &cobra.Command{
	Use:   "reconcile",
	Short: "Reconcile the badges of a single user",
	RunE: func(cmd *cobra.Command, _ []string) error {
		a, cleanup, err := bootstrap()
		if err != nil {
			return err
		}
		defer cleanup()
		res, err := a.Reconciler.ReconcileUser(cmd.Context(), reconcileUserID)
		if err != nil {
			return err
		}
		return printJSON(cmd, map[string]any{
			"user_id":  reconcileUserID,
			"granted":  res.Granted,
			"revoked":  res.Revoked,
			"eligible": res.Eligible,
		})
	},
}

var seedPassword string

// seedCmd 开发环境初始化：默认徽章、类别和三种角色各一个账号，并打印 token；可重复执行
var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Create default badges, categories and demo accounts",
	RunE: func(cmd *cobra.Command, _ []string) error {
		a, cleanup, err := bootstrap()
		if err != nil {
			return err
		}
		defer cleanup()
		res, err := a.Seed(cmd.Context(), seedPassword)
		if err != nil {
			return err
		}
		return printJSON(cmd, res)
	},
}

func init() {
	reconcileCmd.Flags().StringVar(&reconcileUserID, "user", "", "user id to reconcile")
	_ = reconcileCmd.MarkFlagRequired("user")
	seedCmd.Flags().StringVar(&seedPassword, "password", "changeme123", "password for the demo accounts")

	rootCmd.AddCommand(repairCmd, reconcileCmd, seedCmd)
}

// bootstrap 命令行不启动 HTTP 和后台任务，outbox 事件由 api 进程投递
func bootstrap() (*app.App, func(), error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	logger, err := pkg.NewLogger(cfg.Env, cfg.LogLevel)
	if err != nil {
		return nil, nil, err
	}
	db, err := mysql.Open(cfg.MySQLDSN)
	if err != nil {
		return nil, nil, err
	}
	if err := mysql.AutoMigrate(db); err != nil {
		return nil, nil, err
	}
	rdb, err := redis.NewClient(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	if err != nil {
		return nil, nil, err
	}
	cleanup := func() {
		_ = rdb.Close()
		_ = logger.Sync()
	}
	return app.New(cfg, db, rdb, nil, logger), cleanup, nil
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		stop()
		os.Exit(1)
	}
}
