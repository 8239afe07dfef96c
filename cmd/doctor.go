package cmd

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"runtime"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/spf13/cobra"

	"github.com/leadworks/leadgate/internal/config"
)

func doctorCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Check environment and configuration health",
		Run: func(cmd *cobra.Command, args []string) {
			runDoctor()
		},
	}
}

func runDoctor() {
	fmt.Println("leadgate doctor")
	fmt.Printf("  Version:  %s\n", Version)
	fmt.Printf("  OS:       %s/%s\n", runtime.GOOS, runtime.GOARCH)
	fmt.Printf("  Go:       %s\n", runtime.Version())
	fmt.Println()

	cfgPath := resolveConfigPath()
	fmt.Printf("  Config:   %s", cfgPath)
	if _, err := os.Stat(cfgPath); err != nil {
		fmt.Println(" (NOT FOUND, using defaults + env)")
	} else {
		fmt.Println(" (OK)")
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		fmt.Printf("  Config load error: %s\n", err)
		return
	}

	fmt.Println()
	fmt.Println("  Queue:")
	fmt.Printf("    %-10s %s\n", "Backend:", orDefault(cfg.Queue.Backend, "sqs"))
	switch cfg.Queue.Backend {
	case "amqp":
		fmt.Printf("    %-10s %s\n", "Queue:", cfg.Queue.AMQP.Queue)
		fmt.Printf("    %-10s %s\n", "URL:", presence(cfg.Queue.AMQP.URL, "LEADGATE_AMQP_URL"))
	default:
		fmt.Printf("    %-10s %s\n", "Region:", cfg.Queue.SQS.Region)
		fmt.Printf("    %-10s %s\n", "QueueURL:", orDefault(cfg.Queue.SQS.QueueURL, "(not set)"))
	}

	fmt.Println()
	fmt.Println("  Database:")
	if cfg.Database.PostgresDSN != "" {
		fmt.Printf("    %-10s postgres\n", "Backend:")
		checkPostgres(cfg.Database.PostgresDSN)
	} else {
		fmt.Printf("    %-10s sqlite\n", "Backend:")
		fmt.Printf("    %-10s %s\n", "Path:", config.ExpandHome(cfg.Database.SQLitePath))
	}

	fmt.Println()
	fmt.Println("  WhatsApp:")
	fmt.Printf("    %-10s %s\n", "PhoneID:", orDefault(cfg.WhatsApp.PhoneNumberID, "(not set)"))
	fmt.Printf("    %-10s %s\n", "Token:", presence(cfg.WhatsApp.AccessToken, "LEADGATE_WHATSAPP_TOKEN"))
	fmt.Printf("    %-10s %s\n", "FlowID:", orDefault(cfg.WhatsApp.FlowID, "(not set)"))

	fmt.Println()
	fmt.Println("  Notify:")
	if cfg.Notify.Token == "" {
		fmt.Println("    disabled (LEADGATE_NOTIFY_TOKEN not set)")
	} else {
		fmt.Printf("    %s:%d\n", cfg.Notify.Host, cfg.Notify.Port)
	}
}

func checkPostgres(dsn string) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		fmt.Printf("    %-10s unreachable: %s\n", "Status:", err)
		return
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		fmt.Printf("    %-10s unreachable: %s\n", "Status:", err)
		return
	}
	fmt.Printf("    %-10s OK\n", "Status:")
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

func presence(v, envName string) string {
	if v == "" {
		return fmt.Sprintf("(not set, expected via %s)", envName)
	}
	return "set"
}
