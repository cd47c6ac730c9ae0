package main

import (
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/praxislegal/sentinel/internal/agent"
	"github.com/praxislegal/sentinel/internal/alert"
	"github.com/praxislegal/sentinel/internal/config"
	"github.com/praxislegal/sentinel/internal/dispatch"
	"github.com/praxislegal/sentinel/internal/memory"
	"github.com/praxislegal/sentinel/internal/review"
	"github.com/praxislegal/sentinel/internal/store"
)

var rootCmd = &cobra.Command{
	Use:   "sentinel",
	Short: "sentinel - background alert triage and preference-learning agent",
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the agent (dispatch, review cycles, retry sweeps)",
	RunE:  runAgent,
}

var alertCmd = &cobra.Command{
	Use:   "alert",
	Short: "Manage the alert queue",
}

var alertAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Enqueue an alert",
	RunE:  runAlertAdd,
}

var alertListCmd = &cobra.Command{
	Use:   "list",
	Short: "List queued alerts",
	RunE:  runAlertList,
}

var memoryCmd = &cobra.Command{
	Use:   "memory",
	Short: "Inspect or reset agent memory",
}

var memoryShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the agent memory snapshot",
	RunE:  runMemoryShow,
}

var memoryResetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Restore agent memory to its default value",
	RunE:  runMemoryReset,
}

var consentCmd = &cobra.Command{
	Use:   "consent <remember_preferences|store_emails> <true|false>",
	Short: "Update a consent flag (revoking remember_preferences wipes memory)",
	Args:  cobra.ExactArgs(2),
	RunE:  runConsent,
}

var (
	titleFlag    string
	messageFlag  string
	severityFlag string
	typeFlag     string
	urlFlag      string
)

func init() {
	alertAddCmd.Flags().StringVar(&titleFlag, "title", "", "Alert title (required)")
	alertAddCmd.Flags().StringVar(&messageFlag, "message", "", "Alert message")
	alertAddCmd.Flags().StringVar(&severityFlag, "severity", alert.SeverityMedium, "critical, high, medium, or low")
	alertAddCmd.Flags().StringVar(&typeFlag, "type", "manual", "Alert type")
	alertAddCmd.Flags().StringVar(&urlFlag, "url", "", "Originating URL")
	_ = alertAddCmd.MarkFlagRequired("title")

	alertCmd.AddCommand(alertAddCmd, alertListCmd)
	memoryCmd.AddCommand(memoryShowCmd, memoryResetCmd)
	rootCmd.AddCommand(runCmd, alertCmd, memoryCmd, consentCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func openStore(cfg *config.Config) (*store.Store, error) {
	return store.Open(cfg.Store.Path, cfg.Store.QuotaBytes)
}

func runAgent(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return err
	}

	db, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	var notifier dispatch.Notifier
	if cfg.Channels.Telegram.Enabled {
		notifier, err = dispatch.NewTelegramNotifier(cfg.Channels.Telegram)
		if err != nil {
			return fmt.Errorf("init telegram notifier: %w", err)
		}
	} else {
		notifier = dispatch.LogNotifier{}
	}

	rt := agent.New(cfg, db, notifier, review.NewClient(cfg.Provider))
	stop := rt.Start()
	defer stop()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	fmt.Println("shutting down...")
	return nil
}

func runAlertAdd(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return err
	}
	db, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	a := alert.NewStore(db).Enqueue(alert.Alert{
		Type:     typeFlag,
		Severity: severityFlag,
		Title:    titleFlag,
		Message:  messageFlag,
		Details:  alert.Details{URL: urlFlag},
	})
	fmt.Printf("queued alert %s\n", a.ID)
	return nil
}

func runAlertList(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return err
	}
	db, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	alerts, err := alert.NewStore(db).ReadAlerts()
	if err != nil {
		return err
	}
	if len(alerts) == 0 {
		fmt.Println("no alerts")
		return nil
	}
	for _, a := range alerts {
		reviewStatus := "unreviewed"
		if a.AIReview != nil {
			reviewStatus = a.AIReview.Status
		}
		fmt.Printf("%s  [%s/%s]  %s  (review: %s)\n", a.ID, a.Severity, a.Status, a.Title, reviewStatus)
	}
	return nil
}

func runMemoryShow(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return err
	}
	db, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	mem, err := memory.NewStore(db).Memory()
	if err != nil {
		return err
	}
	data, err := json.MarshalIndent(mem, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(data))
	return nil
}

func runMemoryReset(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return err
	}
	db, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := memory.NewStore(db).Reset(); err != nil {
		return err
	}
	fmt.Println("memory reset")
	return nil
}

func runConsent(cmd *cobra.Command, args []string) error {
	update, err := parseConsentArgs(args[0], args[1])
	if err != nil {
		return err
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		return err
	}
	db, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := memory.NewStore(db).UpdateConsents(update); err != nil {
		return err
	}
	fmt.Printf("consent %s = %s\n", args[0], args[1])
	return nil
}

func parseConsentArgs(name, value string) (memory.ConsentUpdate, error) {
	enabled, err := strconv.ParseBool(value)
	if err != nil {
		return memory.ConsentUpdate{}, fmt.Errorf("invalid consent value %q", value)
	}
	switch name {
	case "remember_preferences":
		return memory.ConsentUpdate{RememberPreferences: &enabled}, nil
	case "store_emails":
		return memory.ConsentUpdate{StoreEmails: &enabled}, nil
	default:
		return memory.ConsentUpdate{}, fmt.Errorf("unknown consent %q", name)
	}
}
