// Package cli - команды emergencyctl для оператора
package cli

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/fatih/color"
	jsoniter "github.com/json-iterator/go"
	"github.com/spf13/cobra"

	"kimpdash/internal/models"
	"kimpdash/internal/service"
	"kimpdash/pkg/utils"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Время на отправку уведомлений перед выходом
const drainTimeout = 15 * time.Second

// Controller - контроллер аварийной остановки, которым управляет CLI
type Controller interface {
	service.EmergencyServiceInterface
	Close(ctx context.Context) error
}

// OpenFunc создает контроллер и возвращает функцию освобождения ресурсов
type OpenFunc func(ctx context.Context) (Controller, func(), error)

var (
	activeColor   = color.New(color.FgHiRed, color.Bold)
	inactiveColor = color.New(color.FgHiGreen)
	warnColor     = color.New(color.FgYellow)
	dimColor      = color.New(color.FgHiBlack)
)

// RootCmd собирает дерево команд emergencyctl
func RootCmd(open OpenFunc) *cobra.Command {
	root := &cobra.Command{
		Use:   "emergencyctl",
		Short: "Emergency stop control for the kimp trading engine",
		Long: `emergencyctl reads and toggles the emergency stop flag in the shared state store.
It uses the same configuration as the dashboard server (.env, CONFIG_FILE, environment).`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(StatusCmd(open))
	root.AddCommand(ActivateCmd(open))
	root.AddCommand(DeactivateCmd(open))
	root.AddCommand(HashPasswordCmd())
	root.AddCommand(SealSecretCmd())
	root.AddCommand(GenerateKeyCmd())

	return root
}

// StatusCmd - emergencyctl status [--json]
func StatusCmd(open OpenFunc) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the emergency stop status",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withController(cmd.Context(), open, func(ctx context.Context, c Controller) error {
				status := c.GetStatus(ctx)
				if asJSON {
					return writeJSON(cmd.OutOrStdout(), status)
				}
				printStatus(cmd.OutOrStdout(), status)
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "print the raw status object")
	return cmd
}

// ActivateCmd - emergencyctl activate [--reason r]
func ActivateCmd(open OpenFunc) *cobra.Command {
	var reason string
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "activate",
		Short: "Block new position entries",
		Long: `Activate the emergency stop. The trading engine will not open new positions
until the stop is deactivated. An empty reason is stored as "manual".`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			normalized := utils.NormalizeReason(reason)

			return withController(cmd.Context(), open, func(ctx context.Context, c Controller) error {
				result := c.Activate(ctx, normalized)
				if asJSON {
					return writeJSON(cmd.OutOrStdout(), result)
				}
				printResult(cmd.OutOrStdout(), result)
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&reason, "reason", "r", "", "reason shown on the dashboard and in notifications")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the raw result object")
	return cmd
}

// DeactivateCmd - emergencyctl deactivate
func DeactivateCmd(open OpenFunc) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "deactivate",
		Short: "Allow new position entries again",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withController(cmd.Context(), open, func(ctx context.Context, c Controller) error {
				result := c.Deactivate(ctx)
				if asJSON {
					return writeJSON(cmd.OutOrStdout(), result)
				}
				printResult(cmd.OutOrStdout(), result)
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "print the raw result object")
	return cmd
}

// withController открывает контроллер, выполняет fn и ждет фоновые уведомления
func withController(ctx context.Context, open OpenFunc, fn func(ctx context.Context, c Controller) error) error {
	if ctx == nil {
		ctx = context.Background()
	}

	c, cleanup, err := open(ctx)
	if err != nil {
		return err
	}
	defer cleanup()

	if err := fn(ctx, c); err != nil {
		return err
	}

	drainCtx, cancel := context.WithTimeout(context.Background(), drainTimeout)
	defer cancel()
	if err := c.Close(drainCtx); err != nil {
		utils.L().Warn("notifications not delivered before exit", utils.Err(err))
	}
	return nil
}

func printStatus(w io.Writer, s *models.EmergencyStatus) {
	if s.Active {
		fmt.Fprintf(w, "Emergency stop: %s\n", activeColor.Sprint("ACTIVE"))
	} else {
		fmt.Fprintf(w, "Emergency stop: %s\n", inactiveColor.Sprint("inactive"))
	}
	if s.Reason != "" {
		fmt.Fprintf(w, "  reason:         %s\n", s.Reason)
	}
	printTime(w, "activated_at", s.ActivatedAt)
	printTime(w, "deactivated_at", s.DeactivatedAt)
	printTime(w, "updated_at", s.UpdatedAt)
	if s.Pending {
		fmt.Fprintln(w, warnColor.Sprint("  pending: accepted by this process but not persisted"))
	}
}

func printResult(w io.Writer, r *models.EmergencyResult) {
	if r.Active {
		fmt.Fprintf(w, "Emergency stop %s (reason: %s)\n", activeColor.Sprint("ACTIVATED"), r.Reason)
		printTime(w, "activated_at", r.ActivatedAt)
	} else {
		fmt.Fprintf(w, "Emergency stop %s\n", inactiveColor.Sprint("DEACTIVATED"))
		printTime(w, "deactivated_at", r.DeactivatedAt)
	}
	if r.Warning != "" {
		fmt.Fprintf(w, "%s %s\n", warnColor.Sprint("warning:"), r.Warning)
	}
}

func printTime(w io.Writer, label string, t *time.Time) {
	if t == nil {
		return
	}
	fmt.Fprintf(w, "  %-15s %s %s\n", label+":", t.UTC().Format(time.RFC3339),
		dimColor.Sprintf("(%s ago)", utils.FormatDuration(time.Since(*t))))
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
