package cli

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"kimpdash/pkg/crypto"
)

// HashPasswordCmd - emergencyctl hash-password [password]
//
// Печатает bcrypt хеш для METRICS_PASSWORD_HASH.
// Без аргумента пароль читается из первой строки stdin.
func HashPasswordCmd() *cobra.Command {
	var cost int

	cmd := &cobra.Command{
		Use:   "hash-password [password]",
		Short: "Print a bcrypt hash for METRICS_PASSWORD_HASH",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			password, err := argOrStdin(cmd, args, "password")
			if err != nil {
				return err
			}

			hash, err := crypto.HashPassword(password, cost)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), hash)
			return nil
		},
	}

	cmd.Flags().IntVar(&cost, "cost", crypto.DefaultCost, "bcrypt cost")
	return cmd
}

// SealSecretCmd - emergencyctl seal-secret [value]
//
// Шифрует TELEGRAM_BOT_TOKEN или DB_PASSWORD ключом SECRETS_KEY.
// Результат enc:v1:... кладется в окружение или YAML вместо открытого значения.
func SealSecretCmd() *cobra.Command {
	var key string

	cmd := &cobra.Command{
		Use:   "seal-secret [value]",
		Short: "Encrypt a config secret with SECRETS_KEY",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if key == "" {
				return errors.New("SECRETS_KEY is not set (use --key or the environment)")
			}
			k, err := crypto.ParseKey(key)
			if err != nil {
				return err
			}

			value, err := argOrStdin(cmd, args, "value")
			if err != nil {
				return err
			}
			if value == "" {
				return errors.New("value is empty")
			}

			sealed, err := crypto.Seal(value, k)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), sealed)
			return nil
		},
	}

	cmd.Flags().StringVar(&key, "key", os.Getenv("SECRETS_KEY"), "32-byte key, hex or base64")
	return cmd
}

// GenerateKeyCmd - emergencyctl generate-key: новый SECRETS_KEY
func GenerateKeyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "generate-key",
		Short: "Print a new random SECRETS_KEY",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			key, err := crypto.GenerateKey()
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), key)
			return nil
		},
	}
}

// argOrStdin возвращает первый аргумент или первую строку stdin
func argOrStdin(cmd *cobra.Command, args []string, what string) (string, error) {
	if len(args) == 1 {
		return args[0], nil
	}
	line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
	if err != nil && (line == "" || !errors.Is(err, io.EOF)) {
		return "", fmt.Errorf("read %s from stdin: %w", what, err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}
