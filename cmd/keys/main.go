package keys

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	logger "github.com/sirupsen/logrus"

	"alertbridge/src/model"
	"alertbridge/src/security"
	"alertbridge/src/store"
)

func printUsage() {
	fmt.Println("Available commands:")
	fmt.Println("  help                                              Show this help message")
	fmt.Println("  shutdown                                          Exit the CLI")
	fmt.Println("  set_key <userId> <exchange> <key> <secret> [pass] Encrypt and store exchange keys")
	fmt.Println("  delete_key <userId> <exchange>                    Remove stored exchange keys")
	fmt.Println("  show <userId> <exchange>                          Show key metadata (never plaintext)")
	fmt.Println("  list_configs <userId>                             List the user's alert configurations")
	fmt.Println()
}

// Run starts the interactive credential CLI. Plaintext keys exist only
// in the operator's terminal input; they are sealed before anything is
// written.
func Run() error {
	vault, err := security.NewVaultFromConfig()
	if err != nil {
		return fmt.Errorf("EXCHANGE_CREDENTIALS_KEY must be a base64 32-byte key: %w", err)
	}

	rdb, err := store.NewClient(store.GetConfig())
	if err != nil {
		return fmt.Errorf("failed to connect to Redis: %w", err)
	}
	configStore := store.NewConfigStore(rdb)

	ctx, stop := signal.NotifyContext(
		context.Background(),
		os.Interrupt,
		syscall.SIGTERM,
	)
	defer stop()

	reader := bufio.NewScanner(os.Stdin)
	reader.Buffer(make([]byte, 0, 1024), 1024*1024)

	for {
		fmt.Print("cmd> ")

		if !reader.Scan() {
			return reader.Err()
		}

		line := strings.TrimSpace(reader.Text())
		if line == "" {
			continue
		}

		parts := strings.Fields(line)
		cmd := parts[0]

		switch cmd {

		case "shutdown":
			fmt.Println("Exiting CLI...")
			return nil

		case "help":
			printUsage()

		case "set_key":
			if len(parts) < 5 {
				printUsage()
				continue
			}
			userID, exchangeID, apiKey, apiSecret := parts[1], parts[2], parts[3], parts[4]

			cred := &model.ExchangeCredential{
				UserID:     userID,
				ExchangeID: exchangeID,
			}

			cred.APIKeyCipher, cred.APIKeyNonce, err = vault.EncryptString(apiKey)
			if err != nil {
				logger.WithError(err).Error("Failed to encrypt key")
				continue
			}

			cred.APISecretCipher, cred.APISecretNonce, err = vault.EncryptString(apiSecret)
			if err != nil {
				logger.WithError(err).Error("Failed to encrypt secret")
				continue
			}

			if len(parts) > 5 {
				cred.APIPassphraseCipher, cred.APIPassphraseNonce, err = vault.EncryptString(parts[5])
				if err != nil {
					logger.WithError(err).Error("Failed to encrypt passphrase")
					continue
				}
			}

			if err := configStore.SaveCredential(ctx, cred); err != nil {
				logger.WithError(err).Error("Failed to save credential")
				continue
			}
			fmt.Printf("Stored keys for user %s on %s\n", userID, exchangeID)

		case "delete_key":
			if len(parts) < 3 {
				printUsage()
				continue
			}
			userID, exchangeID := parts[1], parts[2]

			if err := configStore.DeleteCredential(ctx, userID, exchangeID); err != nil {
				if err == store.ErrNotFound {
					fmt.Printf("No keys stored for user %s on %s\n", userID, exchangeID)
					continue
				}
				logger.WithError(err).Error("Failed to delete credential")
				continue
			}
			fmt.Printf("Deleted keys for user %s on %s\n", userID, exchangeID)

		case "show":
			if len(parts) < 3 {
				printUsage()
				continue
			}
			userID, exchangeID := parts[1], parts[2]

			cred, err := configStore.GetCredential(ctx, userID, exchangeID)
			if err != nil {
				if err == store.ErrNotFound {
					fmt.Printf("No keys stored for user %s on %s\n", userID, exchangeID)
					continue
				}
				logger.WithError(err).Error("Failed to load credential")
				continue
			}

			fmt.Printf("user=%s exchange=%s passphrase=%t updated=%s\n",
				cred.UserID, cred.ExchangeID, cred.APIPassphraseCipher != "", cred.UpdatedAt.Format("2006-01-02 15:04:05"))

		case "list_configs":
			if len(parts) < 2 {
				printUsage()
				continue
			}
			userID := parts[1]

			configs, err := configStore.ListAlertConfigs(ctx, userID)
			if err != nil {
				logger.WithError(err).Error("Failed to list alert configs")
				continue
			}
			if len(configs) == 0 {
				fmt.Printf("No alert configurations for user %s\n", userID)
				continue
			}
			for _, config := range configs {
				fmt.Printf("name=%s exchange=%s symbol=%s side=%s type=%s enabled=%t\n",
					config.Name, config.ExchangeID, config.Symbol, config.Side, config.OrderType, config.Enabled)
			}

		default:
			printUsage()
		}
	}
}
