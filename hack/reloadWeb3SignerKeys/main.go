package main

import (
	"context"
	"os"
	"time"

	"github.com/Layr-Labs/token-withdrawal-module-go/pkg/clients/web3signer"
	"github.com/Layr-Labs/token-withdrawal-module-go/pkg/config"
	"github.com/Layr-Labs/token-withdrawal-module-go/pkg/logger"
)

func main() {
	l, _ := logger.NewLogger(&logger.LoggerConfig{Debug: false})

	url := os.Getenv(config.EnvWithdrawalSignerURL)
	if url == "" {
		url = web3signer.DefaultBaseUrl
	}

	client, err := web3signer.NewClient(&web3signer.Config{BaseUrl: url}, l)
	if err != nil {
		l.Sugar().Fatalw("failed to create Web3Signer client", "error", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := client.Upcheck(ctx); err != nil {
		l.Sugar().Fatalw("Web3Signer is not up", "url", url, "error", err)
	}
	if err := client.ReloadKeys(ctx); err != nil {
		l.Sugar().Fatalw("failed to reload Web3Signer keys", "error", err)
	}

	accounts, err := client.EthAccounts(ctx)
	if err != nil {
		l.Sugar().Fatalw("failed to list accounts", "error", err)
	}
	l.Sugar().Infow("Successfully reloaded Web3Signer keys", "accounts", accounts)
}
