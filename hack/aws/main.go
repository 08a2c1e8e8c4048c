package main

import (
	"context"
	"os"

	"github.com/Layr-Labs/token-withdrawal-module-go/internal/aws"
	"github.com/Layr-Labs/token-withdrawal-module-go/pkg/config"
	"github.com/Layr-Labs/token-withdrawal-module-go/pkg/logger"
)

// Prints the AWS identity the KMS owner signer would run as.
func main() {
	l, _ := logger.NewLogger(&logger.LoggerConfig{Debug: false})
	ctx := context.Background()

	awsCfg, err := aws.LoadAWSConfig(ctx, os.Getenv(config.EnvWithdrawalAWSRegion))
	if err != nil {
		l.Sugar().Fatalw("failed to load AWS config", "error", err)
	}

	identity, err := aws.GetCallerIdentity(ctx, awsCfg)
	if err != nil {
		l.Sugar().Fatalw("failed to get caller identity", "error", err)
	}
	l.Sugar().Infow("AWS caller identity",
		"region", awsCfg.Region,
		"account", *identity.Account,
		"arn", *identity.Arn,
	)
}
