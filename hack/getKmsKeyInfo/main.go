package main

import (
	"context"
	"os"

	"github.com/Layr-Labs/token-withdrawal-module-go/internal/aws"
	"github.com/Layr-Labs/token-withdrawal-module-go/pkg/authorizationSigner"
	"github.com/Layr-Labs/token-withdrawal-module-go/pkg/config"
	"github.com/Layr-Labs/token-withdrawal-module-go/pkg/logger"
	"github.com/Layr-Labs/token-withdrawal-module-go/pkg/signature"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

// Resolves the owner address of a KMS key and checks a test signature recovers to it.
// Add the printed address as a Safe owner before using the key with `sign`.
func main() {
	l, _ := logger.NewLogger(&logger.LoggerConfig{Debug: false})
	ctx := context.Background()

	keyId := os.Getenv(config.EnvWithdrawalAWSKMSKeyID)
	if keyId == "" {
		l.Sugar().Fatalf("%s environment variable is not set", config.EnvWithdrawalAWSKMSKeyID)
	}

	client, err := aws.NewKMSClient(ctx, os.Getenv(config.EnvWithdrawalAWSRegion))
	if err != nil {
		l.Sugar().Fatalw("failed to create KMS client", "error", err)
	}

	signer, err := authorizationSigner.NewAWSKMSSigner(ctx, client, keyId, signature.SchemePersonal, l)
	if err != nil {
		l.Sugar().Fatalw("failed to load KMS key", "error", err)
	}

	digest := signature.MessageDigest("kms key check")
	sig, err := signer.SignDigest(ctx, digest)
	if err != nil {
		l.Sugar().Fatalw("failed to sign test digest", "error", err)
	}
	recovered, err := (&signature.PersonalMessageRecoverer{}).RecoverSigner(digest, sig)
	if err != nil {
		l.Sugar().Fatalw("failed to recover test signature", "error", err)
	}
	if recovered != signer.Address() {
		l.Sugar().Fatalw("test signature recovered to a different address",
			"expected", signer.Address().Hex(),
			"recovered", recovered.Hex(),
		)
	}

	l.Sugar().Infow("KMS key",
		"keyId", keyId,
		"address", signer.Address().Hex(),
		"testSignature", hexutil.Encode(sig),
	)
}
