package main

import (
	"fmt"
	"log"
	"os"

	"github.com/Layr-Labs/token-withdrawal-module-go/pkg/config"
	"github.com/Layr-Labs/token-withdrawal-module-go/pkg/logger"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"
)

func main() {
	app := &cli.App{
		Name:  "withdrawal-module",
		Usage: "Signature-authorized token withdrawals from a Safe",
		Description: `Lets anyone holding an owner-signed authorization withdraw tokens from a Safe
through an enabled module.

The module address is the key that sends execTransactionFromModule; it must be
enabled on the Safe by an owner-approved transaction before serving.`,
		Version: "1.0.0",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:    "debug",
				Aliases: []string{"verbose"},
				Usage:   "Enable debug logging",
				EnvVars: []string{config.EnvWithdrawalDebug},
			},
		},
		Commands: []*cli.Command{
			digestCommand(),
			signCommand(),
			recoverCommand(),
			withdrawCommand(),
			serveCommand(),
			simulateCommand(),
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatalf("Application error: %v", err)
	}
}

func newLogger(c *cli.Context) (*zap.Logger, error) {
	l, err := logger.NewLogger(&logger.LoggerConfig{Debug: c.Bool("debug")})
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}
	return l, nil
}
