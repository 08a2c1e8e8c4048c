package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/Layr-Labs/token-withdrawal-module-go/pkg/authorizationSigner"
	"github.com/Layr-Labs/token-withdrawal-module-go/pkg/config"
	"github.com/Layr-Labs/token-withdrawal-module-go/pkg/signature"
	"github.com/Layr-Labs/token-withdrawal-module-go/pkg/types"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"
)

func messageFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "message",
			Aliases: []string{"m"},
			Usage:   "Authorization text; the digest is keccak256 of its UTF-8 bytes",
		},
		&cli.StringFlag{
			Name:  "digest",
			Usage: "32-byte message digest (hex). Overrides --message",
		},
	}
}

func schemeFlag() cli.Flag {
	return &cli.StringFlag{
		Name:    "signature-scheme",
		Aliases: []string{"scheme"},
		Usage:   "Signature scheme: personal or raw",
		Value:   string(signature.SchemePersonal),
		EnvVars: []string{config.EnvWithdrawalSignatureScheme},
	}
}

func ownerSignerFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "owner-private-key",
			Usage:   "Owner private key (hex)",
			EnvVars: []string{config.EnvWithdrawalOwnerPrivateKey},
		},
		&cli.StringFlag{
			Name:    "aws-kms-key-id",
			Usage:   "AWS KMS key id of a secp256k1 owner key",
			EnvVars: []string{config.EnvWithdrawalAWSKMSKeyID},
		},
		&cli.StringFlag{
			Name:    "aws-region",
			Usage:   "AWS region override for KMS",
			EnvVars: []string{config.EnvWithdrawalAWSRegion},
		},
		&cli.StringFlag{
			Name:    "owner-signer-url",
			Usage:   "Web3Signer URL holding the owner key",
			EnvVars: []string{config.EnvWithdrawalOwnerSignerURL},
		},
		&cli.StringFlag{
			Name:    "owner-address",
			Usage:   "Owner address held by the Web3Signer",
			EnvVars: []string{config.EnvWithdrawalOwnerAddress},
		},
		schemeFlag(),
	}
}

// digestFromFlags resolves --digest or --message.
func digestFromFlags(c *cli.Context) (common.Hash, error) {
	if d := c.String("digest"); d != "" {
		raw, err := hexutil.Decode(d)
		if err != nil || len(raw) != common.HashLength {
			return common.Hash{}, fmt.Errorf("digest must be 32 bytes of 0x-prefixed hex")
		}
		return common.BytesToHash(raw), nil
	}
	if c.IsSet("message") {
		return signature.MessageDigest(c.String("message")), nil
	}
	return common.Hash{}, fmt.Errorf("one of --message or --digest is required")
}

func ownerSignerFromFlags(c *cli.Context, l *zap.Logger) (authorizationSigner.IAuthorizationSigner, error) {
	return authorizationSigner.NewAuthorizationSigner(c.Context, &authorizationSigner.Config{
		PrivateKey:        c.String("owner-private-key"),
		KMSKeyId:          c.String("aws-kms-key-id"),
		AWSRegion:         c.String("aws-region"),
		Web3SignerUrl:     c.String("owner-signer-url"),
		Web3SignerAddress: c.String("owner-address"),
		Scheme:            signature.Scheme(c.String("signature-scheme")),
	}, l)
}

func printJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func digestCommand() *cli.Command {
	return &cli.Command{
		Name:  "digest",
		Usage: "Compute the message digest an owner signs",
		Flags: messageFlags(),
		Action: func(c *cli.Context) error {
			digest, err := digestFromFlags(c)
			if err != nil {
				return err
			}
			fmt.Println(digest.Hex())
			return nil
		},
	}
}

type signOutput struct {
	Signer        string `json:"signer"`
	Scheme        string `json:"scheme"`
	MessageDigest string `json:"messageDigest"`
	Signature     string `json:"signature"`
}

func signCommand() *cli.Command {
	return &cli.Command{
		Name:  "sign",
		Usage: "Sign a withdrawal authorization as a Safe owner",
		Flags: append(messageFlags(), ownerSignerFlags()...),
		Action: func(c *cli.Context) error {
			l, err := newLogger(c)
			if err != nil {
				return err
			}
			defer func() { _ = l.Sync() }()

			digest, err := digestFromFlags(c)
			if err != nil {
				return err
			}
			signer, err := ownerSignerFromFlags(c, l)
			if err != nil {
				return fmt.Errorf("failed to create owner signer: %w", err)
			}
			sig, err := signer.SignDigest(c.Context, digest)
			if err != nil {
				return fmt.Errorf("failed to sign digest: %w", err)
			}
			return printJSON(signOutput{
				Signer:        signer.Address().Hex(),
				Scheme:        signer.Scheme().String(),
				MessageDigest: digest.Hex(),
				Signature:     hexutil.Encode(sig),
			})
		},
	}
}

func recoverCommand() *cli.Command {
	return &cli.Command{
		Name:  "recover",
		Usage: "Recover the signer of an authorization",
		Flags: append(messageFlags(),
			&cli.StringFlag{
				Name:     "signature",
				Aliases:  []string{"sig"},
				Usage:    "65-byte signature (hex)",
				Required: true,
			},
			schemeFlag(),
		),
		Action: func(c *cli.Context) error {
			digest, err := digestFromFlags(c)
			if err != nil {
				return err
			}
			sig, err := hexutil.Decode(c.String("signature"))
			if err != nil {
				return fmt.Errorf("invalid signature hex: %w", err)
			}
			recoverer, err := signature.NewRecoverer(signature.Scheme(c.String("signature-scheme")))
			if err != nil {
				return err
			}
			signer, err := recoverer.RecoverSigner(digest, sig)
			if err != nil {
				return fmt.Errorf("failed to recover signer: %w", err)
			}
			fmt.Println(signer.Hex())
			return nil
		},
	}
}

func withdrawCommand() *cli.Command {
	return &cli.Command{
		Name:  "withdraw",
		Usage: "Submit a withdrawal claim to a running module server",
		Flags: append(append(messageFlags(), ownerSignerFlags()...),
			&cli.StringFlag{
				Name:    "server-url",
				Usage:   "Module server base URL",
				Value:   "http://localhost:8080",
				EnvVars: []string{config.EnvWithdrawalServerURL},
			},
			&cli.StringFlag{
				Name:     "recipient",
				Aliases:  []string{"to"},
				Usage:    "Recipient address",
				Required: true,
			},
			&cli.StringFlag{
				Name:     "amount",
				Usage:    "Amount in the token's base units",
				Required: true,
			},
			&cli.StringFlag{
				Name:    "signature",
				Aliases: []string{"sig"},
				Usage:   "Pre-made owner signature (hex). Without it the owner signer flags sign the digest",
			},
			&cli.DurationFlag{
				Name:  "timeout",
				Usage: "Request timeout; module transactions wait for a receipt",
				Value: 2 * time.Minute,
			},
		),
		Action: runWithdraw,
	}
}

func runWithdraw(c *cli.Context) error {
	l, err := newLogger(c)
	if err != nil {
		return err
	}
	defer func() { _ = l.Sync() }()

	if !common.IsHexAddress(c.String("recipient")) {
		return fmt.Errorf("invalid recipient %q", c.String("recipient"))
	}
	amount, ok := new(big.Int).SetString(c.String("amount"), 10)
	if !ok {
		return fmt.Errorf("invalid amount %q", c.String("amount"))
	}
	digest, err := digestFromFlags(c)
	if err != nil {
		return err
	}

	sigHex := c.String("signature")
	if sigHex == "" {
		signer, err := ownerSignerFromFlags(c, l)
		if err != nil {
			return fmt.Errorf("failed to create owner signer: %w", err)
		}
		sig, err := signer.SignDigest(c.Context, digest)
		if err != nil {
			return fmt.Errorf("failed to sign digest: %w", err)
		}
		sigHex = hexutil.Encode(sig)
	}

	req := &types.WithdrawRequest{
		Recipient:     common.HexToAddress(c.String("recipient")).Hex(),
		Amount:        amount.String(),
		Signature:     sigHex,
		MessageDigest: digest.Hex(),
	}
	ctx, cancel := context.WithTimeout(c.Context, c.Duration("timeout"))
	defer cancel()

	resp, err := postWithdraw(ctx, http.DefaultClient, c.String("server-url"), req)
	if err != nil {
		return err
	}
	return printJSON(resp)
}

// postWithdraw submits a claim and decodes the receipt or the server's error kind.
func postWithdraw(ctx context.Context, client *http.Client, baseUrl string, req *types.WithdrawRequest) (*types.WithdrawResponse, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, strings.TrimRight(baseUrl, "/")+"/withdraw", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		var errResp types.ErrorResponse
		if json.Unmarshal(raw, &errResp) == nil && errResp.Error != "" {
			return nil, fmt.Errorf("withdrawal rejected (%d %s): %s", resp.StatusCode, errResp.Error, errResp.Message)
		}
		return nil, fmt.Errorf("withdrawal failed with status %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}

	var out types.WithdrawResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	return &out, nil
}
