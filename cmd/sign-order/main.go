// sign-order builds and signs a demo order against the configured chain,
// prints the signed JSON and verifies the signature roundtrip.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/ampdex/dexsign/params"
	"github.com/ampdex/dexsign/pkg/crypto"
	"github.com/ampdex/dexsign/pkg/exchange"
	"github.com/ampdex/dexsign/pkg/fixedpoint"
	"github.com/ampdex/dexsign/pkg/util"
)

func main() {
	var (
		amountFlag = flag.String("amount", "1.5", "order amount (decimal)")
		priceFlag  = flag.String("price", "0.2", "order price (decimal)")
		sideFlag   = flag.String("side", "BUY", "order side: BUY or SELL")
		baseFlag   = flag.String("base", "0xe41d2489571d322189246dafa5ebde1f4699f498", "base token address")
		quoteFlag  = flag.String("quote", "0xc02aaa39b223fe8d0a0e5c4f27ead9083c756cc2", "quote token address")
		envFlag    = flag.String("env", "", "path to .env file")
	)
	flag.Parse()

	log, err := util.NewDevLogger()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	cfg := params.LoadFromEnv(*envFlag)

	// Load the key from PRIVATE_KEY, or generate a throwaway one.
	var wallet *crypto.Wallet
	if hexKey := os.Getenv("PRIVATE_KEY"); hexKey != "" {
		wallet, err = crypto.WalletFromPrivateKeyHex(hexKey)
	} else {
		log.Info("PRIVATE_KEY not set, generating a throwaway key")
		wallet, err = crypto.GenerateWallet()
	}
	if err != nil {
		log.Fatal("failed to load wallet", zap.Error(err))
	}
	log.Info("signing as", zap.String("address", wallet.Address().Hex()))

	amount, err := fixedpoint.ParseQuantity(*amountFlag)
	if err != nil {
		log.Fatal("invalid amount", zap.Error(err))
	}
	price, err := fixedpoint.ParseQuantity(*priceFlag)
	if err != nil {
		log.Fatal("invalid price", zap.Error(err))
	}

	side := exchange.SideBuy
	if *sideFlag == "SELL" {
		side = exchange.SideSell
	}

	builder := exchange.NewBuilder(cfg)
	order, err := builder.NewOrder(exchange.OrderParams{
		UserAddress: wallet.Address(),
		Side:        side,
		BaseToken:   common.HexToAddress(*baseFlag),
		QuoteToken:  common.HexToAddress(*quoteFlag),
		Amount:      amount,
		Price:       price,
	})
	if err != nil {
		log.Fatal("failed to build order", zap.Error(err))
	}

	if err := exchange.SignOrder(wallet, order); err != nil {
		log.Fatal("failed to sign order", zap.Error(err))
	}

	out, err := json.MarshalIndent(order, "", "  ")
	if err != nil {
		log.Fatal("failed to marshal order", zap.Error(err))
	}
	fmt.Println(string(out))

	if !crypto.VerifySignature(wallet.Address(), order.Hash.Bytes(), order.Signature.Compact()) {
		log.Fatal("signature verification failed")
	}
	log.Info("signature verified",
		zap.String("hash", order.Hash.Hex()),
		zap.Uint8("v", order.Signature.V))
}
