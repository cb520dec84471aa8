package main

import (
	"math/big"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// config is the environment configuration of spec §6: PAYMENT_NETWORK,
// SIGNER_KEY, MERCHANT_ADDRESS, RPC_URL, AUTO_PAYMENT, MAX_PAYMENT_ATOMIC.
// Absent SignerKey disables the PaymentCoordinator; paywalled agents then
// fail with a PaymentError rather than the process refusing to start.
type config struct {
	PaymentNetwork   string
	SignerKey        string
	MerchantAddress  string
	RPCURL           string
	AutoPayment      bool
	MaxPaymentAtomic *big.Int
	AgentsFile       string
}

// loadConfig reads a .env file if present (ignoring its absence, matching
// godotenv's documented usage in local-development tooling) and layers
// process environment variables on top.
func loadConfig() config {
	_ = godotenv.Load()

	cfg := config{
		PaymentNetwork:  os.Getenv("PAYMENT_NETWORK"),
		SignerKey:       os.Getenv("SIGNER_KEY"),
		MerchantAddress: os.Getenv("MERCHANT_ADDRESS"),
		RPCURL:          os.Getenv("RPC_URL"),
		AgentsFile:      os.Getenv("AGENTS_FILE"),
	}

	if v, err := strconv.ParseBool(os.Getenv("AUTO_PAYMENT")); err == nil {
		cfg.AutoPayment = v
	}
	// Left nil when unset or unparseable: payment.Coordinator treats a nil
	// cap as "no cap", not zero, so an operator who doesn't set this still
	// gets working auto-payment rather than every paid call rejected.
	if amt, ok := new(big.Int).SetString(os.Getenv("MAX_PAYMENT_ATOMIC"), 10); ok {
		cfg.MaxPaymentAtomic = amt
	}

	return cfg
}
