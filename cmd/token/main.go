// Command token mints a bearer token for local testing of the API.
package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/congo-pay/ledger/internal/auth"
	"github.com/congo-pay/ledger/internal/config"
)

func main() {
	actor := flag.String("actor", "", "owner id to put in the token subject")
	ttl := flag.Duration("ttl", time.Hour, "token lifetime")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}
	tokens, err := auth.NewTokens(cfg.JWTSecret, cfg.AppName)
	if err != nil {
		fmt.Fprintf(os.Stderr, "token signer: %v\n", err)
		os.Exit(1)
	}
	token, err := tokens.Issue(*actor, *ttl)
	if err != nil {
		fmt.Fprintf(os.Stderr, "issue token: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(token)
}
