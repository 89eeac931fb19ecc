// Command gagyebu-token mints a bearer token for a user id without a
// password, for operators and scripted access. Users normally get tokens
// from POST /api/signup and POST /api/login.
package main

import (
	"flag"
	"fmt"
	"os"

	"gagyebu/internal/auth"
	"gagyebu/internal/cli"
	"gagyebu/internal/config"
)

func main() {
	userID := flag.Int64("user", 0, "user id the token identifies")
	flag.Parse()

	cli.LoadEnvFile()
	cfg := config.Load()

	if *userID <= 0 {
		fmt.Fprintln(os.Stderr, "usage: gagyebu-token -user <id>")
		os.Exit(2)
	}

	issuer, err := auth.NewIssuer(cfg.JWTSecret, cfg.JWTIssuer, cfg.TokenTTL)
	if err != nil {
		fmt.Fprintf(os.Stderr, "gagyebu-token: %v\n", err)
		os.Exit(1)
	}
	token, err := issuer.Issue(*userID)
	if err != nil {
		fmt.Fprintf(os.Stderr, "gagyebu-token: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(token)
}
