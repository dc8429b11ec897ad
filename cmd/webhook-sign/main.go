package main

import (
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/marcelsud/assistant-gateway/webhook/signature"
)

/* webhook-sign - prints the webhook-signature header for a payload, for partner onboarding and manual tests
 * Usage: go run ./cmd/webhook-sign -secret whsec_... payload.json
 *        cat payload.json | go run ./cmd/webhook-sign -secret whsec_...
 *        go run ./cmd/webhook-sign -generate
 */

func main() {
	secretFlag := flag.String("secret", os.Getenv("WEBHOOK_SECRET"), "whsec_ secret (default $WEBHOOK_SECRET)")
	generate := flag.Bool("generate", false, "print a new random secret and exit")
	flag.Parse()

	if *generate {
		secret, err := signature.GenerateSecret(32)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		fmt.Println(secret)
		return
	}

	secret, err := signature.ParseSecret(*secretFlag)
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid secret: %v\n", err)
		os.Exit(1)
	}

	var in io.Reader = os.Stdin
	if flag.NArg() > 0 {
		f, err := os.Open(flag.Arg(0))
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		defer f.Close()
		in = f
	}
	body, err := io.ReadAll(in)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	fmt.Println(signature.BuildSignatureHeader([]signature.Signature{signature.Sign(secret, body)}))
}
