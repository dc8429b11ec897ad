package main

import (
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/marcelsud/assistant-gateway/policy"
	"github.com/marcelsud/assistant-gateway/sources"
)

/* validate-config - checks the policy table and the source catalog before a deploy
 * Usage: go run ./cmd/validate-config [-policy policy.yaml] [sources.yaml]
 * Exit codes: 0 = valid, 1 = invalid
 */

func main() {
	policyFile := flag.String("policy", "", "policy table file (empty uses the built-in table)")
	flag.Parse()

	sourcesFile := "sources.yaml"
	if flag.NArg() > 0 {
		sourcesFile = flag.Arg(0)
	}

	table, err := loadPolicy(*policyFile)
	if err != nil {
		fail(err)
	}
	fmt.Printf("Policy: %d role(s)\n", len(table.Roles()))
	for _, e := range table.Roles() {
		perms := strings.Join(e.Permissions, ", ")
		if e.Administrative {
			perms = "(administrative)"
		}
		fmt.Printf("   %-12s -> %-16s %s\n", e.Role, e.Helper, perms)
	}

	fmt.Printf("\nValidating sources file: %s\n", sourcesFile)
	loader := sources.NewLoader()
	if err := loader.Load(sourcesFile); err != nil {
		fail(err)
	}
	if err := loader.CheckHelpers(table); err != nil {
		fail(err)
	}

	loaded := loader.List()
	fmt.Printf("✓ VALIDATION PASSED\n\n")
	fmt.Printf("Loaded %d source(s):\n", len(loaded))
	for i, src := range loaded {
		fmt.Printf("\n%d. Source: %s (%d secret(s))\n", i+1, src.Source, len(src.Secrets))
		for _, sub := range src.Subscriptions {
			fmt.Printf("   - %s\n", sub.Name)
			fmt.Printf("     Event types:     %s\n", strings.Join(sub.EventTypes, ", "))
			fmt.Printf("     Target URL:      %s\n", sub.TargetURL)
			fmt.Printf("     Expected Status: %d\n", sub.ExpectedStatus)
			if sub.Helper != "" {
				fmt.Printf("     Helper:          %s\n", sub.Helper)
			}
		}
	}
}

func loadPolicy(path string) (*policy.Table, error) {
	if path == "" {
		return policy.DefaultTable(), nil
	}
	return policy.LoadTable(path)
}

func fail(err error) {
	fmt.Fprintf(os.Stderr, "❌ VALIDATION FAILED\n\n")
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	os.Exit(1)
}
