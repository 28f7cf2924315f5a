// Command policygen renders the row-level security policies derived from the
// authorization rule set as executable SQL. The output is meant to be applied
// as a migration so the database enforces the same decisions the API makes.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/sitebeam/construction-platform-iam/internal/authz"
	"github.com/sitebeam/construction-platform-iam/internal/policy"
)

func main() {
	output := flag.String("o", "", "write SQL to this file instead of stdout")
	flag.Parse()

	rules := authz.DefaultRuleSet()
	if err := rules.Validate(); err != nil {
		log.Fatalf("invalid rule set: %v", err)
	}

	schema := policy.DefaultSchema()
	generator := policy.NewGenerator(rules, schema)

	policies, err := generator.Build()
	if err != nil {
		log.Fatalf("generate policies: %v", err)
	}

	sql, err := policy.Render(schema, policies)
	if err != nil {
		log.Fatalf("render policies: %v", err)
	}

	if *output == "" {
		fmt.Print(sql)
		return
	}

	if err := os.WriteFile(*output, []byte(sql), 0o644); err != nil {
		log.Fatalf("write %s: %v", *output, err)
	}
	log.Printf("wrote %d policies to %s", len(policies), *output)
}
