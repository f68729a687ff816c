// Command policyctl inspects the record firewall: it exports the decision table,
// renders the matching Postgres row-level-security DDL and evaluates single
// decisions for support staff.
package main

import (
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
