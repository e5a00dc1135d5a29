// Command budgetctl builds and inspects monthly budgets from the terminal
// against the same store the server uses.
package main

import "os"

func main() {
	if err := newRootCmd(openSession).Execute(); err != nil {
		os.Exit(1)
	}
}
