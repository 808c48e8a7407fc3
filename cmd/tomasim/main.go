// Package main is the tomasim command line: it runs instruction traces and
// synthetic benchmarks through the Tomasulo timing model.
package main

func main() {
	Execute()
}
