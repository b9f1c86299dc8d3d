// Package main is the agentcored entrypoint.
package main

func main() {
	Execute()
}
