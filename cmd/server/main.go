// Command resume-ai runs the Resume AI service and its account administration tasks.
//
// Usage:
//
//	resume-ai serve
//	resume-ai user add --email ana@example.com --password secret --name "Ana Souza"
//	resume-ai user extend --email ana@example.com --until 2026-12-31
package main

func main() {
	Execute()
}
