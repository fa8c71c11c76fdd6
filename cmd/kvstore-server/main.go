// Command kvstore-server runs the TCP key-value store server: accepts
// connections, validates and dispatches INSERT/UPDATE/GET/DELETE commands
// against a persistent memory-mapped map, and replies with framed results.
package main

func main() {
	execute()
}
