package main

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/spf13/cobra"

	"kvstore/internal/client"
	"kvstore/internal/protocol"
)

var (
	hostname string
	port     int
)

var rootCmd = &cobra.Command{
	Use:   "kvstore-client --hostname <host> INSERT|UPDATE|GET|DELETE <key> [value]",
	Short: "Issue a single command against a kvstore-server",
	Args:  cobra.RangeArgs(2, 3),
	RunE:  runClient,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&hostname, "hostname", "", "Server hostname (required)")
	rootCmd.PersistentFlags().IntVar(&port, "port", 1524, "Server port")
	rootCmd.MarkPersistentFlagRequired("hostname")
}

func run(args []string) error {
	rootCmd.SetArgs(args)
	return rootCmd.Execute()
}

func runClient(cmd *cobra.Command, args []string) error {
	typ, err := parseCommandType(args[0])
	if err != nil {
		return err
	}

	key := args[1]
	value := ""
	if len(args) == 3 {
		value = args[2]
	}
	if (typ == protocol.CommandGet || typ == protocol.CommandDelete) && len(args) == 3 {
		return fmt.Errorf("%s takes no value argument", strings.ToUpper(args[0]))
	}
	if (typ == protocol.CommandInsert || typ == protocol.CommandUpdate) && len(args) != 3 {
		return fmt.Errorf("%s requires a value argument", strings.ToUpper(args[0]))
	}

	sess := client.NewSession(0)
	if err := sess.Connect(hostname, port); err != nil {
		return fmt.Errorf("connect failed: %w", err)
	}
	defer sess.Close()

	var wg sync.WaitGroup
	wg.Add(1)

	var ok bool
	var resultValue string
	callback := func(success bool, v string) {
		ok = success
		resultValue = v
		wg.Done()
	}

	command, err := newCommand(typ, key, value)
	if err != nil {
		return err
	}
	if err := sess.SendCommand(command, callback); err != nil {
		return fmt.Errorf("send failed: %w", err)
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		return fmt.Errorf("timed out waiting for server response")
	}

	if !ok {
		return fmt.Errorf("server reported failure")
	}
	if typ == protocol.CommandGet {
		fmt.Println(resultValue)
	}
	return nil
}

func parseCommandType(s string) (protocol.CommandType, error) {
	switch strings.ToUpper(s) {
	case "INSERT":
		return protocol.CommandInsert, nil
	case "UPDATE":
		return protocol.CommandUpdate, nil
	case "GET":
		return protocol.CommandGet, nil
	case "DELETE":
		return protocol.CommandDelete, nil
	default:
		return protocol.CommandUnknown, fmt.Errorf("unknown command %q", s)
	}
}

// newCommand builds the single command this client sends, rejecting a key
// or value over the protocol's length limits.
func newCommand(typ protocol.CommandType, key, value string) (protocol.CommandMessage, error) {
	cmd, err := protocol.NewCommandMessage(1, typ, key, value)
	if err != nil {
		return protocol.CommandMessage{}, fmt.Errorf("invalid command: %w", err)
	}
	return cmd, nil
}
