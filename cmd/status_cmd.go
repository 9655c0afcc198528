package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/nextlevelbuilder/clawrelay/internal/gateway"
)

func statusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Query the gateway for the bridge status snapshot",
		Run: func(cmd *cobra.Command, args []string) {
			runStatus()
		},
	}
}

func runStatus() {
	cfg := loadConfigOrExit()

	done := make(chan struct{})
	var payload json.RawMessage
	var reqErr error

	gw := gateway.NewClient(gateway.Config{
		URL:   cfg.Gateway.URL,
		Token: cfg.Gateway.Token,
	}, nil)
	gw.Start()
	defer gw.Close()

	go func() {
		defer close(done)
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()

		// Wait briefly for the connection to come up before asking.
		for !gw.Connected() {
			select {
			case <-ctx.Done():
				reqErr = ctx.Err()
				return
			case <-time.After(100 * time.Millisecond):
			}
		}
		payload, reqErr = gw.Status(ctx)
	}()
	<-done

	if reqErr != nil {
		fmt.Fprintf(os.Stderr, "Error querying gateway status: %s\n", reqErr)
		os.Exit(1)
	}

	var pretty map[string]interface{}
	if err := json.Unmarshal(payload, &pretty); err != nil {
		fmt.Println(string(payload))
		return
	}
	out, _ := json.MarshalIndent(pretty, "", "  ")
	fmt.Println(string(out))
}
