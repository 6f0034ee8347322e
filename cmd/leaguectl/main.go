// Package main provides leaguectl, an operator CLI for the league manager's
// admin HTTP surface (spec.md §7 admin endpoints).
package main

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"
)

var managerAddr string

func main() {
	root := &cobra.Command{
		Use:   "leaguectl",
		Short: "Operate an even/odd league manager",
	}
	root.PersistentFlags().StringVar(&managerAddr, "manager", "http://localhost:8090", "league manager base URL")

	root.AddCommand(standingsCmd(), startCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func standingsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "standings <league_id>",
		Short: "Print the current standings table for a league",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return getJSON(fmt.Sprintf("%s/admin/standings/%s", managerAddr, args[0]))
		},
	}
}

func startCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "start <league_id>",
		Short: "Transition a league from ACCEPTING to SCHEDULED and kick off round one",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return postJSON(fmt.Sprintf("%s/admin/leagues/%s/start", managerAddr, args[0]))
		},
	}
}

func getJSON(url string) error {
	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Get(url)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return printResponse(resp)
}

func postJSON(url string) error {
	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Post(url, "application/json", nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return printResponse(resp)
}

func printResponse(resp *http.Response) error {
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode >= 400 {
		return fmt.Errorf("manager returned %s: %s", resp.Status, string(body))
	}
	var pretty interface{}
	if err := json.Unmarshal(body, &pretty); err != nil {
		fmt.Println(string(body))
		return nil
	}
	out, err := json.MarshalIndent(pretty, "", "  ")
	if err != nil {
		fmt.Println(string(body))
		return nil
	}
	fmt.Println(string(out))
	return nil
}
