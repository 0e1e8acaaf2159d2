// cmd/hellobridge-cli - ad hoc command execution against the HelloWorld API
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"hellobridge/internal/command"
	"hellobridge/internal/helloworld"
)

var (
	apiURL    string
	apiKey    string
	timeout   time.Duration
	insecure  bool
	proxyURL  string
	threshold int
	jsonOut   bool
	verbose   bool
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "hellobridge-cli",
		Short: "Run HelloBridge commands against the HelloWorld API",
		Long: `hellobridge-cli executes any HelloBridge adapter command directly,
without the daemon: connectivity tests, alert search and management,
IP/domain reputation and the scan lifecycle.

The API key is read from --api-key or the HELLOBRIDGE_API_KEY
environment variable.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if verbose {
				logrus.SetLevel(logrus.DebugLevel)
			} else {
				logrus.SetLevel(logrus.WarnLevel)
			}
		},
	}

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&apiURL, "url", os.Getenv("HELLOBRIDGE_API_URL"), "HelloWorld service URL")
	pf.StringVar(&apiKey, "api-key", "", "API key (defaults to HELLOBRIDGE_API_KEY)")
	pf.DurationVar(&timeout, "timeout", 30*time.Second, "HTTP timeout")
	pf.BoolVar(&insecure, "insecure", false, "Skip TLS certificate verification")
	pf.StringVar(&proxyURL, "proxy", "", "Proxy URL")
	pf.IntVar(&threshold, "threshold", 0, "Reputation threshold override (1-100)")
	pf.BoolVar(&jsonOut, "json", false, "Print structured outputs as JSON instead of markdown")
	pf.BoolVar(&verbose, "verbose", false, "Enable debug logging")

	rootCmd.AddCommand(
		newTestCmd(),
		newHelloCmd(),
		newAlertsCmd(),
		newIPCmd(),
		newDomainCmd(),
		newScanCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// newRegistry builds a command registry from the global connection flags.
func newRegistry() (*command.Registry, *helloworld.Client, error) {
	key := apiKey
	if key == "" {
		key = os.Getenv("HELLOBRIDGE_API_KEY")
	}

	client, err := helloworld.NewClient(helloworld.Config{
		URL:      apiURL,
		APIKey:   key,
		Timeout:  timeout,
		Insecure: insecure,
		Proxy:    proxyURL,
	})
	if err != nil {
		return nil, nil, err
	}

	return command.NewRegistry(command.Deps{
		Client:          client,
		IPThreshold:     threshold,
		DomainThreshold: threshold,
	}), client, nil
}

// run executes one registry command and prints its result.
func run(name string, args command.Args) error {
	registry, _, err := newRegistry()
	if err != nil {
		return err
	}

	result, err := registry.Execute(context.Background(), name, args)
	if err != nil {
		return err
	}
	return printResult(result)
}

func printResult(result *command.Result) error {
	if result.File != nil {
		if err := os.WriteFile(result.File.Name, result.File.Data, 0o644); err != nil {
			return fmt.Errorf("failed to write %s: %w", result.File.Name, err)
		}
		fmt.Printf("Wrote %s (%d bytes)\n", result.File.Name, len(result.File.Data))
		return nil
	}

	if jsonOut {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(map[string]interface{}{
			"outputs":    result.Outputs,
			"indicators": result.Indicators,
		})
	}

	fmt.Println(result.Readable)
	for _, indicator := range result.Indicators {
		fmt.Printf("- %s %s: %s (score %d)\n",
			indicator.Type, indicator.Value, indicator.Verdict, indicator.Score)
	}
	return nil
}

func newTestCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "test",
		Short: "Verify connectivity and authentication",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run("test-module", command.Args{})
		},
	}
}

func newHelloCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "hello <name>",
		Short: "Greet a name (no API call)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return run("helloworld-say-hello", command.Args{"name": args[0]})
		},
	}
}

func newAlertsCmd() *cobra.Command {
	alertsCmd := &cobra.Command{
		Use:   "alerts",
		Short: "Search and manage HelloWorld alerts",
	}

	var status, severity, alertType, startTime string
	var maxResults int

	searchCmd := &cobra.Command{
		Use:   "search",
		Short: "Search alerts by status, severity, type and start time",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a := command.Args{
				"status":     status,
				"severity":   severity,
				"alert_type": alertType,
				"start_time": startTime,
			}
			if maxResults > 0 {
				a["max_results"] = fmt.Sprintf("%d", maxResults)
			}
			return run("helloworld-search-alerts", a)
		},
	}
	searchCmd.Flags().StringVar(&status, "status", "", "Alert status (ACTIVE or CLOSED)")
	searchCmd.Flags().StringVar(&severity, "severity", "", "Comma-separated severities (Low,Medium,High,Critical)")
	searchCmd.Flags().StringVar(&alertType, "type", "", "Alert type")
	searchCmd.Flags().StringVar(&startTime, "start-time", "", `Start time (epoch seconds, ISO-8601 or "3 days")`)
	searchCmd.Flags().IntVar(&maxResults, "max", 0, "Maximum alerts to return")

	getCmd := &cobra.Command{
		Use:   "get <alert-id>",
		Short: "Fetch one alert",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return run("helloworld-get-alert", command.Args{"alert_id": args[0]})
		},
	}

	setStatusCmd := &cobra.Command{
		Use:   "set-status <alert-id> <ACTIVE|CLOSED>",
		Short: "Change an alert's status",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return run("helloworld-update-alert-status", command.Args{
				"alert_id": args[0],
				"status":   args[1],
			})
		},
	}

	alertsCmd.AddCommand(searchCmd, getCmd, setStatusCmd)
	return alertsCmd
}

func newIPCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ip <address[,address...]>",
		Short: "IP reputation lookup",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return run("ip", command.Args{"ip": args[0]})
		},
	}
}

func newDomainCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "domain <name[,name...]>",
		Short: "Domain reputation lookup",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return run("domain", command.Args{"domain": args[0]})
		},
	}
}

func newScanCmd() *cobra.Command {
	scanCmd := &cobra.Command{
		Use:   "scan",
		Short: "Start, poll and fetch HelloWorld scans",
	}

	startCmd := &cobra.Command{
		Use:   "start <hostname>",
		Short: "Start a scan",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return run("helloworld-scan-start", command.Args{"hostname": args[0]})
		},
	}

	statusCmd := &cobra.Command{
		Use:   "status <scan-id[,scan-id...]>",
		Short: "Check scan status",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return run("helloworld-scan-status", command.Args{"scan_id": args[0]})
		},
	}

	var format string
	resultsCmd := &cobra.Command{
		Use:   "results <scan-id>",
		Short: "Fetch scan results",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return run("helloworld-scan-results", command.Args{
				"scan_id": args[0],
				"format":  format,
			})
		},
	}
	resultsCmd.Flags().StringVar(&format, "format", "json", `Result format: "json" or "file"`)

	var pollInterval, pollTimeout time.Duration
	var runFormat string
	runCmd := &cobra.Command{
		Use:   "run <hostname>",
		Short: "Start a scan, poll until it completes, then fetch results",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScanToCompletion(args[0], runFormat, pollInterval, pollTimeout)
		},
	}
	runCmd.Flags().DurationVar(&pollInterval, "interval", 10*time.Second, "Poll interval")
	runCmd.Flags().DurationVar(&pollTimeout, "wait", 10*time.Minute, "Maximum time to wait for completion")
	runCmd.Flags().StringVar(&runFormat, "format", "json", `Result format: "json" or "file"`)

	scanCmd.AddCommand(startCmd, statusCmd, resultsCmd, runCmd)
	return scanCmd
}

// runScanToCompletion is the host-side polling loop: the adapter commands
// themselves stay poll-free, so the CLI drives start, status and results.
func runScanToCompletion(hostname, format string, interval, wait time.Duration) error {
	registry, client, err := newRegistry()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), wait)
	defer cancel()

	job, err := client.ScanStart(ctx, hostname)
	if err != nil {
		return err
	}
	fmt.Printf("Started scan %s against %s\n", job.ScanID, hostname)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		status, err := client.ScanStatus(ctx, job.ScanID)
		if err != nil {
			return err
		}
		if status.Done() {
			break
		}
		fmt.Printf("Scan %s: %s\n", job.ScanID, status.Status)

		select {
		case <-ctx.Done():
			return fmt.Errorf("scan %s did not complete within %s", job.ScanID, wait)
		case <-ticker.C:
		}
	}

	result, err := registry.Execute(ctx, "helloworld-scan-results", command.Args{
		"scan_id": job.ScanID,
		"format":  format,
	})
	if err != nil {
		return err
	}
	return printResult(result)
}
