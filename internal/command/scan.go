// internal/command/scan.go - Host scan lifecycle commands
package command

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
)

// scanStartCommand kicks off a vulnerability scan against a hostname.
type scanStartCommand struct {
	deps Deps
}

func (c *scanStartCommand) Name() string { return "helloworld-scan-start" }

func (c *scanStartCommand) Execute(ctx context.Context, args Args) (*Result, error) {
	hostname := args.Get("hostname")
	if hostname == "" {
		return nil, argErrorf("hostname not specified")
	}

	job, err := c.deps.Client.ScanStart(ctx, hostname)
	if err != nil {
		return nil, err
	}

	output := make(map[string]interface{}, len(job.Raw)+1)
	for k, v := range job.Raw {
		output[k] = v
	}
	output["hostname"] = hostname

	return &Result{
		Readable:      fmt.Sprintf("Started scan %s", job.ScanID),
		OutputsPrefix: "HelloWorld.Scan",
		OutputsKey:    "scan_id",
		Outputs:       output,
	}, nil
}

// scanStatusCommand reports the state of one or more running scans.
type scanStatusCommand struct {
	deps Deps
}

func (c *scanStatusCommand) Name() string { return "helloworld-scan-status" }

func (c *scanStatusCommand) Execute(ctx context.Context, args Args) (*Result, error) {
	scanIDs := args.List("scan_id")
	if len(scanIDs) == 0 {
		return nil, argErrorf("scan_id(s) not specified")
	}

	outputs := make([]map[string]interface{}, 0, len(scanIDs))
	for _, scanID := range scanIDs {
		job, err := c.deps.Client.ScanStatus(ctx, scanID)
		if err != nil {
			return nil, err
		}
		outputs = append(outputs, job.Raw)
	}

	return &Result{
		Readable:      TableToMarkdown("Scan status", outputs),
		OutputsPrefix: "HelloWorld.Scan",
		OutputsKey:    "scan_id",
		Outputs:       outputs,
	}, nil
}

// scanResultsCommand retrieves the results of a completed scan, either as a
// JSON file attachment or as structured output with CVE indicators.
type scanResultsCommand struct {
	deps Deps
}

func (c *scanResultsCommand) Name() string { return "helloworld-scan-results" }

func (c *scanResultsCommand) Execute(ctx context.Context, args Args) (*Result, error) {
	scanID := args.Get("scan_id")
	if scanID == "" {
		return nil, argErrorf("scan_id not specified")
	}
	format := args.Get("format")
	if format == "" {
		format = "file"
	}
	if format != "json" && format != "file" {
		return nil, argErrorf(`Incorrect format, must be "json" or "file"`)
	}

	results, err := c.deps.Client.ScanResults(ctx, scanID)
	if err != nil {
		return nil, err
	}

	if format == "file" {
		data, err := json.MarshalIndent(results.Raw, "", "    ")
		if err != nil {
			return nil, fmt.Errorf("failed to encode scan results: %w", err)
		}
		return &Result{
			File: &FileResult{
				Name:        fmt.Sprintf("%s.json", scanID),
				ContentType: "application/json",
				Data:        data,
			},
		}, nil
	}

	entities := make([]map[string]interface{}, 0, len(results.Entities))
	for i := range results.Entities {
		entities = append(entities, results.Entities[i].Raw)
	}

	var readable strings.Builder
	readable.WriteString(TableToMarkdown(fmt.Sprintf("Scan %s results", scanID), entities))

	cves := results.CVEs()
	indicators := make([]Indicator, 0, len(cves))
	for _, cve := range cves {
		readable.WriteString(fmt.Sprintf("\nCVE %s", cve))
		indicators = append(indicators, Indicator{
			Type:  IndicatorTypeCVE,
			Value: cve,
		})
	}

	return &Result{
		Readable:      readable.String(),
		OutputsPrefix: "HelloWorld.Scan",
		OutputsKey:    "scan_id",
		Outputs:       results.Raw,
		Indicators:    indicators,
	}, nil
}
