// internal/command/alerts.go - Alert search and management commands
package command

import (
	"context"
	"fmt"
	"strings"
	"time"

	"hellobridge/internal/helloworld"
)

// alertOutput shapes one alert for context output. The listed time fields
// are rewritten from epoch seconds to ISO-8601 when present; everything
// else passes through untouched.
func alertOutput(a *helloworld.Alert, timeFields ...string) map[string]interface{} {
	out := make(map[string]interface{}, len(a.Raw)+1)
	if len(a.Raw) > 0 {
		for k, v := range a.Raw {
			out[k] = v
		}
	} else {
		// Alerts built in-process have no raw payload to pass through
		out["alert_id"] = a.ID
		out["name"] = a.Name
		if a.Status != "" {
			out["alert_status"] = a.Status
		}
		if a.Type != "" {
			out["alert_type"] = a.Type
		}
		if a.Severity != "" {
			out["severity"] = a.Severity
		}
		if a.Created != 0 {
			out["created"] = a.Created.Unix()
		}
		if a.Updated != 0 {
			out["updated"] = a.Updated.Unix()
		}
	}

	for _, field := range timeFields {
		if _, ok := out[field]; !ok {
			continue
		}
		switch field {
		case "created":
			out[field] = timestampToDateString(a.Created.Unix())
		case "updated":
			out[field] = timestampToDateString(a.Updated.Unix())
		}
	}
	return out
}

// searchAlertsCommand searches alerts by status, severity, type and start
// time.
type searchAlertsCommand struct {
	deps Deps
}

func (c *searchAlertsCommand) Name() string { return "helloworld-search-alerts" }

func (c *searchAlertsCommand) Execute(ctx context.Context, args Args) (*Result, error) {
	severities := helloworld.Severities
	if raw := args.Get("severity"); raw != "" {
		severities = args.List("severity")
		if len(severities) == 0 {
			return nil, argErrorf("severity must be a comma-separated value with the following options: %s",
				strings.Join(helloworld.Severities, ","))
		}
		for _, s := range severities {
			if !helloworld.ValidSeverity(s) {
				return nil, argErrorf("severity must be a comma-separated value with the following options: %s",
					strings.Join(helloworld.Severities, ","))
			}
		}
	}

	startTime, err := args.Time("start_time", time.Now())
	if err != nil {
		return nil, err
	}
	maxResults, err := args.Int("max_results", 0)
	if err != nil {
		return nil, err
	}

	alerts, err := c.deps.Client.SearchAlerts(ctx, helloworld.SearchParams{
		Status:     args.Get("status"),
		Type:       args.Get("alert_type"),
		Severity:   strings.Join(severities, ","),
		MaxResults: maxResults,
		StartTime:  startTime,
	})
	if err != nil {
		return nil, err
	}

	outputs := make([]map[string]interface{}, 0, len(alerts))
	for i := range alerts {
		outputs = append(outputs, alertOutput(&alerts[i], "created"))
	}

	return &Result{
		Readable:      TableToMarkdown("Alerts", outputs),
		OutputsPrefix: "HelloWorld.Alert",
		OutputsKey:    "alert_id",
		Outputs:       outputs,
	}, nil
}

// getAlertCommand fetches a single alert by id.
type getAlertCommand struct {
	deps Deps
}

func (c *getAlertCommand) Name() string { return "helloworld-get-alert" }

func (c *getAlertCommand) Execute(ctx context.Context, args Args) (*Result, error) {
	alertID := args.Get("alert_id")
	if alertID == "" {
		return nil, argErrorf("alert_id not specified")
	}

	alert, err := c.deps.Client.GetAlert(ctx, alertID)
	if err != nil {
		return nil, err
	}

	output := alertOutput(alert, "created")

	return &Result{
		Readable:      ObjectToMarkdown(fmt.Sprintf("HelloWorld Alert %s", alertID), output),
		OutputsPrefix: "HelloWorld.Alert",
		OutputsKey:    "alert_id",
		Outputs:       output,
	}, nil
}

// updateAlertStatusCommand moves an alert between ACTIVE and CLOSED.
type updateAlertStatusCommand struct {
	deps Deps
}

func (c *updateAlertStatusCommand) Name() string { return "helloworld-update-alert-status" }

func (c *updateAlertStatusCommand) Execute(ctx context.Context, args Args) (*Result, error) {
	alertID := args.Get("alert_id")
	if alertID == "" {
		return nil, argErrorf("alert_id not specified")
	}
	status := args.Get("status")
	if !helloworld.ValidStatus(status) {
		return nil, argErrorf("status must be either ACTIVE or CLOSED")
	}

	alert, err := c.deps.Client.UpdateAlertStatus(ctx, alertID, status)
	if err != nil {
		return nil, err
	}

	output := alertOutput(alert, "updated")

	return &Result{
		Readable:      ObjectToMarkdown(fmt.Sprintf("HelloWorld Alert %s", alertID), output),
		OutputsPrefix: "HelloWorld.Alert",
		OutputsKey:    "alert_id",
		Outputs:       output,
	}, nil
}
