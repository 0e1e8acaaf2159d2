// internal/command/command.go - Command registry and dispatch
package command

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/sirupsen/logrus"

	"hellobridge/internal/helloworld"
)

// API is the part of the HelloWorld client the commands use.
type API interface {
	GetIPReputation(ctx context.Context, ip string) (*helloworld.IPReport, error)
	GetDomainReputation(ctx context.Context, domain string) (*helloworld.DomainReport, error)
	SearchAlerts(ctx context.Context, p helloworld.SearchParams) ([]helloworld.Alert, error)
	GetAlert(ctx context.Context, alertID string) (*helloworld.Alert, error)
	UpdateAlertStatus(ctx context.Context, alertID, status string) (*helloworld.Alert, error)
	ScanStart(ctx context.Context, hostname string) (*helloworld.ScanJob, error)
	ScanStatus(ctx context.Context, scanID string) (*helloworld.ScanJob, error)
	ScanResults(ctx context.Context, scanID string) (*helloworld.ScanResults, error)
	SayHello(name string) string
}

// Command is a single host-callable operation.
type Command interface {
	Name() string
	Execute(ctx context.Context, args Args) (*Result, error)
}

// Result is what a command hands back to the host.
type Result struct {
	Readable      string         `json:"readable,omitempty"`
	OutputsPrefix string         `json:"outputs_prefix,omitempty"` // context path, e.g. "HelloWorld.Alert"
	OutputsKey    string         `json:"outputs_key,omitempty"`    // key field within the prefix
	Outputs       interface{}    `json:"outputs,omitempty"`
	Indicators    []Indicator    `json:"indicators,omitempty"`
	Relationships []Relationship `json:"relationships,omitempty"`
	File          *FileResult    `json:"file,omitempty"`
}

// FileResult is an attachment returned instead of structured outputs.
type FileResult struct {
	Name        string `json:"name"`
	ContentType string `json:"content_type"`
	Data        []byte `json:"data"`
}

// ExecutionError tags a failed command with its name. The message mirrors
// what the orchestration host shows operators, so the inner error stays
// reachable through Unwrap for callers that branch on it.
type ExecutionError struct {
	Command string
	Err     error
}

func (e *ExecutionError) Error() string {
	return fmt.Sprintf("Failed to execute %s command. Error: %v", e.Command, e.Err)
}

func (e *ExecutionError) Unwrap() error { return e.Err }

// Deps carries everything the built-in commands need.
type Deps struct {
	Client          API
	IPThreshold     int
	DomainThreshold int
	FirstFetch      time.Duration
}

// Registry holds the available commands by name.
type Registry struct {
	commands map[string]Command
}

// NewRegistry builds a registry with all built-in commands registered.
func NewRegistry(deps Deps) *Registry {
	if deps.IPThreshold == 0 {
		deps.IPThreshold = helloworld.DefaultReputationThreshold
	}
	if deps.DomainThreshold == 0 {
		deps.DomainThreshold = helloworld.DefaultReputationThreshold
	}
	if deps.FirstFetch == 0 {
		deps.FirstFetch = 72 * time.Hour
	}

	r := &Registry{commands: make(map[string]Command)}
	r.Register(
		&testModuleCommand{deps: deps},
		&sayHelloCommand{deps: deps},
		&searchAlertsCommand{deps: deps},
		&getAlertCommand{deps: deps},
		&updateAlertStatusCommand{deps: deps},
		&ipReputationCommand{deps: deps},
		&domainReputationCommand{deps: deps},
		&scanStartCommand{deps: deps},
		&scanStatusCommand{deps: deps},
		&scanResultsCommand{deps: deps},
	)
	return r
}

// Register adds commands to the registry, replacing any with the same name.
func (r *Registry) Register(cmds ...Command) {
	for _, cmd := range cmds {
		r.commands[cmd.Name()] = cmd
	}
}

// Get returns the named command.
func (r *Registry) Get(name string) (Command, bool) {
	cmd, ok := r.commands[name]
	return cmd, ok
}

// Names returns the registered command names, sorted.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.commands))
	for name := range r.commands {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Execute runs the named command. It is the outermost error boundary: every
// failure comes back as an ExecutionError tagged with the command name.
func (r *Registry) Execute(ctx context.Context, name string, args Args) (*Result, error) {
	cmd, ok := r.commands[name]
	if !ok {
		return nil, &ExecutionError{Command: name, Err: fmt.Errorf("unknown command")}
	}

	logrus.WithField("command", name).Debug("Executing command")

	result, err := cmd.Execute(ctx, args)
	if err != nil {
		logrus.WithError(err).WithField("command", name).Error("Command execution failed")
		return nil, &ExecutionError{Command: name, Err: err}
	}
	return result, nil
}
