// internal/command/hello.go - Connectivity test and greeting commands
package command

import (
	"context"
	"errors"
	"time"

	"hellobridge/internal/helloworld"
)

// ErrAuthorization replaces a Forbidden response during the connectivity
// test, pointing the operator at the API key instead of a bare 403.
var ErrAuthorization = errors.New("Authorization Error: make sure API Key is correctly set")

// testModuleCommand verifies connectivity and authentication with one
// minimal alert search over the configured first-fetch window.
type testModuleCommand struct {
	deps Deps
}

func (c *testModuleCommand) Name() string { return "test-module" }

func (c *testModuleCommand) Execute(ctx context.Context, args Args) (*Result, error) {
	startTime := time.Now().Add(-c.deps.FirstFetch).Unix()

	_, err := c.deps.Client.SearchAlerts(ctx, helloworld.SearchParams{
		MaxResults: 1,
		StartTime:  startTime,
	})
	if err != nil {
		if helloworld.IsForbidden(err) {
			return nil, ErrAuthorization
		}
		return nil, err
	}

	return &Result{Readable: "ok", Outputs: "ok"}, nil
}

// sayHelloCommand greets a name without touching the API.
type sayHelloCommand struct {
	deps Deps
}

func (c *sayHelloCommand) Name() string { return "helloworld-say-hello" }

func (c *sayHelloCommand) Execute(ctx context.Context, args Args) (*Result, error) {
	name := args.Get("name")
	if name == "" {
		return nil, argErrorf("name not specified")
	}

	result := c.deps.Client.SayHello(name)

	return &Result{
		Readable:      "## " + result,
		OutputsPrefix: "hello",
		Outputs:       result,
	}, nil
}
