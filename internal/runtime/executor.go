package runtime

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/user/voxchat/internal/extract"
)

// ResultStatus is the outcome of an executed tool call.
type ResultStatus string

const (
	StatusSuccess ResultStatus = "success"
	StatusError   ResultStatus = "error"
)

// ErrorKind classifies failed tool calls for the follow-up prompt and logs.
type ErrorKind string

const (
	ErrKindUnknownTool   ErrorKind = "unknown_tool"
	ErrKindInvalidParams ErrorKind = "invalid_parameters"
	ErrKindExecution     ErrorKind = "execution_error"
)

// Result pairs an extracted call with its execution outcome. Exactly one
// Result is produced per executed call; results are never retried.
type Result struct {
	Call    extract.Call
	Status  ResultStatus
	Payload string
	ErrKind ErrorKind
	ErrMsg  string
}

// Executor resolves parsed calls against the registry, validates their
// parameters, and runs them. Failures of any kind become error-status
// Results; nothing raises past the executor boundary.
type Executor struct {
	registry *Registry
	timeout  time.Duration
	limit    int
}

// NewExecutor creates an Executor. timeout bounds each individual tool run;
// limit caps how many tools run concurrently within one reply.
func NewExecutor(registry *Registry, timeout time.Duration, limit int) *Executor {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	if limit <= 0 {
		limit = 4
	}
	return &Executor{registry: registry, timeout: timeout, limit: limit}
}

// ExecuteAll runs every call and returns one Result per call, in the
// original left-to-right order. Calls are independent: they run
// concurrently and a failure in one never blocks the others.
func (e *Executor) ExecuteAll(ctx context.Context, calls []extract.Call) []Result {
	results := make([]Result, len(calls))

	g := new(errgroup.Group)
	g.SetLimit(e.limit)
	for i, call := range calls {
		g.Go(func() error {
			results[i] = e.execute(ctx, call)
			return nil
		})
	}
	g.Wait()

	return results
}

// execute runs a single call through resolve, validate, invoke.
func (e *Executor) execute(ctx context.Context, call extract.Call) (res Result) {
	res = Result{Call: call}

	defer func() {
		if r := recover(); r != nil {
			res.Status = StatusError
			res.ErrKind = ErrKindExecution
			res.ErrMsg = fmt.Sprintf("tool %q panicked: %v", call.Name, r)
		}
	}()

	tool, ok := e.registry.Get(call.Name)
	if !ok {
		res.Status = StatusError
		res.ErrKind = ErrKindUnknownTool
		res.ErrMsg = fmt.Sprintf("unknown tool %q", call.Name)
		return res
	}

	if err := validateArgs(tool.Parameters(), call.Args); err != nil {
		res.Status = StatusError
		res.ErrKind = ErrKindInvalidParams
		res.ErrMsg = err.Error()
		return res
	}

	execCtx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	payload, err := tool.Execute(execCtx, json.RawMessage(call.RawArgs))
	if err != nil {
		res.Status = StatusError
		res.ErrKind = ErrKindExecution
		res.ErrMsg = err.Error()
		return res
	}

	res.Status = StatusSuccess
	res.Payload = payload
	return res
}

// paramSchema is the subset of JSON schema the registry's tools declare.
type paramSchema struct {
	Properties map[string]struct {
		Type string `json:"type"`
	} `json:"properties"`
	Required []string `json:"required"`
}

// validateArgs checks a call's decoded arguments against the tool's declared
// schema: required names present, no undeclared names, primitive types match.
func validateArgs(schema json.RawMessage, args map[string]any) error {
	var ps paramSchema
	if err := json.Unmarshal(schema, &ps); err != nil {
		return fmt.Errorf("invalid tool schema: %w", err)
	}

	var missing []string
	for _, name := range ps.Required {
		if _, ok := args[name]; !ok {
			missing = append(missing, name)
		}
	}

	var extra []string
	var badType []string
	for name, val := range args {
		prop, declared := ps.Properties[name]
		if !declared {
			extra = append(extra, name)
			continue
		}
		if !typeMatches(prop.Type, val) {
			badType = append(badType, fmt.Sprintf("%s (want %s)", name, prop.Type))
		}
	}

	if len(missing) == 0 && len(extra) == 0 && len(badType) == 0 {
		return nil
	}

	var parts []string
	if len(missing) > 0 {
		sort.Strings(missing)
		parts = append(parts, "missing: "+strings.Join(missing, ", "))
	}
	if len(extra) > 0 {
		sort.Strings(extra)
		parts = append(parts, "unexpected: "+strings.Join(extra, ", "))
	}
	if len(badType) > 0 {
		sort.Strings(badType)
		parts = append(parts, "wrong type: "+strings.Join(badType, ", "))
	}
	return fmt.Errorf("invalid parameters: %s", strings.Join(parts, "; "))
}

func typeMatches(declared string, val any) bool {
	switch declared {
	case "string":
		_, ok := val.(string)
		return ok
	case "number", "integer":
		_, ok := val.(float64)
		return ok
	case "boolean":
		_, ok := val.(bool)
		return ok
	case "object":
		_, ok := val.(map[string]any)
		return ok
	case "array":
		_, ok := val.([]any)
		return ok
	default:
		// Unknown declared type: accept and let the tool sort it out.
		return true
	}
}
