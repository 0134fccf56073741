package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/BaSui01/plangraph/dsl"
	"github.com/BaSui01/plangraph/engine"
	"github.com/BaSui01/plangraph/history"
	"github.com/BaSui01/plangraph/types"
)

// varFlags 收集可重复的 --var key=value
type varFlags map[string]any

func (v varFlags) String() string {
	keys := make([]string, 0, len(v))
	for k := range v {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return strings.Join(keys, ",")
}

func (v varFlags) Set(s string) error {
	key, raw, ok := strings.Cut(s, "=")
	if !ok || strings.TrimSpace(key) == "" {
		return fmt.Errorf("expected key=value, got %q", s)
	}
	var value any
	if err := yaml.Unmarshal([]byte(raw), &value); err != nil || value == nil {
		value = raw
	}
	v[strings.TrimSpace(key)] = value
	return nil
}

// =============================================================================
// ▶️ run
// =============================================================================

func runRun(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("run", flag.ContinueOnError)
	fs.SetOutput(stderr)
	configPath := fs.String("config", "", "Path to configuration file")
	inputPath := fs.String("input", "", "YAML or JSON file with plan variables")
	maxSteps := fs.Int("max-steps", 0, "Override engine.max_steps")
	timeout := fs.Duration("timeout", 0, "Override engine.timeout")
	parallelism := fs.Int("parallelism", 0, "Override engine.parallelism")
	policy := fs.String("policy", "", "Override engine.failure_policy")
	vars := varFlags{}
	fs.Var(vars, "var", "Plan variable key=value (repeatable)")

	planPath, err := parseWithPlan(fs, args)
	if err != nil {
		return exitUsage
	}

	input := map[string]any{}
	if *inputPath != "" {
		data, err := os.ReadFile(*inputPath)
		if err != nil {
			fmt.Fprintf(stderr, "Error: read input: %v\n", err)
			return exitFailure
		}
		if err := yaml.Unmarshal(data, &input); err != nil {
			fmt.Fprintf(stderr, "Error: parse input: %v\n", err)
			return exitFailure
		}
	}
	for k, v := range vars {
		input[k] = v
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitFailure
	}
	if *maxSteps > 0 {
		cfg.Engine.MaxSteps = *maxSteps
	}
	if *timeout > 0 {
		cfg.Engine.Timeout = *timeout
	}
	if *parallelism > 0 {
		cfg.Engine.Parallelism = *parallelism
	}
	if *policy != "" {
		if _, err := engine.ParseFailurePolicy(*policy); err != nil {
			fmt.Fprintf(stderr, "Error: %v\n", err)
			return exitUsage
		}
		cfg.Engine.FailurePolicy = *policy
	}

	a, err := newApp(cfg)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitFailure
	}
	defer func() {
		if err := a.close(); err != nil {
			a.logger.Warn("shutdown error", zap.Error(err))
		}
	}()

	plan, err := a.parser().ParseFile(planPath)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitFailure
	}
	variables, err := plan.Inputs(input)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitFailure
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	exec := engine.NewExecutor(plan.Delegates, a.executorOptions(plan.Name)...)
	res, err := exec.Execute(ctx, plan.Graph, variables)
	if res == nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitFailure
	}
	if encErr := writeJSON(stdout, res); encErr != nil {
		fmt.Fprintf(stderr, "Error: encode result: %v\n", encErr)
		return exitFailure
	}
	if err != nil {
		fmt.Fprintf(stderr, "Run %s ended with status %s: %v\n", res.RunID, res.Status, err)
		return exitFailure
	}
	return exitOK
}

// =============================================================================
// ✅ validate / order
// =============================================================================

func runValidate(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("validate", flag.ContinueOnError)
	fs.SetOutput(stderr)
	planPath, err := parseWithPlan(fs, args)
	if err != nil {
		return exitUsage
	}

	plan, err := dsl.NewParser(nil, nil).ParseFile(planPath)
	if err != nil {
		fmt.Fprintln(stderr, "Plan is invalid:")
		for _, e := range flattenErrors(err) {
			fmt.Fprintf(stderr, "  - %v\n", e)
		}
		return exitFailure
	}
	fmt.Fprintf(stdout, "Plan %q is valid: %d nodes\n", plan.Name, plan.Graph.Len())
	return exitOK
}

func runOrder(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("order", flag.ContinueOnError)
	fs.SetOutput(stderr)
	planPath, err := parseWithPlan(fs, args)
	if err != nil {
		return exitUsage
	}

	plan, err := dsl.NewParser(nil, nil).ParseFile(planPath)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitFailure
	}
	order, err := plan.Graph.TopologicalOrder()
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitFailure
	}
	for i, n := range order {
		fmt.Fprintf(stdout, "%d. %s (%s)\n", i+1, n.ID, n.Type())
	}
	return exitOK
}

// =============================================================================
// 📜 history
// =============================================================================

func runHistory(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("history", flag.ContinueOnError)
	fs.SetOutput(stderr)
	configPath := fs.String("config", "", "Path to configuration file")
	runID := fs.String("run-id", "", "Show one run")
	workflow := fs.String("workflow", "", "List runs of a workflow")
	status := fs.String("status", "", "List runs with a status")
	since := fs.Duration("since", 0, "List runs started within the duration")
	if err := fs.Parse(args); err != nil {
		return exitUsage
	}
	if *runID == "" && *workflow == "" && *status == "" && *since == 0 {
		fmt.Fprintln(stderr, "Error: one of --run-id, --workflow, --status or --since is required")
		return exitUsage
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitFailure
	}
	// 查询不需要运维服务器
	cfg.Metrics.Enabled = false
	a, err := newApp(cfg)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitFailure
	}
	defer a.close()

	if a.store == nil {
		fmt.Fprintln(stderr, "Error: history is disabled (history.backend is none)")
		return exitFailure
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	var out any
	switch {
	case *runID != "":
		out, err = a.store.Get(ctx, *runID)
	case *workflow != "":
		out, err = a.store.ListByWorkflow(ctx, *workflow)
	case *status != "":
		out, err = a.store.ListByStatus(ctx, history.Status(*status))
	default:
		now := time.Now()
		out, err = a.store.ListByTimeRange(ctx, now.Add(-*since), now)
	}
	if err != nil {
		if types.GetErrorCode(err) == types.ErrRunNotFound {
			fmt.Fprintf(stderr, "Run %s not found\n", *runID)
			return exitFailure
		}
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitFailure
	}
	if err := writeJSON(stdout, out); err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitFailure
	}
	return exitOK
}

// =============================================================================
// 🔧 辅助函数
// =============================================================================

// parseWithPlan 解析参数并取出计划文件路径，允许标志出现在路径之后
func parseWithPlan(fs *flag.FlagSet, args []string) (string, error) {
	if err := fs.Parse(args); err != nil {
		return "", err
	}
	rest := fs.Args()
	if len(rest) == 0 {
		fmt.Fprintf(fs.Output(), "Error: %s requires a plan file\n", fs.Name())
		return "", errors.New("missing plan file")
	}
	planPath := rest[0]
	if err := fs.Parse(rest[1:]); err != nil {
		return "", err
	}
	if fs.NArg() > 0 {
		fmt.Fprintf(fs.Output(), "Error: unexpected arguments: %v\n", fs.Args())
		return "", errors.New("unexpected arguments")
	}
	return planPath, nil
}

// flattenErrors 展开 errors.Join 产生的多个错误
func flattenErrors(err error) []error {
	var te *types.Error
	if errors.As(err, &te) && te.Cause != nil {
		if joined, ok := te.Cause.(interface{ Unwrap() []error }); ok {
			return joined.Unwrap()
		}
	}
	return []error{err}
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
