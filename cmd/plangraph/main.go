// =============================================================================
// plangraph 命令行入口
// =============================================================================
// 解析、校验并执行计划文档，查询运行历史
//
// 使用方法:
//
//	plangraph run plan.yaml --var topic=graphs     # 执行计划
//	plangraph run plan.yaml --config config.yaml   # 指定配置文件
//	plangraph validate plan.yaml                   # 校验计划
//	plangraph order plan.yaml                      # 输出拓扑序
//	plangraph history --workflow review            # 查询运行历史
//	plangraph version                              # 显示版本信息
// =============================================================================

package main

import (
	"fmt"
	"io"
	"os"
)

// =============================================================================
// 📦 版本信息（构建时注入）
// =============================================================================

var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

// Exit codes.
const (
	exitOK      = 0
	exitFailure = 1
	exitUsage   = 2
)

// =============================================================================
// 🎯 主函数
// =============================================================================

func main() {
	os.Exit(dispatch(os.Args[1:], os.Stdout, os.Stderr))
}

func dispatch(args []string, stdout, stderr io.Writer) int {
	if len(args) < 1 {
		printUsage(stderr)
		return exitUsage
	}

	switch args[0] {
	case "run":
		return runRun(args[1:], stdout, stderr)
	case "validate":
		return runValidate(args[1:], stdout, stderr)
	case "order":
		return runOrder(args[1:], stdout, stderr)
	case "history":
		return runHistory(args[1:], stdout, stderr)
	case "version":
		printVersion(stdout)
		return exitOK
	case "help", "-h", "--help":
		printUsage(stdout)
		return exitOK
	default:
		fmt.Fprintf(stderr, "Unknown command: %s\n", args[0])
		printUsage(stderr)
		return exitUsage
	}
}

// =============================================================================
// 📋 版本和帮助
// =============================================================================

func printVersion(w io.Writer) {
	fmt.Fprintf(w, "plangraph %s\n", Version)
	fmt.Fprintf(w, "  Build Time: %s\n", BuildTime)
	fmt.Fprintf(w, "  Git Commit: %s\n", GitCommit)
}

func printUsage(w io.Writer) {
	fmt.Fprintln(w, `plangraph - plan graph executor

Usage:
  plangraph <command> [options]

Commands:
  run        Execute a plan
  validate   Parse and validate a plan
  order      Print a plan's nodes in topological order
  history    Query recorded runs
  version    Show version information
  help       Show this help message

Options for 'run':
  --config <path>        Path to configuration file (YAML)
  --var key=value        Set a plan variable (repeatable, value parsed as YAML)
  --input <path>         Read plan variables from a YAML or JSON file
  --max-steps <n>        Override engine.max_steps
  --timeout <duration>   Override engine.timeout
  --parallelism <n>      Override engine.parallelism
  --policy <name>        Override engine.failure_policy (fail_fast, continue)

Options for 'history':
  --config <path>        Path to configuration file (YAML)
  --run-id <id>          Show one run
  --workflow <name>      List runs of a workflow
  --status <status>      List runs with a status
  --since <duration>     List runs started within the duration

Examples:
  plangraph run review.yaml --var topic=graphs --var rounds=3
  plangraph run review.yaml --config /etc/plangraph/config.yaml
  plangraph validate review.yaml
  plangraph history --workflow review --config config.yaml
  plangraph version`)
}
