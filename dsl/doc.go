// Package dsl 提供条件表达式求值器与 YAML/JSON 声明式计划语言。
//
// Evaluator 是决策节点与循环节点的条件求值契约，NewEvaluator 返回默认实现；
// Parser 将计划文档解析、校验并通过 graph 构建 API 生成可执行的计划图，
// 同时按 delegates 段为委托包装重试、熔断、限流与超时。
package dsl
