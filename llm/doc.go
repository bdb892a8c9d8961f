// Package llm 封装文本生成能力。
//
// OpenAIClient 对接 OpenAI 兼容的 /v1/chat/completions 接口，
// 支持一次性补全和 SSE 流式输出，内建客户端限速。
// TokenBudget 用 tiktoken 做上下文预算裁剪，
// 编码表不可用时退化为按字符数估算。
package llm
