// Package handlers 实现 CookRAG HTTP API 的各个端点处理器。
package handlers
