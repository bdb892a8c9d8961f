// Package api 定义 CookRAG HTTP API 的请求和响应结构。
//
// # API 概览
//
// CookRAG 提供以下 REST 接口：
//   - 菜谱问答（同步和 WebSocket 流式）
//   - 会话管理（创建、查询、删除）
//   - 运行统计（缓存命中率、热点问题、知识库概况）
//   - 健康检查和 Prometheus 指标
//
// # 基础地址
//
// 默认基础地址为：
//
//	http://localhost:8080
//
// 流式问答通过 WebSocket 访问：
//
//	ws://localhost:8080/api/v1/ask/stream
package api
