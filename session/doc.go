// Package session 实现多轮对话的会话存储：
// 全局会话数有 LRU 上界，单会话消息数有成对裁剪的上界，
// 空闲会话按 UpdatedAt 做 TTL 惰性过期。
//
// Get 会刷新 LRU 顺序但不推进 UpdatedAt，
// 只有 AddMessage 推进 UpdatedAt，空读不会给会话续命。
package session
