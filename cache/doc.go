// Package cache 实现回答缓存：
// 以（会话, 规范化问题）为键，LRU 容量上界加 TTL 时间上界。
//
// 键规范化（casefold、去首尾空白、内部空白折叠为单个空格）
// 是存储契约的一部分：同一问题的大小写和空白变体命中同一条目，
// 不同会话中的相同问题永不互相命中。
// TTL 以条目的 CreatedAt 为基准，命中不续命。
package cache
