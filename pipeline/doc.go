// Package pipeline 编排一次问答的完整流程：
// 缓存查询 → 上下文补全 → 查询路由 → 查询重写 →
// 混合检索（可带元数据过滤）→ 父文档回溯 → 回答生成 →
// 会话和缓存写回。
//
// 流式回答的写回发生在整个流被排空之后：
// 要么完整观察到的输出原子写入，要么完全不写，
// 调用方中途取消不会留下半截缓存条目。
package pipeline
