// Package retrieval 实现双引擎混合检索：
// 向量引擎（余弦相似度）与词法引擎（BM25）独立召回，
// 通过 Rank-Reciprocal Fusion 按排名融合。
//
// 融合的排名单位是片段内容哈希：不同来源中文本完全相同的片段
// 会合并为同一个排名单位并累加两个引擎的得分。
// 单引擎失败降级为另一个引擎的结果，双引擎失败才向调用方报错。
package retrieval
