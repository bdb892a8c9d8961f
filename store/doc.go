// Package store 持有加载后的父文档与派生片段，
// 提供父文档回溯和元数据过滤查询。
//
// FragmentStore 在进程生命周期内独占文档数据：一次性加载，此后只读。
// 检索引擎通过 Fragments() 拿到片段副本建立索引，
// 组件之间只传值，不共享可变状态。
package store
