// Package generate 负责查询理解和回答生成：
// 查询补全（结合会话上下文）、查询路由（list/detail/general）、
// 查询重写，以及按路由类型选择不同提示词模板生成回答。
//
// 列表类回答不走模型，直接由检索到的菜名拼装。
package generate
