package generate

const composePrompt = `根据下面的对话上下文，补全用户的当前问题，使它成为一个完整、可独立理解的查询。

对话上下文:
%s

用户当前问题:
%s

补全后的完整问题:`

const routerPrompt = `根据用户的问题，将其分类为以下三种类型之一：

1. 'list' - 用户想要获取菜品列表或推荐，只需要菜名
    例如： 推荐几个素菜;有什么川菜;给我3个简单的菜

2. 'detail' - 用户想要获取菜品的详细制作信息（做法、食材、步骤等）
    例如： 宫保鸡丁怎么做;红烧肉的制作步骤;蛋炒饭需要什么食材

3. 'general' - 其它一般性问题
    例如： 什么是川菜;制作技巧;营养价值

请只返回分类结果： list, detail或general

用户问题: %s

分类结果:`

const rewritePrompt = `你是一个智能查询分析助手。请分析用户的查询，判断是否需要重写以提高食谱搜索效果。

原始查询: %s

分析规则：
1. 具体明确的查询（直接返回原始查询）
    - 包含具体菜品名称：如"宫保鸡丁怎么做"，"红烧肉的制作方法"
    - 明确的制作询问：如"蛋炒饭需要什么食材"，"糖醋排骨的制作步骤"
    - 具体的烹饪技巧：如"如何炒菜不粘锅"，"怎样调制糖醋汁"
2. 模糊的查询（根据查询内容进行重写）
    - 过于宽泛：如"做菜"，"有什么好吃的"，"推荐个菜"
    - 缺乏具体信息：如"川菜"，"素菜"，"简单的"
    - 口语化表达：如"想吃什么"，"有饮品推荐吗"

重写原则：
- 保持原意不变
- 增加相关烹饪术语
- 倾向推荐简单易做的
- 保持简洁性

示例：
- "做菜" → "简单易做的家常菜谱"
- "有饮品推荐吗" → "简单饮品制作方法"
- "川菜" → "经典川菜菜谱"
- "宫保鸡丁怎么做" → "宫保鸡丁怎么做" （保持原查询）

请输出最终查询（如果不需要重写就返回原查询）:`

const basicAnswerPrompt = `你是一位专业的烹饪助手。请根据以下食谱信息回答用户的问题。

用户问题: %s

相关食谱信息:
%s

请提供详细、实用的回答。如果信息不足，请诚实说明。

回答:`

const stepByStepPrompt = `你是一位专业的烹饪导师。请根据食谱信息，为用户提供详细的分步骤指导。

用户问题: %s

相关食谱信息:
%s

请灵活组织回答，建议包含以下部分（可根据实际内容调整）：

## 🥘 菜品介绍
[简要介绍菜品特点和难度]

## 🛒 所需食材
[列出主要食材和用量]

## 👨‍🍳 制作步骤
[详细的分步骤说明，每步包含具体操作和大概所需时间]

## 💡 制作技巧
[仅在有实用技巧时包含，没有可以省略此部分]

注意：
- 根据实际内容灵活调整结构
- 不要强行填充无关内容
- 重点突出实用性和可操作性

回答:`
