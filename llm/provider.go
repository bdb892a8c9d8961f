package llm

import "context"

// StreamChunk 流式输出的一个片段。
// Err 非空表示流异常中止，之后通道关闭；
// 正常结束时通道直接关闭，没有显式的结束片段。
type StreamChunk struct {
	Content string
	Err     error
}

// Provider 文本生成提供者。
// Stream 返回的通道有限且不可重放，调用方必须读到通道关闭为止，
// 中途放弃要取消 ctx。
type Provider interface {
	Complete(ctx context.Context, prompt string) (string, error)
	Stream(ctx context.Context, prompt string) (<-chan StreamChunk, error)
}
