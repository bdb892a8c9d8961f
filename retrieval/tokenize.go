package retrieval

import (
	"strings"
	"unicode"
)

// tokenize 把文本切成检索词项。
// 拉丁字母/数字按连续串切词并转小写；
// CJK 字符按相邻二元组（bigram）切分，孤立单字保留为单字词项。
// 菜谱语料以中文为主，bigram 在不引入分词依赖的前提下效果足够。
func tokenize(text string) []string {
	var tokens []string
	var word strings.Builder
	var hanRun []rune

	flushWord := func() {
		if word.Len() > 0 {
			tokens = append(tokens, strings.ToLower(word.String()))
			word.Reset()
		}
	}
	flushHan := func() {
		switch {
		case len(hanRun) == 1:
			tokens = append(tokens, string(hanRun[0]))
		case len(hanRun) > 1:
			for i := 0; i+1 < len(hanRun); i++ {
				tokens = append(tokens, string(hanRun[i:i+2]))
			}
		}
		hanRun = hanRun[:0]
	}

	for _, r := range text {
		switch {
		case unicode.Is(unicode.Han, r):
			flushWord()
			hanRun = append(hanRun, r)
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			flushHan()
			word.WriteRune(r)
		default:
			flushWord()
			flushHan()
		}
	}
	flushWord()
	flushHan()

	return tokens
}
