package chatbot

import (
	"regexp"
	"strings"
)

var punctuation = regexp.MustCompile(`[^\p{L}\p{N}_\s]`)

// lemmas 常见词形还原表，覆盖关键词里会出现的变形
var lemmas = map[string]string{
	"are": "be", "am": "be", "is": "be", "was": "be", "were": "be",
	"running": "run", "ran": "run", "runs": "run",
	"going": "go", "went": "go", "goes": "go",
	"having": "have", "had": "have", "has": "have",
	"doing": "do", "did": "do", "does": "do",
	"saying": "say", "said": "say", "says": "say",
	"orders": "order", "ordered": "order",
	"returns": "return", "returned": "return",
	"problems": "problem", "issues": "issue",
}

// Preprocess 小写、去标点、分词并做词形还原，返回以单个空格连接的词序列
func Preprocess(text string) string {
	text = punctuation.ReplaceAllString(strings.ToLower(text), "")
	words := strings.Fields(text)
	for i, word := range words {
		if lemma, ok := lemmas[word]; ok {
			words[i] = lemma
		}
	}
	return strings.Join(words, " ")
}
