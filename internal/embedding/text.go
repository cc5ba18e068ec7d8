package embedding

import (
	"strings"

	"github.com/blevesearch/bleve/v2/analysis"
	"github.com/blevesearch/bleve/v2/analysis/lang/en"
	"github.com/blevesearch/bleve/v2/analysis/token/lowercase"
	"github.com/blevesearch/bleve/v2/analysis/token/stop"
	"github.com/blevesearch/bleve/v2/analysis/tokenizer/unicode"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

const minTokenRunes = 2

// termAnalyzer splits product text into lowercase, stop-word free terms.
type termAnalyzer struct {
	tokenizer analysis.Tokenizer
	filters   []analysis.TokenFilter
}

func newTermAnalyzer() (*termAnalyzer, error) {
	stopWords := analysis.NewTokenMap()
	if err := stopWords.LoadBytes(en.EnglishStopWords); err != nil {
		return nil, err
	}
	return &termAnalyzer{
		tokenizer: unicode.NewUnicodeTokenizer(),
		filters: []analysis.TokenFilter{
			lowercase.NewLowerCaseFilter(),
			stop.NewStopTokensFilter(stopWords),
		},
	}, nil
}

// Terms returns the unigrams of input followed by the bigrams built from
// adjacent surviving unigrams.
func (a *termAnalyzer) Terms(input string) []string {
	stream := a.tokenizer.Tokenize([]byte(input))
	for _, f := range a.filters {
		stream = f.Filter(stream)
	}
	unigrams := make([]string, 0, len(stream))
	for _, tok := range stream {
		term := string(tok.Term)
		if len([]rune(term)) < minTokenRunes {
			continue
		}
		unigrams = append(unigrams, term)
	}
	terms := make([]string, 0, 2*len(unigrams))
	terms = append(terms, unigrams...)
	for i := 1; i < len(unigrams); i++ {
		terms = append(terms, unigrams[i-1]+" "+unigrams[i])
	}
	return terms
}

// PlainText flattens a markdown description into whitespace separated text.
// Plain text input passes through unchanged apart from whitespace.
func PlainText(markdown string) string {
	if strings.TrimSpace(markdown) == "" {
		return ""
	}
	source := []byte(markdown)
	doc := goldmark.New().Parser().Parse(text.NewReader(source))
	var b strings.Builder
	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			if n.Type() == ast.TypeBlock {
				b.WriteByte(' ')
			}
			return ast.WalkContinue, nil
		}
		switch node := n.(type) {
		case *ast.Text:
			b.Write(node.Segment.Value(source))
			if node.SoftLineBreak() || node.HardLineBreak() {
				b.WriteByte(' ')
			}
		case *ast.String:
			b.Write(node.Value)
		case *ast.FencedCodeBlock, *ast.CodeBlock:
			lines := n.Lines()
			for i := 0; i < lines.Len(); i++ {
				seg := lines.At(i)
				b.Write(seg.Value(source))
				b.WriteByte(' ')
			}
		}
		return ast.WalkContinue, nil
	})
	return strings.Join(strings.Fields(b.String()), " ")
}
