// Package parser reads deck files into card drafts.
//
// Markdown decks hold entries of the form
//
//	Q: front text
//	A: back text, possibly
//	spanning lines
//	C: optional context
//
// separated by a new "Q:" line or a "---" line.
package parser

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/conorfennell/lingosrs/internal/domain"
)

const (
	questionPrefix = "Q:"
	answerPrefix   = "A:"
	contextPrefix  = "C:"
	separator      = "---"
)

type state int

const (
	seeking state = iota
	readingQuestion
	readingAnswer
	readingContext
)

// Supported reports whether path has a deck file extension.
func Supported(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".md", ".xlsx":
		return true
	}
	return false
}

// ParseFile reads a deck file, choosing the format by extension.
func ParseFile(path string) ([]domain.CardDraft, error) {
	if strings.EqualFold(filepath.Ext(path), ".xlsx") {
		return ParseWorkbook(path)
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	return Parse(file)
}

// Parse reads a Markdown deck and extracts all entries that have a front.
func Parse(r io.Reader) ([]domain.CardDraft, error) {
	p := &mdParser{}
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		p.line(scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read deck: %w", err)
	}
	p.finishCard()
	return p.cards, nil
}

type mdParser struct {
	cards   []domain.CardDraft
	current domain.CardDraft
	block   []string
	state   state
}

func (p *mdParser) line(line string) {
	if line == separator {
		p.finishCard()
		return
	}

	next, content, ok := prefixed(line)
	if !ok {
		if p.state != seeking {
			p.block = append(p.block, line)
		}
		return
	}

	p.flushBlock()
	if next == readingQuestion && p.state != seeking {
		// A new question always starts a new card.
		p.finishCard()
	}
	p.state = next
	p.block = append(p.block, content)
}

func prefixed(line string) (state, string, bool) {
	for _, c := range []struct {
		prefix string
		state  state
	}{
		{questionPrefix, readingQuestion},
		{answerPrefix, readingAnswer},
		{contextPrefix, readingContext},
	} {
		if rest, ok := strings.CutPrefix(line, c.prefix); ok {
			return c.state, strings.TrimPrefix(rest, " "), true
		}
	}
	return seeking, "", false
}

// flushBlock assigns the accumulated lines to the field being read.
func (p *mdParser) flushBlock() {
	if len(p.block) == 0 {
		return
	}
	content := strings.TrimRight(strings.Join(p.block, "\n"), "\n")
	switch p.state {
	case readingQuestion:
		p.current.Front = content
	case readingAnswer:
		p.current.Back = content
	case readingContext:
		p.current.Context = content
	}
	p.block = nil
}

func (p *mdParser) finishCard() {
	p.flushBlock()
	if p.current.Front != "" {
		p.cards = append(p.cards, p.current)
	}
	p.current = domain.CardDraft{}
	p.state = seeking
}
