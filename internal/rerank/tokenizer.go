package rerank

import (
	"bufio"
	"fmt"
	"os"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

const maxWordChars = 100

// PairTokenizer encodes a (query, passage) pair for a BERT-style cross-encoder.
type PairTokenizer interface {
	EncodePair(query, passage string, maxTokens int) (inputIDs, attentionMask, tokenTypeIDs []int64)
}

// WordPiece is an uncased BERT WordPiece tokenizer.
type WordPiece struct {
	vocab map[string]int64
	unk   int64
	cls   int64
	sep   int64
	pad   int64
}

// LoadWordPiece reads a vocab.txt file with one token per line; the line number is the token ID.
func LoadWordPiece(path string) (*WordPiece, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open vocabulary: %w", err)
	}
	defer f.Close()

	var tokens []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		tokens = append(tokens, strings.TrimRight(sc.Text(), "\r"))
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read vocabulary: %w", err)
	}
	return NewWordPiece(tokens)
}

// NewWordPiece builds a tokenizer from an ordered vocabulary.
func NewWordPiece(tokens []string) (*WordPiece, error) {
	vocab := make(map[string]int64, len(tokens))
	for i, t := range tokens {
		if _, dup := vocab[t]; !dup {
			vocab[t] = int64(i)
		}
	}
	w := &WordPiece{vocab: vocab}
	for name, dst := range map[string]*int64{"[UNK]": &w.unk, "[CLS]": &w.cls, "[SEP]": &w.sep, "[PAD]": &w.pad} {
		id, ok := vocab[name]
		if !ok {
			return nil, fmt.Errorf("vocabulary is missing %s", name)
		}
		*dst = id
	}
	return w, nil
}

// Tokenize returns the WordPiece IDs of text without special tokens.
func (w *WordPiece) Tokenize(text string) []int64 {
	var ids []int64
	for _, word := range basicTokenize(text) {
		ids = append(ids, w.wordPieces(word)...)
	}
	return ids
}

// EncodePair produces "[CLS] query [SEP] passage [SEP]" padded to maxTokens.
// When too long, the longer of the two segments is trimmed one token at a time.
func (w *WordPiece) EncodePair(query, passage string, maxTokens int) (inputIDs, attentionMask, tokenTypeIDs []int64) {
	q := w.Tokenize(query)
	p := w.Tokenize(passage)
	for len(q)+len(p)+3 > maxTokens && (len(q) > 0 || len(p) > 0) {
		if len(p) >= len(q) {
			p = p[:len(p)-1]
		} else {
			q = q[:len(q)-1]
		}
	}

	inputIDs = make([]int64, maxTokens)
	attentionMask = make([]int64, maxTokens)
	tokenTypeIDs = make([]int64, maxTokens)
	for i := range inputIDs {
		inputIDs[i] = w.pad
	}

	pos := 0
	put := func(id, segment int64) {
		if pos >= maxTokens {
			return
		}
		inputIDs[pos] = id
		attentionMask[pos] = 1
		tokenTypeIDs[pos] = segment
		pos++
	}
	put(w.cls, 0)
	for _, id := range q {
		put(id, 0)
	}
	put(w.sep, 0)
	for _, id := range p {
		put(id, 1)
	}
	put(w.sep, 1)
	return inputIDs, attentionMask, tokenTypeIDs
}

// wordPieces splits one word greedily into the longest vocabulary entries.
func (w *WordPiece) wordPieces(word string) []int64 {
	runes := []rune(word)
	if len(runes) > maxWordChars {
		return []int64{w.unk}
	}
	var ids []int64
	for start := 0; start < len(runes); {
		end := len(runes)
		var id int64 = -1
		for ; end > start; end-- {
			piece := string(runes[start:end])
			if start > 0 {
				piece = "##" + piece
			}
			if v, ok := w.vocab[piece]; ok {
				id = v
				break
			}
		}
		if id < 0 {
			return []int64{w.unk}
		}
		ids = append(ids, id)
		start = end
	}
	return ids
}

// basicTokenize lowercases, strips accents, and splits on whitespace and punctuation.
func basicTokenize(text string) []string {
	var (
		words []string
		cur   strings.Builder
	)
	flush := func() {
		if cur.Len() > 0 {
			words = append(words, cur.String())
			cur.Reset()
		}
	}
	for _, r := range norm.NFD.String(strings.ToLower(text)) {
		switch {
		case unicode.Is(unicode.Mn, r), r == 0, r == unicode.ReplacementChar, unicode.IsControl(r) && !unicode.IsSpace(r):
			continue
		case unicode.IsSpace(r):
			flush()
		case unicode.IsPunct(r) || unicode.IsSymbol(r):
			flush()
			words = append(words, string(r))
		default:
			cur.WriteRune(r)
		}
	}
	flush()
	return words
}
