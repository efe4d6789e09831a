// Package e2e provides end-to-end tests that ingest a Newton corpus and answer questions about it.
package e2e

import (
	"strings"

	"github.com/hyperjump/principia/internal/models"
)

// CorpusArticle is an article of the E2E corpus.
type CorpusArticle struct {
	Title   string
	URL     string
	Content string
}

// QuestionCase is a question and the article that must be among the answer's sources.
// Signature is a word that appears in the question and in no other article, so lexical
// reranking has something to find.
type QuestionCase struct {
	Question      string
	ExpectedTitle string
	Signature     string
}

// Corpus holds articles and question cases for E2E tests.
type Corpus struct {
	Articles []CorpusArticle
	Cases    []QuestionCase
}

// BuildCorpus returns a small Newton knowledge base with one question per article.
func BuildCorpus() *Corpus {
	articles := []CorpusArticle{
		{
			Title: "Isaac Newton",
			URL:   "https://en.wikipedia.org/wiki/Isaac_Newton",
			Content: "Isaac Newton was an English mathematician, physicist and astronomer. " +
				"He was born on 25 December 1642 at Woolsthorpe Manor in Lincolnshire. " +
				"Newton was raised by his grandmother after his mother remarried. " +
				"He is widely recognised as one of the most influential scientists of all time.",
		},
		{
			Title: "Philosophiae Naturalis Principia Mathematica",
			URL:   "https://en.wikipedia.org/wiki/Philosophi%C3%A6_Naturalis_Principia_Mathematica",
			Content: "The Principia was first published on 5 July 1687 with encouragement from Edmond Halley. " +
				"It states the three laws of motion and the law of universal gravitation. " +
				"Halley paid for the printing out of his own pocket. " +
				"The work is written in Latin and divided into three books.",
		},
		{
			Title: "Opticks",
			URL:   "https://en.wikipedia.org/wiki/Opticks",
			Content: "Opticks is a book about the reflections, refractions and colours of light published in 1704. " +
				"Newton showed with a prism that white light is a mixture of colours. " +
				"The prism experiments split sunlight into a spectrum. " +
				"The book ends with a list of queries about the nature of light.",
		},
		{
			Title: "Leibniz and Newton calculus controversy",
			URL:   "https://en.wikipedia.org/wiki/Leibniz%E2%80%93Newton_calculus_controversy",
			Content: "The calculus controversy was a priority dispute between Newton and Gottfried Leibniz. " +
				"Newton called his method of fluxions and developed it in the 1660s. " +
				"Leibniz published his differential calculus first, in 1684. " +
				"A Royal Society committee sided with Newton in 1712.",
		},
		{
			Title: "Royal Mint",
			URL:   "https://en.wikipedia.org/wiki/Royal_Mint",
			Content: "Newton became Warden of the Royal Mint in 1696 and Master of the Mint in 1699. " +
				"He led the great recoinage and pursued counterfeiters with determination. " +
				"Several counterfeiters were prosecuted on evidence Newton gathered himself. " +
				"He held the post until his death.",
		},
		{
			Title: "Newtonian telescope",
			URL:   "https://en.wikipedia.org/wiki/Newtonian_telescope",
			Content: "The Newtonian telescope is a reflecting telescope built by Newton in 1668. " +
				"It uses a concave primary mirror and a flat diagonal secondary mirror. " +
				"The reflector avoided the chromatic aberration of refracting telescopes. " +
				"The design remains popular with amateur astronomers.",
		},
		{
			Title: "Newton's apple",
			URL:   "https://en.wikipedia.org/wiki/Isaac_Newton%27s_apple_tree",
			Content: "Newton often told the story that a falling apple inspired his thoughts on gravitation. " +
				"The apple tree stood in the garden at Woolsthorpe. " +
				"William Stukeley recorded the anecdote after a conversation in 1726. " +
				"Descendants of the tree grow at Cambridge and elsewhere.",
		},
		{
			Title: "Alchemy",
			URL:   "https://en.wikipedia.org/wiki/Isaac_Newton%27s_occult_studies",
			Content: "Newton wrote more than a million words on alchemy over three decades. " +
				"Many of his alchemical manuscripts were bought by John Maynard Keynes in 1936. " +
				"Keynes described Newton as the last of the magicians. " +
				"The papers show careful laboratory work with metals.",
		},
	}

	cases := []QuestionCase{
		{Question: "Where was Isaac Newton born in Lincolnshire?", ExpectedTitle: "Isaac Newton", Signature: "lincolnshire"},
		{Question: "Who paid for the printing of the Principia, Halley?", ExpectedTitle: "Philosophiae Naturalis Principia Mathematica", Signature: "halley"},
		{Question: "What did Newton show with a prism?", ExpectedTitle: "Opticks", Signature: "prism"},
		{Question: "Who had the priority dispute with Newton over calculus, Leibniz?", ExpectedTitle: "Leibniz and Newton calculus controversy", Signature: "leibniz"},
		{Question: "How did Newton deal with counterfeiters at the Mint?", ExpectedTitle: "Royal Mint", Signature: "counterfeiters"},
		{Question: "What kind of mirror does a reflecting telescope use?", ExpectedTitle: "Newtonian telescope", Signature: "mirror"},
		{Question: "Who recorded the apple anecdote?", ExpectedTitle: "Newton's apple", Signature: "apple"},
		{Question: "Who bought Newton's alchemy manuscripts, Keynes?", ExpectedTitle: "Alchemy", Signature: "keynes"},
	}
	return &Corpus{Articles: articles, Cases: cases}
}

// ArticleInputs converts the corpus to document store inputs.
func (c *Corpus) ArticleInputs() []*models.ArticleInput {
	inputs := make([]*models.ArticleInput, len(c.Articles))
	for i, a := range c.Articles {
		inputs[i] = &models.ArticleInput{Title: a.Title, URL: a.URL, Content: a.Content}
	}
	return inputs
}

// Article returns the article with the given title.
func (c *Corpus) Article(title string) (CorpusArticle, bool) {
	for _, a := range c.Articles {
		if a.Title == title {
			return a, true
		}
	}
	return CorpusArticle{}, false
}

func containsWord(text, word string) bool {
	for _, w := range strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !('a' <= r && r <= 'z') && !('0' <= r && r <= '9')
	}) {
		if w == word {
			return true
		}
	}
	return false
}
