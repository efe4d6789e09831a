package models

import "strings"

// MaxQuestionLength bounds the accepted question size in characters.
const MaxQuestionLength = 2000

// Question is the request body for answering a question.
type Question struct {
	Question string `json:"question"`
	// Evaluate defaults to true when omitted.
	Evaluate *bool `json:"evaluate,omitempty"`
}

// Validate trims the question and rejects empty or oversized input.
func (q *Question) Validate() error {
	q.Question = strings.TrimSpace(q.Question)
	if q.Question == "" {
		return &ValidationError{Field: "question", Message: "question cannot be empty"}
	}
	if len([]rune(q.Question)) > MaxQuestionLength {
		return &ValidationError{Field: "question", Message: "question is too long"}
	}
	return nil
}

// ShouldEvaluate reports whether evaluation was requested.
func (q *Question) ShouldEvaluate() bool {
	return q.Evaluate == nil || *q.Evaluate
}

// ExampleQuestions are offered to clients as starting points.
var ExampleQuestions = []string{
	"Who was Isaac Newton?",
	"What did Newton contribute to calculus?",
	"Explain Newton's laws of motion",
	"What were Newton's key discoveries in optics?",
	"How did Newton develop the theory of universal gravitation?",
	"What is the Principia Mathematica about?",
	"How did Newton's work influence modern science?",
}
