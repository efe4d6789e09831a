package models

// RetrievalMetrics describes how close the retrieved passages are to the question.
type RetrievalMetrics struct {
	AvgSimilarity float64 `json:"avg_retrieval_similarity"`
	MaxSimilarity float64 `json:"max_retrieval_similarity"`
	NumDocs       int     `json:"num_retrieved_docs"`
}

// AnswerMetrics describes how well the answer is supported and how relevant it is.
type AnswerMetrics struct {
	GroundingScore  float64 `json:"grounding_score"`
	AnswerRelevance float64 `json:"answer_relevance"`
	// GroundingFallback is set when the judge failed and GroundingScore holds the neutral default.
	GroundingFallback bool `json:"grounding_fallback"`
}

// Evaluation holds both evaluation stages of a query.
type Evaluation struct {
	Retrieval *RetrievalMetrics `json:"retrieval_metrics"`
	Answer    *AnswerMetrics    `json:"answer_metrics"`
}

// AnswerRecord is the result of answering one question.
type AnswerRecord struct {
	Question   string          `json:"question"`
	Answer     string          `json:"answer"`
	Sources    []string        `json:"sources"`
	NumDocs    int             `json:"num_docs_used"`
	Evaluation *Evaluation     `json:"evaluation,omitempty"`
	Passages   []ScoredPassage `json:"passages,omitempty"`
	ElapsedMS  int64           `json:"elapsed_ms"`
}
