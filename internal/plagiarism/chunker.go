package plagiarism

import (
	"fmt"
	"strings"
	"sync"

	"github.com/RishiKendai/veritas/internal/models"
	"github.com/neurosnap/sentences"
	"github.com/neurosnap/sentences/english"
)

// DefaultChunkSentences is the number of sentences grouped into one chunk
const DefaultChunkSentences = 3

var (
	tokenizerOnce sync.Once
	tokenizer     sentences.SentenceTokenizer
	tokenizerErr  error
)

func sentenceTokenizer() (sentences.SentenceTokenizer, error) {
	tokenizerOnce.Do(func() {
		tokenizer, tokenizerErr = english.NewSentenceTokenizer(nil)
	})
	return tokenizer, tokenizerErr
}

// SplitSentences splits text on sentence boundaries using the Punkt English
// model, so abbreviations, decimals and quoted punctuation do not end a sentence.
func SplitSentences(text string) ([]string, error) {
	if strings.TrimSpace(text) == "" {
		return nil, nil
	}

	tok, err := sentenceTokenizer()
	if err != nil {
		return nil, fmt.Errorf("failed to load sentence tokenizer: %w", err)
	}

	result := make([]string, 0)
	for _, s := range tok.Tokenize(text) {
		sentence := strings.Join(strings.Fields(s.Text), " ")
		if sentence != "" {
			result = append(result, sentence)
		}
	}

	return result, nil
}

// Chunk groups consecutive sentences of text into chunks of groupSize
// sentences. maxChunks > 0 caps the number of chunks by growing the group
// size, so the whole text stays covered. Text without any detectable
// sentence becomes a single chunk.
func Chunk(text string, groupSize, maxChunks int) ([]models.Chunk, error) {
	if groupSize <= 0 {
		groupSize = DefaultChunkSentences
	}

	sents, err := SplitSentences(text)
	if err != nil {
		return nil, err
	}

	if len(sents) == 0 {
		return []models.Chunk{{Index: 0, Text: text}}, nil
	}

	if maxChunks > 0 && (len(sents)+groupSize-1)/groupSize > maxChunks {
		groupSize = (len(sents) + maxChunks - 1) / maxChunks
	}

	chunks := make([]models.Chunk, 0, (len(sents)+groupSize-1)/groupSize)
	for i := 0; i < len(sents); i += groupSize {
		end := min(i+groupSize, len(sents))
		chunks = append(chunks, models.Chunk{
			Index: len(chunks),
			Text:  strings.Join(sents[i:end], " "),
		})
	}

	return chunks, nil
}
