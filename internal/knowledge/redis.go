package knowledge

import (
	"context"
	"sort"
	"strings"
	"unicode"

	"github.com/redis/go-redis/v9"

	"github.com/waffles-copilot/server/internal/copilot/model"
	errx "github.com/waffles-copilot/server/internal/core/error"
	logx "github.com/waffles-copilot/server/pkg/logger"
)

// RedisDocumentStore retrieves context by keyword overlap over documents
// kept in a Redis list. It stands in for a heavier graph/vector retrieval
// backend behind the same contract.
type RedisDocumentStore struct {
	rdb  redis.Cmdable
	key  string
	topK int
}

func NewRedisDocumentStore(rdb redis.Cmdable, cfg model.KnowledgeConfig) *RedisDocumentStore {
	topK := cfg.TopK
	if topK < 1 {
		topK = 1
	}
	return &RedisDocumentStore{rdb: rdb, key: cfg.DocumentsKey, topK: topK}
}

// AddDocument appends a document to the store.
func (s *RedisDocumentStore) AddDocument(ctx context.Context, text string) error {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	if err := s.rdb.RPush(ctx, s.key, text).Err(); err != nil {
		logx.Error().Err(err).Str("key", s.key).Msg("failed to store knowledge document")
		return errx.WrapRedis(err)
	}
	return nil
}

// GetContext scores every stored document against the query and returns the
// top matches joined into one context block. No matches or a store failure
// degrade to NoContextFound.
func (s *RedisDocumentStore) GetContext(ctx context.Context, query string) (string, error) {
	docs, err := s.rdb.LRange(ctx, s.key, 0, -1).Result()
	if err != nil && err != redis.Nil {
		logx.Error().Err(err).Str("key", s.key).Msg("failed to load knowledge documents")
		return NoContextFound, nil
	}

	terms := tokenize(query)
	if len(terms) == 0 || len(docs) == 0 {
		return NoContextFound, nil
	}

	type scored struct {
		text  string
		score int
	}
	matches := make([]scored, 0, len(docs))
	for _, doc := range docs {
		if score := overlapScore(terms, doc); score > 0 {
			matches = append(matches, scored{text: doc, score: score})
		}
	}
	if len(matches) == 0 {
		return NoContextFound, nil
	}

	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].score > matches[j].score
	})
	if len(matches) > s.topK {
		matches = matches[:s.topK]
	}

	var b strings.Builder
	for i, m := range matches {
		if i > 0 {
			b.WriteString("\n#Document ")
		}
		b.WriteString(m.text)
	}
	return b.String(), nil
}

// tokenize lowercases and splits on non-alphanumeric runes, dropping terms
// too short to be meaningful.
func tokenize(s string) []string {
	fields := strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	terms := fields[:0]
	for _, f := range fields {
		if len(f) >= 3 {
			terms = append(terms, f)
		}
	}
	return terms
}

// overlapScore counts how many query terms occur in the document.
func overlapScore(terms []string, doc string) int {
	lowered := strings.ToLower(doc)
	score := 0
	for _, term := range terms {
		if strings.Contains(lowered, term) {
			score++
		}
	}
	return score
}

var _ ContextProvider = (*RedisDocumentStore)(nil)
