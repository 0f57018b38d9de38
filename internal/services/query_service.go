package services

import (
	"context"
	"errors"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"webresearch/internal/errs"
	"webresearch/internal/llm"
	"webresearch/internal/models"
	"webresearch/internal/search"
)

var (
	queriesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "webresearch_queries_total",
		Help: "Total queries resolved",
	})
	escalationsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "webresearch_escalations_total",
		Help: "Queries that triggered an extended search",
	})
	sentinelTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "webresearch_sentinel_answers_total",
		Help: "Queries short-circuited with the insufficient-context sentinel",
	})
	droppedSourcesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "webresearch_dropped_sources_total",
		Help: "Search candidates dropped because their fetch failed",
	})
)

// SearchProvider returns candidate pages for a query, in provider order.
type SearchProvider interface {
	Search(ctx context.Context, query string, count int) ([]search.Result, error)
}

// PageFetcher retrieves the extracted text content of one URL.
type PageFetcher interface {
	Fetch(ctx context.Context, url string) (string, error)
}

// Synthesizer produces an answer from a combined context and a question.
type Synthesizer interface {
	Answer(ctx context.Context, contextText, question string) (string, error)
}

// ContextStore persists conversations and their cached web context.
type ContextStore interface {
	GetByID(ctx context.Context, chatID string) (*models.Chat, error)
	LoadContext(ctx context.Context, chat *models.Chat) []models.WebSource
	SaveContext(ctx context.Context, chatID string, sources []models.WebSource) error
	AppendContextSource(ctx context.Context, chatID string, source models.WebSource) error
	AppendMessages(ctx context.Context, chatID string, messages ...models.Message) error
}

// QueryOptions tunes the orchestration.
type QueryOptions struct {
	SearchBreadth   int // candidates fetched for a fresh search
	MinContextChars int // below this, the sentinel answer is returned without inference
}

// QueryService resolves one user query into one answer: it decides whether to
// reuse cached web context or fetch fresh sources, combines conversation
// history with the sources, and performs a single bounded extended-search
// retry when the first answer flags missing information.
type QueryService struct {
	store   ContextStore
	search  SearchProvider
	fetcher PageFetcher
	synth   Synthesizer
	matcher *PhraseMatcher
	opts    QueryOptions
}

// NewQueryService creates the orchestrator with its injected collaborators.
func NewQueryService(store ContextStore, provider SearchProvider, fetcher PageFetcher, synth Synthesizer, matcher *PhraseMatcher, opts QueryOptions) *QueryService {
	if opts.SearchBreadth <= 0 {
		opts.SearchBreadth = 5
	}
	if opts.MinContextChars <= 0 {
		opts.MinContextChars = 100
	}
	return &QueryService{
		store:   store,
		search:  provider,
		fetcher: fetcher,
		synth:   synth,
		matcher: matcher,
		opts:    opts,
	}
}

// Resolve answers query, optionally against the conversation chatID. An empty
// chatID resolves statelessly: nothing is persisted and no extended search is
// possible. Failures that prevent producing any answer surface as a single
// generic error; the detail stays in logs.
func (s *QueryService) Resolve(ctx context.Context, query, chatID string) (*models.QueryResult, error) {
	query = strings.TrimSpace(query)
	if len(query) < 2 {
		return nil, errs.Validation("query must be at least 2 characters long")
	}

	queriesTotal.Inc()

	// Load conversation state. A missing chat or a failed read degrades to
	// empty history and empty context.
	var history string
	var sources []models.WebSource
	if chatID != "" {
		chat, err := s.store.GetByID(ctx, chatID)
		switch {
		case errors.Is(err, errs.ErrNotFound):
			// proceed with empty state
		case err != nil:
			log.Printf("⚠️ [QUERY] Failed to load chat %s, proceeding without history: %v", chatID, err)
		default:
			history = formatHistory(chat.Messages)
			sources = s.store.LoadContext(ctx, chat)
		}
	}

	// Decide context source: reuse the cached sources verbatim, or search
	// and fetch fresh ones.
	if len(sources) == 0 {
		sources = s.gatherSources(ctx, query)
		if chatID != "" && len(sources) > 0 {
			if err := s.store.SaveContext(ctx, chatID, sources); err != nil {
				log.Printf("⚠️ [QUERY] Failed to persist context for chat %s: %v", chatID, err)
			}
		}
	}

	combined := assembleContext(history, sources)

	// Cost guard: a near-empty context is not worth an inference call.
	if len(strings.TrimSpace(combined)) < s.opts.MinContextChars {
		sentinelTotal.Inc()
		answer := llm.SentinelAnswer
		s.persistTurns(ctx, chatID, query, answer)
		return &models.QueryResult{Answer: answer, ExtendedSearch: false}, nil
	}

	answer, err := s.synth.Answer(ctx, combined, query)
	if err != nil {
		log.Printf("❌ [QUERY] First synthesis failed: %v", err)
		return nil, errs.ErrOrchestration
	}

	extended := false
	if s.matcher.LooksIncomplete(answer) && chatID != "" {
		answer, extended, err = s.escalate(ctx, query, chatID, combined, answer)
		if err != nil {
			return nil, err
		}
	}

	s.persistTurns(ctx, chatID, query, answer)

	return &models.QueryResult{Answer: answer, ExtendedSearch: extended}, nil
}

// gatherSources searches for candidates and fetches them concurrently. Each
// fetch failure drops that one candidate; losing all of them yields an empty
// slice, not an error. The returned order is the provider's candidate order,
// not completion order.
func (s *QueryService) gatherSources(ctx context.Context, query string) []models.WebSource {
	candidates, err := s.search.Search(ctx, query, s.opts.SearchBreadth)
	if err != nil {
		log.Printf("⚠️ [QUERY] Search failed: %v", err)
		return nil
	}
	if len(candidates) == 0 {
		return nil
	}

	fetched := make([]*models.WebSource, len(candidates))
	var wg sync.WaitGroup
	for i, candidate := range candidates {
		wg.Add(1)
		go func(i int, url string) {
			defer wg.Done()
			content, err := s.fetcher.Fetch(ctx, url)
			if err != nil {
				droppedSourcesTotal.Inc()
				log.Printf("⚠️ [QUERY] Dropping source %s: %v", url, err)
				return
			}
			fetched[i] = &models.WebSource{URL: url, Content: content}
		}(i, candidate.URL)
	}
	wg.Wait()

	sources := make([]models.WebSource, 0, len(candidates))
	for _, src := range fetched {
		if src != nil {
			sources = append(sources, *src)
		}
	}
	return sources
}

// escalate performs the single bounded extended-search retry: one more
// candidate, fetched and appended to the persisted context, then one
// re-synthesis whose answer is final regardless of what it says.
func (s *QueryService) escalate(ctx context.Context, query, chatID, combined, firstAnswer string) (string, bool, error) {
	candidates, err := s.search.Search(ctx, query, 1)
	if err != nil || len(candidates) == 0 {
		if err != nil {
			log.Printf("⚠️ [QUERY] Extended search failed, keeping first answer: %v", err)
		}
		return firstAnswer, false, nil
	}

	// A fetch failure here is fatal: unlike the initial batch there is no
	// other source to fall back on for the retry.
	content, err := s.fetcher.Fetch(ctx, candidates[0].URL)
	if err != nil {
		log.Printf("❌ [QUERY] Extended fetch of %s failed: %v", candidates[0].URL, err)
		return "", false, errs.ErrOrchestration
	}

	source := models.WebSource{URL: candidates[0].URL, Content: content}
	if err := s.store.AppendContextSource(ctx, chatID, source); err != nil {
		log.Printf("⚠️ [QUERY] Failed to persist extended source for chat %s: %v", chatID, err)
	}

	extendedContext := combined + "\n\n--- Additional Web Source: " + source.URL + " ---\n" + source.Content

	answer, err := s.synth.Answer(ctx, extendedContext, query)
	if err != nil {
		log.Printf("❌ [QUERY] Second synthesis failed: %v", err)
		return "", false, errs.ErrOrchestration
	}

	escalationsTotal.Inc()
	log.Printf("🔎 [QUERY] Extended search performed for chat %s", chatID)
	return answer, true, nil
}

// persistTurns appends the query/answer pair to the chat. Write failures are
// logged only: the answer was already computed and is still returned.
func (s *QueryService) persistTurns(ctx context.Context, chatID, query, answer string) {
	if chatID == "" {
		return
	}

	now := time.Now()
	err := s.store.AppendMessages(ctx, chatID,
		models.Message{Role: models.RoleUser, Content: query, Timestamp: now},
		models.Message{Role: models.RoleAssistant, Content: answer, Timestamp: now},
	)
	if err != nil {
		log.Printf("⚠️ [QUERY] Failed to persist turns for chat %s: %v", chatID, err)
	}
}

// formatHistory renders prior turns chronologically as "Role: text" pairs
// separated by blank lines.
func formatHistory(messages []models.Message) string {
	if len(messages) == 0 {
		return ""
	}

	parts := make([]string, 0, len(messages))
	for _, msg := range messages {
		role := "Assistant"
		if msg.Role == models.RoleUser {
			role = "User"
		}
		parts = append(parts, role+": "+msg.Content)
	}
	return strings.Join(parts, "\n\n")
}

// assembleContext concatenates the labeled history block and one labeled
// block per web source.
func assembleContext(history string, sources []models.WebSource) string {
	blocks := make([]string, 0, len(sources)+1)
	if history != "" {
		blocks = append(blocks, "--- Conversation Context ---\n"+history)
	}
	for _, src := range sources {
		blocks = append(blocks, "--- Web Source: "+src.URL+" ---\n"+src.Content)
	}
	return strings.Join(blocks, "\n\n")
}
