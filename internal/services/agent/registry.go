package agent

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/ternarybob/arbor"

	"github.com/finsight-ai/finsight/internal/common"
	"github.com/finsight-ai/finsight/internal/interfaces"
	"github.com/finsight-ai/finsight/internal/services/analysis"
	"github.com/finsight-ai/finsight/internal/services/resolver"
)

// conversationIDKey carries the conversation id through tool execution so
// the analysis engine can keep per-conversation pagination cursors.
type conversationIDKey struct{}

// WithConversationID attaches a conversation id to the context
func WithConversationID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, conversationIDKey{}, id)
}

func conversationIDFrom(ctx context.Context) string {
	if id, ok := ctx.Value(conversationIDKey{}).(string); ok {
		return id
	}
	return ""
}

// Tool is one named capability the reasoning loop can invoke
type Tool struct {
	Name        string
	Signature   string
	Description string
	Run         func(ctx context.Context, input string) (string, error)
}

// Registry holds the closed set of tools. Tools are registered at
// construction; nothing is added at runtime.
type Registry struct {
	tools  map[string]*Tool
	order  []string
	logger arbor.ILogger
}

// NewRegistry builds the registry with its three tools: entity lookup,
// transcript analysis, and plain conversation.
func NewRegistry(
	resolverSvc *resolver.Service,
	engine *analysis.Engine,
	documents interfaces.DocumentStorage,
	llm interfaces.LLMService,
	logger arbor.ILogger,
) *Registry {
	r := &Registry{
		tools:  make(map[string]*Tool),
		logger: logger,
	}

	r.register(&Tool{
		Name:        "entity_lookup",
		Signature:   "entity_lookup(identifier)",
		Description: "Resolve a company identifier (ticker symbol or internal id) to its canonical form and report how many documents exist for it.",
		Run: func(ctx context.Context, input string) (string, error) {
			return runEntityLookup(ctx, resolverSvc, documents, input)
		},
	})

	r.register(&Tool{
		Name:        "transcript_analysis",
		Signature:   "transcript_analysis(question)",
		Description: "Answer a question about one or more companies from their earnings call transcripts and filings. Mention ticker symbols in the question to scope it.",
		Run: func(ctx context.Context, input string) (string, error) {
			return runTranscriptAnalysis(ctx, engine, input)
		},
	})

	r.register(&Tool{
		Name:        "conversation",
		Signature:   "conversation(text)",
		Description: "Respond to greetings, small talk, or questions that need no document analysis.",
		Run: func(ctx context.Context, input string) (string, error) {
			return llm.Complete(ctx, input, conversationSystemPrompt)
		},
	})

	return r
}

func (r *Registry) register(tool *Tool) {
	r.tools[tool.Name] = tool
	r.order = append(r.order, tool.Name)
}

// Names returns the registered tool names in registration order
func (r *Registry) Names() []string {
	names := make([]string, len(r.order))
	copy(names, r.order)
	return names
}

// Execute dispatches a tool call and always returns an observation string.
// Unknown tools and tool failures become observations the model can react
// to; nothing propagates into the loop as an error.
func (r *Registry) Execute(ctx context.Context, name, input string) (observation string) {
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error().
				Str("tool", name).
				Msg(fmt.Sprintf("Tool panicked: %v", rec))
			observation = fmt.Sprintf("Error executing %s: internal tool failure", name)
		}
	}()

	tool, ok := r.tools[name]
	if !ok {
		return fmt.Sprintf("Unknown tool %q. Available tools: %s", name, strings.Join(r.order, ", "))
	}

	result, err := tool.Run(ctx, input)
	if err != nil {
		r.logger.Warn().
			Str("tool", name).
			Err(err).
			Msg("Tool returned error; feeding back as observation")
		return fmt.Sprintf("Error executing %s: %v", name, err)
	}
	return result
}

// FormatForPrompt renders the tool list for the system prompt
func (r *Registry) FormatForPrompt() string {
	var b strings.Builder
	for _, name := range r.order {
		tool := r.tools[name]
		fmt.Fprintf(&b, "- %s: %s\n", tool.Signature, tool.Description)
	}
	return b.String()
}

// runEntityLookup resolves one identifier and reports what is known
func runEntityLookup(ctx context.Context, resolverSvc *resolver.Service, documents interfaces.DocumentStorage, input string) (string, error) {
	id := strings.TrimSpace(strings.Trim(strings.TrimSpace(input), `"'`))
	if id == "" {
		return "", fmt.Errorf("entity_lookup requires an identifier")
	}

	table, err := resolverSvc.BuildAliasTable(ctx)
	if err != nil {
		return "", err
	}

	canonical := table.Normalize(id)
	kind := common.ClassifyIdentifier(canonical)

	docs, err := documents.GetDocumentsByEntity(canonical)
	if err != nil {
		return "", err
	}
	if len(docs) == 0 {
		if opaque := table.Denormalize(canonical); opaque != canonical {
			docs, err = documents.GetDocumentsByEntity(opaque)
			if err != nil {
				return "", err
			}
		}
	}

	kindLabel := "ticker"
	if kind == common.KindOpaque {
		kindLabel = "opaque identifier"
	}

	if len(docs) == 0 {
		return fmt.Sprintf("Identifier %q resolves to %q (%s). No documents found.", id, canonical, kindLabel), nil
	}

	periods := make([]string, 0, len(docs))
	for _, doc := range docs {
		periods = append(periods, doc.PeriodLabel())
	}
	sort.Strings(periods)

	return fmt.Sprintf("Identifier %q resolves to %q (%s). %d documents available covering: %s.",
		id, canonical, kindLabel, len(docs), strings.Join(periods, ", ")), nil
}

// runTranscriptAnalysis scopes the question by the tickers it mentions and
// hands it to the tiered analysis engine.
func runTranscriptAnalysis(ctx context.Context, engine *analysis.Engine, input string) (string, error) {
	query := strings.TrimSpace(input)
	if query == "" {
		return "", fmt.Errorf("transcript_analysis requires a question")
	}

	entityIDs := common.ExtractTickers(query)

	result, err := engine.Answer(ctx, analysis.AnswerRequest{
		Query:          query,
		EntityIDs:      entityIDs,
		ConversationID: conversationIDFrom(ctx),
	})
	if err != nil {
		return "", err
	}

	if result.InsufficientData {
		if len(entityIDs) == 0 {
			return "No company could be identified in the question. Include a ticker symbol (e.g. NVDA) to scope the analysis.", nil
		}
		return result.Answer, nil
	}
	return result.Answer, nil
}
