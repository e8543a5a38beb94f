package nodes

import (
	"context"
	"fmt"
	"strings"

	"github.com/policypal/palgraph/internal/richtext"
	"github.com/policypal/palgraph/pkg/domain"
	"github.com/policypal/palgraph/pkg/graph"
	"github.com/policypal/palgraph/pkg/ports"
)

// Retrieval tuning.
const (
	retrievalK          = 15
	similarityThreshold = 0.5
	maxChunksPerDoc     = 5
	webResultLimit      = 5
	webQueryMaxLen      = 200
	fallbackWebQuery    = "compliance regulatory requirements"
)

// Average-similarity floors for the retrieval confidence tiers.
const (
	highSimilarity   = 0.7
	mediumSimilarity = 0.5
)

const ragPromptFormat = `You are a compliance document analyst for PolicyPal. Work from ONLY the provided context.

CONTEXT:
%s

TASK: %s

RULES:
- Use ONLY the context above. Do not use prior knowledge or assumptions.
- Place [N] citation markers immediately after every factual claim (e.g. "The minimum ratio is 8%% [1].").
- For claims supported by multiple sources, write markers together with no space: [1][2].
- If the context does not contain what you need, state that explicitly. Do not guess.
- In each citation, copy the exact verbatim text from the source into the quote field.
- Set doc_id to the DocID value shown in the context header. Leave doc_id empty for web sources.
- Set source_type to "document" for uploaded docs, "web" for web results.

FORMAT: Return JSON {"response": "...", "citations": [{"id": N, "source_type": "...", "doc_id": "...", "title": "...", "page": N, "url": "...", "quote": "..."}]} where each citation id matches its [N] marker.`

const generalPromptFormat = `You are a compliance document analyst for PolicyPal.

No documents are attached to this conversation.

TASK: %s

RULES:
- Clearly state that this answer is based on general knowledge, not on uploaded documents.
- Be accurate and concise. Do not fabricate specific regulatory citations or clause numbers.
- Return an empty citations list.

FORMAT: Return JSON {"response": "...", "citations": []}.`

const notFoundPromptFormat = `You are a compliance document analyst for PolicyPal.

DOCUMENTS SEARCHED: %s

TASK: Inform the user that no relevant passages were found in their document(s) for this request.

RULES:
- Do NOT answer from general knowledge.
- Tell the user the specific content was not found in their attached document(s).
- Suggest they rephrase or verify the content exists in their document.
- Return an empty citations list.

FORMAT: Return JSON {"response": "...", "citations": []}.`

// Per-action TASK lines for the generation prompts.
var actionTasks = map[domain.Action]string{
	domain.ActionSummarize: "Summarize the document content in the context: purpose, scope, key obligations, and notable thresholds or deadlines.",
	domain.ActionInquire:   "Answer the user's specific compliance question concisely and accurately.",
	domain.ActionCompare:   "Compare the documents represented in the context: state where they agree, where they differ, and any gaps relevant to the user's request.",
	domain.ActionAudit:     "Audit the user's text against the regulation passages in the context: note what complies, what violates, and which obligations are missing.",
}

// Query-rewrite prompts per action. Audit extracts themes from the user's
// own text, so it never names the documents.
var rewritePrompts = map[domain.Action]string{
	domain.ActionInquire: `You are a search query optimizer for a compliance document AI.

DOCUMENTS: %s

TASK: Rewrite the user's question as a semantic search query (15-25 words) that will retrieve the most relevant passages from the document(s). Include the document subject matter and the user's specific question topic.

RULES:
- Preserve the core intent of the original question.
- Add document context to improve semantic similarity.

Respond with JSON only: {"optimized_query": "..."}`,
	domain.ActionCompare: `You are a search query optimizer for a compliance document AI.

DOCUMENTS: %s

TASK: Generate a semantic search query (15-25 words) to find content about the specific topic the user wants to compare across these documents.

RULES:
- Include both the comparison topic and the document subject matter.

Respond with JSON only: {"optimized_query": "..."}`,
	domain.ActionAudit: `You are a search query optimizer for a compliance document AI.

TASK: From the user's audit text, extract the 3 most important compliance themes and form them into a single semantic search query (15-25 words) suitable for finding matching regulatory clauses.

RULES:
- Focus on compliance obligations, requirements, and risk areas.

Respond with JSON only: {"optimized_query": "..."}`,
}

const defaultRewritePrompt = `You are a search query optimizer for a compliance document AI.

DOCUMENTS: %s

TASK: Rephrase the user's message as a semantic search query (15-25 words) optimized for finding relevant content in the document(s).

Respond with JSON only: {"optimized_query": "..."}`

type citationOut struct {
	ID         int    `json:"id"`
	SourceType string `json:"source_type"`
	DocID      string `json:"doc_id"`
	Title      string `json:"title"`
	Page       int    `json:"page"`
	URL        string `json:"url"`
	Quote      string `json:"quote"`
}

type actionResult struct {
	Response  string        `json:"response"`
	Citations []citationOut `json:"citations"`
}

type rewriteResult struct {
	OptimizedQuery string `json:"optimized_query"`
}

// actionExecutor is the shared retrieval-and-generate stage behind all four
// actions. It rewrites the query, retrieves scored passages (plus optional
// web results), picks a generation mode, and drafts the grounded answer.
type actionExecutor struct {
	name   string
	action domain.Action
	task   string
	deps   Deps
}

func NewSummarize(deps Deps) graph.Node {
	return &actionExecutor{name: graph.NodeSummarize, action: domain.ActionSummarize, task: ports.TaskSummarize, deps: deps}
}

func NewInquire(deps Deps) graph.Node {
	return &actionExecutor{name: graph.NodeInquire, action: domain.ActionInquire, task: ports.TaskInquire, deps: deps}
}

func NewCompare(deps Deps) graph.Node {
	return &actionExecutor{name: graph.NodeCompare, action: domain.ActionCompare, task: ports.TaskCompare, deps: deps}
}

func NewAudit(deps Deps) graph.Node {
	return &actionExecutor{name: graph.NodeAudit, action: domain.ActionAudit, task: ports.TaskAudit, deps: deps}
}

func (n *actionExecutor) Name() string { return n.name }

func (n *actionExecutor) Run(ctx context.Context, state *domain.State) (graph.Outcome, error) {
	log := n.deps.logger()
	last, _ := state.LastUserMessage()

	query := state.CleanQuery
	if query == "" {
		query = strings.TrimSpace(richtext.StripTags(last.Content))
		if query == "" {
			query = last.Content
		}
	}

	retrievalQuery := n.rewriteQuery(ctx, state, query)

	chunks, avgSim := n.retrieve(ctx, state, retrievalQuery)
	tier := confidenceTier(avgSim, len(chunks))
	log.Info("retrieved passages",
		"thread_id", state.ThreadID, "action", n.action,
		"chunks", len(chunks), "avg_similarity", avgSim, "confidence", tier)

	var webResults []ports.WebResult
	if state.EnableWebSearch && n.deps.Web != nil {
		webQuery := retrievalQuery
		if webQuery == "" {
			webQuery = fallbackWebQuery
		} else if len(webQuery) > webQueryMaxLen {
			webQuery = webQuery[:webQueryMaxLen]
		}
		state.WebSearchQuery = webQuery
		webResults, _ = n.deps.Web.Search(ctx, webQuery, webResultLimit)
	}

	var system string
	switch {
	case len(chunks) > 0 || len(webResults) > 0:
		system = fmt.Sprintf(ragPromptFormat, contextBlock(chunks, webResults), actionTasks[n.action])
	case len(state.ResolvedDocIDs) > 0:
		// Documents resolved but nothing matched. Answering from general
		// knowledge here would be misleading for compliance work.
		system = fmt.Sprintf(notFoundPromptFormat, docTitleList(state))
		tier = domain.ConfidenceLow
	default:
		system = fmt.Sprintf(generalPromptFormat, actionTasks[n.action])
		tier = domain.ConfidenceLow
	}

	var res actionResult
	usage, err := n.deps.Classifier.Classify(ctx, n.task, []ports.ChatMessage{
		{Role: "system", Content: system},
		{Role: "user", Content: last.Content},
	}, &res)
	if err != nil {
		return graph.Outcome{}, fmt.Errorf("%s generation: %w", n.action, err)
	}

	state.Response = res.Response
	state.Citations = toCitations(res.Citations)
	state.RetrievalConfidence = tier
	state.TokensUsed = usage.Tokens
	state.CostUSD = usage.CostUSD
	state.AppendMessage(domain.NewMessage(domain.RoleAssistant, res.Response))
	return graph.Continue(), nil
}

// rewriteQuery turns the cleaned user text into an embedding-friendly search
// query. Skipped without document context; any failure falls back to the
// input query rather than aborting the turn.
func (n *actionExecutor) rewriteQuery(ctx context.Context, state *domain.State, query string) string {
	if len(state.ResolvedDocTitles) == 0 {
		return query
	}

	prompt, ok := rewritePrompts[n.action]
	if !ok {
		prompt = defaultRewritePrompt
	}
	if strings.Contains(prompt, "%s") {
		prompt = fmt.Sprintf(prompt, docTitleList(state))
	}

	user := query
	if user == "" {
		user = fmt.Sprintf("(no explicit question: generate a retrieval query for %s on these documents)", n.action)
	}

	var res rewriteResult
	if _, err := n.deps.Classifier.Classify(ctx, ports.TaskQueryRewrite, []ports.ChatMessage{
		{Role: "system", Content: prompt},
		{Role: "user", Content: user},
	}, &res); err != nil {
		n.deps.logger().Warn("query rewrite failed, using original query",
			"thread_id", state.ThreadID, "action", n.action, "err", err)
		return query
	}
	if out := strings.TrimSpace(res.OptimizedQuery); out != "" {
		return out
	}
	return query
}

// retrieve fetches scored chunks, drops weak matches, caps the share any one
// document can take, and reports the average similarity of what survives.
func (n *actionExecutor) retrieve(ctx context.Context, state *domain.State, query string) ([]ports.Chunk, float64) {
	raw, err := n.deps.Retriever.SearchChunks(ctx, state.UserID, query, state.ResolvedDocIDs, retrievalK)
	if err != nil {
		n.deps.logger().Warn("chunk retrieval failed",
			"thread_id", state.ThreadID, "err", err)
		return nil, 0
	}

	perDoc := make(map[string]int)
	var kept []ports.Chunk
	var sum float64
	for _, c := range raw {
		if c.Similarity < similarityThreshold {
			continue
		}
		if perDoc[c.DocID] >= maxChunksPerDoc {
			continue
		}
		perDoc[c.DocID]++
		kept = append(kept, c)
		sum += c.Similarity
	}
	if len(kept) == 0 {
		return nil, 0
	}
	return kept, sum / float64(len(kept))
}

func confidenceTier(avgSim float64, count int) domain.Confidence {
	switch {
	case count == 0:
		return domain.ConfidenceLow
	case avgSim >= highSimilarity:
		return domain.ConfidenceHigh
	case avgSim >= mediumSimilarity:
		return domain.ConfidenceMedium
	}
	return domain.ConfidenceLow
}

// contextBlock numbers every source so citation markers map back to chunks
// and URLs.
func contextBlock(chunks []ports.Chunk, web []ports.WebResult) string {
	var parts []string
	n := 1
	for _, c := range chunks {
		title := c.DocTitle
		if title == "" {
			title = "Unknown"
		}
		page := "N/A"
		if c.Page > 0 {
			page = fmt.Sprintf("%d", c.Page)
		}
		parts = append(parts, fmt.Sprintf("[%d] Source: %s | Page: %s | DocID: %s\n%q", n, title, page, c.DocID, c.Content))
		n++
	}
	for _, r := range web {
		title := r.Title
		if title == "" {
			title = "Web Source"
		}
		parts = append(parts, fmt.Sprintf("[%d] Source: %s (web) | URL: %s\n%q", n, title, r.URL, r.Content))
		n++
	}
	return strings.Join(parts, "\n\n")
}

func docTitleList(state *domain.State) string {
	if len(state.ResolvedDocTitles) == 0 {
		return "the selected document(s)"
	}
	titles := make([]string, 0, len(state.ResolvedDocTitles))
	for _, id := range state.ResolvedDocIDs {
		if t, ok := state.ResolvedDocTitles[id]; ok {
			titles = append(titles, t)
		}
	}
	if len(titles) == 0 {
		for _, t := range state.ResolvedDocTitles {
			titles = append(titles, t)
		}
	}
	return strings.Join(titles, ", ")
}

func toCitations(in []citationOut) []domain.Citation {
	if len(in) == 0 {
		return nil
	}
	out := make([]domain.Citation, len(in))
	for i, c := range in {
		out[i] = domain.Citation{
			ID:         c.ID,
			SourceType: c.SourceType,
			DocID:      c.DocID,
			Title:      c.Title,
			Page:       c.Page,
			URL:        c.URL,
			Quote:      c.Quote,
		}
	}
	return out
}
