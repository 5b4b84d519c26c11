// Package llm provides the text-generation clients used to produce and repair
// DOT descriptions and to explain finished diagrams.
//
// Every provider implements [Generator], a single blocking call from prompt
// to raw text:
//
//	gen, err := llm.New(llm.Config{Provider: "groq"})
//	text, err := gen.Generate(ctx, "Draw the login flow as a DOT digraph")
//
// # Providers
//
// Four providers are built in. Three speak the OpenAI chat-completions
// protocol and differ only in base URL, default model, API key variable and
// extra headers; the fourth speaks the Anthropic messages protocol:
//
//   - openai: api.openai.com, OPENAI_API_KEY
//   - openrouter: openrouter.ai, OPENROUTER_API_KEY
//   - groq: api.groq.com, GROQ_API_KEY
//   - anthropic: api.anthropic.com, ANTHROPIC_API_KEY
//
// # Retries
//
// Network failures, 5xx responses and 429 rate limits are retried with
// exponential backoff through [httputil.Retry], honouring Retry-After.
// Other API errors are returned as [*APIError] without retrying. Generated
// text is returned verbatim; callers sanitize it.
//
// [httputil.Retry]: github.com/matzehuels/text2block/pkg/httputil.Retry
package llm
