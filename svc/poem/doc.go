// Package poem generates poems through the OpenAI chat-completions API and
// manages the resulting library: pagination, filters, owner-checked delete,
// and usage aggregation. Generation is credit-metered for free accounts;
// pro accounts carry the unlimited sentinel and are never decremented.
package poem
