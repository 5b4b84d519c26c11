// Package dot extracts Graphviz DOT descriptions from untrusted generator output.
//
// Language models rarely answer with bare DOT. Responses arrive wrapped in
// prose ("Sure! Here's the diagram:"), markdown fences, or with stray
// characters the layout engine chokes on. [Sanitize] is a deliberately
// shallow pre-filter, not a parser:
//
//  1. Locate the first "digraph"; failing that, the first "graph".
//  2. Drop everything before the keyword.
//  3. Replace every character outside a fixed allow-list with a single space.
//
// The result is a [Description]. Whether it is actually valid DOT is decided
// later by the rendering engine; the sanitizer only guarantees the text starts
// at a graph keyword and contains nothing but allow-listed characters.
//
// # Allow-list
//
// ASCII letters and digits, Unicode whitespace, and the punctuation
//
//	- > ; { } " [ ] = # + * / ^ % ( )
//
// Everything else (backticks, commas, colons, periods, underscores,
// backslashes, non-ASCII letters) becomes a space. Edge operators "->" and
// "--", attribute lists and quoted labels survive intact.
package dot
