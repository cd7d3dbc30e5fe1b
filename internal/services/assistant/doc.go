// Package assistant hosts the V-Mitra business partner.
//
// Subpackages:
//   - prompt: persona and summary prompts
//   - model: provider-neutral generation types and error classes
//   - gemini: the google.golang.org/genai adapter
//   - summary: the dashboard one-liner with quota backoff
//   - session: text turns that call ledger tools and persist the chat
//   - api/httpapi: JSON routes and the live websocket
package assistant
