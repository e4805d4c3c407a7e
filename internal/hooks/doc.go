// Package hooks implements the editor lifecycle hook handlers (spec.md
// §4.12): UserPromptSubmit scans a submitted prompt for memory-capture
// signals and search intent; PreCompact analyzes a conversation excerpt
// about to be compacted and auto-captures the memories it finds.
//
// Every handler accepts a JSON input string and returns a JSON string
// shaped by the editor's hook protocol: {"continue": true, "metadata": {...},
// "context": "..."}. Handlers never block capture on network calls unless
// an LLM provider has been explicitly wired in.
package hooks
