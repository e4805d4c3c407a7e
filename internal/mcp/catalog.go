package mcp

// toolCatalog returns the full set of tools this server registers (spec.md
// §4.13: "Required tools include capture, recall, status, namespaces list,
// consolidate, reindex, and the prompt/template CRUD family"). Capture,
// recall, status and the always-useful prompt/discovery tools load eagerly;
// the rarer maintenance tools defer to tool_search so a fresh session's
// initial tool list stays small.
func toolCatalog() []*ToolMetadata {
	return []*ToolMetadata{
		{
			Name:        "subcog_capture",
			Description: "Capture a memory (a decision, pattern, learning, or other note) into a namespace for later recall.",
			Category:    CategoryCapture,
			Keywords:    []string{"remember", "store", "save", "note"},
		},
		{
			Name:        "subcog_recall",
			Description: "Search captured memories by text, vector similarity, or both (hybrid mode with reciprocal rank fusion).",
			Category:    CategoryRecall,
			Keywords:    []string{"search", "find", "query", "lookup"},
		},
		{
			Name:        "subcog_status",
			Description: "Summarize a domain's memory counts by namespace.",
			Category:    CategoryDiscovery,
			Keywords:    []string{"summary", "counts", "health"},
		},
		{
			Name:        "subcog_namespaces",
			Description: "List the closed set of memory namespaces and their default retention windows.",
			Category:    CategoryDiscovery,
			Keywords:    []string{"namespaces", "categories"},
		},
		{
			Name:         "subcog_delete",
			Description:  "Tombstone a memory by id, removing it from recall while preserving it for audit until garbage collection.",
			Category:     CategoryMaintenance,
			DeferLoading: true,
			Keywords:     []string{"remove", "tombstone", "forget"},
		},
		{
			Name:         "subcog_consolidate",
			Description:  "Group similar memories within a namespace and summarize each group into a single linked summary memory.",
			Category:     CategoryMaintenance,
			DeferLoading: true,
			Keywords:     []string{"summarize", "merge", "dedupe"},
		},
		{
			Name:         "subcog_reindex",
			Description:  "Rebuild the search index and vector store entirely from persisted memories, repairing any drift.",
			Category:     CategoryMaintenance,
			DeferLoading: true,
			Keywords:     []string{"rebuild", "repair"},
		},
		{
			Name:         "subcog_retention_gc",
			Description:  "Tombstone memories older than their namespace's retention cutoff.",
			Category:     CategoryMaintenance,
			DeferLoading: true,
			Keywords:     []string{"gc", "cleanup", "retention", "expire"},
		},
		{
			Name:         "subcog_expiration_gc",
			Description:  "Tombstone memories whose explicit TTL has expired.",
			Category:     CategoryMaintenance,
			DeferLoading: true,
			Keywords:     []string{"gc", "cleanup", "ttl", "expire"},
		},
		{
			Name:        "tool_search",
			Description: "Search the full tool catalog, including maintenance tools not loaded by default, by name/keyword/description or regex.",
			Category:    CategoryDiscovery,
			Keywords:    []string{"discover", "find tools"},
		},
		{
			Name:         "tool_list",
			Description:  "List every registered tool, optionally filtered by category.",
			Category:     CategoryDiscovery,
			DeferLoading: true,
			Keywords:     []string{"list tools", "catalog"},
		},
		{
			Name:        "prompt_save",
			Description: "Save (or update) a named prompt template for the resolved domain.",
			Category:    CategoryPrompt,
			Keywords:    []string{"template", "create"},
		},
		{
			Name:        "prompt_get",
			Description: "Fetch a named prompt template's raw body and variables.",
			Category:    CategoryPrompt,
			Keywords:    []string{"template", "fetch"},
		},
		{
			Name:        "prompt_list",
			Description: "List every prompt template saved for the resolved domain.",
			Category:    CategoryPrompt,
			Keywords:    []string{"templates"},
		},
		{
			Name:        "prompt_run",
			Description: "Render a named prompt template against supplied variables, returning the expanded text.",
			Category:    CategoryPrompt,
			Keywords:    []string{"render", "expand"},
		},
		{
			Name:         "prompt_delete",
			Description:  "Delete a named prompt template from the resolved domain.",
			Category:     CategoryPrompt,
			DeferLoading: true,
			Keywords:     []string{"remove"},
		},
	}
}
