package mcp

// ToolDefinitions returns the MCP tool definitions for the finance agent.
func ToolDefinitions() []ToolDefinition {
	return []ToolDefinition{
		{
			Name: "finance_ask",
			Description: "Ask a follow-up question about the business files uploaded to the finance agent. " +
				"The agent can analyze individual files, calculate financial metrics and generate charts. " +
				"Requires an upload or example session to exist.",
			InputSchema: InputSchema{
				Type: "object",
				Properties: map[string]Property{
					"question":  {Type: "string", Description: "The question to ask about the uploaded files"},
					"sessionId": {Type: "string", Description: "Session to ask in (defaults to the current session)"},
				},
				Required: []string{"question"},
			},
		},
		{
			Name: "finance_example",
			Description: "Load the cached example analysis and start a new session from it. " +
				"Returns the cached analysis, directory tree and objective.",
			InputSchema: InputSchema{
				Type: "object",
			},
		},
		{
			Name:        "finance_list_charts",
			Description: "List the chart images generated by the finance agent so far.",
			InputSchema: InputSchema{
				Type: "object",
			},
		},
	}
}
