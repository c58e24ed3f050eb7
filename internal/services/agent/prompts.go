package agent

import (
	"fmt"
	"strings"

	"github.com/finsight-ai/finsight/internal/interfaces"
)

// agentSystemPromptBase defines the reasoning protocol. Tool descriptions
// and conversation history are appended at runtime.
const agentSystemPromptBase = `You are a financial research assistant. You answer questions about companies, earnings calls, and SEC filings using the tools available to you.

You work in steps. On each step, respond in exactly one of these two formats:

1. To use a tool:
Thought: <your reasoning about what to do next>
Action: tool_name(input)

2. To give your final answer:
Thought: <your reasoning>
Final Answer: <your complete answer to the user>

Rules:
- Use one Action per step. After each Action you will receive an Observation with the result.
- Base your Final Answer only on tool observations, never on outside knowledge.
- If a tool returns an error, adjust your input or try a different tool.
- If the tools cannot answer the question, say so in your Final Answer.`

// buildSystemPrompt assembles the protocol, the tool list, and a bounded
// window of prior conversation.
func buildSystemPrompt(toolsSection string, history []interfaces.Message, historyWindow int) string {
	var b strings.Builder
	b.WriteString(agentSystemPromptBase)
	b.WriteString("\n\nAvailable tools:\n")
	b.WriteString(toolsSection)

	if len(history) > 0 && historyWindow > 0 {
		start := len(history) - historyWindow
		if start < 0 {
			start = 0
		}
		b.WriteString("\n\nPrior conversation (most recent messages):\n")
		for _, msg := range history[start:] {
			fmt.Fprintf(&b, "%s: %s\n", msg.Role, msg.Content)
		}
	}

	return b.String()
}

// conversationSystemPrompt backs the plain conversation tool
const conversationSystemPrompt = `You are a helpful financial research assistant. Respond conversationally and concisely. If the user asks about specific company data you do not have, suggest they ask about a company's earnings calls or filings.`
