package prompt

import (
	"fmt"
	"strings"
)

// followUpSystem instructs the model to fold tool results into a final
// answer instead of requesting more tools.
const followUpSystem = `You are a helpful voice assistant. The transcript below ends with tool results gathered for the user's last message.

Write a final natural-language answer that incorporates those results. If a tool reported an error, explain the problem briefly and suggest what to try instead. Do NOT emit any @tool(...) markers in this reply.`

// primarySystem builds the system prompt that teaches the model the
// @name({...}) invocation marker format.
func primarySystem(tools []ToolInfo) string {
	var sb strings.Builder
	sb.WriteString(`You are a helpful voice assistant with access to tools. When a question needs a tool, call it by writing a marker in this EXACT format inside your reply:
@tool_name({"param": "value"})

Available tools:
`)
	for _, t := range tools {
		fmt.Fprintf(&sb, "- @%s: %s\n", t.Name, t.Description)
	}
	sb.WriteString(`
Examples:
User: What's the weather in Paris?
Assistant: I'll check the weather for you. @weather({"location": "Paris"})

User: What's 10 + 15?
Assistant: I'll calculate that for you. @calculator({"expression": "10 + 15"})

Use a tool whenever it would give a more accurate answer than guessing. Otherwise just answer directly.`)
	return sb.String()
}
