package llm

import "strings"

// ThematicAnalysisPrompt is the system prompt for script analysis. The model
// must answer with a single JSON object so the result can be parsed.
const ThematicAnalysisPrompt = `You are a dramaturg specialized in the thematic analysis of historical theater scripts.

Your task is to:
1. Read the provided script carefully
2. Identify its principal recurring themes and motifs
3. Summarize the character network: the main characters and how densely they are connected

Respond with exactly one JSON object and nothing else, in this shape:
{"themes": ["Theme", "..."], "character_network": "one line summary"}

Guidelines:
- Use between 1 and 5 themes, each one or two capitalized words (e.g. "Love", "Power", "Betrayal")
- Order themes from most to least prominent
- Keep the character network summary under 120 characters
- Do not add information not present in the script`

// FormatAnalysisRequest creates a user prompt for thematic analysis
func FormatAnalysisRequest(era, script string) string {
	var b strings.Builder
	b.WriteString("Please analyze the following theater script")
	if era != "" {
		b.WriteString(" from the " + era + " era")
	}
	b.WriteString(":\n\n")
	b.WriteString(script)
	return b.String()
}
