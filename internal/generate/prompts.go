package generate

import "fmt"

const systemInstructions = `You are a technical writer producing structured instruction manuals for software tools.
You research the tool with web search and write accurate, practical, up-to-date content.
Output rules:
- respond with a single JSON object and NOTHING else: no prose, no Markdown, no code fences
- every "id" is kebab-case: lower-case letters, digits, single hyphens
- never embed URLs in content; reference sources only through "sourceIndices",
  integer positions into the citations you used, in the order you encountered them
- enum fields use EXACTLY the allowed values listed in the shape below`

const manualShape = `{
  "toolName": string,
  "overview": {
    "description": string,
    "primaryUseCases": [string, ...],
    "targetUsers": [string, ...],
    "pricing": string
  },
  "features": [
    {"id": kebab, "name": string, "description": string, "whatItsFor": string,
     "whenToUse": [string], "keywords": [string], "relatedFeatures": [string],
     "powerLevel": "basic"|"intermediate"|"advanced", "sourceIndices": [int]}
  ],
  "shortcuts": [
    {"id": kebab, "name": string, "keys": string, "description": string,
     "platforms": [string], "keywords": [string],
     "powerLevel": "basic"|"intermediate"|"advanced", "sourceIndices": [int]}
  ],
  "workflows": [
    {"id": kebab, "name": string, "description": string, "useCases": [string],
     "difficulty": "beginner"|"intermediate"|"advanced", "estimatedTime": string,
     "steps": [{"step": int, "action": string, "details": string, "featuresUsed": [string]}],
     "sourceIndices": [int]}
  ],
  "tips": [
    {"id": kebab, "title": string, "content": string,
     "category": "productivity"|"shortcuts"|"customization"|"collaboration"|"automation",
     "powerLevel": "basic"|"intermediate"|"advanced", "sourceIndices": [int]}
  ],
  "commonMistakes": [
    {"id": kebab, "title": string, "whyItHappens": string, "howToAvoid": string,
     "severity": "low"|"medium"|"high", "sourceIndices": [int]}
  ],
  "recentUpdates": [
    {"id": kebab, "title": string, "description": string, "date": string, "sourceIndices": [int]}
  ]
}`

// buildPrompt produces the user prompt for one generation run.
func buildPrompt(toolName string) string {
	return fmt.Sprintf(`Write a complete instruction manual for %q.

Target JSON shape (follow it exactly):
%s

Content requirements:
- at least 5 features, 3 shortcuts, 2 workflows, 3 tips, 2 common mistakes
- recentUpdates may be empty if the tool has no notable recent changes
- "keys" is a single string like "Ctrl+Shift+P" (one string even across platforms)
- workflow steps are numbered from 1 in order
- be specific to this tool; no generic filler`, toolName, manualShape)
}
