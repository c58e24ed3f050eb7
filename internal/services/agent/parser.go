package agent

import (
	"regexp"
	"strings"
)

// finalAnswerMarker terminates the reasoning loop. Everything after the
// marker is the user-facing answer.
const finalAnswerMarker = "Final Answer:"

// actionRegex matches "Action: tool_name(arguments)" on its own line.
// Arguments run to the last closing paren on the line so nested parens in
// free-text queries survive.
var actionRegex = regexp.MustCompile(`(?m)^\s*Action:\s*([a-zA-Z_][a-zA-Z0-9_]*)\s*\((.*)\)\s*$`)

// actionMarkerRegex detects that the model attempted an action at all,
// used to distinguish "no action" from "malformed action".
var actionMarkerRegex = regexp.MustCompile(`(?m)^\s*Action:`)

// ParsedResponse is the structured reading of one LLM turn
type ParsedResponse struct {
	// IsFinal is set when the response contains the terminal marker;
	// FinalAnswer holds the text after it.
	IsFinal     bool
	FinalAnswer string

	// HasAction is set when a well-formed action was found
	HasAction   bool
	ActionName  string
	ActionInput string

	// MalformedAction is set when the model emitted an Action line the
	// parser could not read. The loop feeds the failure back as an
	// observation instead of erroring.
	MalformedAction bool

	// Thought is the free text preceding the action or marker
	Thought string
}

// ParseResponse reads an LLM turn in two stages: the terminal marker is
// checked first so a response containing both a stray Action line and a
// Final Answer terminates; only then is the action parsed.
func ParseResponse(response string) ParsedResponse {
	if idx := strings.Index(response, finalAnswerMarker); idx >= 0 {
		return ParsedResponse{
			IsFinal:     true,
			FinalAnswer: strings.TrimSpace(response[idx+len(finalAnswerMarker):]),
			Thought:     extractThought(response[:idx]),
		}
	}

	if matches := actionRegex.FindStringSubmatch(response); matches != nil {
		loc := actionRegex.FindStringIndex(response)
		return ParsedResponse{
			HasAction:   true,
			ActionName:  matches[1],
			ActionInput: strings.TrimSpace(matches[2]),
			Thought:     extractThought(response[:loc[0]]),
		}
	}

	if actionMarkerRegex.MatchString(response) {
		return ParsedResponse{
			MalformedAction: true,
			Thought:         extractThought(response),
		}
	}

	return ParsedResponse{Thought: extractThought(response)}
}

// extractThought strips the "Thought:" prefix the model usually emits
func extractThought(text string) string {
	text = strings.TrimSpace(text)
	if rest, ok := strings.CutPrefix(text, "Thought:"); ok {
		return strings.TrimSpace(rest)
	}
	return text
}
