package common

import (
	"fmt"
	"regexp"
	"strings"
)

var codeFenceRe = regexp.MustCompile("(?s)```(?:json)?\\s*\\n?(.*?)\\n?```")

// ExtractJSONObject returns the outermost JSON object in an LLM response.
// It handles common LLM quirks like surrounding markdown or extra text.
func ExtractJSONObject(response string) (string, error) {
	if m := codeFenceRe.FindStringSubmatch(response); len(m) > 1 {
		response = m[1]
	}

	start := strings.Index(response, "{")
	if start == -1 {
		return "", fmt.Errorf("no JSON object found in response (missing '{')")
	}
	end := strings.LastIndex(response, "}")
	if end < start {
		return "", fmt.Errorf("no JSON object found in response (missing '}')")
	}
	return response[start : end+1], nil
}
