package promptstyle

import (
	"encoding/json"
	"strings"
)

const (
	reportInstruction = "You are an expert DevOps consultant. Generate a concise, professional executive summary " +
		"of the following bug analysis and fixes. Focus on the impact and improvements."

	videoInstruction = "You are a tech-storyteller. Write ONE short paragraph (about 30 words) " +
		"that can be fed to an AI video generator to visualise the bugs / " +
		"issues that were fixed. Mention the repo name. Do NOT add any on-screen " +
		"text, logos, or titles."
)

// Report renders the executive-summary request for a set of insights.
func Report(insights any) (string, error) {
	return withInsights(reportInstruction, insights)
}

// VideoPrompt renders the request that compresses insights into a short
// visual description.
func VideoPrompt(insights any) (string, error) {
	return withInsights(videoInstruction, insights)
}

func withInsights(instruction string, insights any) (string, error) {
	raw, err := json.MarshalIndent(insights, "", "  ")
	if err != nil {
		return "", err
	}
	var b strings.Builder
	b.WriteString(instruction)
	b.WriteString("\n\nInsights:\n")
	b.Write(raw)
	return b.String(), nil
}
