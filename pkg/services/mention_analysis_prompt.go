package services

import (
	"fmt"
	"strings"
)

const mentionExamples = `Text: "I love using Google for search, but Bing has improved lately."
Brand: "Google"
Result: [
  {
    "mentionType": "direct",
    "position": 1,
    "context": "I love using Google for search",
    "sentiment": "positive",
    "confidence": 1.0,
    "extractedText": "Google",
    "competitorName": null
  },
  {
    "mentionType": "competitive",
    "position": 2,
    "context": "but Bing has improved lately",
    "sentiment": "positive",
    "confidence": 0.9,
    "extractedText": "Bing",
    "competitorName": "Bing"
  }
]

Text: "The electric vehicle market is dominated by one company, though traditional automakers are catching up."
Brand: "Tesla"
Result: [
  {
    "mentionType": "indirect",
    "position": 1,
    "context": "The electric vehicle market is dominated by one company",
    "sentiment": "neutral",
    "confidence": 0.7,
    "extractedText": "electric vehicle market is dominated by one company",
    "competitorName": null
  }
]`

// buildMentionPrompt assembles the extraction prompt for one provider response.
func buildMentionPrompt(response, brandName, brandDescription string) string {
	var b strings.Builder

	b.WriteString("<ROLE>\n")
	b.WriteString("You are an expert brand mention analyst specializing in identifying and categorizing brand references in text content.\n")
	b.WriteString("</ROLE>\n\n")

	b.WriteString("<TASK>\n")
	fmt.Fprintf(&b, "Analyze the provided text for mentions of %q and identify any references to this brand, related concepts, or competing brands.\n", brandName)
	b.WriteString("</TASK>\n\n")

	b.WriteString("<BRAND_CONTEXT>\n")
	fmt.Fprintf(&b, "Brand Name: %q\n", brandName)
	fmt.Fprintf(&b, "Brand Description: %q\n", brandDescription)
	b.WriteString("</BRAND_CONTEXT>\n\n")

	b.WriteString("<INSTRUCTIONS>\n")
	b.WriteString("- Scan the entire text for brand mentions and related references\n")
	b.WriteString("- Classify each mention into one of three types:\n")
	b.WriteString("  * \"direct\": Explicit mention of the brand name\n")
	b.WriteString("  * \"indirect\": References to brand-related concepts, products, or services without naming the brand\n")
	b.WriteString("  * \"competitive\": Mentions of competing brands in the same industry/category\n")
	b.WriteString("- For each mention, extract:\n")
	b.WriteString("  * mentionType: The classification (direct/indirect/competitive)\n")
	b.WriteString("  * position: The ordinal position of this mention in the text (1 for first, 2 for second, etc.)\n")
	fmt.Fprintf(&b, "  * context: Up to %d characters of surrounding text for context\n", maxMentionContext)
	b.WriteString("  * sentiment: Analyze the tone (positive/negative/neutral)\n")
	b.WriteString("  * confidence: Your confidence score from 0.0 to 1.0\n")
	b.WriteString("  * extractedText: The exact text that constitutes the mention\n")
	b.WriteString("  * competitorName: If competitive mention, the competitor's name (null otherwise)\n")
	b.WriteString("- Return ALL mentions found, even if confidence is low\n")
	b.WriteString("- Be thorough and don't miss subtle references\n")
	b.WriteString("</INSTRUCTIONS>\n\n")

	b.WriteString("<EXAMPLES>\n")
	b.WriteString(mentionExamples)
	b.WriteString("\n</EXAMPLES>\n\n")

	b.WriteString("<TEXT_TO_ANALYZE>\n")
	b.WriteString(response)
	b.WriteString("\n</TEXT_TO_ANALYZE>")

	return b.String()
}
