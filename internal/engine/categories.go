package engine

import "strings"

// topicLabels are the labels the classifier may assign to ingested text.
// Anything the model returns outside this list is mapped to "other".
var topicLabels = []string{
	"politics",
	"economy",
	"science",
	"technology",
	"history",
	"culture",
	"sport",
	"literature",
	"health",
	"other",
}

func normalizeLabel(label string) string {
	label = strings.ToLower(strings.TrimSpace(label))
	for _, known := range topicLabels {
		if label == known {
			return known
		}
	}
	return "other"
}
