// Package mood turns a topic into a ranked, emotion-weighted summary of
// recent social posts.
package mood

import "strings"

// DefaultMaxTerms is the number of search terms used when none is configured.
const DefaultMaxTerms = 6

var expansionSuffixes = []string{"news", "trends", "discussion", "impact", "analysis", "opinions"}

// ExpandTopic returns up to maxTerms search terms for topic, starting with
// the topic itself followed by qualifier variants.
func ExpandTopic(topic string, maxTerms int) []string {
	topic = strings.TrimSpace(topic)
	if topic == "" {
		return nil
	}
	if maxTerms <= 0 {
		maxTerms = DefaultMaxTerms
	}

	terms := make([]string, 0, len(expansionSuffixes)+1)
	terms = append(terms, topic)
	for _, suffix := range expansionSuffixes {
		terms = append(terms, topic+" "+suffix)
	}

	if maxTerms < len(terms) {
		terms = terms[:maxTerms]
	}
	return terms
}
