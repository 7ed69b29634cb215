package slackbot

import (
	"math/rand"
	"regexp"
	"strings"
)

// thinkingMessages are posted while the agent works. Each pairs the wait
// notice with a bird fact, so users know the bot is alive without the
// message looking like an answer.
var thinkingMessages = []string{
	"Processing your request, please wait. In the meanwhile did you know Arctic Terns have the longest migration of any bird at 44,000 miles annually? 🐦",
	"Analyzing your query, please wait. In the meanwhile did you know Peregrine Falcons are the fastest birds, diving at 240+ mph? 🦅",
	"Working on your data, please wait. In the meanwhile did you know Ruby-throated Hummingbirds have a heartbeat of 1,260 BPM? 💓",
	"Investigating your query, please wait. In the meanwhile did you know Woodpeckers can peck 20 times per second? 🔨",
	"Evaluating your data, please wait. In the meanwhile did you know Golden Eagles can dive at speeds over 150 mph? ⚡",
	"Scanning your request, please wait. In the meanwhile did you know Eagles can spot a rabbit from 2 miles away? 👁️",
	"Searching through data, please wait. In the meanwhile did you know Owls have silent flight and asymmetrical ears for precise hunting? 🦉",
	"Detecting patterns, please wait. In the meanwhile did you know Kestrels can see UV light to track rodent urine trails? 🌈",
	"Caching your request, please wait. In the meanwhile did you know Clark's Nutcrackers remember over 30,000 seed locations? 🥜",
	"Calculating results, please wait. In the meanwhile did you know African Grey Parrots can count and do basic math? 🧮",
	"Remembering context, please wait. In the meanwhile did you know Pigeons can find their way home from 1,300 miles away? 🧭",
	"Strategizing analysis, please wait. In the meanwhile did you know Ravens can plan up to 3 steps ahead? ♟️",
	"Monitoring progress, please wait. In the meanwhile did you know Kingfishers calculate light refraction when diving for fish? 🐟",
	"Recognizing patterns, please wait. In the meanwhile did you know Magpies pass the mirror self-recognition test? 🪞",
}

var nonWordRgx = regexp.MustCompile(`[^a-z0-9\s]`)

// RandomThinkingMessage picks one of the wait messages
func RandomThinkingMessage() string {
	return thinkingMessages[rand.Intn(len(thinkingMessages))]
}

// IsThinkingMessage reports whether text is one of the bot's wait messages.
// Comparison is on lowercased text with punctuation and emoji stripped, in
// either containment direction, so truncated or re-rendered copies still
// match.
func IsThinkingMessage(text string) bool {
	if text == "" {
		return false
	}

	clean := normalizeForComparison(text)
	if clean == "" {
		return false
	}
	for _, msg := range thinkingMessages {
		cleanMsg := normalizeForComparison(msg)
		if strings.Contains(clean, cleanMsg) || strings.Contains(cleanMsg, clean) {
			return true
		}
	}

	// Older deployments used these phrasings.
	return strings.Contains(clean, "analyzing your request") || strings.Contains(clean, "processing your request")
}

func normalizeForComparison(s string) string {
	return strings.TrimSpace(nonWordRgx.ReplaceAllString(strings.ToLower(s), ""))
}
