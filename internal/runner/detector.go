package runner

import "strings"

// CompletionDetector inspects stdout for output that means the operation is done even
// though the process keeps running.
type CompletionDetector interface {
	// Detect returns the completion message when text contains a completion marker.
	Detect(text string) (string, bool)
	// Window is the number of trailing bytes kept between chunks so markers split
	// across reads are still found.
	Window() int
}

// PhraseRule maps a literal phrase to a completion message.
type PhraseRule struct {
	Phrase  string
	Message string
}

// PhraseDetector matches literal phrases in order.
type PhraseDetector struct {
	Rules []PhraseRule
}

func (d PhraseDetector) Detect(text string) (string, bool) {
	for _, r := range d.Rules {
		if r.Phrase != "" && strings.Contains(text, r.Phrase) {
			return r.Message, true
		}
	}
	return "", false
}

func (d PhraseDetector) Window() int {
	n := 0
	for _, r := range d.Rules {
		if len(r.Phrase) > n {
			n = len(r.Phrase)
		}
	}
	if n == 0 {
		return 0
	}
	return n - 1
}

// Emulator completion messages.
const (
	EmulatorsStarted = "Emulators started successfully"
	EmulatorsStopped = "Emulators stopped successfully"
)

// EmulatorDetector recognises the emulator suite's ready and shutdown banners.
func EmulatorDetector(ready, shutdown []string) PhraseDetector {
	var d PhraseDetector
	for _, p := range ready {
		d.Rules = append(d.Rules, PhraseRule{Phrase: p, Message: EmulatorsStarted})
	}
	for _, p := range shutdown {
		d.Rules = append(d.Rules, PhraseRule{Phrase: p, Message: EmulatorsStopped})
	}
	return d
}
