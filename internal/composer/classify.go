package composer

import (
	"strings"
	"time"
)

// intent phrases, checked in order against the lowercased transcript. Speech
// recognition output is noisy, so matching is deliberately loose.
var intentPhrases = []struct {
	kind    RequestKind
	phrases []string
}{
	{RequestBogeyDope, []string{"bogey dope", "bogeydope", "bogey", "bogie", "braa"}},
	{RequestRadioCheck, []string{"radio check", "comm check", "comms check", "how do you read"}},
}

// Classify maps a transcript to a RadioRequest for the given pilot. The
// second return value reports whether the transmission addressed the bot at
// all; unaddressed traffic on the channel is dropped without a reply.
func Classify(transcript, botCallsign, pilot string, at time.Time) (RadioRequest, bool) {
	lower := strings.ToLower(transcript)
	req := RadioRequest{Pilot: pilot, Kind: RequestUnknown, Time: at}

	if !strings.Contains(lower, strings.ToLower(botCallsign)) {
		return req, false
	}

	for _, entry := range intentPhrases {
		for _, phrase := range entry.phrases {
			if strings.Contains(lower, phrase) {
				req.Kind = entry.kind
				return req, true
			}
		}
	}
	return req, true
}
