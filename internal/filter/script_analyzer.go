package filter

import (
	"strings"

	"github.com/BishopFox/jsluice"
	"github.com/rs/zerolog"

	"github.com/aleister1102/webmirror/internal/policy"
)

// outboundCallTypes are jsluice URL source types that represent an actual
// request being issued, as opposed to a URL merely appearing in a string.
var outboundCallTypes = []string{"fetch", "xhr"}

// ScriptAnalyzer decides whether a script body performs outbound network
// calls. It combines the signature table's token match with jsluice's
// syntactic analysis of the script source, the latter catching call sites
// whose URLs the token table cannot see.
type ScriptAnalyzer struct {
	signatures *policy.SignatureMatcher
	logger     zerolog.Logger
}

// NewScriptAnalyzer creates a script analyzer
func NewScriptAnalyzer(signatures *policy.SignatureMatcher, logger zerolog.Logger) *ScriptAnalyzer {
	return &ScriptAnalyzer{
		signatures: signatures,
		logger:     logger.With().Str("component", "ScriptAnalyzer").Logger(),
	}
}

// HasOutboundCalls reports whether a script body matches the outbound
// network-call catalogue.
func (sa *ScriptAnalyzer) HasOutboundCalls(body string) bool {
	if strings.TrimSpace(body) == "" {
		return false
	}

	if sa.signatures.MatchesNetworkCall(body) {
		return true
	}

	analyzer := jsluice.NewAnalyzer([]byte(body))
	for _, found := range analyzer.GetURLs() {
		if strings.HasPrefix(found.URL, "http://") || strings.HasPrefix(found.URL, "https://") {
			sa.logger.Debug().Str("url", found.URL).Str("type", found.Type).Msg("Outbound URL in script body")
			return true
		}
		for _, callType := range outboundCallTypes {
			if found.Type == callType {
				sa.logger.Debug().Str("url", found.URL).Str("type", found.Type).Msg("Outbound call in script body")
				return true
			}
		}
	}

	return false
}

// ScreenAssetBody adapts the analyzer for the download cache's script
// screen, which sees raw bytes.
func (sa *ScriptAnalyzer) ScreenAssetBody(body []byte) bool {
	return sa.HasOutboundCalls(string(body))
}
