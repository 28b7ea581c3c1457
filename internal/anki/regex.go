package anki

import "regexp"

// The field HTML is untrusted — scraped from arbitrary web pages — and the
// rewriting contract is attribute-level on three known tags, so compiled
// regexps are used rather than a full HTML parser.
var (
	scriptRe   = regexp.MustCompile(`(?is)<script\b[^>]*>.*?</script>`)
	styleRe    = regexp.MustCompile(`(?is)<style\b[^>]*>.*?</style>`)
	imgTagRe   = regexp.MustCompile(`(?i)<img\b[^>]*>`)
	videoTagRe = regexp.MustCompile(`(?i)<video\b[^>]*>`)
	audioElemRe = regexp.MustCompile(`(?is)<audio\b[^>]*>.*?</audio>|<audio\b[^>]*/?>`)
	srcAttrRe  = regexp.MustCompile(`(?i)src\s*=\s*"([^"]*)"`)
	controlsRe = regexp.MustCompile(`(?i)\bcontrols\b`)
	extRe      = regexp.MustCompile(`^[a-z0-9]{1,5}$`)
)
