package suggest

import (
	"regexp"
	"strings"

	"github.com/lucasnoah/fixloop/internal/config"
)

var fenceRe = regexp.MustCompile("(?s)^```[\\w.+-]*[ \\t]*\\n(.*?)\\n?```$")

// Extract cleans a raw reply. The reply is trimmed; in replace_file mode a
// reply that is exactly one fenced code block is unwrapped and given a
// trailing newline.
func Extract(reply, mode string) string {
	s := strings.TrimSpace(reply)
	if mode == config.PatchSubstitute {
		return s
	}
	if m := fenceRe.FindStringSubmatch(s); m != nil && !strings.Contains(m[1], "```") {
		s = m[1]
	}
	if strings.TrimSpace(s) == "" {
		return ""
	}
	if !strings.HasSuffix(s, "\n") {
		s += "\n"
	}
	return s
}
