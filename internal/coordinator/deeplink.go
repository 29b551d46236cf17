package coordinator

import (
	"net/url"
	"strings"

	"github.com/airadcr/airadcr-desktop/internal/validate"
)

// deepLinkSchemes are the argument shapes a registered airadcr:// link or
// an --open-tid= flag can take. Only the technical_id ever varies.
//
//	airadcr://open?tid=<T>
//	airadcr://open/<T>
//	airadcr://<T>
const deepLinkScheme = "airadcr"

// ExtractTechnicalID pulls a technical_id out of a raw argv token, which
// may be a deep-link URI in any of the three accepted shapes or an
// --open-tid=<T> flag. It returns false without logging anything itself;
// the caller decides whether an unrecognized token is worth a warning.
func ExtractTechnicalID(raw string) (string, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", false
	}

	if tid, ok := strings.CutPrefix(raw, "--open-tid="); ok {
		return validateTID(tid)
	}

	if !strings.HasPrefix(raw, deepLinkScheme+"://") {
		return "", false
	}

	u, err := url.Parse(raw)
	if err != nil || u.Scheme != deepLinkScheme {
		return "", false
	}

	// airadcr://open?tid=<T>
	if tid := u.Query().Get("tid"); tid != "" {
		return validateTID(tid)
	}

	// airadcr://open/<T> parses with Host="open", Path="/<T>".
	if u.Host == "open" {
		return validateTID(strings.TrimPrefix(u.Path, "/"))
	}

	// airadcr://<T> parses with Host="<T>", empty path.
	if u.Host != "" && u.Path == "" {
		return validateTID(u.Host)
	}

	return "", false
}

// validateTID rejects anything that is not a well-formed technical_id
// rather than inventing a default; the caller is expected to log the
// rejection at the warning level.
func validateTID(tid string) (string, bool) {
	if !validate.TechnicalID(tid) {
		return "", false
	}
	return tid, true
}
