// internal/engine/challenge.go
package engine

import (
	"net/url"
	"strings"

	"github.com/xkilldash9x/formpilot/api/schemas"
)

// challengeMarkers are phrases that reliably indicate an authentication or
// verification challenge rather than ordinary page content.
var challengeMarkers = []string{
	"verify you are human",
	"verify you're human",
	"are you a robot",
	"unusual activity",
	"captcha",
	"security check",
	"two-factor",
	"authentication code",
	"one-time code",
}

// challengePathMarkers flag URLs whose path is a login or challenge flow.
var challengePathMarkers = []string{
	"/login", "/signin", "/sign-in", "/sso", "/challenge", "/captcha", "/mfa",
}

// detectChallenge inspects an observation for signs that the page demands
// something only the operator can provide. The engine never attempts to
// defeat a challenge; it pauses and hands the page over.
func detectChallenge(obs schemas.PageObservation) string {
	if u, err := url.Parse(obs.URL); err == nil {
		path := strings.ToLower(u.Path)
		for _, marker := range challengePathMarkers {
			if strings.Contains(path, marker) {
				return "page requires authentication (" + u.Host + path + ")"
			}
		}
	}

	for _, el := range obs.Elements {
		text := strings.ToLower(el.Text)
		if text == "" {
			continue
		}
		for _, marker := range challengeMarkers {
			if strings.Contains(text, marker) {
				return "verification challenge on page: " + strings.TrimSpace(el.Text)
			}
		}
	}
	return ""
}
