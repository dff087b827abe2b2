package v1

import (
	"net/http"

	"github.com/distribution/distribution/registry/client/auth/challenge"
)

// responseChallenge returns the bearer challenge of a 401 response, or the first one
// when the registry offers no bearer scheme. Scheme and parameter names are lower-cased.
func responseChallenge(resp *http.Response) (challenge.Challenge, bool) {
	challenges := challenge.ResponseChallenges(resp)
	if len(challenges) == 0 {
		return challenge.Challenge{}, false
	}
	for _, c := range challenges {
		if c.Scheme == "bearer" {
			return c, true
		}
	}
	return challenges[0], true
}
