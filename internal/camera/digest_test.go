package camera

import (
	"strings"
	"testing"
)

func TestParseDigestChallenge(t *testing.T) {
	header := `Digest realm="cam", nonce="abc123", qop="auth", opaque="xyz"`
	c, ok := parseDigestChallenge(header)
	if !ok {
		t.Fatal("parseDigestChallenge() ok = false")
	}
	if c.realm != "cam" || c.nonce != "abc123" || c.qop != "auth" || c.opaque != "xyz" {
		t.Errorf("parsed challenge = %+v", c)
	}
}

func TestParseDigestChallengeRejectsNonDigest(t *testing.T) {
	if _, ok := parseDigestChallenge(`Basic realm="cam"`); ok {
		t.Error("expected Basic challenge to be rejected")
	}
}

func TestDigestAuthorizationIncludesRequiredFields(t *testing.T) {
	c := digestChallenge{realm: "cam", nonce: "abc123", qop: "auth"}
	header := digestAuthorization(c, "user", "pass", "GET", "/snap.jpg")

	for _, want := range []string{`username="user"`, `realm="cam"`, `nonce="abc123"`, `uri="/snap.jpg"`, "qop=auth"} {
		if !strings.Contains(header, want) {
			t.Errorf("Authorization header %q missing %q", header, want)
		}
	}
}
