package ingress

import "strings"

// shellyWildcard and the two generic wildcards are subscribed once at
// startup alongside a per-device <prefix>/<client_id>/# subscription
// for every enabled device.
const (
	shellyWildcard  = "shellies/#"
	cameraWildcard  = "cameras/#"
	storageWildcard = "storage/#"
)

// deviceWildcard builds the subscription topic for one device's full
// subtree.
func deviceWildcard(prefix, clientID string) string {
	return prefix + "/" + clientID + "/#"
}

// resolveSuffix strips a device's <prefix>/<client_id>/ from topic,
// returning the remaining suffix (the part looked up in the device
// model's topic schemas) and whether topic actually belongs to this
// device.
func resolveSuffix(topic, prefix, clientID string) (suffix string, ok bool) {
	want := prefix + "/" + clientID + "/"
	if !strings.HasPrefix(topic, want) {
		return "", false
	}
	return strings.TrimPrefix(topic, want), true
}

// topicGroup returns the leading path segment of a suffix, the "group"
// group-specific value parsers are dispatched on (e.g. "relay" from
// "relay/0/state").
func topicGroup(suffix string) string {
	if i := strings.IndexByte(suffix, '/'); i >= 0 {
		return suffix[:i]
	}
	return suffix
}
