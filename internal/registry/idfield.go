package registry

import (
	"log/slog"

	"github.com/hashicorp/go-version"
)

// IDField names the registry attribute used to address it in API paths.
// Hub releases after 4.7.0 expose "id"; older ones only expose "pk".
type IDField string

const (
	IDFieldID     IDField = "id"
	IDFieldLegacy IDField = "pk"
)

const idFieldCutoverRaw = "4.7.0"

var idFieldCutover = version.Must(version.NewVersion(idFieldCutoverRaw))

// IDFieldFor picks the identifier field for a hub reporting serverVersion.
// Versions are ordered as plain strings, so "4.10.0" sorts before "4.7.0"
// and 4.7.0 itself still uses the legacy field.
func IDFieldFor(serverVersion string) IDField {
	field := IDFieldLegacy
	if serverVersion > idFieldCutoverRaw {
		field = IDFieldID
	}
	if ordersDifferently(serverVersion) {
		slog.Warn("server version sorts differently as a string than as a release; using string order",
			"server_version", serverVersion,
			"cutover", idFieldCutoverRaw,
			"id_field", field,
		)
	}
	return field
}

// ordersDifferently reports whether serverVersion parses as a release whose
// position relative to the cutover differs from its string order.
func ordersDifferently(serverVersion string) bool {
	v, err := version.NewVersion(serverVersion)
	if err != nil {
		return false
	}
	return v.GreaterThan(idFieldCutover) != (serverVersion > idFieldCutoverRaw)
}
