package registry

// Kind identifies which store listing a record belongs to
type Kind string

const (
	// KindAdapter is a protocol adapter listing record
	KindAdapter Kind = "Adapter"

	// KindBot is a bot listing record
	KindBot Kind = "Bot"

	// KindDriver is a driver listing record
	KindDriver Kind = "Driver"

	// KindPlugin is a plugin listing record
	KindPlugin Kind = "Plugin"
)

const (
	// PluginTypeApplication marks plugins that provide user-facing features
	PluginTypeApplication = "application"

	// PluginTypeLibrary marks plugins that only provide functionality to other plugins
	PluginTypeLibrary = "library"
)

// HasPackage reports whether records of this kind are published on the package index
func (k Kind) HasPackage() bool {
	return k == KindAdapter || k == KindDriver || k == KindPlugin
}

// String returns the kind name
func (k Kind) String() string {
	return string(k)
}
