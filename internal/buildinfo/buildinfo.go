// Package buildinfo contains build-time metadata kept apart from user configuration
package buildinfo

// BuildInfo provides access to build-time metadata.
type BuildInfo interface {
	// GetVersion returns the build version string
	GetVersion() string
	// GetBuildDate returns the build date string
	GetBuildDate() string
}

// Context contains build-time metadata that is not user-configurable.
// It is injected at startup from linker flags.
type Context struct {
	// Version holds the Git version tag from build
	Version string

	// BuildDate is the time when the binary was built
	BuildDate string
}

// New returns a Context, substituting placeholders for values the build did not set.
func New(version, buildDate string) *Context {
	if version == "" {
		version = "dev"
	}
	if buildDate == "" {
		buildDate = "unknown"
	}
	return &Context{Version: version, BuildDate: buildDate}
}

// GetVersion implements BuildInfo
func (c *Context) GetVersion() string {
	return c.Version
}

// GetBuildDate implements BuildInfo
func (c *Context) GetBuildDate() string {
	return c.BuildDate
}

// Release returns the release name used by error telemetry.
func (c *Context) Release() string {
	return "drawpad@" + c.Version
}
