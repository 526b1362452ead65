package deploy

import (
	"strconv"

	"code.cloudfoundry.org/clock"
)

// LatestVersion asks ResolveVersion for a fresh timestamp based version.
const LatestVersion = "latest"

// ResolveVersion turns a declared version into a concrete one. "latest"
// becomes the current Unix time in seconds; anything else is returned as is.
func ResolveVersion(clk clock.Clock, declared string) string {
	if declared != LatestVersion {
		return declared
	}
	if clk == nil {
		clk = clock.NewClock()
	}
	return strconv.FormatInt(clk.Now().Unix(), 10)
}

// Label builds the version label "{application}-{version}".
func Label(application, version string) string {
	return application + "-" + version
}
