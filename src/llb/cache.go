package llb

import (
	"path"
	"strings"
)

// CacheID derives a cache mount's persistence identity from the project
// name and mount path (spec.md §4.1 "Cache-mount identity":
// cache_id = project_name + "-" + normalize(path)). normalize cleans the
// path and strips both a leading and trailing slash so that "/go/pkg/",
// "/go/pkg" and "go/pkg" all collapse to the same id.
func CacheID(projectName, mountPath string) string {
	clean := path.Clean("/" + mountPath)
	clean = strings.TrimPrefix(clean, "/")
	clean = strings.TrimSuffix(clean, "/")
	clean = strings.ReplaceAll(clean, "/", "-")
	return projectName + "-" + clean
}
