package drawpad

import (
	"strings"

	"github.com/tphakala/drawpad/internal/drawing"
)

// DrawingPath joins dir and name into an absolute virtual path for a new
// drawing, appending the drawing extension when name lacks it. Repeated
// slashes collapse to one.
func DrawingPath(dir, name string) string {
	name = strings.TrimSpace(name)
	if !strings.HasSuffix(name, drawing.Extension) {
		name += drawing.Extension
	}
	return joinVirtual(dir, name)
}

// joinVirtual joins without resolving dot segments; that is the sandbox's job.
func joinVirtual(dir, name string) string {
	p := "/" + dir + "/" + name
	for strings.Contains(p, "//") {
		p = strings.ReplaceAll(p, "//", "/")
	}
	return p
}

// Crumb is one step of a directory breadcrumb trail.
type Crumb struct {
	Label string
	Path  string // always ends with a slash
}

// Breadcrumbs splits dir into a trail starting at the root.
func Breadcrumbs(dir string) []Crumb {
	crumbs := []Crumb{{Label: "root", Path: "/"}}
	p := "/"
	for seg := range strings.SplitSeq(dir, "/") {
		if seg == "" {
			continue
		}
		p += seg + "/"
		crumbs = append(crumbs, Crumb{Label: seg, Path: p})
	}
	return crumbs
}
