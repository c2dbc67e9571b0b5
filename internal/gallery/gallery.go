// Package gallery decides how a product's image gallery changes when images are
// uploaded, retained or dropped. It performs no I/O; callers persist the
// resulting gallery and delete the orphaned files.
package gallery

import "strings"

const uploadsSegment = "/uploads/"

// imageExtensions lists the only file types that may be retained in a gallery.
var imageExtensions = []string{".png", ".jpg", ".jpeg"}

// Paths converts stored-file names to and from the client-path-form
// ("<base>/uploads/<name>") that clients send back when retaining images.
type Paths struct {
	BaseURL string
}

// ClientPath renders a stored-file name in client-path-form.
func (p Paths) ClientPath(name string) string {
	return p.BaseURL + uploadsSegment + name
}

// ClientPaths renders every name of a gallery in client-path-form.
func (p Paths) ClientPaths(names []string) []string {
	out := make([]string, len(names))
	for i, name := range names {
		out[i] = p.ClientPath(name)
	}
	return out
}

// FileName returns the stored-file name referenced by a client path, or "" when
// the path has no "/uploads/" component or nothing follows it. The name follows
// the last "/uploads/", so a base URL may itself contain that segment.
func FileName(clientPath string) string {
	i := strings.LastIndex(clientPath, uploadsSegment)
	if i < 0 {
		return ""
	}
	after := clientPath[i+len(uploadsSegment):]
	if strings.Contains(after, "/") {
		return ""
	}
	return after
}

// IsImageName reports whether name carries one of the allowed image extensions.
// The match is case-sensitive.
func IsImageName(name string) bool {
	for _, ext := range imageExtensions {
		if strings.HasSuffix(name, ext) {
			return true
		}
	}
	return false
}

// Plan is the outcome of a reconciliation: the gallery to persist and the stored
// files that are no longer referenced once it is persisted.
type Plan struct {
	Gallery []string
	Orphans []string
}

// Reconciler computes gallery plans for create, image-update and delete.
type Reconciler struct {
	paths Paths
}

func NewReconciler(paths Paths) *Reconciler {
	return &Reconciler{paths: paths}
}

// Paths returns the client-path-form converter the reconciler matches against.
func (r *Reconciler) Paths() Paths {
	return r.paths
}

// Reconcile builds the next gallery from the current one.
//
// A keep entry is retained only when it names an image file and its client
// path matches one of the current images. The new gallery lists uploaded files
// first, then retained files in request order; no name is listed twice.
// Every current image that is not retained becomes an orphan.
func (r *Reconciler) Reconcile(current, keep, uploaded []string) Plan {
	currentPaths := make(map[string]struct{}, len(current))
	for _, name := range current {
		currentPaths[r.paths.ClientPath(name)] = struct{}{}
	}

	gallery := make([]string, 0, len(uploaded)+len(keep))
	placed := make(map[string]struct{}, len(uploaded)+len(keep))
	place := func(name string) {
		if _, dup := placed[name]; dup {
			return
		}
		placed[name] = struct{}{}
		gallery = append(gallery, name)
	}

	for _, name := range uploaded {
		place(name)
	}

	kept := make(map[string]struct{}, len(keep))
	for _, entry := range keep {
		name := FileName(entry)
		if name == "" || !IsImageName(name) {
			continue
		}
		if _, ok := currentPaths[entry]; !ok {
			continue
		}
		kept[entry] = struct{}{}
		place(name)
	}

	return Plan{
		Gallery: gallery,
		Orphans: r.orphans(current, kept),
	}
}

// ForCreate is the plan of a newly created product: the uploads, in order.
func (r *Reconciler) ForCreate(uploaded []string) Plan {
	return r.Reconcile(nil, nil, uploaded)
}

// ForDelete orphans the whole gallery.
func (r *Reconciler) ForDelete(current []string) Plan {
	return Plan{Orphans: r.orphans(current, nil)}
}

func (r *Reconciler) orphans(current []string, kept map[string]struct{}) []string {
	var orphans []string
	seen := make(map[string]struct{}, len(current))
	for _, name := range current {
		if _, ok := kept[r.paths.ClientPath(name)]; ok {
			continue
		}
		if _, dup := seen[name]; dup {
			continue
		}
		seen[name] = struct{}{}
		orphans = append(orphans, name)
	}
	return orphans
}
