package platform

import (
	"context"
	"path"
	"strings"
)

// PathEditor edits the persistent PATH variable of the host.
//
// Changes become visible to new processes only after NotifyEnvironmentChanged.
type PathEditor interface {
	// RemovePathEntry drops every segment equal to dir from the user PATH
	// and, when allUsers is set, from the system PATH.
	RemovePathEntry(ctx context.Context, dir string, allUsers bool) error
	// AddPathEntry appends dir to the system PATH (allUsers) or prepends it
	// to the user PATH.
	AddPathEntry(ctx context.Context, dir string, allUsers bool) error
	// NotifyEnvironmentChanged tells running processes to reload the environment.
	NotifyEnvironmentChanged(ctx context.Context) error
}

// NormalizeWindowsPath folds a Windows path for comparison: separators become
// backslashes, "." and ".." are resolved, trailing separators are dropped and
// the result is lower-cased. UNC prefixes are kept.
func NormalizeWindowsPath(p string) string {
	p = strings.ReplaceAll(strings.TrimSpace(p), `\`, "/")
	if p == "" {
		return ""
	}

	unc := strings.HasPrefix(p, "//")

	cleaned := path.Clean(p)
	if unc {
		cleaned = "/" + cleaned
	}

	// "c:" and "c:/" both denote the drive root.
	if len(cleaned) == 2 && cleaned[1] == ':' {
		cleaned += "/"
	}

	return strings.ToLower(strings.ReplaceAll(cleaned, "/", `\`))
}

// RemovePathSegments returns value without the segments whose expanded and
// normalized form equals target. The remaining segments keep their original,
// unexpanded text and order. The second result reports whether anything was
// removed; when it is false the input is returned untouched.
//
// expand may be nil when the value holds no environment references.
func RemovePathSegments(
	value, target, sep string,
	expand func(string) string,
	normalize func(string) string,
) (string, bool) {
	if normalize == nil {
		normalize = func(s string) string { return s }
	}

	want := normalize(target)
	segments := strings.Split(value, sep)
	kept := make([]string, 0, len(segments))
	removed := false

	for _, segment := range segments {
		candidate := segment
		if expand != nil {
			candidate = expand(segment)
		}

		if normalize(candidate) == want {
			removed = true
			continue
		}

		kept = append(kept, segment)
	}

	if !removed {
		return value, false
	}

	return strings.Join(kept, sep), true
}

// AddPathSegment appends (or prepends) dir to value. An empty value yields dir.
func AddPathSegment(value, dir, sep string, prepend bool) string {
	switch {
	case value == "":
		return dir
	case prepend:
		return dir + sep + value
	default:
		return value + sep + dir
	}
}
