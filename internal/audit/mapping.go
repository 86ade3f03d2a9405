package audit

import "strings"

// ActionResource holds the action and resource derived from an HTTP route.
type ActionResource struct {
	Action   string
	Resource string
}

// ParseRoute derives the audit action and resource from a request method and
// a ServeMux pattern path such as "/courses/{id}/enroll".
//
// The resource is the first path segment in singular form ("courses" -> "course").
// A trailing literal segment after a wildcard is the action ("enroll", "publish");
// otherwise the action follows the method: POST create, PUT update, DELETE delete.
func ParseRoute(method, pattern string) ActionResource {
	// Strip an optional "METHOD " prefix and host from a full pattern.
	if i := strings.IndexByte(pattern, ' '); i >= 0 {
		pattern = pattern[i+1:]
	}
	if i := strings.IndexByte(pattern, '/'); i > 0 {
		pattern = pattern[i:]
	}
	segs := strings.FieldsFunc(pattern, func(r rune) bool { return r == '/' })
	if len(segs) == 0 {
		return ActionResource{Action: methodToAction(method), Resource: "unknown"}
	}
	resource := singular(segs[0])
	last := segs[len(segs)-1]
	if len(segs) > 1 && !isWildcard(last) && last != "me" {
		return ActionResource{Action: last, Resource: resource}
	}
	return ActionResource{Action: methodToAction(method), Resource: resource}
}

func isWildcard(seg string) bool {
	return strings.HasPrefix(seg, "{") && strings.HasSuffix(seg, "}")
}

func singular(s string) string {
	switch {
	case s == "auth":
		return "auth"
	case strings.HasSuffix(s, "zzes"):
		return strings.TrimSuffix(s, "zes")
	case strings.HasSuffix(s, "ies"):
		return strings.TrimSuffix(s, "ies") + "y"
	case strings.HasSuffix(s, "s"):
		return strings.TrimSuffix(s, "s")
	}
	return s
}

func methodToAction(method string) string {
	switch strings.ToUpper(method) {
	case "GET", "HEAD":
		return "get"
	case "POST":
		return "create"
	case "PUT", "PATCH":
		return "update"
	case "DELETE":
		return "delete"
	}
	return strings.ToLower(method)
}
