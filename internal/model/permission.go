package model

// Permission represents a string code for a specific system action.
type Permission string

const (
	// PermissionExamsRead allows viewing exams and their reconciled status.
	PermissionExamsRead Permission = "exams:read"

	// PermissionExamsWrite allows creating exams, editing schedules and adding questions.
	PermissionExamsWrite Permission = "exams:write"

	// PermissionExamsPublish allows publishing exams to make them available to students.
	PermissionExamsPublish Permission = "exams:publish"

	// PermissionResultsRead allows viewing graded sessions and statistics.
	PermissionResultsRead Permission = "results:read"

	// PermissionSystemRead allows watching the scheduler state.
	PermissionSystemRead Permission = "system:read"
)

// AllPermissions is a slice of all available permissions.
var AllPermissions = []Permission{
	PermissionExamsRead,
	PermissionExamsWrite,
	PermissionExamsPublish,
	PermissionResultsRead,
	PermissionSystemRead,
}

// ParsePermission returns the permission named by code.
func ParsePermission(code string) (Permission, bool) {
	for _, p := range AllPermissions {
		if string(p) == code {
			return p, true
		}
	}
	return "", false
}
