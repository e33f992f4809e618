package roles

// Role represents a user's access level.
type Role string

const (
	User      Role = "user"
	Admin     Role = "admin"
	Superuser Role = "superuser"
)

type HierarchyLevel int

const (
	UserLevel      HierarchyLevel = 1
	AdminLevel     HierarchyLevel = 2
	SuperuserLevel HierarchyLevel = 3
)

func (r Role) GetHierarchyLevel() HierarchyLevel {
	switch r {
	case User:
		return UserLevel
	case Admin:
		return AdminLevel
	case Superuser:
		return SuperuserLevel
	default:
		return UserLevel
	}
}

// HasAtLeast reports whether the role sits at or above the required level.
func (r Role) HasAtLeast(required Role) bool {
	return r.GetHierarchyLevel() >= required.GetHierarchyLevel()
}

func (r Role) IsValid() bool {
	switch r {
	case User, Admin, Superuser:
		return true
	default:
		return false
	}
}

func (r Role) String() string {
	return string(r)
}
