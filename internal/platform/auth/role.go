package auth

import (
	"fmt"
	"strconv"
	"strings"
)

// Role is the closed set of user types. The numeric values are part of the
// public API.
type Role int

const (
	RoleAdmin        Role = 1
	RoleDoctor       Role = 2
	RoleMedicalStaff Role = 3
	RolePatient      Role = 4
)

var roleNames = map[Role]string{
	RoleAdmin:        "admin",
	RoleDoctor:       "doctor",
	RoleMedicalStaff: "medical_staff",
	RolePatient:      "patient",
}

func (r Role) String() string {
	if name, ok := roleNames[r]; ok {
		return name
	}
	return "unknown(" + strconv.Itoa(int(r)) + ")"
}

func (r Role) Valid() bool {
	_, ok := roleNames[r]
	return ok
}

// ParseRole accepts either the numeric identifier or the role name.
func ParseRole(s string) (Role, error) {
	s = strings.TrimSpace(strings.ToLower(s))
	if n, err := strconv.Atoi(s); err == nil {
		if r := Role(n); r.Valid() {
			return r, nil
		}
		return 0, fmt.Errorf("unknown role %d", n)
	}
	for r, name := range roleNames {
		if name == s {
			return r, nil
		}
	}
	return 0, fmt.Errorf("unknown role %q", s)
}
