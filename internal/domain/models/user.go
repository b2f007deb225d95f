package models

// Role determines what a user may administer.
type Role string

const (
	RoleAdmin    Role = "ADMIN"
	RoleGeneral  Role = "GENERAL"
	RoleOperator Role = "OPERATOR"
)

// WeighingMode selects how an order's records translate into billable weight.
type WeighingMode string

const (
	ModeBatch     WeighingMode = "BATCH"
	ModeSoloPollo WeighingMode = "SOLO_POLLO"
	ModeSoloJabas WeighingMode = "SOLO_JABAS"
)

// User is an operator account. Passwords are stored in clear text because the
// legacy data this system migrates from has no hashes; known defect, tracked
// in DESIGN.md.
type User struct {
	ID           string         `json:"id" bson:"_id"`
	Username     string         `json:"username" bson:"username"`
	Password     string         `json:"password" bson:"password"`
	Name         string         `json:"name" bson:"name"`
	Role         Role           `json:"role" bson:"role"`
	ParentID     string         `json:"parentId,omitempty" bson:"parentId,omitempty"`
	AllowedModes []WeighingMode `json:"allowedModes,omitempty" bson:"allowedModes,omitempty"`
}

// EntityID implements sync.Entity.
func (u User) EntityID() string { return u.ID }

// MayWeigh reports whether the user is allowed to operate the given mode.
// An empty capability set means no restriction; that is how accounts created
// before capabilities existed behave.
func (u User) MayWeigh(mode WeighingMode) bool {
	if len(u.AllowedModes) == 0 {
		return true
	}
	for _, m := range u.AllowedModes {
		if m == mode {
			return true
		}
	}
	return false
}
