package entities

type Role string

const (
	RoleOwner          Role = "owner"
	RoleReviewerStageA Role = "reviewer_stage_a"
	RoleReviewerStageB Role = "reviewer_stage_b"
	RoleSystem         Role = "system"
)

func (r Role) Valid() bool {
	switch r {
	case RoleOwner, RoleReviewerStageA, RoleReviewerStageB, RoleSystem:
		return true
	default:
		return false
	}
}

// Actor is resolved by the identity collaborator; the workflow never derives
// roles itself.
type Actor struct {
	ID   string
	Role Role
}

// SystemActor is used by scheduled and automatic transitions.
var SystemActor = Actor{ID: "system", Role: RoleSystem}
