package models

// Actor is the already-authenticated identity performing an operation.
type Actor struct {
	ID   string `json:"id"`
	Role string `json:"role"`
}

const (
	RoleWaiter  = "waiter"
	RoleCashier = "cashier"
	RoleKitchen = "kitchen"
	RoleSystem  = "system"
)

// SystemActor is used by background loops.
var SystemActor = Actor{ID: "system", Role: RoleSystem}

func (a Actor) String() string {
	if a.Role == "" {
		return a.ID
	}
	return a.Role + ":" + a.ID
}
