package auth

// Capability names an action a principal may perform. Handlers declare the
// capability they need instead of comparing role strings inline.
type Capability string

const (
	CapabilityPlaceOrder     Capability = "order:place"
	CapabilityViewOrder      Capability = "order:view"
	CapabilityViewAnyOrder   Capability = "order:view-any"
	CapabilityConfirmPayment Capability = "payment:confirm"
	CapabilityMarkDelivered  Capability = "order:deliver"
	CapabilityManageCatalog  Capability = "catalog:manage"
)

const (
	RoleBuyer = "buyer"
	RoleAdmin = "admin"
)

var roleGrants = map[string]map[Capability]bool{
	RoleBuyer: {
		CapabilityPlaceOrder: true,
		CapabilityViewOrder:  true,
	},
	RoleAdmin: {
		CapabilityPlaceOrder:     true,
		CapabilityViewOrder:      true,
		CapabilityViewAnyOrder:   true,
		CapabilityConfirmPayment: true,
		CapabilityMarkDelivered:  true,
		CapabilityManageCatalog:  true,
	},
}

// RoleAllows reports whether the role grants the capability. Unknown roles
// grant nothing.
func RoleAllows(role string, capability Capability) bool {
	return roleGrants[role][capability]
}
