package users

type Role string

const (
	RoleAdmin    Role = "Admin"
	RoleEmployee Role = "Employee"
	RoleCustomer Role = "Customer"
)

func ParseRole(s string) (Role, bool) {
	switch Role(s) {
	case RoleAdmin, RoleEmployee, RoleCustomer:
		return Role(s), true
	}
	return "", false
}

type Permission string

const (
	PermUserManage    Permission = "users.manage"
	PermProductRead   Permission = "products.read"
	PermProductWrite  Permission = "products.write"
	PermProductDelete Permission = "products.delete"
	PermOrderRead     Permission = "orders.read"
	PermOrderCreate   Permission = "orders.create"
	PermOrderStatus   Permission = "orders.status"
	PermOrderDelete   Permission = "orders.delete"
	PermItemWrite     Permission = "items.write"
)

// One explicit grant table instead of role checks scattered through the
// handlers. Customers operate on their own orders only; that ownership
// check lives in the HTTP layer, the table answers role capability.
var grants = map[Permission]map[Role]bool{
	PermUserManage:    {RoleAdmin: true},
	PermProductRead:   {RoleAdmin: true, RoleEmployee: true, RoleCustomer: true},
	PermProductWrite:  {RoleAdmin: true, RoleEmployee: true},
	PermProductDelete: {RoleAdmin: true},
	PermOrderRead:     {RoleAdmin: true, RoleEmployee: true, RoleCustomer: true},
	PermOrderCreate:   {RoleAdmin: true, RoleEmployee: true, RoleCustomer: true},
	PermOrderStatus:   {RoleAdmin: true, RoleEmployee: true},
	PermOrderDelete:   {RoleAdmin: true, RoleEmployee: true},
	PermItemWrite:     {RoleAdmin: true, RoleEmployee: true, RoleCustomer: true},
}

func Allowed(r Role, p Permission) bool {
	return grants[p][r]
}
