package repository

// Tables holds the fully qualified names of the plugin tables.  WordPress
// installs may use any table prefix, so names are resolved once at startup.
type Tables struct {
	Users           string
	Roles           string
	RolePermissions string
	UserRoles       string
	Sessions        string
	Customers       string
	Sales           string
	SaleItems       string
	Products        string
	Categories      string
}

// NewTables prefixes every table name with prefix (e.g. "wp_").
func NewTables(prefix string) Tables {
	p := prefix + "ims_"
	return Tables{
		Users:           p + "users",
		Roles:           p + "roles",
		RolePermissions: p + "role_permissions",
		UserRoles:       p + "user_roles",
		Sessions:        p + "sessions",
		Customers:       p + "customers",
		Sales:           p + "sales",
		SaleItems:       p + "sale_items",
		Products:        p + "products",
		Categories:      p + "categories",
	}
}

// scanner is satisfied by *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}
