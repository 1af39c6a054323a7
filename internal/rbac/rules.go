package rbac

// Default policy. Expand as needed.
var RolePermissions = map[string][]string{
	"student": {
		"exam:view",
		"exam:submit",
		"submission:view-own",
		"cert:view-own",
		"analytics:self",
	},
	"instructor": {
		"exam:create",
		"exam:update",
		"exam:delete-own",
		"exam:view",
		"submission:view-all",
		"submission:grade",
		"cert:issue",
		"cert:view-all",
		"analytics:self",
		"analytics:course",
	},
	"admin": {
		"*", // everything
	},
}
