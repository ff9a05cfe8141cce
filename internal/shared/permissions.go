package shared

// Permission keys follow the module.action convention.
const (
	PermUsersView   = "users.view"
	PermUsersEdit   = "users.edit"
	PermUsersDelete = "users.delete"

	PermRolesView = "roles.view"
	PermRolesEdit = "roles.edit"

	PermPermissionsView = "permissions.view"

	PermSettingsView = "settings.view"
	PermSettingsEdit = "settings.edit"

	PermLeadsView   = "leads.view"
	PermLeadsCreate = "leads.create"
	PermLeadsEdit   = "leads.edit"
	PermLeadsDelete = "leads.delete"

	PermDealsView   = "deals.view"
	PermDealsCreate = "deals.create"
	PermDealsEdit   = "deals.edit"
	PermDealsDelete = "deals.delete"

	PermActivitiesView   = "activities.view"
	PermActivitiesCreate = "activities.create"
	PermActivitiesEdit   = "activities.edit"
	PermActivitiesDelete = "activities.delete"

	PermCommunicationsView   = "communications.view"
	PermCommunicationsCreate = "communications.create"

	PermCompaniesView   = "companies.view"
	PermCompaniesCreate = "companies.create"
	PermCompaniesEdit   = "companies.edit"
	PermCompaniesDelete = "companies.delete"

	PermProductsView   = "products.view"
	PermProductsCreate = "products.create"
	PermProductsEdit   = "products.edit"
	PermProductsDelete = "products.delete"

	PermInvoicesView    = "invoices.view"
	PermInvoicesCreate  = "invoices.create"
	PermInvoicesEdit    = "invoices.edit"
	PermInvoicesDelete  = "invoices.delete"
	PermInvoicesSend    = "invoices.send"
	PermInvoicesPayment = "invoices.payment"
	PermInvoicesExport  = "invoices.export"

	PermQuotationsView    = "quotations.view"
	PermQuotationsCreate  = "quotations.create"
	PermQuotationsEdit    = "quotations.edit"
	PermQuotationsDelete  = "quotations.delete"
	PermQuotationsSend    = "quotations.send"
	PermQuotationsApprove = "quotations.approve"
	PermQuotationsConvert = "quotations.convert"

	PermAnalyticsView = "analytics.view"
	PermJobsView      = "jobs.view"
)

// PermissionDef describes one catalogue entry.
type PermissionDef struct {
	Key         string
	Module      string
	Description string
}

// Catalogue lists every permission known to the application.
func Catalogue() []PermissionDef {
	return []PermissionDef{
		{PermUsersView, "users", "View users"},
		{PermUsersEdit, "users", "Create and edit users, assign roles"},
		{PermUsersDelete, "users", "Deactivate and permanently delete users"},
		{PermRolesView, "roles", "View roles"},
		{PermRolesEdit, "roles", "Create, edit and delete roles"},
		{PermPermissionsView, "permissions", "View the permission catalogue"},
		{PermSettingsView, "settings", "View business settings"},
		{PermSettingsEdit, "settings", "Edit business settings"},
		{PermLeadsView, "leads", "View leads"},
		{PermLeadsCreate, "leads", "Create leads"},
		{PermLeadsEdit, "leads", "Edit leads"},
		{PermLeadsDelete, "leads", "Delete leads"},
		{PermDealsView, "deals", "View deals"},
		{PermDealsCreate, "deals", "Create deals"},
		{PermDealsEdit, "deals", "Edit deals"},
		{PermDealsDelete, "deals", "Delete deals"},
		{PermActivitiesView, "activities", "View activities"},
		{PermActivitiesCreate, "activities", "Create activities"},
		{PermActivitiesEdit, "activities", "Edit and complete activities"},
		{PermActivitiesDelete, "activities", "Delete activities"},
		{PermCommunicationsView, "communications", "View communications"},
		{PermCommunicationsCreate, "communications", "Log communications"},
		{PermCompaniesView, "companies", "View companies"},
		{PermCompaniesCreate, "companies", "Create companies"},
		{PermCompaniesEdit, "companies", "Edit companies"},
		{PermCompaniesDelete, "companies", "Delete companies"},
		{PermProductsView, "products", "View products"},
		{PermProductsCreate, "products", "Create products"},
		{PermProductsEdit, "products", "Edit products"},
		{PermProductsDelete, "products", "Delete products"},
		{PermInvoicesView, "invoices", "View invoices"},
		{PermInvoicesCreate, "invoices", "Create invoices"},
		{PermInvoicesEdit, "invoices", "Edit invoices and their items"},
		{PermInvoicesDelete, "invoices", "Delete invoices"},
		{PermInvoicesSend, "invoices", "Mark invoices as sent"},
		{PermInvoicesPayment, "invoices", "Record invoice payments"},
		{PermInvoicesExport, "invoices", "Export invoices as CSV"},
		{PermQuotationsView, "quotations", "View quotations"},
		{PermQuotationsCreate, "quotations", "Create quotations"},
		{PermQuotationsEdit, "quotations", "Edit quotations and their items"},
		{PermQuotationsDelete, "quotations", "Delete quotations"},
		{PermQuotationsSend, "quotations", "Mark quotations as sent"},
		{PermQuotationsApprove, "quotations", "Accept or reject quotations"},
		{PermQuotationsConvert, "quotations", "Generate invoices from quotations"},
		{PermAnalyticsView, "analytics", "View the dashboard"},
		{PermJobsView, "jobs", "Inspect background job queues"},
	}
}

// AllPermissionKeys returns the keys of Catalogue in order.
func AllPermissionKeys() []string {
	defs := Catalogue()
	keys := make([]string, len(defs))
	for i, d := range defs {
		keys[i] = d.Key
	}
	return keys
}
