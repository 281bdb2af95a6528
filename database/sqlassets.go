package sqlassets

import _ "embed"

//go:embed schema/tenants.sql
var TenantsSQL string
