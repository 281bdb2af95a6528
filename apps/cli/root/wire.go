package root

import (
	"github.com/maison-mobility/maison-gate/apps/cli/cmd/auth"
	"github.com/maison-mobility/maison-gate/apps/cli/cmd/bootstrap"
	tenantcmd "github.com/maison-mobility/maison-gate/apps/cli/cmd/tenant"
)

func init() {
	Root().AddCommand(auth.Command())
	Root().AddCommand(tenantcmd.Command())
	Root().AddCommand(bootstrap.Command())
}
