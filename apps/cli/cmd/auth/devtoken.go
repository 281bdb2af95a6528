package auth

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/maison-mobility/maison-gate/platform/go/auth/devtoken"
)

func devTokenCommand() *cobra.Command {
	var (
		params   devtoken.Params
		secret   string
		unsigned bool
	)

	cmd := &cobra.Command{
		Use:   "devtoken",
		Short: "Generate an access token for local gateways (hmac or dev auth provider)",
		RunE: func(cmd *cobra.Command, args []string) error {
			now := time.Now().UTC()

			var (
				token string
				err   error
			)
			if unsigned {
				token, err = devtoken.BuildUnsignedToken(params, now)
			} else {
				if secret == "" {
					secret = os.Getenv("JWT_SECRET")
				}
				if secret == "" {
					return errors.New("--secret or JWT_SECRET is required for signed tokens (use --unsigned for AUTH_PROVIDER=dev)")
				}
				token, err = devtoken.BuildSignedToken(params, []byte(secret), now)
			}
			if err != nil {
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}

	// Required claims
	cmd.Flags().StringVar(&params.Subject, "subject", "", "sub claim")
	cmd.Flags().StringVar(&params.Role, "role", "", "role claim: tenant | driver | rider | admin")

	// Optional claims
	cmd.Flags().StringVar(&params.Tenant, "tenant", "", "tenant slug claim; required for driver and rider")
	cmd.Flags().StringVar(&params.Issuer, "issuer", "", "iss claim")
	cmd.Flags().DurationVar(&params.ExpiresIn, "expires-in", time.Hour, "token lifetime (e.g. 30m, 2h)")

	cmd.Flags().StringVar(&secret, "secret", "", "HS256 secret; defaults to JWT_SECRET")
	cmd.Flags().BoolVar(&unsigned, "unsigned", false, "emit an alg=none token for AUTH_PROVIDER=dev")

	_ = cmd.MarkFlagRequired("subject")
	_ = cmd.MarkFlagRequired("role")

	return cmd
}
