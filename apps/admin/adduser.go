package main

import (
	"context"

	"github.com/trezcool/educa/core/user"
)

// addUser creates an active user.User; the password policy applies.
func (cli *commandLine) addUser(nu user.NewUser) error {
	ctx := context.Background()
	if err := nu.Validate(ctx, cli.validate, cli.usrSvc); err != nil {
		return err
	}
	usr, err := cli.usrSvc.Create(ctx, nu)
	if err != nil {
		return err
	}
	cli.printf("user %q created with roles %v\n", usr.Username, usr.Roles)
	return nil
}
