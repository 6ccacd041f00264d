package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/pkg/errors"

	"github.com/trezcool/escola/core"
	"github.com/trezcool/escola/core/auth"
	"github.com/trezcool/escola/core/grade"
)

func (cli *commandLine) token(sess core.Session) error {
	claims := auth.NewClaims(sess, cli.conf)
	if err := claims.Valid(); err != nil {
		return errors.Wrap(err, "invalid token claims")
	}
	token, err := auth.GenerateToken(claims, cli.conf.SecretKey)
	if err != nil {
		return err
	}
	fmt.Fprintln(cli.out, token)
	return nil
}

func (cli *commandLine) concepts() error {
	w := tabwriter.NewWriter(cli.out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "KEY\tLABEL\tGRADE")
	for _, c := range grade.Concepts() {
		fmt.Fprintf(w, "%s\t%s\t%g\n", c.Key, c.Label, c.Grade)
	}
	return w.Flush()
}
