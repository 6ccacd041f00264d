package main

import (
	"context"
	"fmt"

	"github.com/pkg/errors"
)

func (cli *commandLine) recompute(schoolID string) error {
	ctx := context.Background()
	if cli.conf.Scheduler.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cli.conf.Scheduler.Timeout)
		defer cancel()
	}

	var (
		n   int
		err error
	)
	if schoolID == "" {
		n, err = cli.gradeSvc.RecomputeAll(ctx)
	} else {
		n, err = cli.gradeSvc.Recompute(ctx, schoolID)
	}
	if err != nil {
		return errors.Wrap(err, "recomputing grades")
	}
	fmt.Fprintf(cli.out, "%d records updated\n", n)
	return nil
}
