package main

import (
	"bufio"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/jmoiron/sqlx"
	"golang.org/x/term"

	"github.com/trezcool/escola/core"
	"github.com/trezcool/escola/core/grade"
)

var (
	isTerminalFunc = term.IsTerminal // mockable

	errHelp    = errors.New("help provided")
	errAborted = errors.New("aborted")
)

type commandLine struct {
	db       *sqlx.DB
	conf     *core.Config
	gradeSvc grade.Service
	in       io.Reader
	out      io.Writer
}

func (cli *commandLine) printUsage() {
	fmt.Fprintln(cli.out, "Usage:")
	fmt.Fprintln(cli.out, "  migrate COMMAND [ARGS]                                   - run a goose migration command")
	fmt.Fprintln(cli.out, "  recompute [-school ID]                                   - re-derive final averages and statuses")
	fmt.Fprintln(cli.out, "  token -user ID -role ROLE -school ID [-name NAME]        - mint an API token")
	fmt.Fprintln(cli.out, "  concepts                                                 - print the concept scale")
}

func (cli *commandLine) run(args []string) error {
	if len(args) < 2 {
		cli.printUsage()
		return errHelp
	}

	recomputeCmd := flag.NewFlagSet("recompute", flag.ContinueOnError)
	recomputeCmd.SetOutput(cli.out)
	recomputeSchool := recomputeCmd.String("school", "", "Only recompute this school. All schools are recomputed when empty.")

	tokenCmd := flag.NewFlagSet("token", flag.ContinueOnError)
	tokenCmd.SetOutput(cli.out)
	tokenUser := tokenCmd.String("user", "", "The user ID (token subject).")
	tokenRole := tokenCmd.String("role", "", "One of: "+strings.Join(core.AllRoles, ", "))
	tokenSchool := tokenCmd.String("school", "", "The school ID.")
	tokenName := tokenCmd.String("name", "", "The user's display name.")

	switch args[1] {
	case "migrate":
		if len(args) < 3 {
			cli.printUsage()
			return errHelp
		}
		return cli.migrate(args[2:])
	case "recompute":
		if err := recomputeCmd.Parse(args[2:]); err != nil {
			return errHelp
		}
		if *recomputeSchool == "" && !cli.confirm("Recompute the grades of every school?") {
			return errAborted
		}
		return cli.recompute(*recomputeSchool)
	case "token":
		if err := tokenCmd.Parse(args[2:]); err != nil {
			return errHelp
		}
		if *tokenUser == "" || *tokenRole == "" || *tokenSchool == "" {
			tokenCmd.Usage()
			return errHelp
		}
		return cli.token(core.Session{UserID: *tokenUser, Name: *tokenName, Role: *tokenRole, SchoolID: *tokenSchool})
	case "concepts":
		return cli.concepts()
	default:
		cli.printUsage()
		return errHelp
	}
}

// confirm asks a yes/no question when stdin is a terminal. Scripts are not prompted.
func (cli *commandLine) confirm(question string) bool {
	if !isTerminalFunc(int(os.Stdin.Fd())) {
		return true
	}
	fmt.Fprintf(cli.out, "%s [y/N] ", question)
	answer, _ := bufio.NewReader(cli.in).ReadString('\n')
	answer = core.CleanString(answer, true /* lower */)
	return answer == "y" || answer == "yes"
}
