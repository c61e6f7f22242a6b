package main

import (
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	pkgerrors "github.com/pkg/errors"
	"golang.org/x/term"

	"github.com/trezcool/educa/core"
	"github.com/trezcool/educa/core/course"
	"github.com/trezcool/educa/core/user"
)

var (
	readPasswordFunc = term.ReadPassword // mockable

	errHelp       = errors.New("help provided")
	errPwdMissing = errors.New("password is required")
)

type commandLine struct {
	db         *sql.DB
	usrSvc     user.Service
	crsSvc     course.Service
	validate   *validator.Validate
	translator ut.Translator
	out        io.Writer
}

func (cli *commandLine) printf(format string, a ...interface{}) {
	_, _ = fmt.Fprintf(cli.out, format, a...)
}

func (cli *commandLine) printUsage() {
	cli.printf("Usage:\n")
	cli.printf("  migrate COMMAND [ARGS] - run a goose command (up, up-to, down, down-to, redo, reset, status, version)\n")
	cli.printf("  adduser -name NAME -username USERNAME [-email EMAIL] [-instructor] [-admin] - create an active user\n")
	cli.printf("  addsubject -title TITLE [-slug SLUG] - create a subject\n")
	cli.printf("  resetpassword -username USERNAME|EMAIL - reset user's password\n")
}

// readPassword prompts for a password on the terminal.
func (cli *commandLine) readPassword(prompt string) (string, error) {
	cli.printf("%s", prompt)
	pwd, err := readPasswordFunc(int(os.Stdin.Fd()))
	cli.printf("\n")
	if err != nil {
		return "", pkgerrors.Wrap(err, "reading password")
	}
	if len(pwd) == 0 {
		return "", errPwdMissing
	}
	return string(pwd), nil
}

func (cli *commandLine) run(args []string) error {
	if len(args) < 2 {
		cli.printUsage()
		return errHelp
	}

	switch args[1] {
	case "migrate":
		if len(args) < 3 {
			cli.printUsage()
			return errHelp
		}
		return cli.migrate(args[2:])

	case "adduser":
		cmd := flag.NewFlagSet("adduser", flag.ContinueOnError)
		cmd.SetOutput(cli.out)
		name := cmd.String("name", "", "The user's full name.")
		uname := cmd.String("username", "", "The user's username.")
		email := cmd.String("email", "", "The user's email.")
		isInstructor := cmd.Bool("instructor", false, "Give the instructor role.")
		isAdmin := cmd.Bool("admin", false, "Give all roles.")
		if err := cmd.Parse(args[2:]); err != nil {
			return errHelp
		}
		if *name == "" || (*uname == "" && *email == "") {
			cmd.Usage()
			return errHelp
		}
		pwd, err := cli.readPassword("Enter password:")
		if err != nil {
			return err
		}

		roles := []string{user.RoleStudent}
		switch {
		case *isAdmin:
			roles = user.AllRoles
		case *isInstructor:
			roles = []string{user.RoleInstructor}
		}
		return cli.addUser(user.NewUser{
			Name:            *name,
			Username:        *uname,
			Email:           *email,
			Password:        pwd,
			PasswordConfirm: pwd,
			Roles:           roles,
		})

	case "addsubject":
		cmd := flag.NewFlagSet("addsubject", flag.ContinueOnError)
		cmd.SetOutput(cli.out)
		title := cmd.String("title", "", "The subject's title.")
		slug := cmd.String("slug", "", "The subject's slug (defaults to the slugified title).")
		if err := cmd.Parse(args[2:]); err != nil {
			return errHelp
		}
		if *title == "" {
			cmd.Usage()
			return errHelp
		}
		return cli.addSubject(course.NewSubject{Title: *title, Slug: *slug})

	case "resetpassword":
		cmd := flag.NewFlagSet("resetpassword", flag.ContinueOnError)
		cmd.SetOutput(cli.out)
		uname := cmd.String("username", "", "The user's username or email. The password will be prompted next.")
		if err := cmd.Parse(args[2:]); err != nil {
			return errHelp
		}
		if *uname == "" {
			cmd.Usage()
			return errHelp
		}
		pwd, err := cli.readPassword("Enter password:")
		if err != nil {
			return err
		}
		return cli.resetPassword(*uname, pwd)

	default:
		cli.printUsage()
		return errHelp
	}
}

// describe renders validation errors as `field: message` lines.
func (cli *commandLine) describe(err error) string {
	var lines []string
	switch origErr := pkgerrors.Cause(err).(type) {
	case validator.ValidationErrors:
		for _, vErr := range origErr {
			lines = append(lines, vErr.Field()+": "+vErr.Translate(cli.translator))
		}
	case *core.ValidationError:
		for fld, msg := range origErr.FieldMap() {
			lines = append(lines, fld+": "+msg)
		}
		if len(lines) == 0 {
			return origErr.Error()
		}
	default:
		return err.Error()
	}
	sort.Strings(lines)
	return strings.Join(lines, "\n")
}
