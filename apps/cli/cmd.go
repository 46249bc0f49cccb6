package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"

	"github.com/pkg/errors"
	"golang.org/x/term"

	"github.com/trezcool/masomo-portal/core"
	"github.com/trezcool/masomo-portal/core/attendance"
	"github.com/trezcool/masomo-portal/core/enrollment"
	"github.com/trezcool/masomo-portal/core/messaging"
	"github.com/trezcool/masomo-portal/core/query"
	"github.com/trezcool/masomo-portal/core/school"
	"github.com/trezcool/masomo-portal/core/session"
	apisvc "github.com/trezcool/masomo-portal/services/api"
)

var (
	readPasswordFunc = term.ReadPassword // mockable

	// watchContext bounds the polling subcommands; mockable.
	watchContext = func() (context.Context, context.CancelFunc) {
		return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	}

	errHelp           = errors.New("help provided")
	errSessionExpired = session.ErrTokenExpired
	errNotLoggedIn    = errors.New("not logged in, run: schoolctl login -email EMAIL")
)

type commandLine struct {
	api       *apisvc.Client
	tokens    session.TokenStore
	cache     *query.Cache
	validator *core.Validator
	logger    core.Logger
	out       io.Writer
}

// account is the signed-in user of one invocation, with services bound to the session token.
type account struct {
	user       school.User
	session    *session.Store
	enrollment *enrollment.Service
	attendance *attendance.Service
	messaging  *messaging.Service
}

func (cli *commandLine) printUsage() {
	fmt.Fprintln(cli.out, "Usage:")
	fmt.Fprintln(cli.out, "  login -email EMAIL                          - sign in (the password is prompted)")
	fmt.Fprintln(cli.out, "  logout                                      - sign out")
	fmt.Fprintln(cli.out, "  whoami                                      - show the signed-in user")
	fmt.Fprintln(cli.out, "  courses                                     - list courses with your enrollment status")
	fmt.Fprintln(cli.out, "  invitations                                 - list pending course invitations")
	fmt.Fprintln(cli.out, "  request -course ID                          - request access to a course")
	fmt.Fprintln(cli.out, "  invite -course ID -email EMAIL              - invite a student to a course")
	fmt.Fprintln(cli.out, "  respond -enrollment ID -accept|-decline     - answer an invitation")
	fmt.Fprintln(cli.out, "  attendance [-course ID -date YYYY-MM-DD] [ENROLLMENT=STATUS[:NOTE]...]")
	fmt.Fprintln(cli.out, "                                              - show or mark attendance")
	fmt.Fprintln(cli.out, "  unread [-watch]                             - unread messages and notifications")
	fmt.Fprintln(cli.out, "  chat -with USER_ID [-send TEXT] [-watch]    - read or write a conversation")
}

func (cli *commandLine) run(args []string) error {
	if len(args) < 2 {
		cli.printUsage()
		return errHelp
	}

	loginCmd := flag.NewFlagSet("login", flag.ContinueOnError)
	loginEmail := loginCmd.String("email", "", "Your email. The password will be prompted next.")

	requestCmd := flag.NewFlagSet("request", flag.ContinueOnError)
	requestCourse := requestCmd.String("course", "", "The course ID.")

	inviteCmd := flag.NewFlagSet("invite", flag.ContinueOnError)
	inviteCourse := inviteCmd.String("course", "", "The course ID.")
	inviteEmail := inviteCmd.String("email", "", "The student's email.")

	respondCmd := flag.NewFlagSet("respond", flag.ContinueOnError)
	respondEnrollment := respondCmd.String("enrollment", "", "The invitation (enrollment) ID.")
	respondAccept := respondCmd.Bool("accept", false, "Accept the invitation.")
	respondDecline := respondCmd.Bool("decline", false, "Decline the invitation.")

	attendanceCmd := flag.NewFlagSet("attendance", flag.ContinueOnError)
	attendanceCourse := attendanceCmd.String("course", "", "The course ID (staff).")
	attendanceDate := attendanceCmd.String("date", "", "The session date, YYYY-MM-DD (staff).")

	unreadCmd := flag.NewFlagSet("unread", flag.ContinueOnError)
	unreadWatch := unreadCmd.Bool("watch", false, "Keep polling until interrupted.")

	chatCmd := flag.NewFlagSet("chat", flag.ContinueOnError)
	chatWith := chatCmd.String("with", "", "The other user's ID.")
	chatSend := chatCmd.String("send", "", "A message to send first.")
	chatWatch := chatCmd.Bool("watch", false, "Keep polling until interrupted.")

	for _, fs := range []*flag.FlagSet{loginCmd, requestCmd, inviteCmd, respondCmd, attendanceCmd, unreadCmd, chatCmd} {
		fs.SetOutput(cli.out)
	}

	ctx := context.Background()

	switch args[1] {
	case "login":
		if err := loginCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *loginEmail == "" {
			loginCmd.Usage()
			return errHelp
		}
		fmt.Fprint(cli.out, "Enter password:")
		pwd, err := readPasswordFunc(int(syscall.Stdin))
		fmt.Fprintln(cli.out)
		if err != nil {
			return err
		}
		if len(pwd) == 0 {
			loginCmd.Usage()
			return errHelp
		}
		return cli.login(ctx, *loginEmail, string(pwd))

	case "logout":
		return cli.logout(ctx)

	case "whoami":
		return cli.withAccount(ctx, cli.whoami)

	case "courses":
		return cli.withAccount(ctx, cli.courses)

	case "invitations":
		return cli.withAccount(ctx, cli.invitations)

	case "request":
		if err := requestCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *requestCourse == "" {
			requestCmd.Usage()
			return errHelp
		}
		return cli.withAccount(ctx, func(ctx context.Context, acc *account) error {
			return cli.requestAccess(ctx, acc, *requestCourse)
		})

	case "invite":
		if err := inviteCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *inviteCourse == "" || *inviteEmail == "" {
			inviteCmd.Usage()
			return errHelp
		}
		return cli.withAccount(ctx, func(ctx context.Context, acc *account) error {
			return cli.invite(ctx, acc, *inviteCourse, *inviteEmail)
		})

	case "respond":
		if err := respondCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *respondEnrollment == "" || *respondAccept == *respondDecline {
			respondCmd.Usage()
			return errHelp
		}
		return cli.withAccount(ctx, func(ctx context.Context, acc *account) error {
			return cli.respond(ctx, acc, *respondEnrollment, *respondAccept)
		})

	case "attendance":
		if err := attendanceCmd.Parse(args[2:]); err != nil {
			return err
		}
		return cli.withAccount(ctx, func(ctx context.Context, acc *account) error {
			if acc.user.Role.IsStudent() {
				return cli.myAttendance(ctx, acc)
			}
			if *attendanceCourse == "" || *attendanceDate == "" {
				attendanceCmd.Usage()
				return errHelp
			}
			return cli.markAttendance(ctx, acc, *attendanceCourse, *attendanceDate, attendanceCmd.Args())
		})

	case "unread":
		if err := unreadCmd.Parse(args[2:]); err != nil {
			return err
		}
		return cli.withAccount(ctx, func(ctx context.Context, acc *account) error {
			return cli.unread(ctx, acc, *unreadWatch)
		})

	case "chat":
		if err := chatCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *chatWith == "" {
			chatCmd.Usage()
			return errHelp
		}
		return cli.withAccount(ctx, func(ctx context.Context, acc *account) error {
			return cli.chat(ctx, acc, *chatWith, *chatSend, *chatWatch)
		})

	default:
		cli.printUsage()
		return errHelp
	}
}

func (cli *commandLine) newSession() *session.Store {
	return session.NewStore(cli.tokens, cli.api.ResolveUser, cli.logger)
}

// withAccount restores the saved session and runs fn as its user.
// An expired or rejected token ends the session.
func (cli *commandLine) withAccount(ctx context.Context, fn func(context.Context, *account) error) error {
	st := cli.newSession()
	if err := st.Open(ctx); err != nil {
		return err
	}
	usr, err := st.Wait(ctx)
	if err != nil {
		cause := st.Err()
		switch {
		case cause == nil:
			return errNotLoggedIn
		case apisvc.IsUnauthorized(cause):
			return cli.expired(st)
		default:
			return errors.Wrap(cause, "resolving session")
		}
	}

	api := cli.api.WithToken(st.Token())
	queries := cli.cache.Scope(usr.ID)
	acc := &account{
		user:       usr,
		session:    st,
		enrollment: enrollment.NewService(api, queries, cli.validator),
		attendance: attendance.NewService(api, queries, cli.validator),
		messaging:  messaging.NewService(api, queries, cli.validator),
	}
	if err = fn(ctx, acc); err != nil && apisvc.IsUnauthorized(err) {
		return cli.expired(st)
	}
	return err
}

func (cli *commandLine) expired(st *session.Store) error {
	if err := st.Logout(); err != nil {
		cli.logger.Error("clearing token", err)
	}
	fmt.Fprintln(cli.out, errSessionExpired.Error())
	return errSessionExpired
}

func (cli *commandLine) table() *tabwriter.Writer {
	return tabwriter.NewWriter(cli.out, 0, 4, 2, ' ', 0)
}

// printFormError unwraps a rejection to its form message.
func (cli *commandLine) printFormError(err error) error {
	if fErr := apisvc.FormError(err); fErr != nil {
		return fErr
	}
	return err
}

func parseMarks(args []string) (map[string][2]string, error) {
	marks := make(map[string][2]string, len(args))
	for _, arg := range args {
		id, rest, ok := strings.Cut(arg, "=")
		if !ok || id == "" || rest == "" {
			return nil, errors.Errorf("invalid mark %q, want ENROLLMENT=STATUS[:NOTE]", arg)
		}
		status, note, _ := strings.Cut(rest, ":")
		marks[id] = [2]string{status, note}
	}
	return marks, nil
}
