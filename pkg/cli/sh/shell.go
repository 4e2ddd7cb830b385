package sh

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"

	"github.com/abiosoft/ishell"

	"github.com/robotalks/reflash/pkg/config"
	"github.com/robotalks/reflash/pkg/link"
)

// Shell provides ishell backed interactive shell.
type Shell struct {
	Interactive bool
	OutputJSON  bool

	Shell *ishell.Shell
	Env   *config.Env
}

const shellKey = "$shell"

var (
	// flags

	evalOnly   bool
	outputJSON bool

	// commands
	commands = []*ishell.Cmd{
		&PortCmd,
	}
)

func init() {
	flag.BoolVar(&evalOnly, "e", evalOnly, "Evaluation only, no interactive shell.")
	flag.BoolVar(&outputJSON, "json", outputJSON, "Print output in JSON.")
}

// AddCmds is used by other commands providers during init func.
func AddCmds(cmds ...*ishell.Cmd) {
	commands = append(commands, cmds...)
}

// New creates a new shell.
func New(env *config.Env) *Shell {
	s := &Shell{
		Interactive: !evalOnly,
		OutputJSON:  outputJSON,

		Shell: ishell.New(),
		Env:   env,
	}
	s.Shell.Set(shellKey, s)
	s.updatePrompt()
	for _, cmd := range commands {
		s.Shell.AddCmd(cmd)
	}
	return s
}

// ShellFrom gets Shell from ishell context.
func ShellFrom(c *ishell.Context) *Shell {
	return c.Get(shellKey).(*Shell)
}

func (s *Shell) updatePrompt() {
	s.Shell.SetPrompt(fmt.Sprintf("[%s] > ", s.Env.Config.Port))
}

// Context returns the context for device operations.
func (s *Shell) Context() context.Context {
	return context.Background()
}

// OpenLink opens the configured port.
func (s *Shell) OpenLink() (*link.Link, error) {
	return s.Env.Dialer.Open(s.Env.Config.Port)
}

// WithLink wraps command func requiring an open port. The port is closed when
// the command returns.
func WithLink(fn func(c *ishell.Context, l *link.Link)) func(c *ishell.Context) {
	return func(c *ishell.Context) {
		l, err := ShellFrom(c).OpenLink()
		if err != nil {
			c.Err(err)
			return
		}
		defer l.Close()
		fn(c, l)
	}
}

// Output prints v as JSON in JSON mode, or text otherwise.
func (s *Shell) Output(c *ishell.Context, v interface{}, text string) {
	if !s.OutputJSON {
		c.Println(text)
		return
	}
	out, err := json.Marshal(v)
	if err != nil {
		c.Err(err)
		return
	}
	c.Println(string(out))
}

// Run runs the shell.
func (s *Shell) Run(args ...string) {
	if len(args) > 0 {
		if err := s.Shell.Process(args...); err != nil {
			log.Fatalln(err)
		}
		return
	}
	if s.Interactive {
		s.Shell.Run()
		return
	}
	log.Fatalln("command expected")
}

// PortCmd shows or switches the serial port.
var PortCmd = ishell.Cmd{
	Name: "port",
	Help: "[PORT]",
	Func: func(c *ishell.Context) {
		s := ShellFrom(c)
		if len(c.Args) > 0 {
			s.Env.Config.Port = c.Args[0]
			s.updatePrompt()
		}
		s.Output(c, map[string]string{"port": s.Env.Config.Port}, s.Env.Config.Port)
	},
}

// Main is a helper to provide a single call in main.
func Main() {
	config.SetupFlags()
	flag.Parse()
	env := config.Default().MustNewEnv()
	defer env.Close()
	New(env).Run(flag.Args()...)
}
