package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/alecthomas/kingpin/v2"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/eugenenazirov/envfriend/internal/dom"
	"github.com/eugenenazirov/envfriend/internal/environment"
	"github.com/eugenenazirov/envfriend/internal/fetcher"
	"github.com/eugenenazirov/envfriend/internal/logging"
	"github.com/eugenenazirov/envfriend/internal/page"
	"github.com/eugenenazirov/envfriend/internal/urltemplate"
)

func main() {
	if err := run(context.Background(), os.Args[1:], os.Stdin, os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "envctl: %v\n", err)
		os.Exit(1)
	}
}

// sessionFlags are shared by every command that resolves an environment.
type sessionFlags struct {
	override     *string
	global       *string
	host         *string
	environments *string
}

func addSessionFlags(cmd *kingpin.CmdClause) sessionFlags {
	return sessionFlags{
		override:     cmd.Flag("override", "Override the environment of the project for this invocation").String(),
		global:       cmd.Flag("global", "Global environment used when no override is set").Envar("ENVFRIEND_GLOBAL_ENVIRONMENT").String(),
		host:         cmd.Flag("host", "Host serving <project>/environments.json").String(),
		environments: cmd.Flag("environments", "Local environments.json used instead of a remote fetch").String(),
	}
}

func run(ctx context.Context, args []string, stdin io.Reader, stdout io.Writer) error {
	app := kingpin.New("envctl", "Resolve deployment environments and environment-specific URLs")
	app.Terminate(nil)
	app.UsageWriter(stdout)
	configHost := app.Flag("config-host", "Default host serving environment configurations").Default(fetcher.DefaultHost).Envar("ENVFRIEND_CONFIG_HOST").String()
	timeout := app.Flag("timeout", "Timeout for configuration fetches").Default("5s").Duration()
	logLevel := app.Flag("log-level", "Log level (debug, info, warn, error)").Default("warn").String()

	currentCmd := app.Command("current", "Print the active environment of a project")
	currentProject := currentCmd.Arg("project", "Project name").Required().String()
	currentFlags := addSessionFlags(currentCmd)

	urlCmd := app.Command("url", "Substitute the active environment into a URL template")
	urlProject := urlCmd.Arg("project", "Project name").Required().String()
	urlTemplate := urlCmd.Arg("template", "URL containing {env}").Required().String()
	urlFlags := addSessionFlags(urlCmd)

	filenameCmd := app.Command("filename", "Print the last path segment of a URL")
	filenameURL := filenameCmd.Arg("url", "URL to inspect").Required().String()

	injectCmd := app.Command("inject", "Append elements to an HTML document")
	injectProject := injectCmd.Arg("project", "Project name").Required().String()
	injectElements := injectCmd.Flag("elements", "YAML file listing the elements to append").Required().ExistingFile()
	injectIn := injectCmd.Flag("in", "HTML input file (default stdin)").String()
	injectOut := injectCmd.Flag("out", "HTML output file (default stdout)").String()
	injectFlags := addSessionFlags(injectCmd)

	command, err := app.Parse(args)
	if err != nil {
		return err
	}
	if command == "" {
		// --help was handled by kingpin.
		return nil
	}

	logger, err := logging.New(*logLevel)
	if err != nil {
		return err
	}
	defer func() {
		_ = logger.Sync()
	}()

	env := cliEnv{host: *configHost, timeout: *timeout, logger: logger}

	switch command {
	case currentCmd.FullCommand():
		sess, _, err := env.session(*currentProject, currentFlags)
		if err != nil {
			return err
		}
		current, err := sess.CurrentEnvironmentString(*currentProject)
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(stdout, current)
		return err

	case urlCmd.FullCommand():
		sess, opts, err := env.session(*urlProject, urlFlags)
		if err != nil {
			return err
		}
		resolved, err := sess.EnvironmentURL(ctx, *urlTemplate, *urlProject, opts)
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(stdout, resolved)
		return err

	case filenameCmd.FullCommand():
		_, err := fmt.Fprintln(stdout, urltemplate.FilenameFromURL(*filenameURL))
		return err

	case injectCmd.FullCommand():
		sess, opts, err := env.session(*injectProject, injectFlags)
		if err != nil {
			return err
		}
		elements, err := readElements(*injectElements)
		if err != nil {
			return err
		}
		return inject(ctx, sess, elements, opts, *injectIn, *injectOut, stdin, stdout)
	}

	return fmt.Errorf("unknown command %q", command)
}

type cliEnv struct {
	host    string
	timeout time.Duration
	logger  *zap.Logger
}

// session builds a page context scoped to one invocation. Overrides live in
// memory and are discarded on exit.
func (e cliEnv) session(project string, flags sessionFlags) (*page.Session, page.URLOptions, error) {
	f := fetcher.New(
		fetcher.WithDefaultHost(e.host),
		fetcher.WithTimeout(e.timeout),
	)
	p := page.New(e.logger,
		page.WithFetcher(f),
		page.WithGlobalEnvironment(*flags.global),
	)
	sess := p.Session(environment.NewMemoryStore())

	opts := page.URLOptions{Project: project, Host: *flags.host}
	if *flags.environments != "" {
		file, err := readEnvironments(*flags.environments)
		if err != nil {
			return nil, opts, err
		}
		opts.Environments = &file
	}

	if *flags.override != "" {
		if err := sess.OverrideCurrentEnvironment(project, *flags.override); err != nil {
			return nil, opts, err
		}
	}
	return sess, opts, nil
}

func readEnvironments(path string) (environment.File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return environment.File{}, fmt.Errorf("read environments: %w", err)
	}
	file, err := environment.ParseFile(data)
	if err != nil {
		return environment.File{}, fmt.Errorf("%s: %w", path, err)
	}
	return file, nil
}

func readElements(path string) ([]dom.Element, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read elements: %w", err)
	}
	var elements []dom.Element
	if err := yaml.Unmarshal(data, &elements); err != nil {
		return nil, fmt.Errorf("parse elements %s: %w", path, err)
	}
	return elements, nil
}

func inject(ctx context.Context, sess *page.Session, elements []dom.Element, opts page.URLOptions, in, out string, stdin io.Reader, stdout io.Writer) error {
	src := stdin
	if in != "" && in != "-" {
		f, err := os.Open(in)
		if err != nil {
			return fmt.Errorf("open input: %w", err)
		}
		defer f.Close()
		src = f
	}

	doc, err := dom.Parse(src)
	if err != nil {
		return err
	}
	if err := sess.AppendEl(ctx, doc, elements, opts); err != nil {
		return err
	}

	if out == "" || out == "-" {
		return dom.Render(stdout, doc)
	}
	f, err := os.Create(out)
	if err != nil {
		return fmt.Errorf("create output: %w", err)
	}
	if err := dom.Render(f, doc); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}
