package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/fwojciec/audit"
	bt "github.com/fwojciec/audit/bubbletea"
	"github.com/fwojciec/audit/fs"
	"github.com/fwojciec/audit/gemini"
	"github.com/fwojciec/audit/markdown"
	"github.com/fwojciec/audit/pipeline"
	"github.com/spf13/cobra"
)

const reportWidth = 80

// app is the per-invocation state shared by every subcommand.
type app struct {
	cfg    config
	logger *slog.Logger
	closer io.Closer
}

func newRootCmd(env environment) *cobra.Command {
	var opts options

	root := &cobra.Command{
		Use:           "audit",
		Short:         "Chat with the multi-stage audit pipeline",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runChat(cmd, opts, env)
		},
	}

	f := root.PersistentFlags()
	f.StringVar(&opts.ConfigPath, "config", "", "config file (default ~/.audit/config.yaml)")
	f.StringVar(&opts.Endpoint, "endpoint", "", "pipeline base URL (env AUDIT_ENDPOINT)")
	f.StringVar(&opts.Token, "token", "", "bearer token (env AUDIT_TOKEN)")
	f.StringVar(&opts.Scenario, "scenario", "", "audit scenario (default \""+audit.DefaultScenario+"\")")
	f.StringVar(&opts.SessionID, "session", "", "session id (default: random)")
	f.StringVar(&opts.DocsPath, "docs", "", "YAML document manifest written by `audit upload`")
	f.StringArrayVar(&opts.References, "reference", nil, "reference file or glob to upload (repeatable)")
	f.StringArrayVar(&opts.Targets, "target", nil, "target file or glob to upload (repeatable)")
	f.StringVar(&opts.LogFile, "log-file", "", "log file (default ~/.audit/audit.log)")
	f.BoolVar(&opts.Debug, "debug", false, "log at debug level")

	root.AddCommand(
		&cobra.Command{
			Use:   "chat",
			Short: "Start the interactive chat (default)",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return runChat(cmd, opts, env)
			},
		},
		&cobra.Command{
			Use:   "ask question...",
			Short: "Send one message and print the report",
			Args:  cobra.MinimumNArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return runAskCmd(cmd, opts, env, strings.Join(args, " "))
			},
		},
		&cobra.Command{
			Use:   "upload",
			Short: "Upload --reference and --target files and print a document manifest",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return runUpload(cmd, opts, env)
			},
		},
	)
	return root
}

func setup(opts options, env environment) (*app, error) {
	path, explicit := opts.ConfigPath, opts.ConfigPath != ""
	if !explicit {
		path = defaultConfigPath(env.Home)
	}
	fc, err := loadFileConfig(path, explicit)
	if err != nil {
		return nil, err
	}
	cfg := resolveConfig(opts, env, fc)

	logger, closer, err := newLogger(cfg.LogFile, cfg.Debug)
	if err != nil {
		return nil, err
	}
	return &app{cfg: cfg, logger: logger, closer: closer}, nil
}

func (a *app) runner() *audit.Runner {
	client := pipeline.New(a.cfg.Endpoint,
		pipeline.WithToken(a.cfg.Token),
		pipeline.WithLogger(a.logger),
	)
	return audit.NewRunner(client, audit.WithRunnerLogger(a.logger))
}

// documents returns the manifest from --docs plus any --reference and
// --target files uploaded now.
func (a *app) documents(ctx context.Context) (manifest, error) {
	var m manifest
	if a.cfg.DocsPath != "" {
		loaded, err := loadManifest(a.cfg.DocsPath)
		if err != nil {
			return m, err
		}
		m = loaded
	}
	if len(a.cfg.References) == 0 && len(a.cfg.Targets) == 0 {
		return m, nil
	}
	uploaded, err := a.upload(ctx)
	if err != nil {
		return m, err
	}
	m.References = append(m.References, uploaded.References...)
	m.Targets = append(m.Targets, uploaded.Targets...)
	return m, nil
}

func (a *app) upload(ctx context.Context) (manifest, error) {
	var m manifest
	if a.cfg.GeminiKey == "" {
		return m, errors.New("GEMINI_API_KEY is required to upload documents")
	}
	store, err := gemini.New(ctx, a.cfg.GeminiKey, gemini.WithLogger(a.logger))
	if err != nil {
		return m, err
	}
	if m.References, err = uploadPatterns(ctx, store, a.cfg.References, audit.DocumentReference); err != nil {
		return m, err
	}
	if m.Targets, err = uploadPatterns(ctx, store, a.cfg.Targets, audit.DocumentTarget); err != nil {
		return m, err
	}
	return m, nil
}

func uploadPatterns(ctx context.Context, store *gemini.Store, patterns []string, typ audit.DocumentType) ([]audit.Document, error) {
	if len(patterns) == 0 {
		return nil, nil
	}
	paths, err := fs.Expand(patterns)
	if err != nil {
		return nil, err
	}
	return store.UploadAll(ctx, paths, typ)
}

func runChat(cmd *cobra.Command, opts options, env environment) error {
	a, err := setup(opts, env)
	if err != nil {
		return err
	}
	defer a.closer.Close()

	ctx := cmd.Context()
	docs, err := a.documents(ctx)
	if err != nil {
		return err
	}

	cfg := bt.Config{
		Scenario:   a.cfg.Scenario,
		SessionID:  a.cfg.SessionID,
		References: docs.References,
		Targets:    docs.Targets,
	}
	a.logger.Info("chat started", "endpoint", a.cfg.Endpoint, "session_id", a.cfg.SessionID)
	return bt.Run(ctx, bt.New(a.runner().Open, cfg, audit.DefaultTheme()))
}

func runAskCmd(cmd *cobra.Command, opts options, env environment, message string) error {
	a, err := setup(opts, env)
	if err != nil {
		return err
	}
	defer a.closer.Close()

	ctx := cmd.Context()
	docs, err := a.documents(ctx)
	if err != nil {
		return err
	}

	req := audit.Request{
		Message:    message,
		Scenario:   a.cfg.Scenario,
		SessionID:  a.cfg.SessionID,
		References: docs.References,
		Targets:    docs.Targets,
	}
	return runAsk(ctx, cmd.OutOrStdout(), cmd.ErrOrStderr(), a.runner(), req)
}

// runAsk sends req, reports stage progress on progress and writes the
// rendered report to out.
func runAsk(ctx context.Context, out, progress io.Writer, r *audit.Runner, req audit.Request) error {
	s, err := r.Open(ctx, req)
	if err != nil {
		return err
	}

	c, h := audit.Conversation{}.AppendUser(req.Message).BeginAssistant()
	var shown []audit.Stage
	c, result := audit.Drain(c, h, s, func(c audit.Conversation) {
		t, _ := c.Turn(h)
		for _, st := range t.Stages {
			if containsStage(shown, st) {
				continue
			}
			mark := "•"
			if st.State == audit.StageCompleted {
				mark = "✓"
			}
			fmt.Fprintf(progress, "%s %s\n", mark, st.Name)
		}
		shown = t.Stages
	})

	t, _ := c.Turn(h)
	content := t.Content
	if content == "" {
		content = "(no response)"
	}
	fmt.Fprintln(out, markdown.Render(content, reportWidth, audit.DefaultTheme()))

	switch result.State {
	case audit.SessionFailed:
		return fmt.Errorf("audit failed: %w", result.Err)
	case audit.SessionCancelled:
		return context.Canceled
	}
	return nil
}

func containsStage(stages []audit.Stage, st audit.Stage) bool {
	for _, s := range stages {
		if s == st {
			return true
		}
	}
	return false
}

func runUpload(cmd *cobra.Command, opts options, env environment) error {
	a, err := setup(opts, env)
	if err != nil {
		return err
	}
	defer a.closer.Close()

	if len(a.cfg.References) == 0 && len(a.cfg.Targets) == 0 {
		return errors.New("nothing to upload: pass --reference or --target")
	}
	m, err := a.upload(cmd.Context())
	if err != nil {
		return err
	}
	return writeManifest(cmd.OutOrStdout(), m)
}
