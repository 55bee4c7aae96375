package services

import (
	"context"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/olivejs/ginger/internal/appinfo"
	"github.com/olivejs/ginger/internal/config"
	gerrors "github.com/olivejs/ginger/internal/errors"
	"github.com/olivejs/ginger/internal/logging"
	"github.com/olivejs/ginger/internal/scaffolding"
	"github.com/olivejs/ginger/internal/templates"
)

// InitService handles project and pod scaffolding.
type InitService struct {
	logger logging.Logger
}

// NewInitService creates a new initialization service.
func NewInitService(logger logging.Logger) *InitService {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &InitService{logger: logger.WithComponent("init")}
}

// InitOptions contains options for project initialization.
type InitOptions struct {
	ProjectDir string
	// Name defaults to the project directory name.
	Name       string
	Version    string
	// Pod is the first pod generated with the project.
	Pod        string
	Force      bool
	// Options seeds paths and ports; nil uses config.Default.
	Options    *config.Options
}

// PodOptions contains options for adding a pod to a project.
type PodOptions struct {
	Name    string
	Force   bool
	Options *config.Options
}

var unsafeNameChars = regexp.MustCompile(`[^a-z0-9._-]+`)

// InitProject writes a new seed project into opts.ProjectDir.
func (s *InitService) InitProject(ctx context.Context, opts InitOptions) (*scaffolding.Result, error) {
	dir, err := filepath.Abs(opts.ProjectDir)
	if err != nil {
		return nil, gerrors.NewIOError(gerrors.ErrCodeFileNotFound, "invalid project directory", err)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, gerrors.NewIOError(gerrors.ErrCodeWriteFailed, "cannot create project directory", err).
			WithContext("path", dir)
	}

	name := opts.Name
	if name == "" {
		name = strings.Trim(unsafeNameChars.ReplaceAllString(strings.ToLower(filepath.Base(dir)), "-"), "-._")
	}
	if err := scaffolding.ValidateProjectName(name); err != nil {
		return nil, err
	}
	pod := opts.Pod
	if pod == "" {
		pod = "home"
	}
	if err := scaffolding.ValidatePodName(pod); err != nil {
		return nil, err
	}

	tc := s.context(opts.Options, name, opts.Version)
	gen := scaffolding.NewGenerator(scaffolding.WithForce(opts.Force))
	res, err := gen.Generate(dir, scaffolding.ProjectFiles(), tc)
	if err != nil {
		return res, err
	}

	tc.Pod = pod
	podRes, err := gen.Generate(dir, scaffolding.PodFiles(), tc)
	if podRes != nil {
		res.Created = append(res.Created, podRes.Created...)
		res.Skipped = append(res.Skipped, podRes.Skipped...)
	}
	if err != nil {
		return res, err
	}

	s.logger.Info(ctx, "Project initialized", "dir", dir, "name", name,
		"created", len(res.Created), "skipped", len(res.Skipped))
	return res, nil
}

// GeneratePod adds a pod to the project opts.Options.Root points at.
func (s *InitService) GeneratePod(ctx context.Context, opts PodOptions) (*scaffolding.Result, error) {
	if err := scaffolding.ValidatePodName(opts.Name); err != nil {
		return nil, err
	}
	cfg := opts.Options
	if cfg == nil {
		cfg = config.Default()
	}

	info, err := appinfo.Read(cfg.Root)
	if err != nil {
		return nil, err
	}
	tc := s.context(cfg, info.Name, info.Version)
	tc.Pod = opts.Name
	res, err := scaffolding.NewGenerator(scaffolding.WithForce(opts.Force)).
		Generate(cfg.Root, scaffolding.PodFiles(), tc)
	if err != nil {
		return res, err
	}
	if len(res.Created) == 0 {
		return res, gerrors.NewIOError(gerrors.ErrCodeWriteFailed, "pod "+opts.Name+" already exists", nil).
			WithContext("hint", "use --force to overwrite")
	}

	s.logger.Info(ctx, "Pod generated", "pod", opts.Name, "files", len(res.Created))
	return res, nil
}

func (s *InitService) context(opts *config.Options, name, version string) scaffolding.TemplateContext {
	if opts == nil {
		opts = config.Default()
	}
	if version == "" {
		version = "0.1.0"
	}
	return scaffolding.TemplateContext{
		Name:    name,
		Version: version,
		Module:  templates.DefaultModule,
		Options: opts,
	}
}
