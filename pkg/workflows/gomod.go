package workflows

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/polybuild/polybuild/pkg/actions"
	"github.com/polybuild/polybuild/pkg/workflow"
)

// GoMod returns the workflow definition for Go projects built with the go
// toolchain. The module cache and build cache live under the scratch
// directory; the compiled binary lands in the artifact area.
func GoMod() *workflow.Definition {
	return &workflow.Definition{
		Name:               "go-mod",
		Capability:         workflow.NewCapability("go", "modules", ""),
		SupportedManifests: []string{"go.mod"},
		NewProvider: func(cfg workflow.Config) workflow.RequirementProvider {
			return &goProvider{cfg: cfg}
		},
		Plan: planGoMod,
	}
}

type goProvider struct {
	cfg workflow.Config
}

func (p *goProvider) Resolvers() []workflow.Resolver {
	return []workflow.Resolver{
		workflow.NewPathResolver("go", p.cfg.Runtime, p.cfg.ExecutableSearchPaths...),
	}
}

func (p *goProvider) Validators() []workflow.Validator {
	return []workflow.Validator{&goValidator{runtime: p.cfg.Runtime}}
}

// goValidator accepts toolchains whose reported version matches the
// configured runtime exactly or as a release prefix, so runtime go1.22
// accepts go1.22 and go1.22.5 but not go1.2.
type goValidator struct {
	runtime string
}

func (v *goValidator) Validate(path string) (string, error) {
	if v.runtime == "" {
		return path, nil
	}

	out, err := probeOutput(path, "version")
	if err != nil {
		return "", err
	}

	// Output shape: "go version go1.22.5 linux/amd64"
	fields := strings.Fields(out)
	if len(fields) < 3 {
		return "", fmt.Errorf("%s reported unparseable version %q: %w", path, out, workflow.ErrMismatch)
	}

	version := fields[2]
	if version != v.runtime && !strings.HasPrefix(version, v.runtime+".") {
		return "", fmt.Errorf("%s reports %s, runtime requires %s: %w",
			path, version, v.runtime, workflow.ErrMismatch)
	}
	return path, nil
}

func planGoMod(cfg workflow.Config, binaries map[string]*workflow.BinaryRequirement) ([]actions.Action, error) {
	goBinary, ok := binaries["go"]
	if !ok {
		return nil, fmt.Errorf("go binary requirement missing")
	}

	env := []string{
		"GOCACHE=" + filepath.Join(cfg.ScratchDir, "go", "build-cache"),
		"GOMODCACHE=" + filepath.Join(cfg.ScratchDir, "go", "mod-cache"),
		"GOFLAGS=-mod=readonly",
	}
	if arch := goArch(cfg.Architecture); arch != "" {
		env = append(env, "GOARCH="+arch)
	}

	download := actions.NewCommandAction("resolve-dependencies", actions.PurposeResolveDependencies, goBinary,
		[]string{"mod", "download"})
	download.Dir = cfg.SourceDir
	download.Env = env

	output := filepath.Join(cfg.ArtifactsDir, cfg.Option("output", "app"))

	buildArgs := []string{"build", "-o", output}
	switch cfg.BuildMode() {
	case workflow.ModeDebug:
		buildArgs = append(buildArgs, "-gcflags", "all=-N -l")
	default:
		buildArgs = append(buildArgs, "-trimpath", "-ldflags", "-s -w")
	}
	if flags, ok := cfg.Optimizations["gcflags"]; ok {
		buildArgs = append(buildArgs, "-gcflags", flags)
	}
	buildArgs = append(buildArgs, cfg.Option("package", "."))

	build := actions.NewCommandAction("compile-source", actions.PurposeCompileSource, goBinary, buildArgs)
	build.Dir = cfg.SourceDir
	build.Env = env

	return []actions.Action{download, build}, nil
}

// goArch maps a configured architecture to its GOARCH spelling. An empty
// result means the toolchain default is kept.
func goArch(architecture string) string {
	switch architecture {
	case "x86_64":
		return "amd64"
	case "arm64":
		return "arm64"
	default:
		return ""
	}
}
