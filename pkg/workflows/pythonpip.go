package workflows

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/polybuild/polybuild/pkg/actions"
	"github.com/polybuild/polybuild/pkg/workflow"
)

// PythonPip returns the workflow definition for Python projects built with
// pip. Dependencies are installed into a scratch staging directory and copied
// into the artifact area next to the source.
func PythonPip() *workflow.Definition {
	return &workflow.Definition{
		Name:               "python-pip",
		Capability:         workflow.NewCapability("python", "pip", ""),
		SupportedManifests: []string{"requirements.txt", "pyproject.toml"},
		NewProvider: func(cfg workflow.Config) workflow.RequirementProvider {
			return &pythonProvider{cfg: cfg}
		},
		Plan: planPythonPip,
	}
}

type pythonProvider struct {
	cfg workflow.Config
}

func (p *pythonProvider) Resolvers() []workflow.Resolver {
	return []workflow.Resolver{
		workflow.NewPathResolver("python", p.cfg.Runtime, p.cfg.ExecutableSearchPaths...),
	}
}

func (p *pythonProvider) Validators() []workflow.Validator {
	return []workflow.Validator{&pythonValidator{runtime: p.cfg.Runtime}}
}

// pythonValidator accepts interpreters whose reported major.minor version
// matches the configured runtime, for example python3.12.
type pythonValidator struct {
	runtime string
}

func (v *pythonValidator) Validate(path string) (string, error) {
	if v.runtime == "" {
		return path, nil
	}

	version, err := probeOutput(path, "-c", "import sys; print('%d.%d' % sys.version_info[:2])")
	if err != nil {
		return "", err
	}

	want := strings.TrimPrefix(v.runtime, "python")
	if version != want {
		return "", fmt.Errorf("%s reports python %s, runtime %s requires %s: %w",
			path, version, v.runtime, want, workflow.ErrMismatch)
	}
	return path, nil
}

func planPythonPip(cfg workflow.Config, binaries map[string]*workflow.BinaryRequirement) ([]actions.Action, error) {
	python, ok := binaries["python"]
	if !ok {
		return nil, fmt.Errorf("python binary requirement missing")
	}

	depsDir := filepath.Join(cfg.ScratchDir, "python", "deps")

	install := actions.NewCommandAction("resolve-dependencies", actions.PurposeResolveDependencies, python,
		[]string{"-m", "pip", "install", "--target", depsDir, "-r", cfg.ManifestPath})
	install.Dir = cfg.SourceDir
	install.Env = []string{"PIP_DISABLE_PIP_VERSION_CHECK=1"}

	return []actions.Action{
		actions.NewCleanUpAction(depsDir),
		actions.NewCopySourceAction(cfg.SourceDir, cfg.ArtifactsDir, nil),
		install,
		actions.NewCopyDependenciesAction(depsDir, cfg.ArtifactsDir),
	}, nil
}
