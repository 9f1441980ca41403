package workflows

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/polybuild/polybuild/pkg/actions"
	"github.com/polybuild/polybuild/pkg/workflow"
)

// NodejsNpm returns the workflow definition for Node.js projects built with
// npm. The source tree is copied into the artifact area and production
// dependencies are installed there.
func NodejsNpm() *workflow.Definition {
	return &workflow.Definition{
		Name:               "nodejs-npm",
		Capability:         workflow.NewCapability("nodejs", "npm", ""),
		SupportedManifests: []string{"package.json"},
		NewProvider: func(cfg workflow.Config) workflow.RequirementProvider {
			return &nodejsProvider{cfg: cfg}
		},
		Plan: planNodejsNpm,
	}
}

type nodejsProvider struct {
	cfg workflow.Config
}

// Resolvers declares two requirements: the node runtime, validated against
// the configured version, and the npm client, accepted as found.
func (p *nodejsProvider) Resolvers() []workflow.Resolver {
	return []workflow.Resolver{
		workflow.NewPathResolver("node", p.cfg.Runtime, p.cfg.ExecutableSearchPaths...),
		workflow.NewPathResolver("npm", "", p.cfg.ExecutableSearchPaths...),
	}
}

func (p *nodejsProvider) Validators() []workflow.Validator {
	return []workflow.Validator{
		&nodejsValidator{runtime: p.cfg.Runtime},
		workflow.NopValidator(),
	}
}

// nodejsValidator accepts node binaries whose reported major version matches
// the configured runtime, for example nodejs20 or nodejs20.x.
type nodejsValidator struct {
	runtime string
}

func (v *nodejsValidator) Validate(path string) (string, error) {
	if v.runtime == "" {
		return path, nil
	}

	version, err := probeOutput(path, "--version")
	if err != nil {
		return "", err
	}

	major, _, _ := strings.Cut(strings.TrimPrefix(version, "v"), ".")
	want := strings.TrimSuffix(strings.TrimPrefix(v.runtime, "nodejs"), ".x")
	if major != want {
		return "", fmt.Errorf("%s reports node %s, runtime %s requires major %s: %w",
			path, version, v.runtime, want, workflow.ErrMismatch)
	}
	return path, nil
}

func planNodejsNpm(cfg workflow.Config, binaries map[string]*workflow.BinaryRequirement) ([]actions.Action, error) {
	npm, ok := binaries["npm"]
	if !ok {
		return nil, fmt.Errorf("npm binary requirement missing")
	}

	install := actions.NewCommandAction("resolve-dependencies", actions.PurposeResolveDependencies, npm,
		[]string{"install", "--omit=dev"})
	install.Dir = cfg.ArtifactsDir
	install.Env = []string{"NPM_CONFIG_UPDATE_NOTIFIER=false"}

	return []actions.Action{
		actions.NewCleanUpAction(filepath.Join(cfg.ArtifactsDir, "node_modules")),
		actions.NewCopySourceAction(cfg.SourceDir, cfg.ArtifactsDir, nil),
		install,
	}, nil
}
