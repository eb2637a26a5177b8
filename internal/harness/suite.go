package harness

import (
	"context"
	"fmt"
	"io/fs"
	"path/filepath"
	"runtime"
	"slices"
	"strings"

	"golang.org/x/sync/errgroup"
)

// SuiteResult summarises a run over many scenario files.
type SuiteResult struct {
	Total    int               `json:"total"`
	Passed   int               `json:"passed"`
	Failed   int               `json:"failed"`
	Failures []ScenarioFailure `json:"failures,omitempty"`
}

// ScenarioFailure records why one scenario file failed.
type ScenarioFailure struct {
	Scenario string   `json:"scenario,omitempty"`
	Path     string   `json:"path"`
	Errors   []string `json:"errors"`
}

// DiscoverScenarios returns the .yaml and .yml files under root, sorted.
// A file root is returned as is.
func DiscoverScenarios(root string) ([]string, error) {
	var paths []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		ext := strings.ToLower(filepath.Ext(path))
		if ext == ".yaml" || ext == ".yml" {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("discover scenarios in %s: %w", root, err)
	}
	slices.Sort(paths)
	return paths, nil
}

// RunSuite loads and runs every scenario in paths. Scenarios are isolated,
// so they run concurrently; failures are reported in path order.
func RunSuite(ctx context.Context, paths []string, opts ...Option) (*SuiteResult, error) {
	failures := make([]*ScenarioFailure, len(paths))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))
	for i, path := range paths {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			failures[i] = runOne(path, opts)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	result := &SuiteResult{Total: len(paths)}
	for _, f := range failures {
		if f == nil {
			result.Passed++
			continue
		}
		result.Failed++
		result.Failures = append(result.Failures, *f)
	}
	return result, nil
}

func runOne(path string, opts []Option) *ScenarioFailure {
	scenario, err := LoadScenario(path)
	if err != nil {
		return &ScenarioFailure{Path: path, Errors: []string{fmt.Sprintf("failed to load scenario: %v", err)}}
	}

	res, err := Run(scenario, opts...)
	if err != nil {
		return &ScenarioFailure{
			Scenario: scenario.Name,
			Path:     path,
			Errors:   []string{fmt.Sprintf("scenario execution failed: %v", err)},
		}
	}
	if !res.Pass {
		return &ScenarioFailure{Scenario: scenario.Name, Path: path, Errors: res.Errors}
	}
	return nil
}
