// Package catalog holds the read and write recipes a simulated user picks
// from. A recipe is one logical user action: a single listing, or a chain
// whose later calls are built from an earlier response.
//
// Chains stop quietly when a call fails or a listing has nothing usable in
// it. That is a normal outcome, reported through RecipeResult.Aborted, and
// never an error.
package catalog

import (
	"context"
	"fmt"
	"math/rand"
	"sort"
	"strings"

	"github.com/figscale/loadgen/internal/executor"
	"github.com/figscale/loadgen/internal/metrics"
	"github.com/figscale/loadgen/internal/runner"
)

// Recipe names, as used in read_mix / write_mix and in the report.
const (
	ListFiles         = "list_files"
	ListPopularFiles  = "list_popular_files"
	ListUsers         = "list_users"
	ListOrganizations = "list_organizations"
	CreateFile        = "create_file"
	UpdateFile        = "update_file"
)

// Executor performs one call and records its outcome.
type Executor interface {
	Execute(ctx context.Context, call executor.Call) ([]byte, metrics.Outcome)
}

type recipeFunc func(c *Catalog, ctx context.Context) runner.RecipeResult

type recipe struct {
	name string
	run  recipeFunc
}

var readRecipes = []recipe{
	{ListFiles, (*Catalog).listFiles},
	{ListPopularFiles, (*Catalog).listPopularFiles},
	{ListUsers, (*Catalog).listUsers},
	{ListOrganizations, (*Catalog).listOrganizations},
}

var writeRecipes = []recipe{
	{CreateFile, (*Catalog).createFile},
	{UpdateFile, (*Catalog).updateFile},
}

// ReadRecipes returns the names of the read recipes.
func ReadRecipes() []string { return names(readRecipes) }

// WriteRecipes returns the names of the write recipes.
func WriteRecipes() []string { return names(writeRecipes) }

func names(rs []recipe) []string {
	out := make([]string, len(rs))
	for i, r := range rs {
		out[i] = r.name
	}
	return out
}

type weighted struct {
	recipe
	weight int
}

type selector struct {
	entries []weighted
	total   int
}

// Catalog is bound to a single worker: its executor, and its random source.
// It is not safe for concurrent use.
type Catalog struct {
	exec   Executor
	rnd    *rand.Rand
	reads  selector
	writes selector
}

// New builds a catalog. An empty mix selects uniformly among all recipes of
// that kind; a non-empty mix gives unlisted recipes weight zero.
func New(exec Executor, rnd *rand.Rand, readMix, writeMix map[string]int) (*Catalog, error) {
	if exec == nil {
		return nil, fmt.Errorf("catalog: executor is required")
	}
	if rnd == nil {
		return nil, fmt.Errorf("catalog: random source is required")
	}
	reads, err := newSelector("read_mix", readRecipes, readMix)
	if err != nil {
		return nil, err
	}
	writes, err := newSelector("write_mix", writeRecipes, writeMix)
	if err != nil {
		return nil, err
	}
	return &Catalog{exec: exec, rnd: rnd, reads: reads, writes: writes}, nil
}

// ValidateMix checks read and write weights without building a catalog.
func ValidateMix(readMix, writeMix map[string]int) error {
	if _, err := newSelector("read_mix", readRecipes, readMix); err != nil {
		return err
	}
	_, err := newSelector("write_mix", writeRecipes, writeMix)
	return err
}

func newSelector(label string, available []recipe, mix map[string]int) (selector, error) {
	known := make(map[string]bool, len(available))
	for _, r := range available {
		known[r.name] = true
	}
	var unknown []string
	for name, w := range mix {
		if !known[name] {
			unknown = append(unknown, name)
		}
		if w < 0 {
			return selector{}, fmt.Errorf("%s: %s: weight must be >= 0", label, name)
		}
	}
	if len(unknown) > 0 {
		sort.Strings(unknown)
		return selector{}, fmt.Errorf("%s: unknown recipe(s) %s (available: %s)",
			label, strings.Join(unknown, ", "), strings.Join(names(available), ", "))
	}

	var s selector
	for _, r := range available {
		w := 1
		if len(mix) > 0 {
			w = mix[r.name]
		}
		if w == 0 {
			continue
		}
		s.entries = append(s.entries, weighted{recipe: r, weight: w})
		s.total += w
	}
	if s.total <= 0 {
		return selector{}, fmt.Errorf("%s: weights must sum to > 0", label)
	}
	return s, nil
}

func (s *selector) pick(rnd *rand.Rand) recipe {
	n := rnd.Intn(s.total)
	cumulative := 0
	for _, e := range s.entries {
		cumulative += e.weight
		if n < cumulative {
			return e.recipe
		}
	}
	return s.entries[len(s.entries)-1].recipe
}

// ChooseRead runs one weighted-random read recipe to completion.
func (c *Catalog) ChooseRead(ctx context.Context) runner.RecipeResult {
	return c.reads.pick(c.rnd).run(c, ctx)
}

// ChooseWrite runs one weighted-random write recipe to completion.
func (c *Catalog) ChooseWrite(ctx context.Context) runner.RecipeResult {
	return c.writes.pick(c.rnd).run(c, ctx)
}

// Run executes the named recipe directly.
func (c *Catalog) Run(ctx context.Context, name string) (runner.RecipeResult, error) {
	for _, r := range readRecipes {
		if r.name == name {
			return r.run(c, ctx), nil
		}
	}
	for _, r := range writeRecipes {
		if r.name == name {
			return r.run(c, ctx), nil
		}
	}
	return runner.RecipeResult{}, fmt.Errorf("unknown recipe %q", name)
}

// call executes one step and counts it against res.
func (c *Catalog) call(ctx context.Context, res *runner.RecipeResult, call executor.Call) ([]byte, bool) {
	res.Calls++
	body, outcome := c.exec.Execute(ctx, call)
	return body, outcome.Success()
}
