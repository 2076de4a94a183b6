package catalog

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/figscale/loadgen/internal/executor"
	"github.com/figscale/loadgen/internal/extractor"
	"github.com/figscale/loadgen/internal/runner"
)

const viewCall = "view_file"

var demoTags = []string{"ui", "design"}

type viewRequest struct {
	UserID *string `json:"user_id"`
}

type fileMetadata struct {
	Tags []string `json:"tags"`
}

type createFileRequest struct {
	Name           string       `json:"name"`
	OwnerID        string       `json:"owner_id"`
	OrganizationID string       `json:"organization_id"`
	IsPublic       bool         `json:"is_public"`
	Metadata       fileMetadata `json:"metadata"`
}

type updateFileRequest struct {
	Name string `json:"name"`
}

func (c *Catalog) listFiles(ctx context.Context) runner.RecipeResult {
	return c.browse(ctx, ListFiles, "/files", url.Values{"per_page": {"20"}})
}

func (c *Catalog) listPopularFiles(ctx context.Context) runner.RecipeResult {
	return c.browse(ctx, ListPopularFiles, "/files", url.Values{"per_page": {"20"}, "sort_by": {"view_count"}})
}

func (c *Catalog) listUsers(ctx context.Context) runner.RecipeResult {
	return c.browse(ctx, ListUsers, "/users", url.Values{"per_page": {"50"}})
}

func (c *Catalog) listOrganizations(ctx context.Context) runner.RecipeResult {
	return c.browse(ctx, ListOrganizations, "/organizations", nil)
}

// browse fetches a listing and views its first element, sending the
// element's owner as the viewer. Elements without an owner send null.
func (c *Catalog) browse(ctx context.Context, name, path string, query url.Values) runner.RecipeResult {
	res := runner.RecipeResult{Recipe: name}

	body, ok := c.call(ctx, &res, executor.Call{Name: name, Method: http.MethodGet, Path: path, Query: query})
	if !ok {
		res.Aborted = true
		return res
	}
	first, ok := extractor.First(body)
	if !ok {
		res.Aborted = true
		return res
	}

	view := viewRequest{}
	if first.OwnerID != "" {
		owner := first.OwnerID
		view.UserID = &owner
	}
	c.call(ctx, &res, executor.Call{
		Name:   viewCall,
		Method: http.MethodPost,
		Path:   "/files/" + url.PathEscape(first.ID) + "/view",
		JSON:   view,
	})
	return res
}

// createFile lists candidate owners and organizations, then creates a file
// referencing one of each. Both listings are fetched before either is checked.
func (c *Catalog) createFile(ctx context.Context) runner.RecipeResult {
	res := runner.RecipeResult{Recipe: CreateFile}

	usersBody, usersOK := c.call(ctx, &res, executor.Call{
		Name: "list_users_for_create", Method: http.MethodGet, Path: "/users", Query: url.Values{"per_page": {"100"}},
	})
	orgsBody, orgsOK := c.call(ctx, &res, executor.Call{
		Name: "list_organizations_for_create", Method: http.MethodGet, Path: "/organizations", Query: url.Values{"per_page": {"50"}},
	})
	if !usersOK || !orgsOK {
		res.Aborted = true
		return res
	}

	users := extractor.IDs(usersBody)
	orgs := extractor.IDs(orgsBody)
	if len(users) == 0 || len(orgs) == 0 {
		res.Aborted = true
		return res
	}

	c.call(ctx, &res, executor.Call{
		Name:   CreateFile,
		Method: http.MethodPost,
		Path:   "/files",
		JSON: createFileRequest{
			Name:           fmt.Sprintf("Design File %d", c.fourDigits()),
			OwnerID:        users[c.rnd.Intn(len(users))],
			OrganizationID: orgs[c.rnd.Intn(len(orgs))],
			IsPublic:       c.rnd.Intn(2) == 1,
			Metadata:       fileMetadata{Tags: demoTags},
		},
	})
	return res
}

// updateFile renames a uniformly chosen file from the first page.
func (c *Catalog) updateFile(ctx context.Context) runner.RecipeResult {
	res := runner.RecipeResult{Recipe: UpdateFile}

	body, ok := c.call(ctx, &res, executor.Call{
		Name: "list_files_for_update", Method: http.MethodGet, Path: "/files", Query: url.Values{"per_page": {"20"}},
	})
	if !ok {
		res.Aborted = true
		return res
	}
	files := extractor.Items(body)
	if len(files) == 0 {
		res.Aborted = true
		return res
	}

	target := files[c.rnd.Intn(len(files))]
	c.call(ctx, &res, executor.Call{
		Name:   UpdateFile,
		Method: http.MethodPut,
		Path:   "/files/" + url.PathEscape(target.ID),
		JSON:   updateFileRequest{Name: fmt.Sprintf("Updated Design %d", c.fourDigits())},
	})
	return res
}

// fourDigits returns a number in [1000, 9999].
func (c *Catalog) fourDigits() int {
	return 1000 + c.rnd.Intn(9000)
}
