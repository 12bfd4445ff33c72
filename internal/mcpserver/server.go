// Package mcpserver provides an MCP (Model Context Protocol) server that
// exposes the collectable subset of the blog to LLM consumers via stdio
// transport. Only posts explicitly marked as AI-collectable are reachable
// through any tool.
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/keepgoing-web/keepgoing/internal/blogservice"
	"github.com/keepgoing-web/keepgoing/internal/query"
)

// Server wraps the MCP server with KeepGoing tools.
type Server struct {
	mcp *server.MCPServer
	svc *blogservice.Service
}

// New creates a new MCP server with all KeepGoing tools registered.
func New(svc *blogservice.Service) *Server {
	s := &Server{svc: svc}

	s.mcp = server.NewMCPServer(
		"KeepGoing",
		"1.0.0",
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("search_posts",
		mcp.WithDescription("Search collectable blog posts by title and content. "+
			"Only posts the author marked as AI-collectable are returned."),
		mcp.WithString("query", mcp.Required(), mcp.Description("Search query string")),
		mcp.WithString("tag", mcp.Description("Optional tag id to restrict the search")),
	), s.searchPosts)

	s.mcp.AddTool(mcp.NewTool("read_post",
		mcp.WithDescription("Read the full content of a collectable blog post. "+
			"Posts not marked AI-collectable report not found."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Post id")),
	), s.readPost)

	s.mcp.AddTool(mcp.NewTool("list_tags",
		mcp.WithDescription("List every tag known to the blog."),
	), s.listTags)

	s.mcp.AddTool(mcp.NewTool("get_collection_policy",
		mcp.WithDescription("Returns the collection policy governing what content "+
			"LLM consumers may read and how it may be used. Read it before collecting."),
	), s.getCollectionPolicy)

	// Resource: collection policy.
	s.mcp.AddResource(
		mcp.NewResource("keepgoing://collection-policy", "Collection Policy",
			mcp.WithResourceDescription("Policy governing LLM access to blog content."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readCollectionPolicyResource,
	)

	return s
}

// ServeStdio starts the MCP server on stdin/stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcp)
}

// MCPServer returns the underlying server for testing.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcp
}

func collectableOnly() query.Filter {
	f := query.NewFilter()
	t := true
	f.AICollectable = &t
	f.Size = 50
	return f
}

type searchResult struct {
	ID      string   `json:"id"`
	Title   string   `json:"title"`
	TagIDs  []string `json:"tagIds,omitempty"`
	Created string   `json:"createdAt"`
}

func (s *Server) searchPosts(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	q, err := req.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	f := collectableOnly()
	f.Query = q
	if tag, tagErr := req.RequireString("tag"); tagErr == nil && tag != "" {
		f.TagIDs = []string{tag}
	}

	page, err := s.svc.ListPosts(ctx, f)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	results := make([]searchResult, 0, len(page.Posts))
	for _, p := range page.Posts {
		results = append(results, searchResult{
			ID:      p.ID,
			Title:   p.Title,
			TagIDs:  p.TagIDs,
			Created: p.CreatedAt.Format("2006-01-02"),
		})
	}
	out, _ := json.MarshalIndent(results, "", "  ")
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) readPost(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	post, err := s.svc.GetPost(ctx, id)
	if err != nil || !post.AICollectable {
		// Non-collectable posts are indistinguishable from missing ones.
		return mcp.NewToolResultError(fmt.Sprintf("not found: %s", id)), nil
	}
	return mcp.NewToolResultText(post.Content), nil
}

func (s *Server) listTags(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	tags, err := s.svc.ListTags(ctx, "")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	var names []string
	for _, t := range tags {
		names = append(names, fmt.Sprintf("%s\t%s", t.ID, t.Name))
	}
	if len(names) == 0 {
		return mcp.NewToolResultText("no tags"), nil
	}
	return mcp.NewToolResultText(strings.Join(names, "\n")), nil
}

func (s *Server) getCollectionPolicy(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(CollectionPolicy), nil
}

func (s *Server) readCollectionPolicyResource(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      "keepgoing://collection-policy",
			MIMEType: "text/markdown",
			Text:     CollectionPolicy,
		},
	}, nil
}
