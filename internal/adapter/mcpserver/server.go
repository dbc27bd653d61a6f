package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"arxiv-scholar/internal/domain"
)

// Server exposes the tool registry and the paper store over the Model
// Context Protocol on stdio, so external MCP hosts (editors, chat clients)
// can drive the research assistant.
type Server struct {
	mcpSrv *server.MCPServer
	tools  domain.ToolExecutor
	store  domain.PaperStore
	logger *slog.Logger
}

// New builds an MCP server publishing every registered tool plus the
// arxiv:// resource tree.
func New(tools domain.ToolExecutor, store domain.PaperStore, version string, logger *slog.Logger) *Server {
	s := &Server{
		mcpSrv: server.NewMCPServer("arxiv-scholar", version,
			server.WithResourceCapabilities(true, true),
			server.WithLogging(),
		),
		tools:  tools,
		store:  store,
		logger: logger,
	}
	s.registerTools()
	s.registerResources()
	return s
}

// Serve runs the stdio transport until the peer disconnects.
func (s *Server) Serve() error {
	s.logger.Info("mcp server listening on stdio")
	return server.ServeStdio(s.mcpSrv)
}

func (s *Server) registerTools() {
	for _, schema := range s.tools.Schemas() {
		name := schema.Name
		s.mcpSrv.AddTool(
			mcp.NewToolWithRawSchema(name, schema.Description, schema.Parameters),
			s.toolHandler(name),
		)
	}
}

func (s *Server) toolHandler(name string) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		t, err := s.tools.Get(name)
		if err != nil {
			return nil, err
		}

		params, err := json.Marshal(req.GetArguments())
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("invalid arguments: %v", err)), nil
		}

		result, err := t.Execute(ctx, params)
		if err != nil {
			return nil, err
		}
		if result.IsError {
			return mcp.NewToolResultError(result.Content), nil
		}
		return mcp.NewToolResultText(result.Content), nil
	}
}

func (s *Server) registerResources() {
	s.mcpSrv.AddResource(
		mcp.NewResource("arxiv://topics", "Saved topics",
			mcp.WithResourceDescription("All topics papers have been saved under"),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readTopics,
	)
	s.mcpSrv.AddResourceTemplate(
		mcp.NewResourceTemplate("arxiv://topic/{slug}", "Papers for a topic",
			mcp.WithTemplateDescription("Saved papers under one topic slug"),
			mcp.WithTemplateMIMEType("text/markdown"),
		),
		s.readTopic,
	)
	s.mcpSrv.AddResourceTemplate(
		mcp.NewResourceTemplate("arxiv://paper/{article_id}", "A saved paper",
			mcp.WithTemplateDescription("Full metadata of one saved paper"),
			mcp.WithTemplateMIMEType("text/markdown"),
		),
		s.readPaper,
	)
}

func (s *Server) readTopics(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	slugs, err := s.store.ListTopics()
	if err != nil {
		return nil, err
	}

	var b strings.Builder
	b.WriteString("# Saved Topics\n\n")
	if len(slugs) == 0 {
		b.WriteString("No topics saved yet. Search arXiv to populate the library.\n")
	}
	for _, slug := range slugs {
		fmt.Fprintf(&b, "- %s (arxiv://topic/%s)\n", slug, slug)
	}

	return []mcp.ResourceContents{mcp.TextResourceContents{
		URI:      req.Params.URI,
		MIMEType: "text/markdown",
		Text:     b.String(),
	}}, nil
}

func (s *Server) readTopic(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	slug := strings.TrimPrefix(req.Params.URI, "arxiv://topic/")
	papers, err := s.store.PapersByTopic(slug)
	if err != nil {
		return nil, err
	}

	var b strings.Builder
	fmt.Fprintf(&b, "# Papers: %s\n\n", slug)
	if len(papers) == 0 {
		b.WriteString("No papers saved under this topic.\n")
	}
	for _, p := range papers {
		fmt.Fprintf(&b, "## %s\n\n", p.Title)
		fmt.Fprintf(&b, "- ID: %s\n- Authors: %s\n- Published: %s\n- PDF: %s\n\n",
			p.ID, strings.Join(p.Authors, ", "), p.Published, p.PDFURL)
	}

	return []mcp.ResourceContents{mcp.TextResourceContents{
		URI:      req.Params.URI,
		MIMEType: "text/markdown",
		Text:     b.String(),
	}}, nil
}

func (s *Server) readPaper(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	id := strings.TrimPrefix(req.Params.URI, "arxiv://paper/")
	paper, err := s.store.GetPaper(id)
	if err != nil {
		return nil, err
	}

	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", paper.Title)
	fmt.Fprintf(&b, "- ID: %s\n- Authors: %s\n- Published: %s\n- Topic: %s\n- PDF: %s\n\n",
		paper.ID, strings.Join(paper.Authors, ", "), paper.Published, paper.Topic, paper.PDFURL)
	b.WriteString("## Abstract\n\n")
	b.WriteString(paper.Summary)
	b.WriteString("\n")

	return []mcp.ResourceContents{mcp.TextResourceContents{
		URI:      req.Params.URI,
		MIMEType: "text/markdown",
		Text:     b.String(),
	}}, nil
}
