// Package mcpserver provides an MCP (Model Context Protocol) server
// that exposes the note tools for LLM integration via stdio transport.
package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/notely/internal/apperr"
	"github.com/starford/notely/internal/markdown"
	"github.com/starford/notely/internal/models"
	"github.com/starford/notely/internal/noteservice"
	"github.com/starford/notely/internal/tagservice"
)

// NoteFormatURI is the resource holding NoteFormatContract.
const NoteFormatURI = "notely://note-format"

// Server wraps the MCP server with the note tools. Every call acts as a
// single owner.
type Server struct {
	mcp   *server.MCPServer
	notes *noteservice.Service
	tags  *tagservice.Service
	owner string
}

// New creates a new MCP server with all note tools registered.
func New(notes *noteservice.Service, tags *tagservice.Service, owner string) *Server {
	s := &Server{notes: notes, tags: tags, owner: owner}

	s.mcp = server.NewMCPServer(
		"Notely",
		"1.0.0",
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("list_notes",
		mcp.WithDescription("List notes newest first. Supports paging, a case-insensitive "+
			"search over title and content, and filtering by tags (any of)."),
		mcp.WithNumber("page", mcp.Description("Page number, starting at 1")),
		mcp.WithNumber("limit", mcp.Description("Notes per page (default 10, max 100)")),
		mcp.WithString("search", mcp.Description("Text to look for in title or content")),
		mcp.WithString("tags", mcp.Description("Comma separated tags; a note matches when it has any of them")),
	), s.listNotes)

	s.mcp.AddTool(mcp.NewTool("read_note",
		mcp.WithDescription("Read a note, including its summary and tags."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Note id")),
	), s.readNote)

	s.mcp.AddTool(mcp.NewTool("create_note",
		mcp.WithDescription("Create a note from Markdown. Title and tags are taken from YAML "+
			"frontmatter or the first # heading unless given explicitly. Read the "+
			NoteFormatURI+" resource or the get_note_contract tool first."),
		mcp.WithString("content", mcp.Required(), mcp.Description("Markdown content following the note format contract")),
		mcp.WithString("title", mcp.Description("Title overriding the one found in content")),
		mcp.WithString("tags", mcp.Description("Comma separated tags overriding the ones found in content")),
	), s.createNote)

	s.mcp.AddTool(mcp.NewTool("delete_note",
		mcp.WithDescription("Permanently delete a note."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Note id")),
	), s.deleteNote)

	s.mcp.AddTool(mcp.NewTool("list_tags",
		mcp.WithDescription("List every tag used by the notes."),
	), s.listTags)

	s.mcp.AddTool(mcp.NewTool("generate_tags",
		mcp.WithDescription("Suggest up to two tags for a text of at least 50 characters."),
		mcp.WithString("content", mcp.Required(), mcp.Description("Text to tag")),
	), s.generateTags)

	s.mcp.AddTool(mcp.NewTool("get_note_contract",
		mcp.WithDescription("Returns the note format contract. "+
			"Call this before creating notes to ensure correct structure."),
	), s.getNoteContract)

	// Resource: note format contract.
	s.mcp.AddResource(
		mcp.NewResource(NoteFormatURI, "Note Format Contract",
			mcp.WithResourceDescription("Markdown format accepted by create_note."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readNoteFormatResource,
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

// toolError converts a service error into a tool error result.
func toolError(err error) *mcp.CallToolResult {
	switch {
	case errors.Is(err, apperr.ErrNotFound):
		return mcp.NewToolResultError("note not found")
	case errors.Is(err, apperr.ErrGeneratorFailure):
		return mcp.NewToolResultError("failed to generate tags")
	default:
		return mcp.NewToolResultError(err.Error())
	}
}

func jsonResult(v any) *mcp.CallToolResult {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(err.Error())
	}
	return mcp.NewToolResultText(string(out))
}

func splitTags(raw string) []string {
	var tags []string
	for _, t := range strings.Split(raw, ",") {
		if t = strings.TrimSpace(t); t != "" {
			tags = append(tags, t)
		}
	}
	return tags
}

func (s *Server) listNotes(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	f := models.NoteFilter{
		Page:   req.GetInt("page", 0),
		Limit:  req.GetInt("limit", 0),
		Search: req.GetString("search", ""),
		Tags:   splitTags(req.GetString("tags", "")),
	}
	list, err := s.notes.List(ctx, s.owner, f)
	if err != nil {
		return toolError(err), nil
	}
	return jsonResult(list), nil
}

func (s *Server) readNote(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	note, err := s.notes.Get(ctx, s.owner, id)
	if err != nil {
		return toolError(err), nil
	}
	return jsonResult(note), nil
}

func (s *Server) createNote(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	content, err := req.RequireString("content")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	doc, err := markdown.Parse([]byte(content))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	in := models.NoteInput{
		Title:   doc.Title,
		Content: strings.TrimSpace(doc.Body),
		Tags:    doc.Tags,
	}
	if title := strings.TrimSpace(req.GetString("title", "")); title != "" {
		in.Title = title
	}
	if tags := req.GetString("tags", ""); tags != "" {
		in.Tags = splitTags(tags)
	}
	if in.Title == "" {
		return mcp.NewToolResultError("title is required: add frontmatter title, a # heading or the title argument"), nil
	}

	note, err := s.notes.Create(ctx, s.owner, in)
	if err != nil {
		return toolError(err), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("created: %s", note.ID)), nil
}

func (s *Server) deleteNote(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if _, err := s.notes.Delete(ctx, s.owner, id); err != nil {
		return toolError(err), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("deleted: %s", id)), nil
}

func (s *Server) listTags(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	tags, err := s.tags.All(ctx, s.owner)
	if err != nil {
		return toolError(err), nil
	}
	if len(tags) == 0 {
		return mcp.NewToolResultText("no tags found"), nil
	}
	return mcp.NewToolResultText(strings.Join(tags, "\n")), nil
}

func (s *Server) generateTags(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	content, err := req.RequireString("content")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	tags, err := s.tags.Generate(ctx, content)
	if err != nil {
		return toolError(err), nil
	}
	return jsonResult(tags), nil
}

func (s *Server) getNoteContract(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(NoteFormatContract), nil
}

func (s *Server) readNoteFormatResource(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      NoteFormatURI,
			MIMEType: "text/markdown",
			Text:     NoteFormatContract,
		},
	}, nil
}
