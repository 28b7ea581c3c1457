// Package mcpserver provides an MCP (Model Context Protocol) server
// that exposes Ansuz deck tools for LLM integration via stdio transport.
package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/ansuz/internal/anki"
	"github.com/starford/ansuz/internal/apperr"
	"github.com/starford/ansuz/internal/exportservice"
	"github.com/starford/ansuz/internal/storage"
)

// Server wraps the MCP server with Ansuz tools.
type Server struct {
	mcp   *server.MCPServer
	svc   *exportservice.Service
	store storage.Provider
}

// New creates a new MCP server with all Ansuz tools registered.
func New(svc *exportservice.Service, store storage.Provider) *Server {
	s := &Server{svc: svc, store: store}

	s.mcp = server.NewMCPServer(
		"Ansuz",
		"1.0.0",
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("list_decks",
		mcp.WithDescription("List all flashcard decks with their card counts."),
	), s.listDecks)

	s.mcp.AddTool(mcp.NewTool("read_deck",
		mcp.WithDescription("Read the full Markdown source of a deck."),
		mcp.WithString("name", mcp.Required(), mcp.Description("Deck name (filename stem, e.g. biology)")),
	), s.readDeck)

	s.mcp.AddTool(mcp.NewTool("create_deck",
		mcp.WithDescription("Create a new flashcard deck. "+
			"Content MUST follow the canonical deck format (YAML frontmatter with title, "+
			"optional tags, one '## heading' section per card). Read the contract first via "+
			"the get_deck_contract tool or the ansuz://deck-format resource."),
		mcp.WithString("name", mcp.Required(), mcp.Description("Deck name (filename stem, no extension)")),
		mcp.WithString("content", mcp.Required(), mcp.Description("Markdown content following the Ansuz deck format contract")),
	), s.createDeck)

	s.mcp.AddTool(mcp.NewTool("add_card",
		mcp.WithDescription("Append a card to an existing deck."),
		mcp.WithString("deck", mcp.Required(), mcp.Description("Deck name")),
		mcp.WithString("front", mcp.Required(), mcp.Description("Card front (question), Markdown")),
		mcp.WithString("back", mcp.Required(), mcp.Description("Card back (answer), Markdown")),
		mcp.WithString("tags", mcp.Description("Optional comma-separated card tags")),
	), s.addCard)

	s.mcp.AddTool(mcp.NewTool("search_cards",
		mcp.WithDescription("Search card fronts and backs across all decks."),
		mcp.WithString("query", mcp.Required(), mcp.Description("Search query string")),
	), s.searchCards)

	s.mcp.AddTool(mcp.NewTool("export_deck",
		mcp.WithDescription("Export decks to an Anki .apkg package and save it in the vault. "+
			"With no deck names, exports every deck."),
		mcp.WithString("decks", mcp.Description("Optional comma-separated deck names (empty for all)")),
	), s.exportDeck)

	s.mcp.AddTool(mcp.NewTool("upload_asset",
		mcp.WithDescription("Download or decode a media asset and store it in the vault assets directory. "+
			"Returns a Markdown image snippet ready to paste into a card back."),
		mcp.WithString("url", mcp.Required(), mcp.Description("HTTP(S) URL or base64 data: URI of the asset")),
		mcp.WithString("filename", mcp.Description("Optional filename override")),
	), s.uploadAsset)

	s.mcp.AddTool(mcp.NewTool("get_deck_contract",
		mcp.WithDescription("Returns the canonical Ansuz deck format contract. "+
			"Call this before creating or updating decks to ensure correct structure."),
	), s.getDeckContract)

	// Resource: deck format contract.
	s.mcp.AddResource(
		mcp.NewResource("ansuz://deck-format", "Deck Format Contract",
			mcp.WithResourceDescription("Canonical Markdown deck format that all decks must follow."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readDeckFormatResource,
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

func (s *Server) listDecks(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	items, err := s.svc.ListDecks(ctx)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	out, _ := json.MarshalIndent(items, "", "  ")
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) readDeck(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	name, err := req.RequireString("name")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	deck, err := s.svc.GetDeck(ctx, name)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("not found: %s", name)), nil
	}
	return mcp.NewToolResultText(deck.Content), nil
}

func (s *Server) createDeck(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	name, err := req.RequireString("name")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	content, err := req.RequireString("content")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	deck, err := s.svc.CreateDeck(ctx, name, []byte(content))
	if err != nil {
		if errors.Is(err, apperr.ErrAlreadyExists) {
			return mcp.NewToolResultError(fmt.Sprintf("deck already exists: %s", name)), nil
		}
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText(fmt.Sprintf("created: %s (%d cards)", name, len(deck.Cards))), nil
}

func (s *Server) addCard(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	deck, err := req.RequireString("deck")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	front, err := req.RequireString("front")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	back, err := req.RequireString("back")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	var tags []string
	if raw, tErr := req.RequireString("tags"); tErr == nil && raw != "" {
		for _, tag := range strings.Split(raw, ",") {
			if tag = strings.TrimSpace(tag); tag != "" {
				tags = append(tags, tag)
			}
		}
	}

	detail, err := s.svc.AddCard(ctx, deck, front, back, tags)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return mcp.NewToolResultError(fmt.Sprintf("deck not found: %s", deck)), nil
		}
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("added card to %s (now %d cards)", deck, len(detail.Cards))), nil
}

func (s *Server) searchCards(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := req.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	results, err := s.svc.Search(ctx, query, 20)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	out, _ := json.MarshalIndent(results, "", "  ")
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) exportDeck(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var names []string
	if raw, err := req.RequireString("decks"); err == nil && raw != "" {
		for _, n := range strings.Split(raw, ",") {
			if n = strings.TrimSpace(n); n != "" {
				names = append(names, n)
			}
		}
	}

	pkg, err := s.svc.Export(ctx, names, anki.Options{})
	if err != nil {
		switch {
		case errors.Is(err, apperr.ErrNotFound):
			return mcp.NewToolResultError(err.Error()), nil
		case errors.Is(err, anki.ErrNoCards):
			return mcp.NewToolResultError("no cards to export"), nil
		case errors.Is(err, anki.ErrEngineUnavailable):
			return mcp.NewToolResultError("export engine unavailable"), nil
		}
		return mcp.NewToolResultError(err.Error()), nil
	}

	if err := s.store.Write(pkg.Filename, pkg.Data); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to save package: %v", err)), nil
	}

	return mcp.NewToolResultText(fmt.Sprintf("exported %d cards (%d media files) to %s",
		pkg.CardCount, pkg.MediaCount, pkg.Filename)), nil
}

func (s *Server) getDeckContract(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(DeckFormatContract), nil
}

func (s *Server) readDeckFormatResource(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      "ansuz://deck-format",
			MIMEType: "text/markdown",
			Text:     DeckFormatContract,
		},
	}, nil
}
