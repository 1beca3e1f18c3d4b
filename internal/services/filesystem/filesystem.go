// Package filesystem lists directories under a fixed set of allowed roots.
package filesystem

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/wagiedev/stdio-rpc-go/internal/errors"
	"github.com/wagiedev/stdio-rpc-go/internal/registry"
)

const (
	// ListDirectoryToolName lists one directory.
	ListDirectoryToolName = "list_directory"
	// ListAllowedToolName lists the allowed roots.
	ListAllowedToolName = "list_allowed_directories"
)

// Service serves directory listings confined to its roots.
type Service struct {
	log   *slog.Logger
	roots []string
}

// New resolves roots to absolute, symlink-free paths. Every root must be an
// existing directory.
func New(log *slog.Logger, roots ...string) (*Service, error) {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}

	if len(roots) == 0 {
		return nil, fmt.Errorf("at least one allowed directory is required")
	}

	resolved := make([]string, 0, len(roots))

	for _, root := range roots {
		abs, err := canonical(root)
		if err != nil {
			return nil, fmt.Errorf("allowed directory %s: %w", root, err)
		}

		info, err := os.Stat(abs)
		if err != nil {
			return nil, fmt.Errorf("allowed directory %s: %w", root, err)
		}

		if !info.IsDir() {
			return nil, fmt.Errorf("allowed directory %s: not a directory", root)
		}

		resolved = append(resolved, abs)
	}

	return &Service{log: log.With("component", "filesystem"), roots: resolved}, nil
}

// Roots returns the resolved allowed directories.
func (s *Service) Roots() []string {
	return append([]string(nil), s.roots...)
}

// Tools returns list_directory and list_allowed_directories.
func (s *Service) Tools() []*registry.Tool {
	return []*registry.Tool{
		{
			Descriptor: registry.NewTool(ListDirectoryToolName,
				"List the entries of a directory. Entries are prefixed with [FILE] or [DIR]. "+
					"Only works within allowed directories.",
				registry.SimpleSchema(map[string]string{"path": "string"})),
			Validate: func(args map[string]any) error {
				if p, ok := args["path"].(string); !ok || p == "" {
					return fmt.Errorf("path must be a non-empty string")
				}

				return nil
			},
			Handler: s.handleListDirectory,
		},
		{
			Descriptor: registry.NewTool(ListAllowedToolName,
				"Returns the list of directories this server is allowed to access.",
				registry.SimpleSchema(nil)),
			Handler: func(context.Context, *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
				return registry.TextResult("Allowed directories:\n" + strings.Join(s.roots, "\n")), nil
			},
		},
	}
}

func (s *Service) handleListDirectory(_ context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var args struct {
		Path string `json:"path"`
	}

	if err := registry.BindArguments(req, &args); err != nil {
		return nil, fmt.Errorf("%w: %v", errors.ErrInvalidParams, err)
	}

	dir, err := s.resolve(args.Path)
	if err != nil {
		return nil, err
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		s.log.Debug("Read directory failed", "path", dir, "error", err)

		return registry.ErrorResult(fmt.Sprintf("Error listing %s: %v", args.Path, err)), nil
	}

	lines := make([]string, 0, len(entries))
	for _, e := range entries {
		kind := "[FILE]"
		if e.IsDir() {
			kind = "[DIR]"
		}

		lines = append(lines, kind+" "+e.Name())
	}

	return registry.TextResult(strings.Join(lines, "\n")), nil
}

// resolve maps a requested path to an absolute path inside one of the roots.
// Relative paths are taken relative to the first root.
func (s *Service) resolve(requested string) (string, error) {
	p := requested
	if !filepath.IsAbs(p) {
		p = filepath.Join(s.roots[0], p)
	}

	abs, err := canonical(p)
	if err != nil {
		return "", fmt.Errorf("%w: %s: %v", errors.ErrInvalidParams, requested, err)
	}

	for _, root := range s.roots {
		if within(root, abs) {
			return abs, nil
		}
	}

	s.log.Warn("Rejected path outside allowed directories", "path", requested)

	return "", fmt.Errorf("%w: access denied, %s is outside the allowed directories", errors.ErrInvalidParams, requested)
}

// canonical returns the absolute, cleaned path with symlinks resolved. For
// a path that does not exist, the nearest existing ancestor is resolved.
func canonical(p string) (string, error) {
	abs, err := filepath.Abs(p)
	if err != nil {
		return "", err
	}

	resolved, err := filepath.EvalSymlinks(abs)
	if err == nil {
		return resolved, nil
	}

	if !os.IsNotExist(err) {
		return "", err
	}

	parent := filepath.Dir(abs)
	if parent == abs {
		return abs, nil
	}

	base, err := canonical(parent)
	if err != nil {
		return "", err
	}

	return filepath.Join(base, filepath.Base(abs)), nil
}

func within(root, p string) bool {
	rel, err := filepath.Rel(root, p)
	if err != nil {
		return false
	}

	return rel == "." || (rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)))
}
