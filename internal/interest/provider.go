package interest

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"
)

// Provider supplies the interest set for one run.
type Provider interface {
	Name() string
	Entries(ctx context.Context) ([]Entry, error)
}

// Static serves a fixed interest set.
type Static []Entry

func (Static) Name() string {
	return "static"
}

func (s Static) Entries(context.Context) ([]Entry, error) {
	out := make([]Entry, len(s))
	copy(out, s)
	return out, nil
}

// FileProvider reads one artist per line. A tab separates an optional URL; lines
// starting with # are comments.
type FileProvider struct {
	Path string
}

func (p FileProvider) Name() string {
	return "file"
}

func (p FileProvider) Entries(ctx context.Context) ([]Entry, error) {
	path := strings.TrimSpace(p.Path)
	if path == "" {
		return nil, fmt.Errorf("interest file path is empty")
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open interest file: %w", err)
	}
	defer file.Close()

	var entries []Entry
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		line := scanner.Text()
		if trimmed := strings.TrimSpace(line); trimmed == "" || strings.HasPrefix(trimmed, "#") {
			continue
		}
		name, url, _ := strings.Cut(line, "\t")
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		entries = append(entries, Entry{Name: name, URL: strings.TrimSpace(url)})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read interest file: %w", err)
	}
	return entries, nil
}
