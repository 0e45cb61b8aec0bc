package app

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/mgit-app/mgit/internal/plugin"
)

// Document is one open Markdown note.
type Document struct {
	// Path is the absolute file path.
	Path string
	// Content is the current buffer contents.
	Content string
	// Dirty reports unsaved changes.
	Dirty bool
}

// Name returns the file name without its extension.
func (d *Document) Name() string {
	base := filepath.Base(d.Path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// OpenDocument reads a note from disk and makes it the active document.
func (app *Application) OpenDocument(path string) (*Document, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(abs)
	if err != nil {
		return nil, fmt.Errorf("open document: %w", err)
	}

	doc := &Document{Path: abs, Content: string(data)}
	app.mu.Lock()
	app.doc = doc
	app.mu.Unlock()

	app.plugins.TriggerEvent(plugin.EventDocumentOpened, map[string]any{
		"path": abs,
	})
	app.logger.Debug("document opened", zap.String("path", abs))
	return doc, nil
}

// SaveDocument writes the active document to disk and clears its dirty
// flag.
func (app *Application) SaveDocument() error {
	app.mu.Lock()
	doc := app.doc
	app.mu.Unlock()
	if doc == nil {
		return fmt.Errorf("no document open")
	}

	if err := os.WriteFile(doc.Path, []byte(doc.Content), 0o644); err != nil {
		return fmt.Errorf("save document: %w", err)
	}
	doc.Dirty = false

	app.plugins.TriggerEvent(plugin.EventDocumentSaved, map[string]any{
		"path": doc.Path,
	})
	return nil
}

// SetContent replaces the active document's buffer and marks it dirty.
func (app *Application) SetContent(content string) {
	app.mu.Lock()
	defer app.mu.Unlock()
	if app.doc == nil {
		return
	}
	app.doc.Content = content
	app.doc.Dirty = true
}

// ActiveDocument returns the current document, or nil.
func (app *Application) ActiveDocument() *Document {
	app.mu.RLock()
	defer app.mu.RUnlock()
	return app.doc
}

// RenderContent threads the active document's content through plugin
// render hooks and returns the transformed Markdown. With no document
// open it returns the empty string.
func (app *Application) RenderContent() string {
	doc := app.ActiveDocument()
	if doc == nil {
		return ""
	}
	out, ok := app.plugins.ApplyHook(plugin.HookDocumentRender, doc.Content,
		map[string]any{"path": doc.Path}).(string)
	if !ok {
		return doc.Content
	}
	return out
}
