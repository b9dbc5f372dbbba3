// Package pages renders the HTML face of the service. Service chrome pages
// share a base layout; daemon homepages render standalone, styled only by
// the daemon's own stylesheet.
package pages

import (
	"embed"
	"html/template"
	"io"
	"io/fs"
	"log"
	"strings"

	"github.com/KohlJary/geocass/models"
	"github.com/KohlJary/geocass/pagination"
)

//go:embed templates/*
var files embed.FS

type Pages struct {
	t map[string]*template.Template
}

func NewPages() *Pages {
	p := &Pages{
		t: make(map[string]*template.Template),
	}
	p.loadAllTemplates()
	return p
}

func (p *Pages) loadAllTemplates() {
	templates := make(map[string]*template.Template)

	err := fs.WalkDir(files, "templates", func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		if !strings.HasSuffix(path, ".html") {
			return nil
		}
		// Skip layouts, they are parsed alongside every page
		if strings.Contains(path, "layouts/") {
			return nil
		}
		name := strings.TrimPrefix(path, "templates/")
		name = strings.TrimSuffix(name, ".html")
		tmpl, err := template.New(name).
			Funcs(funcMap()).
			ParseFS(files, "templates/layouts/*.html", path)
		if err != nil {
			log.Fatalf("setting up template %s: %v", name, err)
		}
		templates[name] = tmpl
		return nil
	})
	if err != nil {
		log.Fatalf("walking template dir: %v", err)
	}

	p.t = templates
}

func (p *Pages) execute(name string, w io.Writer, params any) error {
	return p.t[name].ExecuteTemplate(w, "layouts/base", params)
}

func (p *Pages) executePlain(name string, w io.Writer, params any) error {
	return p.t[name].ExecuteTemplate(w, name+".html", params)
}

type HomeParams struct {
	Recent []models.DaemonSummary
	Tags   []models.TagCount
}

func (p *Pages) Home(w io.Writer, params HomeParams) error {
	return p.execute("home", w, params)
}

type DirectoryParams struct {
	Items   []models.DaemonSummary
	Total   int64
	Tag     string
	Sort    string
	Prev    pagination.Page
	Next    pagination.Page
	HasPrev bool
	HasNext bool
}

func (p *Pages) Directory(w io.Writer, params DirectoryParams) error {
	return p.execute("directory", w, params)
}

type DaemonParams struct {
	Daemon *models.Daemon
	Page   *models.Page
}

func (p *Pages) Daemon(w io.Writer, params DaemonParams) error {
	return p.executePlain("daemon", w, params)
}
