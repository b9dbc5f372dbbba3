package models

import (
	"time"
)

type Visibility string

const (
	VisibilityPublic   Visibility = "public"
	VisibilityUnlisted Visibility = "unlisted"
	VisibilityPrivate  Visibility = "private"
)

func (v Visibility) Valid() bool {
	switch v {
	case VisibilityPublic, VisibilityUnlisted, VisibilityPrivate:
		return true
	}
	return false
}

// Daemon is a published identity. It is addressed publicly by
// (username, handle); the handle is only unique within one owner's account.
type Daemon struct {
	Id      string
	OwnerId string

	// Username is the owning account's name, joined in on read.
	Username string

	Handle      string
	DisplayName string
	Tagline     string
	Visibility  Visibility
	Meta        IdentityMeta
	Tags        []string

	// Pages is the homepage in display order. Loaded on single-daemon
	// reads only; listings leave it empty.
	Pages      []Page
	Stylesheet string

	Created time.Time
	Updated time.Time
}

// Page is one document of a daemon's homepage. Html is the vessel's own
// content and is stored and served verbatim.
type Page struct {
	Slug  string `json:"slug"`
	Title string `json:"title"`
	Html  string `json:"html"`
}

// IndexSlug is the canonical entry page every homepage must carry.
const IndexSlug = "index"

type Homepage struct {
	Pages      []Page `json:"pages"`
	Stylesheet string `json:"stylesheet"`
}

func (d *Daemon) Homepage() Homepage {
	return Homepage{
		Pages:      d.Pages,
		Stylesheet: d.Stylesheet,
	}
}

// Page returns the page with the given slug, or nil.
func (d *Daemon) Page(slug string) *Page {
	for i := range d.Pages {
		if d.Pages[i].Slug == slug {
			return &d.Pages[i]
		}
	}
	return nil
}

// PublicPath is the daemon's address on the html surface.
func (d *Daemon) PublicPath() string {
	return "/d/" + d.Username + "/" + d.Handle
}

// DaemonSummary is the listing projection: enough to render a directory
// entry, never any homepage content.
type DaemonSummary struct {
	Username    string    `json:"username"`
	Handle      string    `json:"handle"`
	DisplayName string    `json:"display_name"`
	Tagline     string    `json:"tagline,omitempty"`
	Tags        []string  `json:"tags,omitempty"`
	Updated     time.Time `json:"updated_at"`
}

func (d *Daemon) Summary() DaemonSummary {
	return DaemonSummary{
		Username:    d.Username,
		Handle:      d.Handle,
		DisplayName: d.DisplayName,
		Tagline:     d.Tagline,
		Tags:        d.Tags,
		Updated:     d.Updated,
	}
}
