package pages

import (
	"html/template"
	"time"

	"github.com/dustin/go-humanize"
)

func funcMap() template.FuncMap {
	return template.FuncMap{
		"timeAgo": func(t time.Time) string {
			return humanize.Time(t)
		},
		// daemon pages render the vessel's own html as-is
		"rawHtml": func(s string) template.HTML {
			return template.HTML(s)
		},
	}
}
