package validator

import (
	"errors"
	"fmt"
	"regexp"
	"unicode/utf8"

	"github.com/KohlJary/geocass/models"
)

var (
	handleRegex = regexp.MustCompile(`\A[a-z0-9_-]+\z`)
	slugRegex   = regexp.MustCompile(`\A[a-z0-9-]+\z`)
	tagRegex    = regexp.MustCompile(`\A[a-z0-9-]+\z`)
)

const (
	maxHandleLen      = 32
	maxDisplayNameLen = 64
	maxTaglineLen     = 256
	maxTags           = 10
	maxTagLen         = 32
	maxSlugLen        = 64
	maxTitleLen       = 140
)

// ValidateSync checks a full daemon payload. Every violated rule is
// reported, joined into one error.
func (v *Validator) ValidateSync(d *models.Daemon) error {
	var errs []error

	if d.Handle == "" {
		errs = append(errs, errors.New("handle is required"))
	} else {
		if utf8.RuneCountInString(d.Handle) > maxHandleLen {
			errs = append(errs, fmt.Errorf("handle must be at most %d characters", maxHandleLen))
		}
		if !handleRegex.MatchString(d.Handle) {
			errs = append(errs, errors.New("handle may only contain lowercase letters, digits, hyphens and underscores"))
		}
	}

	if d.DisplayName == "" {
		errs = append(errs, errors.New("display_name is required"))
	} else if utf8.RuneCountInString(d.DisplayName) > maxDisplayNameLen {
		errs = append(errs, fmt.Errorf("display_name must be at most %d characters", maxDisplayNameLen))
	}

	if utf8.RuneCountInString(d.Tagline) > maxTaglineLen {
		errs = append(errs, fmt.Errorf("tagline must be at most %d characters", maxTaglineLen))
	}

	if !d.Visibility.Valid() {
		errs = append(errs, fmt.Errorf("visibility must be one of %s, %s or %s",
			models.VisibilityPublic, models.VisibilityUnlisted, models.VisibilityPrivate))
	}

	errs = append(errs, v.tagRules(d.Tags)...)
	errs = append(errs, v.pageRules(d.Pages)...)

	if size := homepageSize(d); size > v.maxHomepageBytes {
		errs = append(errs, fmt.Errorf("homepage is %d bytes, the limit is %d", size, v.maxHomepageBytes))
	}

	return invalid(errors.Join(errs...))
}

func (v *Validator) tagRules(tags []string) []error {
	var errs []error

	if len(tags) > maxTags {
		errs = append(errs, fmt.Errorf("at most %d tags are allowed", maxTags))
	}

	seen := make(map[string]struct{})
	for _, tag := range tags {
		if !tagRegex.MatchString(tag) || utf8.RuneCountInString(tag) > maxTagLen {
			errs = append(errs, fmt.Errorf("invalid tag %q: tags are lowercase slugs of at most %d characters", tag, maxTagLen))
			continue
		}
		if _, ok := seen[tag]; ok {
			errs = append(errs, fmt.Errorf("duplicate tag %q", tag))
		}
		seen[tag] = struct{}{}
	}

	return errs
}

func (v *Validator) pageRules(pages []models.Page) []error {
	var errs []error

	if len(pages) == 0 {
		errs = append(errs, errors.New("homepage must contain at least one page"))
		return errs
	}

	hasIndex := false
	seen := make(map[string]struct{})
	for _, p := range pages {
		if p.Slug == models.IndexSlug {
			hasIndex = true
		}

		if !slugRegex.MatchString(p.Slug) || utf8.RuneCountInString(p.Slug) > maxSlugLen {
			errs = append(errs, fmt.Errorf("invalid page slug %q: slugs may only contain lowercase letters, digits and hyphens, at most %d characters", p.Slug, maxSlugLen))
			continue
		}
		if _, ok := seen[p.Slug]; ok {
			errs = append(errs, fmt.Errorf("duplicate page slug %q", p.Slug))
		}
		seen[p.Slug] = struct{}{}

		if utf8.RuneCountInString(p.Title) > maxTitleLen {
			errs = append(errs, fmt.Errorf("title of page %q must be at most %d characters", p.Slug, maxTitleLen))
		}
	}

	if !hasIndex {
		errs = append(errs, fmt.Errorf("homepage must contain a page with slug %q", models.IndexSlug))
	}

	return errs
}

// homepageSize is the payload-side weight of a homepage: page content plus
// the stylesheet. Metadata like the tagline is bounded separately.
func homepageSize(d *models.Daemon) int {
	size := len(d.Stylesheet)
	for _, p := range d.Pages {
		size += len(p.Slug) + len(p.Title) + len(p.Html)
	}
	return size
}
