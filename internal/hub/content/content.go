// Package content loads the hub's static catalogue: gallery, talent profiles,
// testimonials, partners, services and the choice lists used by forms.
package content

import (
	"bytes"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed data/*.yaml
var dataFS embed.FS

// ErrNotFound is returned when an item id does not exist.
var ErrNotFound = errors.New("content: not found")

// AllCategory selects every gallery item.
const AllCategory = "all"

// Choice is a select option.
type Choice struct {
	ID    string `yaml:"id"`
	Label string `yaml:"label"`
}

// GalleryItem is one photo in the gallery.
type GalleryItem struct {
	ID          int    `yaml:"id"`
	Title       string `yaml:"title"`
	Category    string `yaml:"category"`
	Image       string `yaml:"image"`
	Description string `yaml:"description"`
	Body        string `yaml:"body"`

	BodyHTML template.HTML `yaml:"-"`
}

// TalentProfile is a community member available for hire.
type TalentProfile struct {
	ID         int      `yaml:"id"`
	Name       string   `yaml:"name"`
	Role       string   `yaml:"role"`
	Image      string   `yaml:"image"`
	Skills     []string `yaml:"skills"`
	Experience string   `yaml:"experience"`
	Education  string   `yaml:"education"`
	Bio        string   `yaml:"bio"`

	BioHTML template.HTML `yaml:"-"`
}

// TopSkills returns up to n skills for a profile card.
func (p TalentProfile) TopSkills(n int) []string {
	if n < 0 || len(p.Skills) <= n {
		return p.Skills
	}
	return p.Skills[:n]
}

// MoreSkills counts the skills TopSkills(n) leaves out.
func (p TalentProfile) MoreSkills(n int) int {
	if n < 0 || len(p.Skills) <= n {
		return 0
	}
	return len(p.Skills) - n
}

// Testimonial is a community success story.
type Testimonial struct {
	Author  string `yaml:"author"`
	Role    string `yaml:"role"`
	Avatar  string `yaml:"avatar"`
	Content string `yaml:"content"`
}

// Partner is an organisation shown on the home page.
type Partner struct {
	Name string `yaml:"name"`
	Logo string `yaml:"logo"`
}

// Service is a hub offering listed on the dashboard.
type Service struct {
	Title       string `yaml:"title"`
	Description string `yaml:"description"`
}

// Options holds form choice lists.
type Options struct {
	Purposes      []Choice `yaml:"purposes"`
	TimeSlots     []string `yaml:"time_slots"`
	JobTypes      []Choice `yaml:"job_types"`
	Skills        []string `yaml:"skills"`
	PopularSkills int      `yaml:"popular_skills"`
}

// PurposeIDs returns the ids of every appointment purpose.
func (o Options) PurposeIDs() []string {
	return choiceIDs(o.Purposes)
}

// JobTypeIDs returns the ids of every job type.
func (o Options) JobTypeIDs() []string {
	return choiceIDs(o.JobTypes)
}

// PurposeLabel maps a purpose id to its label.
func (o Options) PurposeLabel(id string) string {
	return choiceLabel(o.Purposes, id)
}

// JobTypeLabel maps a job type id to its label.
func (o Options) JobTypeLabel(id string) string {
	return choiceLabel(o.JobTypes, id)
}

// Popular returns the skills offered as quick picks.
func (o Options) Popular() []string {
	if o.PopularSkills <= 0 || o.PopularSkills >= len(o.Skills) {
		return o.Skills
	}
	return o.Skills[:o.PopularSkills]
}

// OtherSkills returns the skills not offered as quick picks.
func (o Options) OtherSkills() []string {
	popular := o.Popular()
	if len(popular) >= len(o.Skills) {
		return nil
	}
	return o.Skills[len(popular):]
}

// Catalogue is the immutable, loaded content set.
type Catalogue struct {
	categories   []Choice
	gallery      []GalleryItem
	talent       []TalentProfile
	testimonials []Testimonial
	partners     []Partner
	services     []Service
	options      Options
}

type galleryFile struct {
	Categories []Choice      `yaml:"categories"`
	Items      []GalleryItem `yaml:"items"`
}

type talentFile struct {
	Profiles []TalentProfile `yaml:"profiles"`
}

type communityFile struct {
	Testimonials []Testimonial `yaml:"testimonials"`
	Partners     []Partner     `yaml:"partners"`
	Services     []Service     `yaml:"services"`
}

// Load parses the embedded catalogue and renders markdown fields to sanitised HTML.
func Load() (*Catalogue, error) {
	var (
		gallery   galleryFile
		talent    talentFile
		community communityFile
		options   Options
	)
	for name, target := range map[string]any{
		"data/gallery.yaml":   &gallery,
		"data/talent.yaml":    &talent,
		"data/community.yaml": &community,
		"data/options.yaml":   &options,
	} {
		if err := decodeFile(name, target); err != nil {
			return nil, err
		}
	}

	md := newRenderer()
	for i := range gallery.Items {
		html, err := md.render(gallery.Items[i].Body)
		if err != nil {
			return nil, fmt.Errorf("content: render gallery %d: %w", gallery.Items[i].ID, err)
		}
		gallery.Items[i].BodyHTML = html
	}
	for i := range talent.Profiles {
		html, err := md.render(talent.Profiles[i].Bio)
		if err != nil {
			return nil, fmt.Errorf("content: render talent %d: %w", talent.Profiles[i].ID, err)
		}
		talent.Profiles[i].BioHTML = html
	}

	cat := &Catalogue{
		categories:   gallery.Categories,
		gallery:      gallery.Items,
		talent:       talent.Profiles,
		testimonials: community.Testimonials,
		partners:     community.Partners,
		services:     community.Services,
		options:      options,
	}
	if err := cat.validate(); err != nil {
		return nil, err
	}
	return cat, nil
}

// MustLoad is Load for process start-up.
func MustLoad() *Catalogue {
	cat, err := Load()
	if err != nil {
		panic(err)
	}
	return cat
}

func decodeFile(name string, target any) error {
	raw, err := dataFS.ReadFile(name)
	if err != nil {
		return fmt.Errorf("content: read %s: %w", name, err)
	}
	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)
	if err := dec.Decode(target); err != nil {
		return fmt.Errorf("content: decode %s: %w", name, err)
	}
	return nil
}

func (c *Catalogue) validate() error {
	known := make(map[string]struct{}, len(c.categories))
	for _, cat := range c.categories {
		known[cat.ID] = struct{}{}
	}
	seen := make(map[int]struct{}, len(c.gallery))
	for _, item := range c.gallery {
		if _, ok := known[item.Category]; !ok || item.Category == AllCategory {
			return fmt.Errorf("content: gallery %d has unknown category %q", item.ID, item.Category)
		}
		if _, dup := seen[item.ID]; dup {
			return fmt.Errorf("content: duplicate gallery id %d", item.ID)
		}
		seen[item.ID] = struct{}{}
	}
	if len(c.options.Purposes) == 0 || len(c.options.TimeSlots) == 0 || len(c.options.JobTypes) == 0 || len(c.options.Skills) == 0 {
		return errors.New("content: form options incomplete")
	}
	return nil
}

// Categories returns the gallery filter choices, "all" first.
func (c *Catalogue) Categories() []Choice {
	return append([]Choice(nil), c.categories...)
}

// NormalizeCategory maps unknown or empty categories to AllCategory.
func (c *Catalogue) NormalizeCategory(category string) string {
	category = strings.ToLower(strings.TrimSpace(category))
	for _, cat := range c.categories {
		if cat.ID == category {
			return category
		}
	}
	return AllCategory
}

// Gallery returns the items in category, or every item for AllCategory.
func (c *Catalogue) Gallery(category string) []GalleryItem {
	category = c.NormalizeCategory(category)
	if category == AllCategory {
		return append([]GalleryItem(nil), c.gallery...)
	}
	var out []GalleryItem
	for _, item := range c.gallery {
		if item.Category == category {
			out = append(out, item)
		}
	}
	return out
}

// GalleryPreview returns the first n items.
func (c *Catalogue) GalleryPreview(n int) []GalleryItem {
	if n > len(c.gallery) {
		n = len(c.gallery)
	}
	return append([]GalleryItem(nil), c.gallery[:n]...)
}

// GalleryItem looks up one item.
func (c *Catalogue) GalleryItem(id int) (GalleryItem, error) {
	for _, item := range c.gallery {
		if item.ID == id {
			return item, nil
		}
	}
	return GalleryItem{}, ErrNotFound
}

// Talent returns every profile.
func (c *Catalogue) Talent() []TalentProfile {
	return append([]TalentProfile(nil), c.talent...)
}

// TalentProfile looks up one profile.
func (c *Catalogue) TalentProfile(id int) (TalentProfile, error) {
	for _, p := range c.talent {
		if p.ID == id {
			return p, nil
		}
	}
	return TalentProfile{}, ErrNotFound
}

// Testimonials returns the success stories.
func (c *Catalogue) Testimonials() []Testimonial {
	return append([]Testimonial(nil), c.testimonials...)
}

// Partners returns the partner organisations.
func (c *Catalogue) Partners() []Partner {
	return append([]Partner(nil), c.partners...)
}

// Services returns the hub offerings.
func (c *Catalogue) Services() []Service {
	return append([]Service(nil), c.services...)
}

// Options returns the form choice lists.
func (c *Catalogue) Options() Options {
	return c.options
}

func choiceIDs(choices []Choice) []string {
	out := make([]string, 0, len(choices))
	for _, c := range choices {
		out = append(out, c.ID)
	}
	return out
}

func choiceLabel(choices []Choice, id string) string {
	for _, c := range choices {
		if c.ID == id {
			return c.Label
		}
	}
	return id
}
