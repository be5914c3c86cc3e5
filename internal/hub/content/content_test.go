package content

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadCatalogue(t *testing.T) {
	cat, err := Load()
	require.NoError(t, err)

	require.Len(t, cat.Gallery(AllCategory), 12)
	require.Equal(t, AllCategory, cat.Categories()[0].ID)
	require.Len(t, cat.Talent(), 4)
	require.NotEmpty(t, cat.Testimonials())
	require.Len(t, cat.Partners(), 3)
	require.NotEmpty(t, cat.Services())
}

func TestGalleryFiltersByCategory(t *testing.T) {
	cat := MustLoad()

	for _, category := range []string{"events", "facilities", "success"} {
		items := cat.Gallery(category)
		require.NotEmpty(t, items, category)
		for _, item := range items {
			require.Equal(t, category, item.Category)
		}
	}

	require.Len(t, cat.Gallery("unknown"), len(cat.Gallery(AllCategory)))
	require.Equal(t, "events", cat.NormalizeCategory(" Events "))
	require.Equal(t, AllCategory, cat.NormalizeCategory(""))
}

func TestGalleryItemLookup(t *testing.T) {
	cat := MustLoad()

	item, err := cat.GalleryItem(1)
	require.NoError(t, err)
	require.Equal(t, "Tech Workshop", item.Title)
	require.Contains(t, string(item.BodyHTML), "<strong>React.js</strong>")

	_, err = cat.GalleryItem(999)
	require.ErrorIs(t, err, ErrNotFound)

	require.Len(t, cat.GalleryPreview(6), 6)
	require.Len(t, cat.GalleryPreview(100), 12)
}

func TestTalentProfile(t *testing.T) {
	cat := MustLoad()

	p, err := cat.TalentProfile(1)
	require.NoError(t, err)
	require.Equal(t, "Jean Mugabo", p.Name)
	require.Contains(t, string(p.BioHTML), "<strong>scalable</strong>")

	require.Len(t, p.TopSkills(3), 3)
	require.Equal(t, len(p.Skills)-3, p.MoreSkills(3))
	require.Zero(t, p.MoreSkills(10))

	_, err = cat.TalentProfile(0)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestOptions(t *testing.T) {
	opts := MustLoad().Options()

	require.Contains(t, opts.PurposeIDs(), "coworking")
	require.Equal(t, "Coworking Space Tour", opts.PurposeLabel("coworking"))
	require.Equal(t, "missing", opts.PurposeLabel("missing"))
	require.NotEmpty(t, opts.JobTypeIDs())
	require.NotEmpty(t, opts.TimeSlots)
	require.Len(t, opts.Popular(), opts.PopularSkills)
	require.Len(t, opts.OtherSkills(), len(opts.Skills)-opts.PopularSkills)
}

func TestCataloguesReturnCopies(t *testing.T) {
	cat := MustLoad()

	items := cat.Gallery(AllCategory)
	items[0].Title = "changed"
	require.NotEqual(t, "changed", cat.Gallery(AllCategory)[0].Title)
}

func TestRendererSanitises(t *testing.T) {
	r := newRenderer()

	html, err := r.render("hello <script>alert(1)</script> [link](javascript:alert(1))")
	require.NoError(t, err)
	require.NotContains(t, string(html), "<script>")
	require.NotContains(t, strings.ToLower(string(html)), "javascript:")

	empty, err := r.render("   ")
	require.NoError(t, err)
	require.Empty(t, empty)
}
