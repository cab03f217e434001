package catalog

import (
	"encoding/json"
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/freekieb7/storefront/filesystem"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixture = []Product{
	{ID: 1, Name: "Laptop", Price: 1200, Category: "electronics"},
	{ID: 2, Name: "Mouse", Price: 25.5, Category: "accessories"},
	{ID: 3, Name: "Monitor", Price: 300, Category: "electronics"},
	{ID: 4, Name: "Keyboard", Price: 80, Category: "accessories"},
	{ID: 5, Name: "Headset", Price: 80, Category: "audio"},
}

func newCatalog(t *testing.T) (*Catalog, string) {
	t.Helper()

	path := filepath.Join(t.TempDir(), "products.json")
	return New(path, filesystem.NewLocalFileSystem(), fixture), path
}

func ids(products []Product) []int {
	out := make([]int, len(products))
	for i, product := range products {
		out[i] = product.ID
	}
	return out
}

func price(v float64) *float64 { return &v }

func TestLoadToleratesByteOrderMark(t *testing.T) {
	path := filepath.Join(t.TempDir(), "products.json")
	require.NoError(t, os.WriteFile(path, []byte("\xEF\xBB\xBF[{\"id\":7,\"name\":\"Lamp\",\"price\":19.99}]\n\n"), 0o644))

	catalog, err := Load(path, filesystem.NewLocalFileSystem())
	require.NoError(t, err)

	product, found := catalog.Find(7)
	require.True(t, found)
	assert.Equal(t, "Lamp", product.Name)
	assert.Equal(t, 19.99, product.Price)
}

func TestLoadErrors(t *testing.T) {
	dir := t.TempDir()
	fs := filesystem.NewLocalFileSystem()

	_, err := Load(filepath.Join(dir, "missing.json"), fs)
	assert.ErrorIs(t, err, filesystem.ErrFileNotFound)

	broken := filepath.Join(dir, "broken.json")
	require.NoError(t, os.WriteFile(broken, []byte("{"), 0o644))
	_, err = Load(broken, fs)
	assert.Error(t, err)
}

func TestFilter(t *testing.T) {
	catalog, _ := newCatalog(t)

	tests := []struct {
		name  string
		query Query
		total int
		ids   []int
	}{
		{"everything", Query{}, 5, []int{1, 2, 3, 4, 5}},
		{"category", Query{Category: "electronics"}, 2, []int{1, 3}},
		{"price range", Query{MinPrice: price(50), MaxPrice: price(300)}, 3, []int{3, 4, 5}},
		{"ascending is stable", Query{Sort: SortPriceAsc}, 5, []int{2, 4, 5, 3, 1}},
		{"descending", Query{Sort: SortPriceDesc}, 5, []int{1, 3, 4, 5, 2}},
		{"second page", Query{Page: 2, Limit: 2}, 5, []int{3, 4}},
		{"past the end", Query{Page: 9, Limit: 2}, 5, []int{}},
		{"huge page", Query{Page: 4611686018427387904, Limit: 4}, 5, []int{}},
		{"huge limit", Query{Page: 2, Limit: math.MaxInt}, 5, []int{}},
		{"huge limit first page", Query{Limit: math.MaxInt}, 5, []int{1, 2, 3, 4, 5}},
		{"short last page", Query{Page: 3, Limit: 2}, 5, []int{5}},
		{"no match", Query{Category: "garden"}, 0, []int{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			page := catalog.Filter(tt.query)
			assert.Equal(t, tt.total, page.Total)
			assert.Equal(t, tt.ids, ids(page.Products))
		})
	}
}

func TestFilterHugeQueryValues(t *testing.T) {
	catalog, _ := newCatalog(t)

	page := catalog.Filter(ParseQuery(map[string]string{"page": "4611686018427387904", "limit": "4"}))
	assert.Empty(t, page.Products)
	assert.Equal(t, 5, page.Total)
	assert.Equal(t, 2, page.Pages())

	page = catalog.Filter(ParseQuery(map[string]string{"limit": "9223372036854775807"}))
	assert.Len(t, page.Products, 5)
	assert.Equal(t, 1, page.Pages())
}

func TestPagePages(t *testing.T) {
	tests := []struct {
		page  Page
		pages int
	}{
		{Page{Total: 0, Limit: 10}, 0},
		{Page{Total: 10, Limit: 10}, 1},
		{Page{Total: 11, Limit: 10}, 2},
		{Page{Total: 5, Limit: math.MaxInt}, 1},
		{Page{Total: 5}, 0},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.pages, tt.page.Pages(), "total %d limit %d", tt.page.Total, tt.page.Limit)
	}
}

func TestFilterDoesNotReorderCatalog(t *testing.T) {
	catalog, _ := newCatalog(t)

	catalog.Filter(Query{Sort: SortPriceDesc})
	assert.Equal(t, []int{1, 2, 3, 4, 5}, ids(catalog.All()))
}

func TestParseQuery(t *testing.T) {
	query := ParseQuery(map[string]string{
		"category":  "audio",
		"min_price": "10.5",
		"max_price": "abc",
		"sort":      SortPriceAsc,
		"page":      "0",
		"limit":     "3",
	})

	assert.Equal(t, "audio", query.Category)
	require.NotNil(t, query.MinPrice)
	assert.Equal(t, 10.5, *query.MinPrice)
	assert.Nil(t, query.MaxPrice)
	assert.Equal(t, DefaultPage, query.Page)
	assert.Equal(t, 3, query.Limit)

	empty := ParseQuery(nil)
	assert.Equal(t, DefaultPage, empty.Page)
	assert.Equal(t, DefaultLimit, empty.Limit)
}

func TestPageJSON(t *testing.T) {
	catalog, _ := newCatalog(t)

	data, err := json.Marshal(catalog.Filter(Query{Category: "audio"}))
	require.NoError(t, err)
	assert.JSONEq(t, `{"total":1,"page":1,"limit":10,"products":[
		{"id":5,"name":"Headset","price":80,"category":"audio","description":"","image_url":"","stock":0}
	]}`, string(data))
}

func TestAddCommentPersists(t *testing.T) {
	catalog, path := newCatalog(t)

	comment := Comment{Author: "1", Name: "Ana", Rating: 5, Comment: "Great", Date: "2024-3-9"}
	require.NoError(t, catalog.AddComment(2, comment))

	product, _ := catalog.Find(2)
	assert.Equal(t, []Comment{comment}, product.Comments)

	reloaded, err := Load(path, filesystem.NewLocalFileSystem())
	require.NoError(t, err)
	product, _ = reloaded.Find(2)
	assert.Equal(t, []Comment{comment}, product.Comments)

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(raw), "\n  {\n    \"id\": 1,")

	assert.ErrorIs(t, catalog.AddComment(99, comment), ErrProductNotFound)
}

func TestSetImage(t *testing.T) {
	catalog, _ := newCatalog(t)

	require.NoError(t, catalog.SetImage(3, "1700000000000-monitor.png"))

	product, _ := catalog.Find(3)
	assert.Equal(t, "1700000000000-monitor.png", product.ImageURL)
	assert.ErrorIs(t, catalog.SetImage(42, "x.png"), ErrProductNotFound)
}

type failingWrites struct {
	filesystem.Filesystem
}

func (failingWrites) WriteFile(string, []byte) error {
	return errors.New("disk full")
}

func TestUpdateKeepsCatalogWhenWriteFails(t *testing.T) {
	path := filepath.Join(t.TempDir(), "products.json")
	catalog := New(path, failingWrites{filesystem.NewLocalFileSystem()}, fixture)

	assert.Error(t, catalog.AddComment(1, Comment{Name: "Ana"}))
	assert.Error(t, catalog.SetImage(2, "new.png"))

	product, _ := catalog.Find(1)
	assert.Empty(t, product.Comments)
	product, _ = catalog.Find(2)
	assert.Empty(t, product.ImageURL)
}

func TestFindReturnsCopy(t *testing.T) {
	catalog, _ := newCatalog(t)
	require.NoError(t, catalog.AddComment(1, Comment{Name: "Ana"}))

	product, _ := catalog.Find(1)
	product.Comments[0].Name = "mutated"
	product.Name = "mutated"

	again, _ := catalog.Find(1)
	assert.Equal(t, "Laptop", again.Name)
	assert.Equal(t, "Ana", again.Comments[0].Name)
}

func TestFeaturedAndCategories(t *testing.T) {
	catalog, _ := newCatalog(t)

	assert.Equal(t, []int{1, 2, 3}, ids(catalog.Featured(3)))
	assert.Len(t, catalog.Featured(50), 5)
	assert.Equal(t, []string{"electronics", "accessories", "audio"}, catalog.Categories())
}

func TestAuthenticate(t *testing.T) {
	users := NewUsers(
		User{ID: 1, Name: "Ana", Username: "ana", Password: "secret"},
		User{ID: 2, Name: "Bo", Username: "bo", Password: "hunter2"},
	)

	user, ok := users.Authenticate("ana", "secret")
	require.True(t, ok)
	assert.Equal(t, 1, user.ID)
	assert.Empty(t, user.Password)

	_, ok = users.Authenticate("ana", "wrong")
	assert.False(t, ok)
	_, ok = users.Authenticate("nobody", "secret")
	assert.False(t, ok)
	assert.Equal(t, 2, users.Len())
}

func TestLoadUsers(t *testing.T) {
	path := filepath.Join(t.TempDir(), "users.json")
	require.NoError(t, os.WriteFile(path, []byte(`[{"id":1,"name":"Ana","username":"ana","password":"pw"}]`), 0o644))

	users, err := LoadUsers(path, filesystem.NewLocalFileSystem())
	require.NoError(t, err)

	_, ok := users.Authenticate("ana", "pw")
	assert.True(t, ok)
}
