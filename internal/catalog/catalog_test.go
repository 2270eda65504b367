// Package catalog provides unit tests for the catalog derivations.
package catalog

import (
	"reflect"
	"testing"

	"github.com/reviewflix/reviewflix-go/internal/model"
)

// testCatalog returns a small fixed catalog in import order.
func testCatalog() []model.Movie {
	return []model.Movie{
		{ID: "m1", Title: "Steel Rain", Year: 2019, Genre: []string{"Action"}, Rating: 7.0, Director: "Ada Wong", Cast: []string{"Lee Park", "Maya Chen"}},
		{ID: "m2", Title: "Quiet Orbit", Year: 2021, Genre: []string{"Action", "Drama"}, Rating: 9.0, Director: "Luis Vega", Cast: []string{"Noah Reyes"}},
		{ID: "m3", Title: "Amber Coast", Year: 2015, Genre: []string{"Romance"}, Rating: 8.1, Director: "Iris Kim", Cast: []string{"Sofia Laurent"}},
		{ID: "m4", Title: "the long night", Year: 2021, Genre: []string{"Drama", "Thriller"}, Rating: 8.1, Director: "Ada Wong", Cast: []string{"Maya Chen"}},
		{ID: "m5", Title: "Border Signal", Year: 2010, Genre: []string{"Sci-Fi", "Action"}, Rating: 6.4, Director: "Tom Hale", Cast: []string{"Rita Okafor"}},
		{ID: "m6", Title: "Cold Summit", Year: 2023, Genre: []string{"Thriller"}, Rating: 7.7, Director: "Luis Vega", Cast: []string{"Lee Park"}},
	}
}

func ids(movies []model.Movie) []string {
	out := make([]string, len(movies))
	for i, m := range movies {
		out[i] = m.ID
	}
	return out
}

// TestSimilarExcludesSelfAndCaps verifies the self-exclusion and size cap
// of the similarity derivation.
func TestSimilarExcludesSelfAndCaps(t *testing.T) {
	movies := testCatalog()

	result := Similar(movies, "m1")
	if len(result) > MaxSimilar {
		t.Fatalf("Similar returned %d movies, cap is %d", len(result), MaxSimilar)
	}
	for _, m := range result {
		if m.ID == "m1" {
			t.Error("Similar included the queried movie itself")
		}
	}
	// m1 is Action; shared-genre matches in catalog order are m2, m5
	want := []string{"m2", "m5"}
	if !reflect.DeepEqual(ids(result), want) {
		t.Errorf("Similar(m1) = %v, want %v", ids(result), want)
	}
}

// TestSimilarUnknownID verifies that an unknown id yields an empty result.
func TestSimilarUnknownID(t *testing.T) {
	if got := Similar(testCatalog(), "nope"); len(got) != 0 {
		t.Errorf("Similar(unknown) = %v, want empty", ids(got))
	}
}

// TestSimilarScenario runs the two-movie shared-genre scenario.
func TestSimilarScenario(t *testing.T) {
	movies := []model.Movie{
		{ID: "m1", Genre: []string{"Action"}, Rating: 7.0},
		{ID: "m2", Genre: []string{"Action", "Drama"}, Rating: 9.0},
	}

	if got := ids(Similar(movies, "m1")); !reflect.DeepEqual(got, []string{"m2"}) {
		t.Errorf("Similar(m1) = %v, want [m2]", got)
	}
	if got := ids(TopRated(movies)); !reflect.DeepEqual(got, []string{"m2", "m1"}) {
		t.Errorf("TopRated() = %v, want [m2 m1]", got)
	}
}

// TestTopRatedOrderAndCap verifies size and non-increasing rating order.
func TestTopRatedOrderAndCap(t *testing.T) {
	result := TopRated(testCatalog())
	if len(result) != TopRatedCount {
		t.Fatalf("TopRated returned %d movies, want %d", len(result), TopRatedCount)
	}
	for i := 1; i < len(result); i++ {
		if result[i].Rating > result[i-1].Rating {
			t.Errorf("TopRated not in non-increasing order at %d: %v > %v", i, result[i].Rating, result[i-1].Rating)
		}
	}
	// Equal ratings (m3, m4) keep catalog order
	if got := ids(result); got[1] != "m3" || got[2] != "m4" {
		t.Errorf("TopRated tie order = %v, want m3 before m4", got)
	}
}

// TestTopRatedSmallCatalog verifies that a catalog smaller than the cap is
// returned whole.
func TestTopRatedSmallCatalog(t *testing.T) {
	movies := testCatalog()[:2]
	if got := TopRated(movies); len(got) != 2 {
		t.Errorf("TopRated on 2-movie catalog returned %d entries", len(got))
	}
}

// TestFilterConjunctive verifies that query and genre predicates compose.
func TestFilterConjunctive(t *testing.T) {
	movies := testCatalog()

	tests := []struct {
		name   string
		filter Filter
		want   []string
	}{
		{"empty matches all", Filter{}, []string{"m1", "m2", "m3", "m4", "m5", "m6"}},
		{"title query", Filter{Query: "orbit"}, []string{"m2"}},
		{"director query", Filter{Query: "ada wong"}, []string{"m1", "m4"}},
		{"cast query", Filter{Query: "lee park"}, []string{"m1", "m6"}},
		{"genre only", Filter{Genre: "Action"}, []string{"m1", "m2", "m5"}},
		{"query and genre", Filter{Query: "ada wong", Genre: "Drama"}, []string{"m4"}},
		{"no match", Filter{Query: "zzz"}, []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ids(Apply(movies, tt.filter))
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Apply(%+v) = %v, want %v", tt.filter, got, tt.want)
			}
		})
	}
}

// TestFilterSortIdempotent verifies that re-applying the same filter and sort
// to an already filtered/sorted result yields the same sequence.
func TestFilterSortIdempotent(t *testing.T) {
	movies := testCatalog()
	filter := Filter{Genre: "Action"}

	for _, key := range []SortKey{SortByRating, SortByYear, SortByTitle} {
		once := Sort(Apply(movies, filter), key)
		twice := Sort(Apply(once, filter), key)
		if !reflect.DeepEqual(ids(once), ids(twice)) {
			t.Errorf("filter/sort by %s not idempotent: %v then %v", key, ids(once), ids(twice))
		}
	}
}

// TestSortStability verifies that equal keys keep input order.
func TestSortStability(t *testing.T) {
	movies := testCatalog()

	byRating := Sort(movies, SortByRating)
	// m3 and m4 both rate 8.1; m3 comes first in the catalog
	var first string
	for _, m := range byRating {
		if m.Rating == 8.1 {
			first = m.ID
			break
		}
	}
	if first != "m3" {
		t.Errorf("rating sort tie broke catalog order, got %s first", first)
	}

	byYear := Sort(movies, SortByYear)
	// m2 and m4 both from 2021; m2 comes first in the catalog
	for i, m := range byYear {
		if m.Year == 2021 {
			if m.ID != "m2" {
				t.Errorf("year sort tie broke catalog order at %d, got %s", i, m.ID)
			}
			break
		}
	}
}

// TestSortTitleCaseInsensitive verifies the locale-aware title ordering
// ignores case.
func TestSortTitleCaseInsensitive(t *testing.T) {
	byTitle := Sort(testCatalog(), SortByTitle)
	// "the long night" sorts under T, not after all uppercase titles
	got := ids(byTitle)
	want := []string{"m3", "m5", "m6", "m2", "m1", "m4"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("title sort = %v, want %v", got, want)
	}
}

// TestSortDoesNotMutateInput verifies Sort returns a copy.
func TestSortDoesNotMutateInput(t *testing.T) {
	movies := testCatalog()
	before := ids(movies)
	Sort(movies, SortByTitle)
	if !reflect.DeepEqual(ids(movies), before) {
		t.Error("Sort mutated its input")
	}
}

// TestSearch verifies case-insensitive substring match on title and genre.
func TestSearch(t *testing.T) {
	movies := testCatalog()

	tests := []struct {
		query string
		want  []string
	}{
		{"RAIN", []string{"m1"}},
		{"drama", []string{"m2", "m4"}},
		{"sci", []string{"m5"}},
		{"", []string{"m1", "m2", "m3", "m4", "m5", "m6"}},
		{"no such movie", []string{}},
	}

	for _, tt := range tests {
		got := ids(Search(movies, tt.query))
		if !reflect.DeepEqual(got, tt.want) {
			t.Errorf("Search(%q) = %v, want %v", tt.query, got, tt.want)
		}
	}
}

// TestAggregateRating verifies the mean and the empty-set fallback.
func TestAggregateRating(t *testing.T) {
	movie := model.Movie{ID: "m1", Rating: 7.3}

	// Zero reviews fall back to the curated catalog rating
	if got := AggregateRating(movie, nil); got != 7.3 {
		t.Errorf("AggregateRating with no reviews = %v, want 7.3", got)
	}

	// Reviews rated 8 and 10 average to 9.0
	reviews := []model.Review{
		{ID: "r1", MovieID: "m1", Rating: 8},
		{ID: "r2", MovieID: "m1", Rating: 10},
	}
	if got := AggregateRating(movie, reviews); got != 9.0 {
		t.Errorf("AggregateRating = %v, want 9.0", got)
	}
}
