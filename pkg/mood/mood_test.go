package mood

import (
	"context"
	"errors"
	"math"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/elonfeng/moodradar/pkg/ml"
	"github.com/elonfeng/moodradar/pkg/source"
)

func TestExpandTopic(t *testing.T) {
	got := ExpandTopic("  climate ", 0)
	want := []string{
		"climate",
		"climate news",
		"climate trends",
		"climate discussion",
		"climate impact",
		"climate analysis",
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("ExpandTopic() = %v, want %v", got, want)
	}

	if got := ExpandTopic("ai", 2); !reflect.DeepEqual(got, []string{"ai", "ai news"}) {
		t.Errorf("ExpandTopic(ai, 2) = %v", got)
	}
	if got := ExpandTopic("ai", 50); len(got) != 7 || got[6] != "ai opinions" {
		t.Errorf("ExpandTopic(ai, 50) = %v", got)
	}
	if got := ExpandTopic("   ", 3); got != nil {
		t.Errorf("blank topic should expand to nil, got %v", got)
	}
}

func TestDeduplicate(t *testing.T) {
	long := longText("identical story")
	posts := []source.Post{
		{Text: "too short to matter", Likes: 1000, Source: source.SourceReddit},
		{Text: "  " + long + "  ", Likes: 1, Source: source.SourceReddit, URL: "first"},
		{Text: long, Likes: 50, Source: source.SourceMastodon, URL: "second"},
		{Text: longText("popular"), Likes: 10, Source: source.SourceVideo},
		{Text: strings.Repeat("y", 30), Likes: 500, Source: source.SourceVideo},
	}

	got := Deduplicate(posts, 0)
	if len(got) != 2 {
		t.Fatalf("got %d posts, want 2: %+v", len(got), got)
	}
	if got[0].Likes != 10 {
		t.Errorf("highest engagement first, got %+v", got[0])
	}
	if got[1].URL != "first" || got[1].Source != source.SourceReddit || got[1].Text != long {
		t.Errorf("first occurrence should win with trimmed text, got %+v", got[1])
	}

	for _, p := range got {
		if n := len([]rune(strings.TrimSpace(p.Text))); n <= 30 {
			t.Errorf("post of length %d survived", n)
		}
	}

	if again := Deduplicate(got, 0); !reflect.DeepEqual(again, got) {
		t.Errorf("Deduplicate is not idempotent:\n%+v\n%+v", got, again)
	}
}

func TestDeduplicateLengthTiebreakAndCap(t *testing.T) {
	posts := []source.Post{
		{Text: longText("short one"), Likes: 3},
		{Text: longText("a considerably longer one with more words"), Likes: 3},
		{Text: longText("low"), Likes: 0},
	}
	got := Deduplicate(posts, 2)
	if len(got) != 2 {
		t.Fatalf("got %d posts, want 2", len(got))
	}
	if !strings.HasPrefix(got[0].Text, "a considerably") {
		t.Errorf("longer text should win the tie, got %q", got[0].Text)
	}
}

func TestCompositeScore(t *testing.T) {
	want := round3(0.8 * (1 + math.Log(12)) * (0.5 + 0.9))
	if got := CompositeScore(0.8, 10, 0.9); got != want {
		t.Errorf("CompositeScore() = %v, want %v", got, want)
	}

	// Zero engagement still contributes 1 + ln 2.
	if got := CompositeScore(1, 0, 0.5); got != round3(1+math.Ln2) {
		t.Errorf("CompositeScore(1, 0, 0.5) = %v", got)
	}
}

func TestCompositeScoreSignInversion(t *testing.T) {
	if got := CompositeScore(0.9, 10, -0.5); got != 0 {
		t.Errorf("score at similarity -0.5 = %v, want 0", got)
	}
	if got := CompositeScore(0.9, 10, -0.6); got >= 0 {
		t.Errorf("score below -0.5 should be negative, got %v", got)
	}
	if got := CompositeScore(0.9, 10, -0.4); got <= 0 {
		t.Errorf("score above -0.5 should be positive, got %v", got)
	}
}

func TestCompositeScoreMonotone(t *testing.T) {
	for _, sim := range []float64{0, 0.3, 1} {
		prev := math.Inf(-1)
		for conf := 0.0; conf <= 1.0; conf += 0.05 {
			s := CompositeScore(conf, 7, sim)
			if s < prev {
				t.Fatalf("score decreased in confidence at %v (sim %v)", conf, sim)
			}
			prev = s
		}

		prev = math.Inf(-1)
		for likes := 0; likes < 5000; likes += 37 {
			s := CompositeScore(0.6, likes, sim)
			if s < prev {
				t.Fatalf("score decreased in likes at %d (sim %v)", likes, sim)
			}
			prev = s
		}
	}
}

func TestRankAndTopBySource(t *testing.T) {
	posts := []source.Post{
		{Text: "a", Source: source.SourceReddit, ScoreWeighted: 1},
		{Text: "b", Source: source.SourceVideo, ScoreWeighted: 3},
		{Text: "c", Source: source.SourceReddit, ScoreWeighted: 2},
		{Text: "d", Source: source.SourceReddit, ScoreWeighted: 2},
	}
	ranked := Rank(posts)

	var order []string
	for _, p := range ranked {
		order = append(order, p.Text)
	}
	if !reflect.DeepEqual(order, []string{"b", "c", "d", "a"}) {
		t.Errorf("Rank order = %v", order)
	}
	if posts[0].Text != "a" {
		t.Error("Rank must not reorder its input")
	}

	top := TopBySource(ranked, source.SourceReddit, 2)
	if len(top) != 2 || top[0].Text != "c" || top[1].Text != "d" {
		t.Errorf("TopBySource() = %+v", top)
	}
	if got := TopBySource(ranked, source.SourceMastodon, 3); got == nil || len(got) != 0 {
		t.Errorf("missing source should give an empty non-nil list, got %#v", got)
	}
	if got := TopBySource(ranked, source.SourceReddit, 0); len(got) != 0 {
		t.Errorf("n=0 should give no posts, got %d", len(got))
	}
}

func TestEmotionSummary(t *testing.T) {
	posts := []source.Post{
		{TopEmotion: "joy", TopConfidence: 0.9, Likes: 10},
		{TopEmotion: "anger", TopConfidence: 0.6, Likes: 0},
		{TopEmotion: "joy", TopConfidence: 0.5, Likes: 3},
		{TopEmotion: "fear", TopConfidence: 0.7, Likes: 100},
	}
	summary := EmotionSummary(posts)

	sum := 0.0
	for _, v := range summary {
		sum += v
	}
	if math.Abs(sum-1) > 0.01 {
		t.Errorf("summary sums to %v, want 1", sum)
	}
	if len(summary) != 3 {
		t.Errorf("summary labels = %v", summary)
	}

	label, share := DominantEmotion(summary)
	if label != "fear" || share != summary["fear"] {
		t.Errorf("DominantEmotion() = %s %v", label, share)
	}
}

func TestEmotionSummaryZeroTotal(t *testing.T) {
	summary := EmotionSummary([]source.Post{{TopEmotion: "joy", TopConfidence: 0, Likes: 4}})
	if summary["joy"] != 0 {
		t.Errorf("degenerate summary = %v, want all zero", summary)
	}
	if label, _ := DominantEmotion(nil); label != "" {
		t.Errorf("DominantEmotion(nil) = %q", label)
	}
}

func TestReactions(t *testing.T) {
	got := Reactions([]source.Post{{Likes: 1}, {Likes: 2}, {Likes: 2}})
	if got.TotalLikes != 5 || got.AvgLikes != 1.67 {
		t.Errorf("Reactions() = %+v", got)
	}
	if got := Reactions(nil); got.TotalLikes != 0 || got.AvgLikes != 0 {
		t.Errorf("Reactions(nil) = %+v", got)
	}
}

func TestClassifyBatchesAndTopEmotion(t *testing.T) {
	posts := makePosts(source.SourceReddit, 70)
	posts[0].Text = strings.Repeat("é", 600)
	clf := &fakeClassifier{byText: map[string][]ml.LabelScore{
		strings.Repeat("é", 512): {
			{Label: "sadness", Score: 0.12345},
			{Label: "anger", Score: 0.6},
			{Label: "joy", Score: 0.27655},
		},
	}}

	if err := Classify(context.Background(), clf, posts, 32); err != nil {
		t.Fatalf("Classify: %v", err)
	}

	total := 0
	for _, n := range clf.batches {
		if n > 32 {
			t.Errorf("batch of %d exceeds 32", n)
		}
		total += n
	}
	if len(clf.batches) != 3 || total != 70 {
		t.Errorf("batches = %v", clf.batches)
	}

	p := posts[0]
	if p.TopEmotion != "anger" || p.TopConfidence != 0.6 {
		t.Errorf("top = %s %v", p.TopEmotion, p.TopConfidence)
	}
	if p.AllScores["sadness"] != 0.123 {
		t.Errorf("all_scores not rounded: %v", p.AllScores)
	}

	for i, p := range posts {
		maxLabel, maxScore := "", -1.0
		for label, s := range p.AllScores {
			if s > maxScore {
				maxLabel, maxScore = label, s
			}
		}
		if p.AllScores[p.TopEmotion] != maxScore || p.TopConfidence != maxScore {
			t.Errorf("post %d: top %s=%v but max %s=%v", i, p.TopEmotion, p.TopConfidence, maxLabel, maxScore)
		}
	}
}

func TestClassifyErrors(t *testing.T) {
	posts := makePosts(source.SourceReddit, 3)
	if err := Classify(context.Background(), &fakeClassifier{err: errors.New("down")}, posts, 0); err == nil {
		t.Error("expected classifier error")
	}

	short := &fakeClassifier{byText: map[string][]ml.LabelScore{posts[0].Text: {}}}
	if err := Classify(context.Background(), short, posts, 0); err == nil {
		t.Error("expected error for empty distribution")
	}
}

func TestFetchAllIsolatesFailuresAndTimeouts(t *testing.T) {
	good := &fakeSource{
		name:    source.SourceReddit,
		timeout: time.Second,
		all:     makePosts(source.SourceReddit, 2),
	}
	broken := &fakeSource{name: source.SourceMastodon, timeout: time.Second, err: errors.New("401")}
	slow := &fakeSource{
		name:    source.SourceVideo,
		timeout: 20 * time.Millisecond,
		delay:   300 * time.Millisecond,
		all:     makePosts(source.SourceVideo, 2),
	}

	f := NewFetcher([]source.Source{good, broken, slow}, 4)
	start := time.Now()
	posts := f.FetchAll(context.Background(), []string{"a", "b"})
	elapsed := time.Since(start)

	if elapsed >= 250*time.Millisecond {
		t.Errorf("FetchAll waited %v for a timed-out source", elapsed)
	}
	if len(posts) != 4 {
		t.Fatalf("got %d posts, want 4", len(posts))
	}
	for _, p := range posts {
		if p.Source != source.SourceReddit {
			t.Errorf("unexpected post from %s", p.Source)
		}
	}
	if len(broken.terms) != 2 {
		t.Errorf("broken source called %d times, want 2", len(broken.terms))
	}
}

func TestFetchAllOrder(t *testing.T) {
	src := &fakeSource{
		name:    source.SourceReddit,
		timeout: time.Second,
		byTerm: map[string][]source.Post{
			"one":   {{Text: "1"}},
			"two":   {{Text: "2"}},
			"three": {{Text: "3"}},
		},
	}
	posts := NewFetcher([]source.Source{src}, 1).FetchAll(context.Background(), []string{"one", "two", "three"})
	var got []string
	for _, p := range posts {
		got = append(got, p.Text)
	}
	if !reflect.DeepEqual(got, []string{"1", "2", "3"}) {
		t.Errorf("FetchAll order = %v", got)
	}
}

func climateSources() []source.Source {
	var sources []source.Source
	for _, src := range source.AnalyzedSourceTypes() {
		sources = append(sources, &fakeSource{
			name:    src,
			timeout: time.Second,
			byTerm: map[string][]source.Post{
				"climate": {
					{Text: longText(string(src) + " low relevance"), Likes: 5, Source: src},
					{Text: longText(string(src) + " high relevance"), Likes: 10, Source: src},
				},
			},
		})
	}
	return sources
}

func TestAnalyzeClimateScenario(t *testing.T) {
	sims := map[string]float64{}
	for _, src := range source.AnalyzedSourceTypes() {
		sims[longText(string(src)+" low relevance")] = 0.1
		sims[longText(string(src)+" high relevance")] = 0.9
	}
	scorer := &fakeScorer{byText: sims}

	a := NewAnalyzer(NewFetcher(climateSources(), 0), &fakeClassifier{}, scorer, Options{})
	res, err := a.Analyze(context.Background(), "climate", 20)
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}

	if res.TotalPostsAnalyzed != 6 || len(res.Results.AllPosts) != 6 {
		t.Fatalf("analyzed %d posts, want 6", res.TotalPostsAnalyzed)
	}
	if scorer.topic != "climate" {
		t.Errorf("canonical similarity scored against %q", scorer.topic)
	}
	if len(res.RelatedTerms) != 6 || res.RelatedTerms[0] != "climate" {
		t.Errorf("related terms = %v", res.RelatedTerms)
	}

	seen := map[string]bool{}
	for _, p := range res.Results.AllPosts {
		if seen[p.Text] {
			t.Errorf("duplicate post %q", p.Text)
		}
		seen[p.Text] = true
	}

	for _, src := range source.AnalyzedSourceTypes() {
		var high, low float64
		for _, p := range res.Results.AllPosts {
			if p.Source != src {
				continue
			}
			if strings.Contains(p.Text, "high relevance") {
				high = p.ScoreWeighted
			} else {
				low = p.ScoreWeighted
			}
		}
		if high <= low {
			t.Errorf("%s: high relevance score %v should exceed low %v", src, high, low)
		}
	}

	if res.ReactionStats.TotalLikes != 45 || res.ReactionStats.AvgLikes != 7.5 {
		t.Errorf("reaction stats = %+v", res.ReactionStats)
	}
	if res.EmotionSummary["joy"] != 1 {
		t.Errorf("emotion summary = %v", res.EmotionSummary)
	}
	for i := 1; i < len(res.Results.AllPosts); i++ {
		if res.Results.AllPosts[i].ScoreWeighted > res.Results.AllPosts[i-1].ScoreWeighted {
			t.Fatal("all_posts not sorted by score")
		}
	}
}

func TestAnalyzeOverwritesInlineSimilarity(t *testing.T) {
	inline := 0.95
	text := longText("video comment")
	src := &fakeSource{
		name:    source.SourceVideo,
		timeout: time.Second,
		all:     []source.Post{{Text: text, Likes: 1, Source: source.SourceVideo, Similarity: &inline}},
	}
	a := NewAnalyzer(NewFetcher([]source.Source{src}, 0), &fakeClassifier{}, &fakeScorer{byText: map[string]float64{text: 0.2}}, Options{MaxTerms: 1})

	res, err := a.Analyze(context.Background(), "topic", 0)
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if got := res.Results.AllPosts[0].Similarity; got == nil || *got != 0.2 {
		t.Errorf("similarity = %v, want canonical 0.2", got)
	}
}

func TestAnalyzeLimitPerSource(t *testing.T) {
	var sources []source.Source
	for _, src := range source.AnalyzedSourceTypes() {
		sources = append(sources, &fakeSource{name: src, timeout: time.Second, all: makePosts(src, 5)})
	}
	a := NewAnalyzer(NewFetcher(sources, 0), &fakeClassifier{}, &fakeScorer{}, Options{})

	res, err := a.Analyze(context.Background(), "topic", 10)
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}

	inAll := map[string]bool{}
	for _, p := range res.Results.AllPosts {
		inAll[p.Text] = true
	}
	lists := map[source.SourceType][]source.Post{
		source.SourceReddit:   res.Results.Reddit,
		source.SourceMastodon: res.Results.Mastodon,
		source.SourceVideo:    res.Results.Video,
	}
	for src, list := range lists {
		if len(list) != 3 {
			t.Errorf("%s list has %d posts, want 3", src, len(list))
		}
		for i, p := range list {
			if p.Source != src || !inAll[p.Text] {
				t.Errorf("%s list holds foreign post %+v", src, p)
			}
			if i > 0 && p.ScoreWeighted > list[i-1].ScoreWeighted {
				t.Errorf("%s list not sorted", src)
			}
		}
	}
}

func TestAnalyzeAllSourcesFail(t *testing.T) {
	sources := []source.Source{
		&fakeSource{name: source.SourceReddit, timeout: time.Second, err: errors.New("503")},
		&fakeSource{name: source.SourceMastodon, timeout: time.Second, err: errors.New("dns")},
		&fakeSource{name: source.SourceVideo, timeout: 10 * time.Millisecond, delay: 100 * time.Millisecond},
	}
	clf := &fakeClassifier{}
	a := NewAnalyzer(NewFetcher(sources, 0), clf, &fakeScorer{}, Options{MaxTerms: 1})

	_, err := a.Analyze(context.Background(), "climate", 20)
	if !errors.Is(err, ErrNoPosts) {
		t.Fatalf("Analyze error = %v, want ErrNoPosts", err)
	}
	if len(clf.batches) != 0 {
		t.Error("classifier called with no posts")
	}
}

func TestAnalyzeWrapsInferenceErrors(t *testing.T) {
	sources := []source.Source{&fakeSource{name: source.SourceReddit, timeout: time.Second, all: makePosts(source.SourceReddit, 2)}}

	a := NewAnalyzer(NewFetcher(sources, 0), &fakeClassifier{err: errors.New("model down")}, &fakeScorer{}, Options{})
	if _, err := a.Analyze(context.Background(), "x", 0); err == nil || !strings.Contains(err.Error(), "classify posts") {
		t.Errorf("expected wrapped classify error, got %v", err)
	}

	a = NewAnalyzer(NewFetcher(sources, 0), &fakeClassifier{}, &fakeScorer{err: errors.New("quota")}, Options{})
	if _, err := a.Analyze(context.Background(), "x", 0); err == nil || !strings.Contains(err.Error(), "score posts") {
		t.Errorf("expected wrapped similarity error, got %v", err)
	}

	if _, err := a.Analyze(context.Background(), "  ", 0); !errors.Is(err, ErrEmptyTopic) {
		t.Errorf("blank topic error = %v", err)
	}
}

func TestDiscoveryTrending(t *testing.T) {
	long := strings.Repeat("w", 100)
	reddit := &fakeTrending{name: source.SourceReddit, titles: []string{"Alpha", "Beta", "Alpha"}}
	video := &fakeTrending{name: source.SourceVideo, titles: []string{"Beta", long, "Gamma"}}
	broken := &fakeTrending{name: source.SourceFeed, err: errors.New("offline")}

	d := NewDiscovery([]source.TrendingSource{reddit, broken, video}, nil)
	got := d.Trending(context.Background(), 3)
	want := []string{"Alpha", "Beta", strings.Repeat("w", 80)}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Trending() = %v, want %v", got, want)
	}

	if got := d.Trending(context.Background(), 0); len(got) != 4 {
		t.Errorf("default limit gave %v", got)
	}
}

func TestDiscoveryAllFailReturnsEmpty(t *testing.T) {
	d := NewDiscovery([]source.TrendingSource{&fakeTrending{err: errors.New("x")}}, nil)
	if got := d.Trending(context.Background(), 5); len(got) != 0 {
		t.Errorf("Trending() = %v, want empty", got)
	}
}

func TestDiscoveryCache(t *testing.T) {
	src := &fakeTrending{name: source.SourceReddit, titles: []string{"One", "Two"}}
	cache := &memCache{}
	d := NewDiscovery([]source.TrendingSource{src}, cache)

	first := d.Trending(context.Background(), 5)
	second := d.Trending(context.Background(), 5)
	if !reflect.DeepEqual(first, second) {
		t.Errorf("cached result differs: %v vs %v", first, second)
	}
	if src.calls != 1 || cache.sets != 1 {
		t.Errorf("calls = %d, sets = %d; want 1 and 1", src.calls, cache.sets)
	}

	d.Refresh(context.Background(), 5)
	if src.calls != 2 || cache.sets != 2 {
		t.Errorf("Refresh should bypass the cache read, calls = %d", src.calls)
	}
}
