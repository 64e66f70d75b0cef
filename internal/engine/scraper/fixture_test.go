package scraper

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/require"

	"github.com/rendis/placetap/internal/engine/browser"
	"github.com/rendis/placetap/internal/model"
)

const listURL = "https://www.google.com/maps/search/cafes+in+Lisbon"

// fakeMaps scripts a results page: a feed that lazy-loads perRound cards per scroll, and a
// detail page per card reached by clicking it.
type fakeMaps struct {
	total    int
	perRound int
	// noDetail makes clicks do nothing, so the detail view never loads.
	noDetail map[int]bool
	// detailExtra is appended inside the detail view of every card.
	detailExtra string
	// onDetailClick handles clicks inside a detail view.
	onDetailClick func(s *browser.DocumentSession, target *goquery.Selection) error

	scrolls int
	clicks  int
}

func cardHTML(i int) string {
	return fmt.Sprintf(`<div role="article" class="Nv2PK" aria-label="Cafe %[1]d" data-idx="%[1]d">`+
		`<a class="hfpxzc" href="https://www.google.com/maps/place/Cafe+%[1]d/data=!4m7!3m6!1s0x1!8m2!3d38.70%02[1]d!4d-9.13%02[1]d"></a>`+
		`<div class="qBF1Pd fontHeadlineSmall">Cafe %[1]d</div>`+
		`<span class="MW4etd">4.%[2]d</span><span class="UY7F9">(1,2%02[1]d)</span>`+
		`<div class="W4Efsd"><span><span>Coffee shop</span></span></div>`+
		`<div class="address">Rua Augusta %[1]d, Lisboa</div>`+
		`</div>`, i, i%10)
}

func (f *fakeMaps) listHTML(n int) string {
	var b strings.Builder
	b.WriteString(`<html><body><div role="main"><div role="feed">`)
	for i := 1; i <= n; i++ {
		b.WriteString(cardHTML(i))
	}
	b.WriteString(`</div></div></body></html>`)
	return b.String()
}

func detailURL(i int) string {
	return fmt.Sprintf("https://www.google.com/maps/place/Cafe+%d/@38.70%02d,-9.13%02d,17z/data=!3d38.70%02d!4d-9.13%02d", i, i, i, i, i)
}

func (f *fakeMaps) detailHTML(i int) string {
	return fmt.Sprintf(`<html><body><div role="main">`+
		`<button aria-label="Back" class="back"></button>`+
		`<h1 class="DUwDvf lfPIob">Cafe %[1]d</h1>`+
		`<div class="F7nice"><span><span aria-hidden="true">4.%[2]d</span></span>`+
		`<span><span><span aria-label="1,2%02[1]d reviews">(1,2%02[1]d)</span></span></span></div>`+
		`<button data-item-id="address"><div class="Io6YTe">`+"\ue0c8"+`Rua Augusta %[1]d,
Lisboa</div></button>`+
		`<button data-item-id="phone:tel:+35121000%04[1]d"><div class="Io6YTe">+351 21 000 %04[1]d</div></button>`+
		`%[3]s</div></body></html>`, i, i%10, f.detailExtra)
}

func (f *fakeMaps) rendered(s *browser.DocumentSession) int {
	return s.Document().Find(`div[role="feed"] div.Nv2PK`).Length()
}

func (f *fakeMaps) session(t *testing.T, initial int) *browser.DocumentSession {
	t.Helper()
	var mu sync.Mutex
	s, err := browser.NewDocumentSession(f.listHTML(initial), listURL, browser.Hooks{
		OnScroll: func(s *browser.DocumentSession, _ *goquery.Selection, _ int) {
			mu.Lock()
			defer mu.Unlock()
			f.scrolls++
			feed := s.Document().Find(`div[role="feed"]`)
			if feed.Length() == 0 {
				return
			}
			have := f.rendered(s)
			for i := have + 1; i <= min(have+f.perRound, f.total); i++ {
				feed.AppendHtml(cardHTML(i))
			}
		},
		OnClick: func(s *browser.DocumentSession, target *goquery.Selection) error {
			mu.Lock()
			f.clicks++
			mu.Unlock()
			idx, ok := target.Attr("data-idx")
			if !ok {
				if f.onDetailClick != nil {
					return f.onDetailClick(s, target)
				}
				return nil
			}
			i, _ := strconv.Atoi(idx)
			if f.noDetail[i] {
				return nil
			}
			return s.Push(f.detailHTML(i), detailURL(i))
		},
		OnNavigate: func(s *browser.DocumentSession, url string) (string, error) {
			return f.listHTML(initial), nil
		},
	})
	require.NoError(t, err)
	return s
}

func testOptions() model.Options {
	o := model.DefaultOptions()
	o.ElementTimeout = 30 * time.Millisecond
	o.NavigationTimeout = 50 * time.Millisecond
	o.SettleMin = 0
	o.SettleMax = time.Millisecond
	o.ClickDelay = 0
	return o
}

// memorySink is an in-memory Sink keyed by identity key.
type memorySink struct {
	mu      sync.Mutex
	records []model.PlaceRecord
	keys    map[string]int64
	fail    map[string]error
}

func newMemorySink() *memorySink {
	return &memorySink{keys: make(map[string]int64), fail: make(map[string]error)}
}

func (m *memorySink) SavePlace(_ context.Context, rec model.PlaceRecord) (model.SaveResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail[rec.Name]; err != nil {
		return model.SaveResult{}, err
	}
	key := model.IdentityKey(rec)
	if id, ok := m.keys[key]; ok {
		return model.SaveResult{ID: id, Outcome: model.Exists}, nil
	}
	m.records = append(m.records, rec)
	id := int64(len(m.records))
	m.keys[key] = id
	return model.SaveResult{ID: id, Outcome: model.Inserted}, nil
}
