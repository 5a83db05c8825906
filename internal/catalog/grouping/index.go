// Package grouping batches near-simultaneous releases of an anime into notification units.
package grouping

import (
	"bytes"
	"sort"
	"sync"
	"time"

	"github.com/google/btree"
	"github.com/google/uuid"

	"github.com/narwhalmedia/simulcast/pkg/models"
)

// DefaultWindow is the tolerance around a release within which consecutive episodes join.
const DefaultWindow = 2 * time.Hour

// Entry is one variant release placed in the index.
type Entry struct {
	CountryCode string
	Release     time.Time
	AnimeID     uuid.UUID
	AnimeSlug   string
	AnimeName   string
	Season      int
	EpisodeType models.EpisodeType
	Number      int
	MappingID   uuid.UUID
	VariantID   uuid.UUID
	Platform    models.Platform
	AudioLocale string
}

type node struct {
	Entry
	group *group
}

type group struct {
	id      int
	members []*node
}

// lead is the member with the smallest composite key.
func (g *group) lead() *node {
	lead := g.members[0]
	for _, n := range g.members[1:] {
		if less(n, lead) {
			lead = n
		}
	}
	return lead
}

func less(a, b *node) bool {
	if a.CountryCode != b.CountryCode {
		return a.CountryCode < b.CountryCode
	}
	if !a.Release.Equal(b.Release) {
		return a.Release.Before(b.Release)
	}
	if c := bytes.Compare(a.AnimeID[:], b.AnimeID[:]); c != 0 {
		return c < 0
	}
	if a.EpisodeType != b.EpisodeType {
		return a.EpisodeType < b.EpisodeType
	}
	if c := bytes.Compare(a.MappingID[:], b.MappingID[:]); c != 0 {
		return c < 0
	}
	return bytes.Compare(a.VariantID[:], b.VariantID[:]) < 0
}

// Index is a sorted index of releases keyed by (country, release, anime, type, mapping).
// It is safe for concurrent use.
type Index struct {
	mu        sync.RWMutex
	window    time.Duration
	tree      *btree.BTreeG[*node]
	groups    map[int]*group
	byMapping map[uuid.UUID]*group
	byVariant map[uuid.UUID]*node
	nextID    int
}

// NewIndex creates an empty index with the given tolerance window.
func NewIndex(window time.Duration) *Index {
	if window <= 0 {
		window = DefaultWindow
	}
	return &Index{
		window:    window,
		tree:      btree.NewG[*node](32, less),
		groups:    make(map[int]*group),
		byMapping: make(map[uuid.UUID]*group),
		byVariant: make(map[uuid.UUID]*node),
	}
}

// Len returns the number of indexed entries.
func (ix *Index) Len() int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return ix.tree.Len()
}

// Insert places an entry and returns the id of the group it joined.
//
// The entry joins every group holding its mapping, whatever the release gap, and every
// group holding a consecutive number of the same anime, season and type released
// within the window. When several groups match they are unified into the one whose
// lead has the smallest key. Inserting an already indexed variant is a no-op.
func (ix *Index) Insert(e Entry) int {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	if existing, ok := ix.byVariant[e.VariantID]; ok {
		return existing.group.id
	}

	n := &node{Entry: e}
	matched := make(map[int]*group)
	if g, ok := ix.byMapping[e.MappingID]; ok {
		matched[g.id] = g
	}

	from := &node{Entry: Entry{CountryCode: e.CountryCode, Release: e.Release.Add(-ix.window)}}
	until := e.Release.Add(ix.window)
	ix.tree.AscendGreaterOrEqual(from, func(other *node) bool {
		if other.CountryCode != e.CountryCode || other.Release.After(until) {
			return false
		}
		if consecutive(&other.Entry, &e) {
			matched[other.group.id] = other.group
		}
		return true
	})

	var target *group
	for _, g := range matched {
		if target == nil || less(g.lead(), target.lead()) {
			target = g
		}
	}
	if target == nil {
		ix.nextID++
		target = &group{id: ix.nextID}
		ix.groups[target.id] = target
	}
	for _, g := range matched {
		if g != target {
			ix.absorb(target, g)
		}
	}

	n.group = target
	target.members = append(target.members, n)
	ix.tree.ReplaceOrInsert(n)
	ix.byVariant[e.VariantID] = n
	ix.byMapping[e.MappingID] = target
	return target.id
}

func (ix *Index) absorb(target, g *group) {
	for _, member := range g.members {
		member.group = target
		ix.byMapping[member.MappingID] = target
	}
	target.members = append(target.members, g.members...)
	delete(ix.groups, g.id)
}

func consecutive(a, b *Entry) bool {
	if a.AnimeID != b.AnimeID || a.Season != b.Season || a.EpisodeType != b.EpisodeType {
		return false
	}
	diff := a.Number - b.Number
	return diff == 1 || diff == -1
}

// Groups returns the groups of a country whose first release falls in [from, to),
// newest first, then by anime slug, episode type and lead mapping id descending.
func (ix *Index) Groups(countryCode string, from, to time.Time) []models.GroupedEpisode {
	ix.mu.RLock()
	defer ix.mu.RUnlock()

	out := make([]models.GroupedEpisode, 0)
	for _, g := range ix.groups {
		lead := g.lead()
		if lead.CountryCode != countryCode || lead.Release.Before(from) || !lead.Release.Before(to) {
			continue
		}
		out = append(out, build(g))
	}

	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if !a.ReleaseDateTime.Equal(b.ReleaseDateTime) {
			return a.ReleaseDateTime.After(b.ReleaseDateTime)
		}
		if a.AnimeSlug != b.AnimeSlug {
			return a.AnimeSlug < b.AnimeSlug
		}
		if a.EpisodeType != b.EpisodeType {
			return a.EpisodeType < b.EpisodeType
		}
		return a.MappingIDs[0].String() > b.MappingIDs[0].String()
	})
	return out
}

func build(g *group) models.GroupedEpisode {
	members := make([]*node, len(g.members))
	copy(members, g.members)
	sort.Slice(members, func(i, j int) bool { return less(members[i], members[j]) })

	lead := members[0]
	out := models.GroupedEpisode{
		AnimeID:             lead.AnimeID,
		AnimeSlug:           lead.AnimeSlug,
		AnimeName:           lead.AnimeName,
		CountryCode:         lead.CountryCode,
		Season:              lead.Season,
		EpisodeType:         lead.EpisodeType,
		MinNumber:           lead.Number,
		MaxNumber:           lead.Number,
		ReleaseDateTime:     lead.Release,
		LastReleaseDateTime: lead.Release,
	}

	platforms := make(map[models.Platform]struct{})
	locales := make(map[string]struct{})
	mappings := make(map[uuid.UUID]struct{})
	for _, n := range members {
		if n.Number < out.MinNumber {
			out.MinNumber = n.Number
		}
		if n.Number > out.MaxNumber {
			out.MaxNumber = n.Number
		}
		if n.Release.After(out.LastReleaseDateTime) {
			out.LastReleaseDateTime = n.Release
		}
		if _, seen := platforms[n.Platform]; !seen {
			platforms[n.Platform] = struct{}{}
			out.Platforms = append(out.Platforms, n.Platform)
		}
		if _, seen := locales[n.AudioLocale]; !seen {
			locales[n.AudioLocale] = struct{}{}
			out.AudioLocales = append(out.AudioLocales, n.AudioLocale)
		}
		if _, seen := mappings[n.MappingID]; !seen {
			mappings[n.MappingID] = struct{}{}
			out.MappingIDs = append(out.MappingIDs, n.MappingID)
		}
		out.VariantIDs = append(out.VariantIDs, n.VariantID)
	}
	sort.Slice(out.Platforms, func(i, j int) bool { return out.Platforms[i] < out.Platforms[j] })
	sort.Strings(out.AudioLocales)
	return out
}

// ReportingWindow returns the span read out for notifications: from Monday 00:00 UTC
// two calendar weeks before the current week, through now.
func ReportingWindow(now time.Time) (time.Time, time.Time) {
	now = now.UTC()
	sinceMonday := (int(now.Weekday()) + 6) % 7
	monday := time.Date(now.Year(), now.Month(), now.Day()-sinceMonday, 0, 0, 0, 0, time.UTC)
	return monday.AddDate(0, 0, -14), now
}
