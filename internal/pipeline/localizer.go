package pipeline

import (
	"context"
	"errors"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/rs/zerolog"
	"golang.org/x/net/html"
	"golang.org/x/sync/errgroup"

	"github.com/aleister1102/webmirror/internal/assets"
	"github.com/aleister1102/webmirror/internal/cache"
	"github.com/aleister1102/webmirror/internal/filter"
	"github.com/aleister1102/webmirror/internal/policy"
	"github.com/aleister1102/webmirror/internal/urlhandler"
)

type refKind int

const (
	refPlain refKind = iota
	refSrcset
	refStylesheet
	refStyleAttr
	refStyleBlock
)

// refAction is the outcome of resolving one reference.
type refAction int

const (
	// actionKeep leaves the reference untouched.
	actionKeep refAction = iota
	// actionReplace swaps the reference for a new value.
	actionReplace
	// actionRemove drops the referencing element; used when a script is
	// refused by the content screen, so no reference to a file missing
	// from the bundle survives serialization.
	actionRemove
)

// refTask is one reference discovered in the document. Resolution runs
// concurrently and writes only newValue/action; DOM mutation happens
// afterwards on a single goroutine.
type refTask struct {
	sel      *goquery.Selection
	attr     string
	kind     refKind
	raw      string
	category assets.Category

	newValue string
	action   refAction
}

// referenceTargets maps element kinds to the attributes that carry asset
// references, with the category assumed when the URL itself is mute.
var referenceTargets = []struct {
	tag      string
	attr     string
	category assets.Category
}{
	{"img", "src", assets.CategoryImage},
	{"img", "data-src", assets.CategoryImage},
	{"script", "src", assets.CategoryJS},
	{"video", "src", assets.CategoryVideo},
	{"video", "poster", assets.CategoryImage},
	{"audio", "src", assets.CategoryVideo},
	{"source", "src", assets.CategoryVideo},
	{"iframe", "src", assets.CategoryOther},
	{"embed", "src", assets.CategoryOther},
	{"object", "data", assets.CategoryOther},
	{"input", "src", assets.CategoryImage},
}

// assetLocalizer walks a parsed document, downloads every referenced
// asset through the job's cache and rewrites the references to the local
// copies. Failed downloads leave the original reference in place.
type assetLocalizer struct {
	cache      *cache.DownloadCache
	css        *cssProcessor
	trust      *policy.TrustPolicy
	classifier *assets.Classifier
	signatures *policy.SignatureMatcher
	scripts    *filter.ScriptAnalyzer
	base       *url.URL
	flags      filter.Flags
	workers    int
	logger     zerolog.Logger
}

func newAssetLocalizer(
	dc *cache.DownloadCache,
	css *cssProcessor,
	trust *policy.TrustPolicy,
	classifier *assets.Classifier,
	signatures *policy.SignatureMatcher,
	scripts *filter.ScriptAnalyzer,
	base *url.URL,
	flags filter.Flags,
	workers int,
	logger zerolog.Logger,
) *assetLocalizer {
	if workers < 1 {
		workers = 1
	}
	return &assetLocalizer{
		cache:      dc,
		css:        css,
		trust:      trust,
		classifier: classifier,
		signatures: signatures,
		scripts:    scripts,
		base:       base,
		flags:      flags,
		workers:    workers,
		logger:     logger.With().Str("component", "AssetLocalizer").Logger(),
	}
}

// Run localizes all references in the document. Individual asset
// failures are logged, never fatal.
func (al *assetLocalizer) Run(ctx context.Context, doc *goquery.Document) error {
	tasks := al.collect(doc)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(al.workers)
	for _, t := range tasks {
		task := t
		g.Go(func() error {
			al.resolveTask(gctx, task)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	for _, task := range tasks {
		switch task.action {
		case actionRemove:
			task.sel.Remove()
		case actionReplace:
			if task.kind == refStyleBlock {
				setStyleText(task.sel, task.newValue)
				continue
			}
			task.sel.SetAttr(task.attr, task.newValue)
		}
	}
	return nil
}

func (al *assetLocalizer) collect(doc *goquery.Document) []*refTask {
	var tasks []*refTask

	add := func(sel *goquery.Selection, attr string, kind refKind, raw string, category assets.Category) {
		tasks = append(tasks, &refTask{sel: sel, attr: attr, kind: kind, raw: raw, category: category})
	}

	for _, target := range referenceTargets {
		attr, category := target.attr, target.category
		doc.Find(target.tag).Each(func(i int, s *goquery.Selection) {
			if raw, ok := s.Attr(attr); ok && strings.TrimSpace(raw) != "" {
				add(s, attr, refPlain, raw, category)
			}
		})
	}

	doc.Find("img[srcset], source[srcset]").Each(func(i int, s *goquery.Selection) {
		if raw, ok := s.Attr("srcset"); ok && strings.TrimSpace(raw) != "" {
			add(s, "srcset", refSrcset, raw, assets.CategoryImage)
		}
	})

	doc.Find("link[href]").Each(func(i int, s *goquery.Selection) {
		raw := strings.TrimSpace(s.AttrOr("href", ""))
		if raw == "" {
			return
		}
		rel := strings.ToLower(s.AttrOr("rel", ""))
		switch {
		case strings.Contains(rel, "stylesheet"):
			add(s, "href", refStylesheet, raw, assets.CategoryCSS)
		case strings.Contains(rel, "icon"):
			add(s, "href", refPlain, raw, assets.CategoryIcon)
		case strings.Contains(rel, "preload"), strings.Contains(rel, "prefetch"):
			add(s, "href", refPlain, raw, assets.CategoryOther)
		}
	})

	doc.Find("meta[content]").Each(func(i int, s *goquery.Selection) {
		raw := strings.TrimSpace(s.AttrOr("content", ""))
		if !looksLikeURL(raw) {
			return
		}
		resolved := urlhandler.Resolve(raw, al.base)
		if resolved == "" {
			return
		}
		if category := al.classifier.Classify(resolved, ""); category != assets.CategoryOther {
			add(s, "content", refPlain, raw, category)
		}
	})

	doc.Find("[style]").Each(func(i int, s *goquery.Selection) {
		if raw := s.AttrOr("style", ""); strings.Contains(raw, "url(") {
			add(s, "style", refStyleAttr, raw, assets.CategoryCSS)
		}
	})

	doc.Find("style").Each(func(i int, s *goquery.Selection) {
		if raw := s.Text(); strings.Contains(raw, "url(") {
			add(s, "", refStyleBlock, raw, assets.CategoryCSS)
		}
	})

	return tasks
}

func (al *assetLocalizer) resolveTask(ctx context.Context, task *refTask) {
	switch task.kind {
	case refStyleAttr, refStyleBlock:
		rewritten := al.css.RewriteBlock(ctx, task.raw, al.base, "")
		if rewritten != task.raw {
			task.newValue = rewritten
			task.action = actionReplace
		}
	case refSrcset:
		rewritten := al.rewriteSrcset(ctx, task.raw)
		if rewritten != task.raw {
			task.newValue = rewritten
			task.action = actionReplace
		}
	default:
		task.newValue, task.action = al.localizeReference(ctx, task.kind, task.raw, task.category)
	}
}

// localizeReference routes one reference and returns its replacement
// value with the action to take. A transient download failure keeps the
// original reference; a screen refusal removes the referencing element so
// it cannot point at a file the bundle does not contain.
func (al *assetLocalizer) localizeReference(ctx context.Context, kind refKind, raw string, category assets.Category) (string, refAction) {
	resolved := urlhandler.Resolve(raw, al.base)
	switch al.trust.RouteReference(raw, resolved) {
	case policy.RoutePassthrough:
		return "", actionKeep
	case policy.RoutePreserve:
		return policy.PreservedForm(resolved), actionReplace
	}

	localPath, err := al.download(ctx, kind, resolved, category)
	if err != nil {
		if errors.Is(err, cache.ErrScreened) || errors.Is(err, errSkippedTracker) {
			al.logger.Debug().Str("url", resolved).Msg("Removing element for refused script")
			return "", actionRemove
		}
		al.logger.Warn().Err(err).Str("url", resolved).Msg("Keeping original reference after failed localization")
		return "", actionKeep
	}
	return localPath, actionReplace
}

func (al *assetLocalizer) download(ctx context.Context, kind refKind, resolved string, category assets.Category) (string, error) {
	if kind == refStylesheet {
		return al.css.LocalizeStylesheet(ctx, resolved)
	}

	if category == assets.CategoryIcon {
		if refined := al.classifier.ClassifyIcon(resolved, ""); refined != assets.CategoryOther {
			category = refined
		}
	} else if refined := al.classifier.Classify(resolved, ""); refined != assets.CategoryOther {
		category = refined
	}

	if category == assets.CategoryJS {
		// Tracking endpoints are never fetched when tracking removal is
		// requested; the element is dropped outright.
		if al.flags.RemoveTracking && al.signatures.MatchesTrackingURL(resolved) {
			return "", errSkippedTracker
		}
		// Script bodies are screened for outbound network calls before
		// they enter the bundle.
		return al.cache.LocalizeWith(ctx, resolved, category, cache.LocalizeOptions{
			Screen: al.scripts.ScreenAssetBody,
		})
	}
	return al.cache.Localize(ctx, resolved, category)
}

// rewriteSrcset localizes each candidate of a srcset value, keeping the
// width/density descriptors intact.
func (al *assetLocalizer) rewriteSrcset(ctx context.Context, raw string) string {
	entries := strings.Split(raw, ",")
	out := make([]string, 0, len(entries))
	for _, entry := range entries {
		fields := strings.Fields(strings.TrimSpace(entry))
		if len(fields) == 0 {
			continue
		}
		if newValue, action := al.localizeReference(ctx, refPlain, fields[0], assets.CategoryImage); action == actionReplace {
			fields[0] = newValue
		}
		out = append(out, strings.Join(fields, " "))
	}
	return strings.Join(out, ", ")
}

// setStyleText replaces the text content of a <style> element without
// HTML-escaping the stylesheet.
func setStyleText(sel *goquery.Selection, cssText string) {
	if len(sel.Nodes) == 0 {
		return
	}
	node := sel.Nodes[0]
	for child := node.FirstChild; child != nil; {
		next := child.NextSibling
		node.RemoveChild(child)
		child = next
	}
	node.AppendChild(&html.Node{Type: html.TextNode, Data: cssText})
}

func looksLikeURL(value string) bool {
	lower := strings.ToLower(value)
	return strings.HasPrefix(lower, "http://") ||
		strings.HasPrefix(lower, "https://") ||
		strings.HasPrefix(lower, "//") ||
		strings.HasPrefix(lower, "/")
}
