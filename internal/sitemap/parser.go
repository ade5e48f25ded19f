// Package sitemap implements the sitemap discovery engine: document
// parsing and recursive index resolution.
package sitemap

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/edgelayer/cachelayer/internal/cache"
)

type xmlURL struct {
	Loc        string `xml:"loc"`
	LastMod    string `xml:"lastmod"`
	ChangeFreq string `xml:"changefreq"`
	Priority   string `xml:"priority"`
}

type xmlURLSet struct {
	URLs []xmlURL `xml:"url"`
}

type xmlSitemapRef struct {
	Loc     string `xml:"loc"`
	LastMod string `xml:"lastmod"`
}

type xmlSitemapIndex struct {
	Sitemaps []xmlSitemapRef `xml:"sitemap"`
}

var changeFreqTokens = map[string]struct{}{
	"always":  {},
	"hourly":  {},
	"daily":   {},
	"weekly":  {},
	"monthly": {},
	"yearly":  {},
	"never":   {},
}

// Parse classifies raw XML as a sitemap index or a URL-set and extracts its
// entries. The root element name decides the kind; any other root, or
// malformed XML, fails with cache.ErrInvalidDocument. encoding/xml never
// resolves external entities, so crafted documents cannot trigger entity
// expansion or file disclosure.
func Parse(data []byte) (cache.Document, error) {
	dec := xml.NewDecoder(bytes.NewReader(data))
	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			return cache.Document{}, cache.ErrInvalidDocument
		}
		if err != nil {
			return cache.Document{}, fmt.Errorf("%w: %v", cache.ErrInvalidDocument, err)
		}
		start, ok := tok.(xml.StartElement)
		if !ok {
			continue
		}
		switch start.Name.Local {
		case "sitemapindex":
			return parseIndex(dec, start)
		case "urlset":
			return parseURLSet(dec, start)
		default:
			return cache.Document{}, fmt.Errorf("%w: unexpected root element <%s>", cache.ErrInvalidDocument, start.Name.Local)
		}
	}
}

func parseIndex(dec *xml.Decoder, start xml.StartElement) (cache.Document, error) {
	var idx xmlSitemapIndex
	if err := dec.DecodeElement(&idx, &start); err != nil {
		return cache.Document{}, fmt.Errorf("%w: %v", cache.ErrInvalidDocument, err)
	}
	doc := cache.Document{Kind: cache.DocumentIndex}
	for _, ref := range idx.Sitemaps {
		loc := strings.TrimSpace(ref.Loc)
		if loc == "" {
			// A sitemap reference without a location is no reference at all.
			continue
		}
		doc.Children = append(doc.Children, cache.IndexEntry{
			Location: loc,
			LastMod:  strings.TrimSpace(ref.LastMod),
		})
	}
	return doc, nil
}

func parseURLSet(dec *xml.Decoder, start xml.StartElement) (cache.Document, error) {
	var set xmlURLSet
	if err := dec.DecodeElement(&set, &start); err != nil {
		return cache.Document{}, fmt.Errorf("%w: %v", cache.ErrInvalidDocument, err)
	}
	doc := cache.Document{Kind: cache.DocumentURLSet}
	for _, u := range set.URLs {
		loc := strings.TrimSpace(u.Loc)
		if loc == "" {
			continue
		}
		doc.Entries = append(doc.Entries, cache.SitemapEntry{
			Location:   loc,
			LastMod:    strings.TrimSpace(u.LastMod),
			ChangeFreq: parseChangeFreq(u.ChangeFreq),
			Priority:   parsePriority(u.Priority),
		})
	}
	return doc, nil
}

// Malformed optional fields degrade to absent rather than failing the
// document.

func parsePriority(raw string) *float64 {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	p, err := strconv.ParseFloat(raw, 64)
	if err != nil || p < 0 || p > 1 {
		return nil
	}
	return &p
}

func parseChangeFreq(raw string) string {
	token := strings.ToLower(strings.TrimSpace(raw))
	if _, ok := changeFreqTokens[token]; !ok {
		return ""
	}
	return token
}
