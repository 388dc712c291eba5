package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/Sternrassler/metafield-export/pkg/record"
)

// Object is a remote entity whose metafields can be listed.
type Object struct {
	ID       int64
	Resource Resource
}

// Page is one batch of a resource listing.
type Page struct {
	Resource Resource
	Objects  []Object

	// Next is the continuation URL; empty on the last page.
	Next string
}

// HasNext reports whether a subsequent page exists.
func (p *Page) HasNext() bool {
	return p.Next != ""
}

// MetafieldPage is one batch of an object's metafields.
type MetafieldPage struct {
	Owner   Object
	Records []record.Record

	// Next is the continuation URL; empty on the last page.
	Next string
}

// HasNext reports whether a subsequent page exists.
func (p *MetafieldPage) HasNext() bool {
	return p.Next != ""
}

// FirstPage fetches the first listing page of res.
func (s *Session) FirstPage(ctx context.Context, res Resource) (*Page, error) {
	query := url.Values{}
	for k, v := range res.Query {
		query[k] = append([]string(nil), v...)
	}
	query.Set("limit", strconv.Itoa(s.config.PageSize))
	query.Set("fields", "id")

	return s.fetchPage(ctx, res, s.endpoint(res.Path+".json", query))
}

// NextPage fetches the page following p.
func (s *Session) NextPage(ctx context.Context, p *Page) (*Page, error) {
	if !p.HasNext() {
		return nil, fmt.Errorf("no page after last %s page", p.Resource.Class)
	}
	return s.fetchPage(ctx, p.Resource, p.Next)
}

func (s *Session) fetchPage(ctx context.Context, res Resource, rawURL string) (*Page, error) {
	body, header, err := s.get(ctx, rawURL, "list")
	if err != nil {
		return nil, err
	}

	var envelope map[string]json.RawMessage
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, errDecode("list", err)
	}

	var items []struct {
		ID int64 `json:"id"`
	}
	raw, ok := envelope[res.Key]
	if !ok {
		return nil, errDecode("list", fmt.Errorf("missing %q key", res.Key))
	}
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, errDecode("list", err)
	}

	page := &Page{
		Resource: res,
		Objects:  make([]Object, len(items)),
		Next:     parseNextLink(header),
	}
	for i, item := range items {
		page.Objects[i] = Object{ID: item.ID, Resource: res}
	}
	return page, nil
}

// Metafields fetches the first page of obj's metafields.
func (s *Session) Metafields(ctx context.Context, obj Object) (*MetafieldPage, error) {
	query := url.Values{}
	query.Set("limit", strconv.Itoa(s.config.PageSize))

	path := fmt.Sprintf("%s/%d/metafields.json", obj.Resource.Path, obj.ID)
	return s.fetchMetafields(ctx, obj, s.endpoint(path, query))
}

// NextMetafields fetches the metafield page following p.
func (s *Session) NextMetafields(ctx context.Context, p *MetafieldPage) (*MetafieldPage, error) {
	if !p.HasNext() {
		return nil, fmt.Errorf("no metafield page after last page of %s %d", p.Owner.Resource.Class, p.Owner.ID)
	}
	return s.fetchMetafields(ctx, p.Owner, p.Next)
}

func (s *Session) fetchMetafields(ctx context.Context, obj Object, rawURL string) (*MetafieldPage, error) {
	body, header, err := s.get(ctx, rawURL, "metafields")
	if err != nil {
		return nil, err
	}

	var envelope struct {
		Metafields []json.RawMessage `json:"metafields"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, errDecode("metafields", err)
	}

	page := &MetafieldPage{
		Owner:   obj,
		Records: make([]record.Record, 0, len(envelope.Metafields)),
		Next:    parseNextLink(header),
	}
	for _, raw := range envelope.Metafields {
		r, err := record.FromJSON(raw)
		if err != nil {
			return nil, errDecode("metafields", err)
		}
		page.Records = append(page.Records, r)
	}
	return page, nil
}

// parseNextLink extracts the rel="next" target of the Link headers, e.g.
//
//	<https://shop/admin/api/2020-07/products.json?page_info=abc&limit=250>; rel="next"
func parseNextLink(header http.Header) string {
	for _, value := range header.Values("Link") {
		for _, link := range strings.Split(value, ",") {
			parts := strings.Split(link, ";")
			if len(parts) < 2 {
				continue
			}
			target := strings.TrimSpace(parts[0])
			if !strings.HasPrefix(target, "<") || !strings.HasSuffix(target, ">") {
				continue
			}
			for _, param := range parts[1:] {
				name, val, ok := strings.Cut(strings.TrimSpace(param), "=")
				if !ok || strings.TrimSpace(name) != "rel" {
					continue
				}
				for _, rel := range strings.Fields(strings.Trim(strings.TrimSpace(val), `"`)) {
					if rel == "next" {
						return target[1 : len(target)-1]
					}
				}
			}
		}
	}
	return ""
}
