package client

import (
	"fmt"
	"net/url"
	"sort"
	"strings"
)

// Resource is the REST collection behind an object class.
type Resource struct {
	// Class is the object class name, e.g. "CustomCollection".
	Class string

	// Path is the collection path below the API base, e.g. "custom_collections".
	Path string

	// Key is the JSON envelope key of a listing response.
	Key string

	// Query holds extra listing parameters.
	Query url.Values
}

// resources lists the object classes that carry metafields.
var resources = map[string]Resource{
	"Product":          {Class: "Product", Path: "products", Key: "products"},
	"Variant":          {Class: "Variant", Path: "variants", Key: "variants"},
	"CustomCollection": {Class: "CustomCollection", Path: "custom_collections", Key: "custom_collections"},
	"SmartCollection":  {Class: "SmartCollection", Path: "smart_collections", Key: "smart_collections"},
	"Customer":         {Class: "Customer", Path: "customers", Key: "customers"},
	// orders default to status=open; an export has to see every order
	"Order":      {Class: "Order", Path: "orders", Key: "orders", Query: url.Values{"status": {"any"}}},
	"DraftOrder": {Class: "DraftOrder", Path: "draft_orders", Key: "draft_orders"},
	"Page":       {Class: "Page", Path: "pages", Key: "pages"},
	"Blog":       {Class: "Blog", Path: "blogs", Key: "blogs"},
}

// ResolveClass returns the resource for an object class name.
func ResolveClass(name string) (Resource, error) {
	res, ok := resources[name]
	if !ok {
		return Resource{}, fmt.Errorf("%w %q (known: %s)", ErrUnknownClass, name, strings.Join(KnownClasses(), ", "))
	}
	return res, nil
}

// ResolveClasses resolves every name, failing on the first unknown one.
func ResolveClasses(names []string) ([]Resource, error) {
	out := make([]Resource, 0, len(names))
	for _, name := range names {
		res, err := ResolveClass(name)
		if err != nil {
			return nil, err
		}
		out = append(out, res)
	}
	return out, nil
}

// KnownClasses returns the supported object class names, sorted.
func KnownClasses() []string {
	names := make([]string, 0, len(resources))
	for name := range resources {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
