// Package extractor pulls the items a recipe chains on out of a listing
// response of the form {"data": [{"id": ..., "owner_id": ...}, ...]}.
//
// Parsing is tolerant: a body that is not JSON, has no "data" key, has a
// non-array "data", or whose items lack an "id" yields no items rather than
// an error. Callers treat "no items" as the end of the chain.
package extractor

import "github.com/tidwall/gjson"

// Item is one element of a listing. OwnerID is empty when the element has no
// owner_id field (users and organizations).
type Item struct {
	ID      string
	OwnerID string
}

// Items returns every element of the listing's data array that carries a
// non-empty id, in response order.
func Items(body []byte) []Item {
	data, ok := dataArray(body)
	if !ok {
		return nil
	}
	var items []Item
	data.ForEach(func(_, value gjson.Result) bool {
		if item, ok := toItem(value); ok {
			items = append(items, item)
		}
		return true
	})
	return items
}

// First returns the first element of the data array if it carries an id.
// Unlike Items it does not skip ahead past an unusable first element.
func First(body []byte) (Item, bool) {
	data, ok := dataArray(body)
	if !ok {
		return Item{}, false
	}
	first := data.Get("0")
	if !first.Exists() {
		return Item{}, false
	}
	return toItem(first)
}

// IDs returns the ids of every usable element.
func IDs(body []byte) []string {
	items := Items(body)
	if len(items) == 0 {
		return nil
	}
	ids := make([]string, len(items))
	for i, item := range items {
		ids[i] = item.ID
	}
	return ids
}

func dataArray(body []byte) (gjson.Result, bool) {
	if len(body) == 0 || !gjson.ValidBytes(body) {
		return gjson.Result{}, false
	}
	data := gjson.GetBytes(body, "data")
	if !data.IsArray() {
		return gjson.Result{}, false
	}
	return data, true
}

func toItem(value gjson.Result) (Item, bool) {
	if !value.IsObject() {
		return Item{}, false
	}
	id := scalar(value.Get("id"))
	if id == "" {
		return Item{}, false
	}
	return Item{ID: id, OwnerID: scalar(value.Get("owner_id"))}, true
}

// scalar renders strings and numbers; objects, arrays, booleans and null
// are not usable identifiers.
func scalar(r gjson.Result) string {
	switch r.Type {
	case gjson.String, gjson.Number:
		return r.String()
	default:
		return ""
	}
}
