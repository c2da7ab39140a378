package reflection

import "strings"

// TagName is the struct tag consulted by the introspector.
//
//	Field int    `archive:"include"`       always serialized
//	Temp  string `archive:"-"`             never serialized
//	count int    `archive:",serialize"`    private field opted in under safe mode
//	ID    string `archive:",readonly"`     set once at construction, skipped
//	Old   int    `archive:",deprecated"`   skipped (also ",transient")
const TagName = "archive"

// PropertiesMethod is the method a type implements to list the getter/setter
// pairs that take part in safe mode.
const PropertiesMethod = "ArchiveProperties"

type tagOptions struct {
	include    bool
	ignore     bool
	serialize  bool
	readonly   bool
	deprecated bool
}

func parseTag(tag string) tagOptions {
	var opts tagOptions
	if tag == "" {
		return opts
	}
	for _, part := range strings.Split(tag, ",") {
		switch strings.TrimSpace(part) {
		case "include":
			opts.include = true
		case "-":
			opts.ignore = true
		case "serialize":
			opts.serialize = true
		case "readonly":
			opts.readonly = true
		case "deprecated", "transient":
			opts.deprecated = true
		}
	}
	return opts
}
