package reflection

import "reflect"

type embeddedField struct {
	typ   reflect.Type
	index []int
}

// collectLocked computes the member list of t. Own fields come first, then
// the members of embedded structs, then getter/setter properties.
func (r *Registry) collectLocked(t reflect.Type, safe bool, filter map[string]struct{}) []Member {
	if t != nil && t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t == nil || t.Kind() != reflect.Struct {
		return []Member{}
	}

	seen := make(map[string]struct{})
	members := r.fieldsLocked(t, safe, filter, nil, seen)
	members = append(members, r.propertiesLocked(t, safe, filter, seen)...)
	return members
}

func (r *Registry) fieldsLocked(t reflect.Type, safe bool, filter map[string]struct{}, prefix []int, seen map[string]struct{}) []Member {
	var (
		members  []Member
		embedded []embeddedField
	)

	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if f.Name == "_" {
			continue
		}

		index := make([]int, len(prefix)+1)
		copy(index, prefix)
		index[len(prefix)] = i

		opts := parseTag(f.Tag.Get(TagName))
		if f.Anonymous && f.Type.Kind() == reflect.Struct && !opts.include && !opts.ignore && !IsBinary(f.Type) {
			embedded = append(embedded, embeddedField{typ: f.Type, index: index})
			continue
		}

		if !wanted(filter, f.Name) || !r.fieldEligibleLocked(t, f, opts, safe) {
			continue
		}
		if _, dup := seen[f.Name]; dup {
			continue
		}
		seen[f.Name] = struct{}{}

		members = append(members, Member{
			Name:     f.Name,
			Type:     f.Type,
			Kind:     FieldMember,
			Exported: f.IsExported(),
			index:    index,
		})
	}

	for _, e := range embedded {
		members = append(members, r.fieldsLocked(e.typ, safe, filter, e.index, seen)...)
	}
	return members
}

func (r *Registry) fieldEligibleLocked(declaring reflect.Type, f reflect.StructField, opts tagOptions, safe bool) bool {
	switch {
	case opts.include:
		return true
	case opts.ignore:
		return false
	case safe && !f.IsExported() && !opts.serialize:
		return false
	case opts.readonly:
		return false
	case f.Type == declaring:
		return false
	case opts.deprecated:
		return false
	}
	return r.isSerializableLocked(f.Type)
}

// propertiesLocked finds X()/SetX() pairs on the pointer method set, which
// already includes methods promoted from embedded types. Methods taking extra
// arguments are indexed accessors and never qualify.
func (r *Registry) propertiesLocked(t reflect.Type, safe bool, filter map[string]struct{}, seen map[string]struct{}) []Member {
	pt := reflect.PointerTo(t)

	var allowed map[string]struct{}
	if safe {
		allowed = declaredProperties(pt)
		if len(allowed) == 0 {
			return nil
		}
	}

	var members []Member
	for i := 0; i < pt.NumMethod(); i++ {
		getter := pt.Method(i)
		if getter.Name == PropertiesMethod {
			continue
		}
		if getter.Type.NumIn() != 1 || getter.Type.NumOut() != 1 {
			continue
		}
		typ := getter.Type.Out(0)

		setter, ok := pt.MethodByName("Set" + getter.Name)
		if !ok || setter.Type.NumIn() != 2 || setter.Type.NumOut() != 0 || setter.Type.In(1) != typ {
			continue
		}

		if safe {
			if _, ok := allowed[getter.Name]; !ok {
				continue
			}
		}
		if !wanted(filter, getter.Name) {
			continue
		}
		if _, dup := seen[getter.Name]; dup {
			continue
		}
		if typ == t || !r.isSerializableLocked(typ) {
			continue
		}
		seen[getter.Name] = struct{}{}

		members = append(members, Member{
			Name:     getter.Name,
			Type:     typ,
			Kind:     PropertyMember,
			Exported: true,
			getter:   getter.Name,
			setter:   setter.Name,
		})
	}
	return members
}

func declaredProperties(pt reflect.Type) map[string]struct{} {
	m, ok := pt.MethodByName(PropertiesMethod)
	if !ok || m.Type.NumIn() != 1 || m.Type.NumOut() != 1 || m.Type.Out(0) != reflect.TypeOf([]string(nil)) {
		return nil
	}

	names := reflect.New(pt.Elem()).MethodByName(PropertiesMethod).Call(nil)[0].Interface().([]string)
	allowed := make(map[string]struct{}, len(names))
	for _, n := range names {
		allowed[n] = struct{}{}
	}
	return allowed
}

func wanted(filter map[string]struct{}, name string) bool {
	if len(filter) == 0 {
		return true
	}
	_, ok := filter[name]
	return ok
}
