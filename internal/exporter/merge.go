package exporter

import (
	"path"
	"strings"

	"modpatch/internal/definition"
	"modpatch/internal/naming"
)

// Winners keeps the last definition of every identity, ordered by where
// that definition appeared. defs are expected in load order.
func Winners(defs []*definition.Definition) []*definition.Definition {
	c := definition.NewCollection()
	for _, d := range defs {
		c.Remove(d.TypeAndID())
		c.Add(d)
	}
	return c.All()
}

// Conflicts returns the definitions of every identity provided by more than
// one mod, in input order.
func Conflicts(defs []*definition.Definition) []*definition.Definition {
	mods := make(map[string]map[string]struct{})
	for _, d := range defs {
		key := d.TypeAndID()
		if mods[key] == nil {
			mods[key] = make(map[string]struct{})
		}
		mods[key][d.ModName] = struct{}{}
	}

	var out []*definition.Definition
	for _, d := range defs {
		if len(mods[d.TypeAndID()]) > 1 {
			out = append(out, d)
		}
	}
	return out
}

// WithoutLocalization drops definitions read from the localisation tree.
func WithoutLocalization(defs []*definition.Definition) []*definition.Definition {
	out := make([]*definition.Definition, 0, len(defs))
	for _, d := range defs {
		if strings.HasPrefix(strings.ToLower(definition.StandardizePath(d.File)), naming.LocalizationDirectory) {
			continue
		}
		out = append(out, d)
	}
	return out
}

// CombineVariables folds the variables of each source file into one single
// file object, so they can be written by WriteMergedContent. Define groups
// and localisation entries of one file share that object. Other definitions
// are returned unchanged and namespaces are dropped.
func CombineVariables(defs []*definition.Definition) []*definition.Definition {
	var (
		out    []*definition.Definition
		order  []string
		groups = make(map[string][]*definition.Definition)
	)
	for _, d := range defs {
		switch d.ValueType {
		case definition.Namespace:
			continue
		case definition.Variable:
			key := strings.ToLower(definition.StandardizePath(d.File))
			if _, ok := groups[key]; !ok {
				order = append(order, key)
			}
			groups[key] = append(groups[key], d)
		default:
			out = append(out, d)
		}
	}

	for _, key := range order {
		vars := groups[key]
		first := vars[0]
		file := definition.StandardizePath(first.File)
		ext := path.Ext(file)
		typ := first.Type
		for _, v := range vars[1:] {
			if v.Type != typ {
				typ = definition.FormatType(file, strings.TrimPrefix(ext, "."))
				break
			}
		}
		merged := &definition.Definition{
			ID:        strings.TrimSuffix(path.Base(file), ext),
			Type:      typ,
			ValueType: definition.OverwrittenObjectSingleFile,
			File:      file,
			ModName:   first.ModName,
			ModPath:   first.ModPath,
			Order:     first.Order,
			Code:      combineCode(vars),
		}
		out = append(out, merged)
	}
	return out
}

// combineCode joins variable bodies. Localisation entries share one language
// header.
func combineCode(vars []*definition.Definition) string {
	var (
		b      strings.Builder
		header string
	)
	for _, v := range vars {
		code := v.Code
		if lang, entry, ok := strings.Cut(code, ":\n"); ok && strings.HasPrefix(lang, "l_") && !strings.ContainsAny(lang, " \t\n") {
			if header == "" {
				header = lang + ":"
				b.WriteString(header)
				b.WriteByte('\n')
			}
			code = entry
		}
		b.WriteString(code)
		b.WriteByte('\n')
	}
	return strings.TrimSuffix(b.String(), "\n")
}
