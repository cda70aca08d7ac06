package devdata

import "sort"

type fieldKey struct {
	index uint8
	num   uint8
}

// Registry caches developer ids and field descriptions for one decode or
// encode session. Descriptions must be added before the data they describe.
// A Registry is not safe for concurrent use; give each file its own.
type Registry struct {
	developers map[uint8]DeveloperID
	fields     map[fieldKey]Description
	wildcards  map[uint8]Description
}

func NewRegistry() *Registry {
	return &Registry{
		developers: make(map[uint8]DeveloperID),
		fields:     make(map[fieldKey]Description),
		wildcards:  make(map[uint8]Description),
	}
}

// AddDeveloper registers id. Re-registering an index for a different
// application drops the descriptions made under the previous one.
func (r *Registry) AddDeveloper(id DeveloperID) {
	if old, ok := r.developers[id.DeveloperDataIndex]; ok && string(old.ApplicationID) != string(id.ApplicationID) {
		for k := range r.fields {
			if k.index == id.DeveloperDataIndex {
				delete(r.fields, k)
			}
		}
		delete(r.wildcards, id.DeveloperDataIndex)
	}
	r.developers[id.DeveloperDataIndex] = id
}

func (r *Registry) Developer(index uint8) (DeveloperID, bool) {
	id, ok := r.developers[index]
	return id, ok
}

// Add registers d, replacing any earlier description with the same key.
func (r *Registry) Add(d Description) {
	if !d.HasFieldNum {
		r.wildcards[d.DeveloperDataIndex] = d
		return
	}
	r.fields[fieldKey{d.DeveloperDataIndex, d.FieldNum}] = d
}

// Lookup finds the description for developer field num of data index index.
func (r *Registry) Lookup(index, num uint8) (Description, bool) {
	if d, ok := r.fields[fieldKey{index, num}]; ok {
		return d, true
	}
	d, ok := r.wildcards[index]
	return d, ok
}

// Descriptions returns the registered descriptions ordered by index and
// field number.
func (r *Registry) Descriptions() []Description {
	out := make([]Description, 0, len(r.fields)+len(r.wildcards))
	for _, d := range r.fields {
		out = append(out, d)
	}
	for _, d := range r.wildcards {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].DeveloperDataIndex != out[j].DeveloperDataIndex {
			return out[i].DeveloperDataIndex < out[j].DeveloperDataIndex
		}
		if out[i].HasFieldNum != out[j].HasFieldNum {
			return out[i].HasFieldNum
		}
		return out[i].FieldNum < out[j].FieldNum
	})
	return out
}

func (r *Registry) Len() int { return len(r.fields) + len(r.wildcards) }
