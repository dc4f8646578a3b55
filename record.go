package tik

// Record is an open mapping of field names to values. Tabular sources produce
// string values; JSON sources may produce any JSON scalar, nested object, or
// array. Record identity within a comprehension is defined solely by the GUID
// field named in the mapping configuration, never by field content.
type Record map[string]interface{}

// Copy returns a deep copy of the record. Nested maps and slices are copied;
// scalar values are shared (they are immutable).
func (r Record) Copy() Record {
	if r == nil {
		return nil
	}
	out := make(Record, len(r))
	for k, v := range r {
		out[k] = copyValue(v)
	}
	return out
}

func copyValue(v interface{}) interface{} {
	switch tv := v.(type) {
	case map[string]interface{}:
		out := make(map[string]interface{}, len(tv))
		for k, vv := range tv {
			out[k] = copyValue(vv)
		}
		return out
	case Record:
		out := make(Record, len(tv))
		for k, vv := range tv {
			out[k] = copyValue(vv)
		}
		return out
	case []interface{}:
		out := make([]interface{}, len(tv))
		for i, vv := range tv {
			out[i] = copyValue(vv)
		}
		return out
	default:
		return v
	}
}

// merge copies every field of src onto dst, src winning on conflicts. dst is
// returned for convenience.
func merge(dst, src Record) Record {
	for k, v := range src {
		dst[k] = v
	}
	return dst
}
