package form

import (
	"fmt"
	"strings"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

const requiredMsg = "Path `%s` is required."

// New builds a transient form from loosely typed input, typically a decoded
// JSON body. Unknown keys are ignored. Fields defaults to an empty slice;
// version, timestamps and url are left for the first Save.
func New(values map[string]interface{}) (*Form, error) {
	f := &Form{Fields: []map[string]interface{}{}}
	if err := f.Assign(values); err != nil {
		return nil, err
	}
	return f, nil
}

// Assign copies the recognised keys of values onto f. Derived fields
// (id, version, created, lastModified, url) are never taken from input.
// On error f is left untouched.
func (f *Form) Assign(values map[string]interface{}) error {
	next := f.Clone()
	verr := &ValidationError{}

	if v, ok := values["displayName"]; ok {
		s, ok := v.(string)
		if !ok {
			verr.add("displayName", fmt.Sprintf("cast to string failed for value %v", v))
		} else {
			next.DisplayName = s
		}
	}
	assignOptional(verr, values, "title", &next.Title)
	assignOptional(verr, values, "icon", &next.Icon)
	assignOptional(verr, values, "description", &next.Description)
	assignOptional(verr, values, "btnLabel", &next.BtnLabel)

	if v, ok := values["settings"]; ok {
		switch t := v.(type) {
		case nil:
			next.Settings = nil
		case map[string]interface{}:
			next.Settings = deepCopyMap(t)
		case primitive.M:
			next.Settings = deepCopyMap(t)
		default:
			verr.add("settings", fmt.Sprintf("cast to object failed for value %v", v))
		}
	}

	if v, ok := values["fields"]; ok {
		fields, err := toFields(v)
		if err != nil {
			verr.add("fields", err.Error())
		} else {
			next.Fields = fields
		}
	}

	if v, ok := values["postStream"]; ok {
		ids, err := toObjectIDs(v)
		if err != nil {
			verr.add("postStream", err.Error())
		} else {
			next.PostStream = ids
		}
	}

	if err := verr.orNil(); err != nil {
		return err
	}
	*f = *next
	return nil
}

func assignOptional(verr *ValidationError, values map[string]interface{}, key string, dst **string) {
	v, ok := values[key]
	if !ok {
		return
	}
	switch t := v.(type) {
	case nil:
		*dst = nil
	case string:
		*dst = &t
	default:
		verr.add(key, fmt.Sprintf("cast to string failed for value %v", v))
	}
}

func toFields(v interface{}) ([]map[string]interface{}, error) {
	var items []interface{}
	switch t := v.(type) {
	case nil:
		return []map[string]interface{}{}, nil
	case []map[string]interface{}:
		out := make([]map[string]interface{}, len(t))
		for i, m := range t {
			out[i] = deepCopyMap(m)
		}
		return out, nil
	case []interface{}:
		items = t
	case primitive.A:
		items = t
	default:
		return nil, fmt.Errorf("cast to array failed for value %v", v)
	}
	out := make([]map[string]interface{}, 0, len(items))
	for i, item := range items {
		switch m := item.(type) {
		case map[string]interface{}:
			out = append(out, deepCopyMap(m))
		case primitive.M:
			out = append(out, deepCopyMap(m))
		default:
			return nil, fmt.Errorf("cast to object failed for fields[%d]", i)
		}
	}
	return out, nil
}

// toObjectIDs normalises a single identifier or a list of identifiers into a
// slice. Identifiers may be ObjectIDs or their 24 character hex form.
func toObjectIDs(v interface{}) ([]primitive.ObjectID, error) {
	switch t := v.(type) {
	case nil:
		return nil, nil
	case primitive.ObjectID:
		return []primitive.ObjectID{t}, nil
	case string:
		id, err := parseObjectID(t)
		if err != nil {
			return nil, err
		}
		return []primitive.ObjectID{id}, nil
	case []primitive.ObjectID:
		return append([]primitive.ObjectID{}, t...), nil
	case []string:
		out := make([]primitive.ObjectID, 0, len(t))
		for _, s := range t {
			id, err := parseObjectID(s)
			if err != nil {
				return nil, err
			}
			out = append(out, id)
		}
		return out, nil
	case []interface{}:
		out := make([]primitive.ObjectID, 0, len(t))
		for _, e := range t {
			ids, err := toObjectIDs(e)
			if err != nil {
				return nil, err
			}
			if len(ids) != 1 {
				return nil, fmt.Errorf("cast to ObjectId failed for value %v", e)
			}
			out = append(out, ids[0])
		}
		return out, nil
	default:
		return nil, fmt.Errorf("cast to ObjectId failed for value %v", v)
	}
}

func parseObjectID(s string) (primitive.ObjectID, error) {
	id, err := primitive.ObjectIDFromHex(strings.TrimSpace(s))
	if err != nil {
		return primitive.NilObjectID, fmt.Errorf("cast to ObjectId failed for value %q", s)
	}
	return id, nil
}

// Validate checks the schema rules that must hold before any write.
func Validate(f *Form) error {
	verr := &ValidationError{}
	if strings.TrimSpace(f.DisplayName) == "" {
		verr.add("displayName", fmt.Sprintf(requiredMsg, "displayName"))
	}
	return verr.orNil()
}
