package form

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Form is a user-defined form as stored in the forms collection.
// Optional string fields are pointers so that "not set" survives a round trip.
type Form struct {
	ID           primitive.ObjectID       `json:"id" bson:"_id,omitempty"`
	DisplayName  string                   `json:"displayName" bson:"displayName"`
	Title        *string                  `json:"title,omitempty" bson:"title,omitempty"`
	Icon         *string                  `json:"icon,omitempty" bson:"icon,omitempty"`
	Description  *string                  `json:"description,omitempty" bson:"description,omitempty"`
	BtnLabel     *string                  `json:"btnLabel,omitempty" bson:"btnLabel,omitempty"`
	Settings     map[string]interface{}   `json:"settings,omitempty" bson:"settings,omitempty"`
	Fields       []map[string]interface{} `json:"fields" bson:"fields"`
	PostStream   []primitive.ObjectID     `json:"postStream,omitempty" bson:"postStream,omitempty"`
	Version      int                      `json:"version" bson:"version"`
	Created      time.Time                `json:"created" bson:"created"`
	LastModified time.Time                `json:"lastModified" bson:"lastModified"`
	URL          string                   `json:"url" bson:"url"`
}

// IsNew reports whether the form has never been persisted.
func (f *Form) IsNew() bool { return f.ID.IsZero() }

// Clone returns a copy that shares no mutable state with f.
func (f *Form) Clone() *Form {
	if f == nil {
		return nil
	}
	c := *f
	c.Title = cloneString(f.Title)
	c.Icon = cloneString(f.Icon)
	c.Description = cloneString(f.Description)
	c.BtnLabel = cloneString(f.BtnLabel)
	if f.Settings != nil {
		c.Settings = deepCopyMap(f.Settings)
	}
	c.Fields = make([]map[string]interface{}, len(f.Fields))
	for i, fld := range f.Fields {
		c.Fields[i] = deepCopyMap(fld)
	}
	if f.PostStream != nil {
		c.PostStream = append([]primitive.ObjectID(nil), f.PostStream...)
	}
	return &c
}

func cloneString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}

func deepCopyMap(m map[string]interface{}) map[string]interface{} {
	if m == nil {
		return nil
	}
	out := make(map[string]interface{}, len(m))
	for k, v := range m {
		out[k] = deepCopyValue(v)
	}
	return out
}

func deepCopyValue(v interface{}) interface{} {
	switch t := v.(type) {
	case map[string]interface{}:
		return deepCopyMap(t)
	case []interface{}:
		out := make([]interface{}, len(t))
		for i, e := range t {
			out[i] = deepCopyValue(e)
		}
		return out
	case primitive.M:
		return primitive.M(deepCopyMap(t))
	case primitive.A:
		out := make(primitive.A, len(t))
		for i, e := range t {
			out[i] = deepCopyValue(e)
		}
		return out
	default:
		return v
	}
}
