package models

import (
	"encoding/json"
	"reflect"
	"sort"
	"strings"
	"sync"

	"go.mongodb.org/mongo-driver/v2/bson"
)

// Fields reachable through a generic patch carry the tag `patch:"mutable"`.
// Everything else on the struct is protected and can only change through a
// dedicated operation.
const patchTag = "patch"

// PatchSchema is the set of patchable and protected field names of one
// entity, derived from its struct tags.
type PatchSchema struct {
	mutable   map[string]reflect.StructField
	protected map[string]struct{}
}

func newPatchSchema(t reflect.Type) *PatchSchema {
	s := &PatchSchema{
		mutable:   make(map[string]reflect.StructField),
		protected: make(map[string]struct{}),
	}

	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		bsonName := tagName(field.Tag.Get("bson"))
		jsonName := tagName(field.Tag.Get("json"))

		if field.Tag.Get(patchTag) == "mutable" {
			s.mutable[bsonName] = field
			continue
		}

		for _, name := range []string{bsonName, jsonName} {
			if name != "" && name != "-" {
				s.protected[name] = struct{}{}
			}
		}
	}

	return s
}

func tagName(tag string) string {
	name, _, _ := strings.Cut(tag, ",")
	return name
}

// Mutable lists the patchable field names in sorted order.
func (s *PatchSchema) Mutable() []string {
	out := make([]string, 0, len(s.mutable))
	for name := range s.mutable {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

func (s *PatchSchema) IsMutable(name string) bool {
	_, ok := s.mutable[name]
	return ok
}

func (s *PatchSchema) IsProtected(name string) bool {
	_, ok := s.protected[name]
	return ok
}

// CheckKeys rejects protected keys before anything else is looked at, then
// unknown keys. The order of the result does not depend on map iteration.
func (s *PatchSchema) CheckKeys(patch map[string]any) error {
	keys := make([]string, 0, len(patch))
	for k := range patch {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		if s.IsProtected(k) {
			return forbidden(k)
		}
	}
	for _, k := range keys {
		if !s.IsMutable(k) {
			return invalid(k, "is not a known field")
		}
	}
	return nil
}

// Decode checks the keys and converts every value to the declared field
// type. The result is ready to be used as a $set document.
func (s *PatchSchema) Decode(patch map[string]any) (bson.D, error) {
	if err := s.CheckKeys(patch); err != nil {
		return nil, err
	}

	keys := make([]string, 0, len(patch))
	for k := range patch {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	set := bson.D{}
	for _, k := range keys {
		field := s.mutable[k]
		raw, err := json.Marshal(patch[k])
		if err != nil {
			return nil, invalid(k, "cannot be encoded")
		}
		target := reflect.New(field.Type)
		if err := json.Unmarshal(raw, target.Interface()); err != nil {
			return nil, invalid(k, "has the wrong type")
		}
		set = append(set, bson.E{Key: k, Value: target.Elem().Interface()})
	}
	return set, nil
}

var (
	quizSchemaOnce sync.Once
	quizSchema     *PatchSchema
	userSchemaOnce sync.Once
	userSchema     *PatchSchema
)

func QuizPatchSchema() *PatchSchema {
	quizSchemaOnce.Do(func() {
		quizSchema = newPatchSchema(reflect.TypeOf(Quiz{}))
	})
	return quizSchema
}

func UserPatchSchema() *PatchSchema {
	userSchemaOnce.Do(func() {
		userSchema = newPatchSchema(reflect.TypeOf(User{}))
	})
	return userSchema
}
