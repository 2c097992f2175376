package util

import (
	"sort"
	"strings"
)

const sep = ';'

type StringSet map[string]struct{}

func NewStringSet(keys ...string) StringSet {
	s := make(StringSet, len(keys))
	s.Add(keys...)

	return s
}

func (s StringSet) Add(keys ...string) {
	for _, k := range keys {
		s[k] = struct{}{}
	}
}

func (s StringSet) Remove(key string) {
	delete(s, key)
}

func (s StringSet) Has(key string) bool {
	_, ok := s[key]

	return ok
}

// List returns sorted keys.
func (s StringSet) List() []string {
	res := make([]string, 0, len(s))

	for k := range s {
		res = append(res, k)
	}

	sort.Strings(res)

	return res
}

func (s StringSet) String() string {
	return strings.Join(s.List(), string(sep))
}
