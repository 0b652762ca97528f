package namegen

import (
	vendor "github.com/anandvarma/namegen"
)

var gen = vendor.New()

// ID is a generated human-readable name, used to label clusters and
// simulated applications.
type ID string

// Get returns a fresh random name.
func Get() ID {
	return ID(gen.Get())
}

// Prefixed returns a fresh random name under a fixed prefix, e.g.
// "app-misty-haze".
func Prefixed(prefix string) ID {
	return ID(prefix + "-" + gen.Get())
}

func (id ID) String() string {
	return string(id)
}
