package ratelimit

import (
	"fmt"
	"reflect"
	"runtime"

	"github.com/google/uuid"
)

// Target is the identity a rate limit is tracked against. Two targets are
// the same only if they are the same pointer; names are labels and may
// repeat.
type Target struct {
	id   string
	name string
}

// NewTarget creates a fresh identity with the given label.
func NewTarget(name string) *Target {
	if name == "" {
		name = "target"
	}
	return &Target{
		id:   uuid.NewString(),
		name: name,
	}
}

// ID returns the unique key of the target.
func (t *Target) ID() string {
	return t.id
}

// Name returns the label given at creation.
func (t *Target) Name() string {
	return t.name
}

func (t *Target) String() string {
	return fmt.Sprintf("%s#%s", t.name, t.id[:8])
}

// funcName returns the symbol name of fn, used to label wrapped targets.
func funcName(fn interface{}) string {
	v := reflect.ValueOf(fn)
	if v.Kind() != reflect.Func || v.IsNil() {
		return "func"
	}
	if f := runtime.FuncForPC(v.Pointer()); f != nil {
		return f.Name()
	}
	return "func"
}
