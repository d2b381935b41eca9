package prunable

import "context"

// Object is one candidate entry discovered under a root. Kind is always
// "object": backends only yield leaf objects, never directories.
type Object struct {
	Path string
	Kind string
}

const KindObject = "object"

// Walker lists every object under root, invoking fn once per object. A
// non-nil error from fn aborts the walk and is returned as-is.
type Walker interface {
	Walk(ctx context.Context, root string, fn func(Object) error) error
}

// Remover deletes the object at path and, when path denotes a subtree,
// everything under it. Removing a path that no longer exists is not an error.
type Remover interface {
	RemoveAll(ctx context.Context, path string) error
}
