package idgen

import "github.com/google/uuid"

// NewFunc supplies identifiers. Tests override it for determinism.
var NewFunc = func() string { return uuid.New().String() }

// New returns a globally unique identifier via NewFunc.
func New() string { return NewFunc() }
