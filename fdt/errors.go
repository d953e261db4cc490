// Copyright © 2026 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

package fdt

import (
	"errors"
	"fmt"
)

// Header and structure errors abort Parse. ErrBadValue is recorded on the
// node that owns the property. ErrAddressNotMapped is returned by
// translation only.
var (
	ErrBadMagic           = errors.New("bad magic")
	ErrTruncated          = errors.New("truncated")
	ErrUnsupportedVersion = errors.New("unsupported version")
	ErrBadLayout          = errors.New("bad layout")
	ErrBadStructure       = errors.New("bad structure")
	ErrBadValue           = errors.New("bad value")
	ErrAddressNotMapped   = errors.New("address not mapped")
	ErrNotFound           = errors.New("not found")
)

// Error locates a failure in the blob or the tree. Kind is one of the
// package's sentinel errors so errors.Is works on any *Error.
type Error struct {
	Kind   error
	Offset int // in the blob; -1 if not applicable
	Path   string
	Prop   string
	Msg    string
}

func (e *Error) Error() string {
	s := "fdt: " + e.Kind.Error()
	if len(e.Path) > 0 {
		s += ": " + e.Path
		if len(e.Prop) > 0 {
			s += ":" + e.Prop
		}
	} else if len(e.Prop) > 0 {
		s += ": " + e.Prop
	}
	if e.Offset >= 0 {
		s += fmt.Sprintf(" at 0x%x", e.Offset)
	}
	if len(e.Msg) > 0 {
		s += ": " + e.Msg
	}
	return s
}

func (e *Error) Unwrap() error { return e.Kind }

func headerErr(kind error, format string, args ...interface{}) error {
	return &Error{
		Kind:   kind,
		Offset: -1,
		Msg:    fmt.Sprintf(format, args...),
	}
}

func structErr(off int, format string, args ...interface{}) error {
	return &Error{
		Kind:   ErrBadStructure,
		Offset: off,
		Msg:    fmt.Sprintf(format, args...),
	}
}

func valueErr(format string, args ...interface{}) error {
	return &Error{
		Kind:   ErrBadValue,
		Offset: -1,
		Msg:    fmt.Sprintf(format, args...),
	}
}

// located fills in the node and property of a decode error.
func located(err error, n *Node, prop string) error {
	var e *Error
	if errors.As(err, &e) {
		c := *e
		if n != nil {
			c.Path = n.Path()
		}
		c.Prop = prop
		return &c
	}
	return &Error{
		Kind:   ErrBadValue,
		Offset: -1,
		Path:   n.Path(),
		Prop:   prop,
		Msg:    err.Error(),
	}
}
