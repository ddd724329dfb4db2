//go:build !windows

package platform

import "context"

// noopPathEditor is used on hosts without a registry-backed PATH.
type noopPathEditor struct{}

// NewPathEditor returns the PATH editor for the running host.
// Outside Windows the persistent PATH lives in shell profiles nobody here
// touches, so the editor does nothing.
//
//nolint:ireturn // Callers depend on the interface only.
func NewPathEditor() PathEditor {
	return noopPathEditor{}
}

func (noopPathEditor) RemovePathEntry(context.Context, string, bool) error { return nil }

func (noopPathEditor) AddPathEntry(context.Context, string, bool) error { return nil }

func (noopPathEditor) NotifyEnvironmentChanged(context.Context) error { return nil }
