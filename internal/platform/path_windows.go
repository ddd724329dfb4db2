//go:build windows

package platform

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"unsafe"

	"golang.org/x/sys/windows"
	"golang.org/x/sys/windows/registry"

	"github.com/oshokin/conda-buildenv/internal/logger"
)

const (
	userEnvironmentKey   = `Environment`
	systemEnvironmentKey = `SYSTEM\CurrentControlSet\Control\Session Manager\Environment`
	pathValueName        = "PATH"

	hwndBroadcast      = 0xffff
	wmSettingChange    = 0x001A
	smtoAbortIfHung    = 0x0002
	broadcastTimeoutMS = 5000
)

var errNotDirectory = errors.New("not a directory")

//nolint:gochecknoglobals // Lazy DLL handles are process-wide by nature.
var procSendMessageTimeout = windows.NewLazySystemDLL("user32.dll").NewProc("SendMessageTimeoutW")

// registryPathEditor edits PATH under HKCU\Environment and the
// Session Manager environment key under HKLM.
type registryPathEditor struct{}

// NewPathEditor returns the PATH editor for the running host.
//
//nolint:ireturn // Callers depend on the interface only.
func NewPathEditor() PathEditor {
	return registryPathEditor{}
}

// RemovePathEntry drops dir from the user PATH and, for all-users installs,
// from the system PATH. A missing PATH value in one scope is skipped.
func (registryPathEditor) RemovePathEntry(ctx context.Context, dir string, allUsers bool) error {
	type scope struct {
		root registry.Key
		path string
	}

	scopes := []scope{{registry.CURRENT_USER, userEnvironmentKey}}
	if allUsers {
		scopes = append(scopes, scope{registry.LOCAL_MACHINE, systemEnvironmentKey})
	}

	var errs []error

	for _, s := range scopes {
		if err := removeFromKey(ctx, s.root, s.path, dir); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", s.path, err))
		}
	}

	return errors.Join(errs...)
}

func removeFromKey(ctx context.Context, root registry.Key, keyPath, dir string) error {
	key, err := registry.OpenKey(root, keyPath, registry.QUERY_VALUE|registry.SET_VALUE)
	if err != nil {
		return fmt.Errorf("open key: %w", err)
	}

	defer func() {
		_ = key.Close()
	}()

	value, valueType, err := key.GetStringValue(pathValueName)
	if errors.Is(err, registry.ErrNotExist) {
		logger.DebugKV(ctx, "No PATH value in registry scope", "key", keyPath)
		return nil
	}

	if err != nil {
		return fmt.Errorf("read %s: %w", pathValueName, err)
	}

	var expand func(string) string
	if valueType == registry.EXPAND_SZ {
		expand = func(s string) string {
			expanded, expandErr := registry.ExpandString(s)
			if expandErr != nil {
				return s
			}

			return expanded
		}
	}

	updated, changed := RemovePathSegments(value, dir, ";", expand, NormalizeWindowsPath)
	if !changed {
		return nil
	}

	logger.InfoKV(ctx, "Removing directory from PATH", "key", keyPath, "directory", dir)

	return setPath(key, valueType, updated)
}

// AddPathEntry puts dir at the end of the system PATH or the front of the user PATH.
func (registryPathEditor) AddPathEntry(ctx context.Context, dir string, allUsers bool) error {
	absolute, err := filepath.Abs(dir)
	if err != nil {
		return err
	}

	info, err := os.Stat(absolute)
	if err != nil {
		return err
	}

	if !info.IsDir() {
		return fmt.Errorf("%s: %w", absolute, errNotDirectory)
	}

	root, keyPath := registry.CURRENT_USER, userEnvironmentKey
	if allUsers {
		root, keyPath = registry.LOCAL_MACHINE, systemEnvironmentKey
	}

	key, err := registry.OpenKey(root, keyPath, registry.QUERY_VALUE|registry.SET_VALUE)
	if err != nil {
		return fmt.Errorf("open key %s: %w", keyPath, err)
	}

	defer func() {
		_ = key.Close()
	}()

	value, valueType, err := key.GetStringValue(pathValueName)

	switch {
	case errors.Is(err, registry.ErrNotExist):
		value, valueType = "", registry.EXPAND_SZ
	case err != nil:
		return fmt.Errorf("read %s: %w", pathValueName, err)
	}

	logger.InfoKV(ctx, "Adding directory to PATH", "key", keyPath, "directory", absolute)

	return setPath(key, valueType, AddPathSegment(value, absolute, ";", !allUsers))
}

func setPath(key registry.Key, valueType uint32, value string) error {
	if valueType == registry.EXPAND_SZ {
		return key.SetExpandStringValue(pathValueName, value)
	}

	return key.SetStringValue(pathValueName, value)
}

// NotifyEnvironmentChanged broadcasts WM_SETTINGCHANGE for "Environment".
func (registryPathEditor) NotifyEnvironmentChanged(ctx context.Context) error {
	area, err := windows.UTF16PtrFromString("Environment")
	if err != nil {
		return err
	}

	var result uintptr

	ret, _, callErr := procSendMessageTimeout.Call(
		hwndBroadcast,
		wmSettingChange,
		0,
		uintptr(unsafe.Pointer(area)),
		smtoAbortIfHung,
		broadcastTimeoutMS,
		uintptr(unsafe.Pointer(&result)),
	)
	if ret == 0 {
		return fmt.Errorf("SendMessageTimeoutW: %w", callErr)
	}

	logger.Debug(ctx, "Broadcast environment change")

	return nil
}
