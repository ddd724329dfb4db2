package platform

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

// TestNormalizeWindowsPath checks case folding, separator and dot handling.
func TestNormalizeWindowsPath(t *testing.T) {
	t.Parallel()

	cases := map[string]string{
		`C:\Tools\Conda`:              `c:\tools\conda`,
		`c:/tools/conda/`:             `c:\tools\conda`,
		`C:\Tools\.\Other\..\Conda\\`: `c:\tools\conda`,
		`C:\`:                         `c:\`,
		`C:`:                          `c:\`,
		`\\Server\Share\Conda`:        `\\server\share\conda`,
		"":                            "",
	}
	for in, want := range cases {
		require.Equal(t, want, NormalizeWindowsPath(in), in)
	}
}

// TestRemovePathSegments_RemovesSingleMatch verifies N-1 segments with order preserved.
func TestRemovePathSegments_RemovesSingleMatch(t *testing.T) {
	t.Parallel()

	value := `C:\Windows;D:\Env\conda_buildenv-x;C:\Tools;%USERPROFILE%\bin`

	got, changed := RemovePathSegments(value, `d:\env\CONDA_BUILDENV-X\`, ";", nil, NormalizeWindowsPath)
	require.True(t, changed)
	require.Equal(t, `C:\Windows;C:\Tools;%USERPROFILE%\bin`, got)
	require.Len(t, strings.Split(got, ";"), len(strings.Split(value, ";"))-1)
}

// TestRemovePathSegments_NoMatch returns the value untouched.
func TestRemovePathSegments_NoMatch(t *testing.T) {
	t.Parallel()

	value := `C:\Windows;;C:\Tools;`

	got, changed := RemovePathSegments(value, `D:\Env`, ";", nil, NormalizeWindowsPath)
	require.False(t, changed)
	require.Equal(t, value, got)
}

// TestRemovePathSegments_ExpandsReferences matches expanded segments but keeps the raw text of others.
func TestRemovePathSegments_ExpandsReferences(t *testing.T) {
	t.Parallel()

	expand := func(s string) string {
		return strings.ReplaceAll(s, "%ENVROOT%", `D:\Env`)
	}

	value := `%ENVROOT%\conda;%ENVROOT%\conda\Scripts;C:\Tools`

	got, changed := RemovePathSegments(value, `D:\Env\conda\Scripts`, ";", expand, NormalizeWindowsPath)
	require.True(t, changed)
	require.Equal(t, `%ENVROOT%\conda;C:\Tools`, got)
}

// TestRemovePathSegments_RemovesDuplicates drops every matching segment.
func TestRemovePathSegments_RemovesDuplicates(t *testing.T) {
	t.Parallel()

	got, changed := RemovePathSegments("/a:/b:/a:/c", "/a", ":", nil, nil)
	require.True(t, changed)
	require.Equal(t, "/b:/c", got)
}

// TestAddPathSegment covers append, prepend and empty PATH.
func TestAddPathSegment(t *testing.T) {
	t.Parallel()

	require.Equal(t, `C:\a;C:\new`, AddPathSegment(`C:\a`, `C:\new`, ";", false))
	require.Equal(t, `C:\new;C:\a`, AddPathSegment(`C:\a`, `C:\new`, ";", true))
	require.Equal(t, `C:\new`, AddPathSegment("", `C:\new`, ";", true))
}

// TestHost covers the platform-dependent helpers.
func TestHost(t *testing.T) {
	t.Parallel()

	win := Host{OS: Windows, Arch: "amd64"}
	require.True(t, win.IsWindows())
	require.Equal(t, ".exe", win.ExecutableExtension())
	require.Equal(t, ";", win.PathListSeparator())

	lin := Host{OS: Linux, Arch: "arm64"}
	require.False(t, lin.IsWindows())
	require.Empty(t, lin.ExecutableExtension())
	require.Equal(t, ":", lin.PathListSeparator())
	require.Equal(t, "linux/arm64", lin.String())
}
